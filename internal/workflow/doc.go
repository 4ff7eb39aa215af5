// Package workflow advances conversion jobs through the processing stages.
//
// The Manager runs a configurable number of workers against the shared
// queue. Each worker owns a private scratch directory and drives one job at
// a time through the stage handlers (encoder, framer, header writer,
// verifier), persisting status transitions and failure metadata along the
// way. Cancellation stops workers between stages; interrupted jobs are
// rolled back to the start of their stage on the next run.
package workflow

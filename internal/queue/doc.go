// Package queue persists conversion jobs in SQLite and guards their
// lifecycle transitions.
//
// Each job moves pending -> encoding -> encoded -> framing -> framed ->
// writing_header -> header_written -> verifying -> verified, or to failed
// from any processing state. Workers claim jobs atomically so multiple
// workers can share one database.
package queue

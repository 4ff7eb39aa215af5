// Package framing holds the pipeline stages that turn encoded Ogg/Opus
// intermediates into a finished container: re-paging the audio into the
// aligned stream, writing the header block, and verifying the assembled
// file before it reaches the output directory.
package framing

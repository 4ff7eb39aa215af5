package taf

import "errors"

var (
	// ErrFormat indicates a corrupt or truncated header block.
	ErrFormat = errors.New("taf: malformed header")

	// ErrInvalidFormat indicates structural corruption of the audio stream:
	// serial numbers that disagree with the header, broken page sequencing,
	// or non-monotonic granule positions.
	ErrInvalidFormat = errors.New("taf: invalid stream structure")
)

package ogg

import "errors"

var (
	// ErrInvalidPage indicates a malformed page: missing "OggS" capture
	// pattern, truncated header, or truncated payload.
	ErrInvalidPage = errors.New("ogg: invalid page structure")

	// ErrChecksum indicates the page CRC does not match its contents.
	ErrChecksum = errors.New("ogg: page checksum mismatch")

	// ErrInvalidHeader indicates a malformed OpusHead or OpusTags packet.
	ErrInvalidHeader = errors.New("ogg: invalid opus header")
)

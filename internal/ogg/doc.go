// Package ogg implements the subset of the Ogg encapsulation (RFC 3533) and
// the Ogg/Opus mapping (RFC 7845) needed to read and write Tonie audio
// streams: page encode/parse with the Ogg CRC, segment table handling, and
// the OpusHead/OpusTags headers.
package ogg

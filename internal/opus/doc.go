// Package opus inspects and rewrites Opus packets (RFC 6716) at the framing
// level: TOC parsing, 48 kHz sample counting, and conversion to framepacking
// code 3 with explicit padding. Tonie containers use the padding conversion
// to grow the final packet of a page so every audio page is exactly 4 KiB.
// No codec work happens here; frame payloads pass through untouched.
package opus

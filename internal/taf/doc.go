// Package taf reads, writes, validates and compares Tonie Audio Format
// containers. A .taf file is a fixed 4096-byte header block (a 4-byte
// big-endian length prefix followed by a padded protobuf message) and an
// Ogg/Opus stream whose bitstream serial number equals the header timestamp.
// The first two pages carry OpusHead and a padded OpusTags so audio pages
// begin at stream offset 0x200, and every audio page is exactly 4096 bytes.
package taf

// Package media turns user-supplied paths into conversion selections: it
// discovers audio files in directories, parses .lst playlists, reads
// embedded metadata, and derives normalized output names.
package media

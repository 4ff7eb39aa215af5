// Package teddycloud is the HTTP client for a TeddyCloud server: file
// upload, file index listing, tag inventory, and directory creation.
// Converted containers are immutable inputs here; the client never
// modifies them.
package teddycloud

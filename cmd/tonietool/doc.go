// Command tonietool converts audio files into Tonie Audio Format
// containers, inspects and compares existing containers, and uploads
// verified files to a TeddyCloud server.
package main

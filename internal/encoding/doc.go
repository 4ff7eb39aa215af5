// Package encoding converts input audio files into intermediate Ogg/Opus
// streams by piping ffmpeg decode output into opusenc. Inputs that already
// are Ogg/Opus are passed through untouched.
package encoding

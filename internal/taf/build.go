package taf

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// BuildOptions controls container assembly.
type BuildOptions struct {
	AudioID  uint32
	Comments []string
	Vendor   string
}

// Assemble writes a complete container: the encoded header block followed
// by the audio stream.
func Assemble(dst io.Writer, header *Header, audio io.Reader) error {
	block, err := header.Encode()
	if err != nil {
		return err
	}
	if _, err := dst.Write(block); err != nil {
		return err
	}
	_, err = io.Copy(dst, audio)
	return err
}

// Build frames the sources, assembles the container at outPath, and
// verifies the result before moving it into place. Nothing is left behind
// on failure.
func Build(outPath string, sources []Source, opts BuildOptions) (*Info, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, err
	}
	partial := outPath + ".partial"
	out, err := os.Create(partial)
	if err != nil {
		return nil, err
	}
	cleanup := func() {
		out.Close()
		os.Remove(partial)
	}

	// Reserve the header block, stream the audio behind it, then seek back
	// and fill the header in.
	if _, err := out.Write(make([]byte, HeaderBlockSize)); err != nil {
		cleanup()
		return nil, err
	}
	streamInfo, err := WriteStream(out, sources, StreamOptions{
		AudioID:  opts.AudioID,
		Comments: opts.Comments,
		Vendor:   opts.Vendor,
	})
	if err != nil {
		cleanup()
		return nil, err
	}
	block, err := streamInfo.Header(opts.AudioID).Encode()
	if err != nil {
		cleanup()
		return nil, err
	}
	if _, err := out.WriteAt(block, 0); err != nil {
		cleanup()
		return nil, err
	}
	if err := out.Sync(); err != nil {
		cleanup()
		return nil, err
	}
	if err := out.Close(); err != nil {
		os.Remove(partial)
		return nil, err
	}

	info, err := Analyze(partial)
	if err != nil {
		os.Remove(partial)
		return nil, err
	}
	if !info.Valid() {
		os.Remove(partial)
		return nil, fmt.Errorf("%w: assembled container failed validation", ErrInvalidFormat)
	}
	if err := os.Rename(partial, outPath); err != nil {
		os.Remove(partial)
		return nil, err
	}
	info.Path = outPath
	return info, nil
}

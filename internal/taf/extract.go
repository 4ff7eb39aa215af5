package taf

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"tonietool/internal/ogg"
)

// Extract strips the header block and copies the embedded Ogg/Opus stream
// to dst byte for byte. It returns the number of audio bytes written.
func Extract(path string, dst io.Writer) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if _, _, err := ReadHeader(f); err != nil {
		return 0, err
	}
	return io.Copy(dst, f)
}

// ExtractFile extracts into outPath, creating parent directories.
func ExtractFile(path, outPath string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return 0, err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return 0, err
	}
	n, err := Extract(path, out)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(outPath)
		return 0, err
	}
	return n, nil
}

// Split writes one standalone .opus file per chapter into outDir and
// returns the created paths. Each output carries the original OpusHead and
// OpusTags, renumbered page sequences, and granule positions rebased to the
// chapter start.
func Split(path, outDir, baseName string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, _, err := ReadHeader(f)
	if err != nil {
		return nil, err
	}
	if len(header.ChapterPages) == 0 {
		return nil, fmt.Errorf("%w: no chapters recorded in header", ErrInvalidFormat)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	pages := ogg.NewReader(f)
	headPage, err := pages.NextPage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	tagsPage, err := pages.NextPage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	if baseName == "" {
		baseName = trimExtension(filepath.Base(path))
	}

	splitter := &chapterSplitter{
		header:   header,
		headPage: headPage,
		tagsPage: tagsPage,
		outDir:   outDir,
		baseName: baseName,
		total:    len(header.ChapterPages),
		chapter:  -1,
	}

	for {
		page, err := pages.NextPage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			splitter.abort()
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		if err := splitter.consume(page); err != nil {
			splitter.abort()
			return nil, err
		}
	}
	paths, err := splitter.finish()
	if err != nil {
		splitter.abort()
		return nil, err
	}
	return paths, nil
}

type chapterSplitter struct {
	header   *Header
	headPage *ogg.Page
	tagsPage *ogg.Page
	outDir   string
	baseName string
	total    int

	chapter     int
	out         *os.File
	outSeq      uint32
	granuleBase uint64
	lastGranule uint64
	held        *ogg.Page
	paths       []string
}

func (s *chapterSplitter) consume(page *ogg.Page) error {
	idx := s.chapterIndex(page.Sequence)
	if idx < 0 {
		return fmt.Errorf("%w: audio page %d precedes the first chapter", ErrInvalidFormat, page.Sequence)
	}
	if s.out == nil || idx != s.chapter {
		if err := s.closeChapter(); err != nil {
			return err
		}
		s.chapter = idx
		s.granuleBase = s.lastGranule
		if err := s.openChapter(); err != nil {
			return err
		}
	}

	// Write the previously held page now that it is known not to be the
	// chapter's last; hold the current one in its place.
	if s.held != nil {
		if _, err := s.out.Write(s.held.Encode()); err != nil {
			return err
		}
	}
	s.held = &ogg.Page{
		Flags:    page.Flags &^ (ogg.FlagBOS | ogg.FlagEOS),
		Granule:  page.Granule - s.granuleBase,
		Serial:   page.Serial,
		Sequence: s.outSeq,
		Segments: page.Segments,
		Payload:  page.Payload,
	}
	s.outSeq++
	s.lastGranule = page.Granule
	return nil
}

// chapterIndex maps an audio page sequence number to the chapter it belongs
// to. Chapter start entries below 2 refer to the start of the audio section.
func (s *chapterSplitter) chapterIndex(seq uint32) int {
	idx := -1
	for i := 0; i < s.total; i++ {
		start := s.header.ChapterPages[i]
		if start < 2 {
			start = 2
		}
		if seq >= start {
			idx = i
		}
	}
	return idx
}

func (s *chapterSplitter) openChapter() error {
	name := fmt.Sprintf("%s_%02d.opus", s.baseName, s.chapter+1)
	path := filepath.Join(s.outDir, name)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	s.out = f
	s.paths = append(s.paths, path)
	s.outSeq = 2

	head := &ogg.Page{
		Flags:    ogg.FlagBOS,
		Serial:   s.headPage.Serial,
		Sequence: 0,
		Segments: s.headPage.Segments,
		Payload:  s.headPage.Payload,
	}
	tags := &ogg.Page{
		Serial:   s.tagsPage.Serial,
		Sequence: 1,
		Segments: s.tagsPage.Segments,
		Payload:  s.tagsPage.Payload,
	}
	if _, err := f.Write(head.Encode()); err != nil {
		return err
	}
	_, err = f.Write(tags.Encode())
	return err
}

func (s *chapterSplitter) closeChapter() error {
	if s.out == nil {
		return nil
	}
	if s.held != nil {
		s.held.Flags |= ogg.FlagEOS
		if _, err := s.out.Write(s.held.Encode()); err != nil {
			return err
		}
		s.held = nil
	}
	err := s.out.Close()
	s.out = nil
	return err
}

func (s *chapterSplitter) finish() ([]string, error) {
	if err := s.closeChapter(); err != nil {
		return nil, err
	}
	if len(s.paths) != s.total {
		return nil, fmt.Errorf("%w: expected %d chapters, wrote %d", ErrInvalidFormat, s.total, len(s.paths))
	}
	return s.paths, nil
}

// abort removes partial outputs when splitting fails midway.
func (s *chapterSplitter) abort() {
	if s.out != nil {
		s.out.Close()
		s.out = nil
	}
	for _, p := range s.paths {
		os.Remove(p)
	}
	s.paths = nil
}

func trimExtension(name string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)]
}

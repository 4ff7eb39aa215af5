package taf

import (
	"bytes"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"tonietool/internal/ogg"
)

// Chapter is one track within the container.
type Chapter struct {
	Track        int
	StartPage    uint32
	StartGranule uint64
	EndGranule   uint64
}

// Duration returns the chapter length at the container sample rate.
func (c Chapter) Duration() time.Duration {
	return time.Duration(c.EndGranule-c.StartGranule) * time.Second / SampleRate
}

// Info is the result of analyzing a container.
type Info struct {
	Path       string
	FileSize   int64
	HeaderSize int
	Header     *Header
	AudioSize  int64

	Channels   uint8
	SampleRate uint32
	Vendor     string
	Comments   []string

	TotalPages uint32
	Granule    uint64
	Chapters   []Chapter

	// Validity breakdown. Valid is the conjunction.
	HashMatch   bool
	SerialMatch bool
	LengthMatch bool
	Aligned     bool
}

// Valid reports whether the file passes the checks the box itself cares
// about: content hash, page serials, and recorded length matching the
// header.
func (i *Info) Valid() bool {
	return i.HashMatch && i.SerialMatch && i.LengthMatch
}

// Duration returns the total stream length.
func (i *Info) Duration() time.Duration {
	return time.Duration(i.Granule) * time.Second / SampleRate
}

// BitrateKbps estimates the audio bitrate from stream size and duration.
func (i *Info) BitrateKbps() int {
	seconds := i.Duration().Seconds()
	if seconds <= 0 {
		return 0
	}
	return int(float64(i.AudioSize)*8/seconds/1000 + 0.5)
}

// Analyze parses and validates the container at path. Header problems
// surface as ErrFormat, structural stream corruption as ErrInvalidFormat;
// hash and serial mismatches are reported through the Info flags instead.
func Analyze(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	info, err := analyzeStream(f)
	if err != nil {
		return nil, err
	}
	info.Path = path
	info.FileSize = stat.Size()
	return info, nil
}

func analyzeStream(r io.Reader) (*Info, error) {
	header, headerSize, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	info := &Info{
		Header:     header,
		HeaderSize: headerSize,
		SampleRate: SampleRate,
		Aligned:    true,
	}

	digest := sha1.New()
	counter := &countingWriter{w: digest}
	pages := ogg.NewReader(io.TeeReader(r, counter))

	var (
		prevGranule   uint64
		expectSeq     uint32
		serialOK      = true
		chapterStarts = map[uint32]uint64{}
	)
	for {
		page, err := pages.NextPage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: page %d: %v", ErrInvalidFormat, expectSeq, err)
		}
		if page.Sequence != expectSeq {
			return nil, fmt.Errorf("%w: page sequence jumped from %d to %d", ErrInvalidFormat, expectSeq, page.Sequence)
		}
		if page.Serial != header.AudioID {
			serialOK = false
		}

		switch page.Sequence {
		case 0:
			packets := page.Packets()
			if len(packets) != 1 {
				return nil, fmt.Errorf("%w: first page carries %d packets", ErrInvalidFormat, len(packets))
			}
			head, err := ogg.ParseOpusHead(packets[0])
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
			}
			info.Channels = head.Channels
		case 1:
			packets := page.Packets()
			if len(packets) == 1 {
				if tags, err := ogg.ParseOpusTags(packets[0]); err == nil {
					info.Vendor = tags.Vendor
					info.Comments = tags.Comments
				}
			}
		default:
			if page.Granule < prevGranule {
				return nil, fmt.Errorf("%w: granule position regressed on page %d", ErrInvalidFormat, page.Sequence)
			}
			if page.Size() != PageSize {
				info.Aligned = false
			}
			chapterStarts[page.Sequence] = prevGranule
			prevGranule = page.Granule
		}
		expectSeq++
	}
	if expectSeq < 3 {
		return nil, fmt.Errorf("%w: stream has no audio pages", ErrInvalidFormat)
	}

	info.TotalPages = expectSeq
	info.Granule = prevGranule
	info.SerialMatch = serialOK

	var sum [sha1.Size]byte
	digest.Sum(sum[:0])
	info.HashMatch = bytes.Equal(sum[:], header.Hash[:])
	info.AudioSize = counter.n
	info.LengthMatch = counter.n == int64(header.NumBytes)

	info.Chapters = buildChapters(header.ChapterPages, chapterStarts, prevGranule, expectSeq)
	return info, nil
}

func buildChapters(chapterPages []uint32, starts map[uint32]uint64, finalGranule uint64, totalPages uint32) []Chapter {
	chapters := make([]Chapter, 0, len(chapterPages))
	for idx, page := range chapterPages {
		start := uint64(0)
		if page >= 2 {
			start = starts[page]
		}
		chapters = append(chapters, Chapter{Track: idx + 1, StartPage: page, StartGranule: start})
	}
	for idx := range chapters {
		if idx+1 < len(chapters) {
			chapters[idx].EndGranule = chapters[idx+1].StartGranule
		} else {
			chapters[idx].EndGranule = finalGranule
		}
	}
	return chapters
}

package taf

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"time"

	"tonietool/internal/ogg"
	"tonietool/internal/opus"
)

const (
	// PageSize is the size of every audio page in the container. The box
	// firmware seeks by page, so the framer pads each page to this exact
	// size.
	PageSize = 4096

	// headerPagesSize is the combined size of the OpusHead and OpusTags
	// pages; audio pages start at this offset within the stream.
	headerPagesSize = 0x200

	// SampleRate is the Opus output rate; granule positions count samples
	// at this rate.
	SampleRate = 48000
)

// DefaultVendor is written into the OpusTags vendor string.
const DefaultVendor = "tonietool"

// Source is one input elementary stream, an Ogg/Opus file as produced by
// opusenc. Name is used in error messages only.
type Source struct {
	Name string
	R    io.Reader
}

// StreamOptions controls the emitted audio section.
type StreamOptions struct {
	// AudioID becomes the bitstream serial of every page and the header
	// timestamp.
	AudioID uint32
	// Comments are extra OpusTags entries ("key=value").
	Comments []string
	// Vendor overrides DefaultVendor when set.
	Vendor string
}

// StreamInfo describes a written audio section.
type StreamInfo struct {
	ChapterPages []uint32
	AudioPages   uint32
	NumBytes     uint32
	Hash         [sha1.Size]byte
	Channels     uint8
	SampleRate   uint32
	Granule      uint64
}

// Duration returns the stream length derived from the final granule.
func (s *StreamInfo) Duration() time.Duration {
	return time.Duration(s.Granule) * time.Second / SampleRate
}

// Header builds the Tonie header matching the written stream.
func (s *StreamInfo) Header(audioID uint32) *Header {
	return &Header{
		AudioID:      audioID,
		Hash:         s.Hash,
		NumBytes:     s.NumBytes,
		ChapterPages: append([]uint32(nil), s.ChapterPages...),
	}
}

// WriteStream remuxes one or more Opus elementary streams into a single
// TAF-aligned Ogg stream on dst: shared serial, continuous granule
// positions, one chapter per source, every audio page exactly PageSize
// bytes. The returned info carries everything the header needs.
func WriteStream(dst io.Writer, sources []Source, opts StreamOptions) (*StreamInfo, error) {
	if len(sources) == 0 {
		return nil, errors.New("taf: no input streams")
	}

	digest := sha1.New()
	out := &countingWriter{w: io.MultiWriter(dst, digest)}

	fr := &framer{w: out, serial: opts.AudioID}
	info := &StreamInfo{SampleRate: SampleRate}

	for i, src := range sources {
		head, packets, err := openSource(src)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			info.Channels = head.Channels
			if err := fr.writeHeaderPages(head, opts); err != nil {
				return nil, err
			}
			info.ChapterPages = append(info.ChapterPages, 0)
		} else {
			if head.Channels != info.Channels {
				return nil, fmt.Errorf("taf: %s has %d channels, expected %d", src.Name, head.Channels, info.Channels)
			}
			// Chapters start on a fresh page; drain carried packets too.
			for len(fr.packets) > 0 {
				if err := fr.flush(false); err != nil {
					return nil, fmt.Errorf("taf: %s: %w", src.Name, err)
				}
			}
			info.ChapterPages = append(info.ChapterPages, fr.seq)
		}

		count := 0
		for {
			pkt, err := packets.NextPacket()
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return nil, fmt.Errorf("taf: %s: %w", src.Name, err)
			}
			if err := fr.add(pkt); err != nil {
				return nil, fmt.Errorf("taf: %s: %w", src.Name, err)
			}
			count++
		}
		if count == 0 {
			return nil, fmt.Errorf("taf: %s contains no audio packets", src.Name)
		}
	}

	if err := fr.flush(true); err != nil {
		return nil, err
	}

	info.AudioPages = fr.seq - 2
	info.Granule = fr.granule
	info.NumBytes = uint32(out.n)
	digest.Sum(info.Hash[:0])
	return info, nil
}

// openSource reads past the source's own header packets and returns its
// OpusHead plus a reader positioned at the first audio packet.
func openSource(src Source) (*ogg.OpusHead, *ogg.PacketReader, error) {
	packets := ogg.NewPacketReader(src.R)
	first, err := packets.NextPacket()
	if err != nil {
		return nil, nil, fmt.Errorf("taf: %s: %w", src.Name, err)
	}
	head, err := ogg.ParseOpusHead(first)
	if err != nil {
		return nil, nil, fmt.Errorf("taf: %s is not an Ogg/Opus stream: %w", src.Name, err)
	}
	second, err := packets.NextPacket()
	if err != nil {
		return nil, nil, fmt.Errorf("taf: %s: missing comment header: %w", src.Name, err)
	}
	if !ogg.IsOpusTags(second) {
		return nil, nil, fmt.Errorf("taf: %s: expected OpusTags, got %d byte packet", src.Name, len(second))
	}
	return head, packets, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

type pendingPacket struct {
	data    []byte
	samples int
}

// framer accumulates packets into fixed-size pages.
type framer struct {
	w       io.Writer
	serial  uint32
	seq     uint32
	granule uint64
	packets []pendingPacket
}

func (f *framer) writeHeaderPages(src *ogg.OpusHead, opts StreamOptions) error {
	head := &ogg.OpusHead{
		Version:         1,
		Channels:        src.Channels,
		PreSkip:         src.PreSkip,
		InputSampleRate: SampleRate,
	}
	headPacket := head.Encode()
	headPage := &ogg.Page{
		Flags:    ogg.FlagBOS,
		Serial:   f.serial,
		Sequence: 0,
		Segments: ogg.LaceSegments(len(headPacket)),
		Payload:  headPacket,
	}

	vendor := opts.Vendor
	if vendor == "" {
		vendor = DefaultVendor
	}
	tags := &ogg.OpusTags{Vendor: vendor, Comments: opts.Comments}
	// The tags packet is padded so both header pages together occupy
	// exactly headerPagesSize bytes.
	budget := headerPagesSize - headPage.Size() - ogg.HeaderSize
	packetLen := 0
	for {
		candidate := budget - ogg.SegmentCount(packetLen)
		if candidate == packetLen {
			break
		}
		packetLen = candidate
		if packetLen <= 0 {
			return fmt.Errorf("taf: header pages leave no room for tags")
		}
	}
	tagsPacket, err := tags.Encode(packetLen)
	if err != nil {
		return err
	}
	tagsPage := &ogg.Page{
		Serial:   f.serial,
		Sequence: 1,
		Segments: ogg.LaceSegments(len(tagsPacket)),
		Payload:  tagsPacket,
	}
	if headPage.Size()+tagsPage.Size() != headerPagesSize {
		return fmt.Errorf("taf: header pages are %d bytes, want %d", headPage.Size()+tagsPage.Size(), headerPagesSize)
	}

	if _, err := f.w.Write(headPage.Encode()); err != nil {
		return err
	}
	if _, err := f.w.Write(tagsPage.Encode()); err != nil {
		return err
	}
	f.seq = 2
	return nil
}

func (f *framer) pageSize() int {
	size := ogg.HeaderSize
	for _, p := range f.packets {
		size += ogg.SegmentCount(len(p.data)) + len(p.data)
	}
	return size
}

// add queues a packet, flushing the current page first when the packet does
// not fit. Pages are kept at most PageSize-2 bytes (or exactly PageSize) so
// alignment padding always has room to work.
func (f *framer) add(data []byte) error {
	samples, err := opus.PacketSamples(data)
	if err != nil {
		return err
	}
	pkt := pendingPacket{data: append([]byte(nil), data...), samples: samples}

	grow := ogg.SegmentCount(len(data)) + len(data)
	if ogg.HeaderSize+grow > PageSize {
		return fmt.Errorf("taf: %d byte packet cannot fit a %d byte page", len(data), PageSize)
	}
	for len(f.packets) > 0 {
		next := f.pageSize() + grow
		if next <= PageSize-2 || next == PageSize {
			break
		}
		if err := f.flush(false); err != nil {
			return err
		}
	}
	f.packets = append(f.packets, pkt)
	return nil
}

// flush emits the pending packets as one page padded to exactly PageSize.
// When the last packet cannot absorb the required growth it is carried over
// to the next page instead.
func (f *framer) flush(eos bool) error {
	if len(f.packets) == 0 {
		if eos {
			return errors.New("taf: stream ended with no audio pages")
		}
		return nil
	}

	var carry *pendingPacket
	for {
		deficit := PageSize - f.pageSize()
		if deficit == 0 {
			break
		}
		last := &f.packets[len(f.packets)-1]
		growth, ok := solveGrowth(len(last.data), deficit)
		if ok && growth >= opus.MinPadGrowth(last.data) {
			padded, err := opus.Pad(last.data, growth)
			if err != nil {
				return err
			}
			last.data = padded
			break
		}
		if len(f.packets) == 1 {
			return fmt.Errorf("taf: cannot align %d byte page", f.pageSize())
		}
		if carry != nil {
			return fmt.Errorf("taf: cannot align page %d", f.seq)
		}
		c := f.packets[len(f.packets)-1]
		carry = &c
		f.packets = f.packets[:len(f.packets)-1]
	}

	flags := byte(0)
	if eos && carry == nil {
		flags = ogg.FlagEOS
	}
	if err := f.emit(flags); err != nil {
		return err
	}

	if carry != nil {
		f.packets = append(f.packets, *carry)
		if eos {
			return f.flush(true)
		}
	}
	return nil
}

func (f *framer) emit(flags byte) error {
	var segments, payload []byte
	for _, p := range f.packets {
		segments = append(segments, ogg.LaceSegments(len(p.data))...)
		payload = append(payload, p.data...)
		f.granule += uint64(p.samples)
	}
	page := &ogg.Page{
		Flags:    flags,
		Granule:  f.granule,
		Serial:   f.serial,
		Sequence: f.seq,
		Segments: segments,
		Payload:  payload,
	}
	if _, err := f.w.Write(page.Encode()); err != nil {
		return err
	}
	f.seq++
	f.packets = f.packets[:0]
	return nil
}

// solveGrowth finds how many bytes the final packet must grow so that the
// page grows by exactly deficit, accounting for the segment table entries
// the growth itself adds.
func solveGrowth(packetLen, deficit int) (int, bool) {
	for growth := deficit; growth > 0; growth-- {
		segDelta := ogg.SegmentCount(packetLen+growth) - ogg.SegmentCount(packetLen)
		if growth+segDelta == deficit {
			return growth, true
		}
	}
	return 0, false
}

package ogg

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// Reader decodes pages sequentially from an underlying stream.
type Reader struct {
	br    *bufio.Reader
	pages uint64
}

func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 64<<10)}
}

// NextPage reads and verifies the next page. It returns io.EOF at a clean
// stream end and ErrInvalidPage when the stream ends mid-page.
func (r *Reader) NextPage() (*Page, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r.br, header[:1]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read page header: %w", err)
	}
	if _, err := io.ReadFull(r.br, header[1:]); err != nil {
		return nil, ErrInvalidPage
	}
	if string(header[0:4]) != capturePattern || header[4] != 0 {
		return nil, ErrInvalidPage
	}

	segCount := int(header[26])
	rest := make([]byte, segCount)
	if _, err := io.ReadFull(r.br, rest); err != nil {
		return nil, ErrInvalidPage
	}
	payloadSize := 0
	for _, lace := range rest {
		payloadSize += int(lace)
	}
	buf := make([]byte, HeaderSize+segCount+payloadSize)
	copy(buf, header)
	copy(buf[HeaderSize:], rest)
	if _, err := io.ReadFull(r.br, buf[HeaderSize+segCount:]); err != nil {
		return nil, ErrInvalidPage
	}

	page, _, err := ParsePage(buf)
	if err != nil {
		return nil, err
	}
	r.pages++
	return page, nil
}

// PagesRead returns the number of pages decoded so far.
func (r *Reader) PagesRead() uint64 {
	return r.pages
}

// PacketReader reassembles packets from a single logical bitstream, handling
// packets that continue across page boundaries.
type PacketReader struct {
	pages   *Reader
	pending [][]byte
	partial []byte
	granule uint64
	serial  uint32
	started bool
	done    bool
}

func NewPacketReader(r io.Reader) *PacketReader {
	return &PacketReader{pages: NewReader(r)}
}

// Serial returns the bitstream serial number seen on the first page.
func (p *PacketReader) Serial() uint32 {
	return p.serial
}

// Granule returns the granule position of the most recently consumed page.
func (p *PacketReader) Granule() uint64 {
	return p.granule
}

// NextPacket returns the next complete packet, or io.EOF after the final page
// has been drained.
func (p *PacketReader) NextPacket() ([]byte, error) {
	for {
		if len(p.pending) > 0 {
			packet := p.pending[0]
			p.pending = p.pending[1:]
			return packet, nil
		}
		if p.done {
			return nil, io.EOF
		}

		page, err := p.pages.NextPage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(p.partial) > 0 {
					return nil, ErrInvalidPage
				}
				p.done = true
				continue
			}
			return nil, err
		}
		if !p.started {
			p.serial = page.Serial
			p.started = true
		} else if page.Serial != p.serial {
			return nil, fmt.Errorf("%w: unexpected serial %08x", ErrInvalidPage, page.Serial)
		}
		p.granule = page.Granule
		if page.IsEOS() {
			p.done = true
		}

		packets := page.Packets()
		tailOpen := page.TailContinues()

		if page.IsContinued() {
			if len(p.partial) == 0 || len(packets) == 0 {
				return nil, fmt.Errorf("%w: unexpected packet continuation", ErrInvalidPage)
			}
			p.partial = append(p.partial, packets[0]...)
			packets = packets[1:]
			if len(packets) == 0 && tailOpen {
				// Still incomplete after this page.
				continue
			}
			p.pending = append(p.pending, p.partial)
			p.partial = nil
		} else if len(p.partial) > 0 {
			return nil, fmt.Errorf("%w: dangling packet continuation", ErrInvalidPage)
		}

		if tailOpen && len(packets) > 0 {
			p.partial = append([]byte(nil), packets[len(packets)-1]...)
			packets = packets[:len(packets)-1]
		}
		p.pending = append(p.pending, packets...)
	}
}

package ogg

import "encoding/binary"

// Page header flags.
const (
	FlagContinued = 0x01
	FlagBOS       = 0x02
	FlagEOS       = 0x04
)

const (
	capturePattern = "OggS"

	// HeaderSize is the fixed portion of a page header, before the segment table.
	HeaderSize = 27

	// MaxSegments is the segment table limit imposed by the page format.
	MaxSegments = 255
)

// Page is a single Ogg page. Segments is the raw segment table; Payload holds
// the concatenated packet data the table describes.
type Page struct {
	Flags    byte
	Granule  uint64
	Serial   uint32
	Sequence uint32
	Segments []byte
	Payload  []byte
}

// Size returns the encoded size of the page in bytes.
func (p *Page) Size() int {
	return HeaderSize + len(p.Segments) + len(p.Payload)
}

func (p *Page) IsBOS() bool { return p.Flags&FlagBOS != 0 }

func (p *Page) IsEOS() bool { return p.Flags&FlagEOS != 0 }

func (p *Page) IsContinued() bool { return p.Flags&FlagContinued != 0 }

// Packets splits the payload into packets according to the segment table.
// A packet whose final lace value is 255 continues on the next page and is
// not returned here; Reader handles reassembly.
func (p *Page) Packets() [][]byte {
	lengths := packetLengths(p.Segments)
	packets := make([][]byte, 0, len(lengths))
	offset := 0
	for _, n := range lengths {
		end := offset + n
		if end > len(p.Payload) {
			end = len(p.Payload)
		}
		packets = append(packets, p.Payload[offset:end])
		offset = end
	}
	return packets
}

// TailContinues reports whether the last packet on the page spills over to
// the following page.
func (p *Page) TailContinues() bool {
	return len(p.Segments) > 0 && p.Segments[len(p.Segments)-1] == 255
}

// Encode serializes the page, computing the CRC over the whole page with the
// checksum field zeroed.
func (p *Page) Encode() []byte {
	size := p.Size()
	data := make([]byte, size)
	copy(data[0:4], capturePattern)
	data[4] = 0 // stream structure version
	data[5] = p.Flags
	binary.LittleEndian.PutUint64(data[6:14], p.Granule)
	binary.LittleEndian.PutUint32(data[14:18], p.Serial)
	binary.LittleEndian.PutUint32(data[18:22], p.Sequence)
	data[26] = byte(len(p.Segments))
	copy(data[27:], p.Segments)
	copy(data[27+len(p.Segments):], p.Payload)

	crc := crcUpdate(0, data)
	binary.LittleEndian.PutUint32(data[22:26], crc)
	return data
}

// ParsePage decodes one page from the front of data, returning the page and
// the number of bytes consumed. The CRC is verified.
func ParsePage(data []byte) (*Page, int, error) {
	if len(data) < HeaderSize {
		return nil, 0, ErrInvalidPage
	}
	if string(data[0:4]) != capturePattern || data[4] != 0 {
		return nil, 0, ErrInvalidPage
	}

	segCount := int(data[26])
	headerSize := HeaderSize + segCount
	if len(data) < headerSize {
		return nil, 0, ErrInvalidPage
	}

	p := &Page{
		Flags:    data[5],
		Granule:  binary.LittleEndian.Uint64(data[6:14]),
		Serial:   binary.LittleEndian.Uint32(data[14:18]),
		Sequence: binary.LittleEndian.Uint32(data[18:22]),
		Segments: append([]byte(nil), data[27:27+segCount]...),
	}

	payloadSize := 0
	for _, lace := range p.Segments {
		payloadSize += int(lace)
	}
	total := headerSize + payloadSize
	if len(data) < total {
		return nil, 0, ErrInvalidPage
	}
	p.Payload = append([]byte(nil), data[headerSize:total]...)

	stored := binary.LittleEndian.Uint32(data[22:26])
	crc := crcUpdate(0, data[:22])
	crc = crcUpdate(crc, []byte{0, 0, 0, 0})
	crc = crcUpdate(crc, data[26:total])
	if crc != stored {
		return nil, 0, ErrChecksum
	}
	return p, total, nil
}

// LaceSegments builds the segment table entries for a packet of the given
// length: 255-valued laces for each full segment plus a terminating lace,
// including the zero lace required when the length is a multiple of 255.
func LaceSegments(packetLen int) []byte {
	full := packetLen / 255
	rest := packetLen % 255
	segments := make([]byte, full+1)
	for i := 0; i < full; i++ {
		segments[i] = 255
	}
	segments[full] = byte(rest)
	return segments
}

// SegmentCount returns the number of lace values LaceSegments would emit.
func SegmentCount(packetLen int) int {
	return packetLen/255 + 1
}

func packetLengths(segments []byte) []int {
	var lengths []int
	current := 0
	for _, lace := range segments {
		current += int(lace)
		if lace < 255 {
			lengths = append(lengths, current)
			current = 0
		}
	}
	if current > 0 {
		// Packet continues on the next page; report the partial length so
		// Packets can expose the fragment.
		lengths = append(lengths, current)
	}
	return lengths
}

package ogg

import (
	"encoding/binary"
	"fmt"
)

const (
	opusHeadMagic = "OpusHead"
	opusTagsMagic = "OpusTags"

	opusHeadMinSize = 19
	opusHeadVersion = 1

	// DefaultPreSkip is the standard Opus encoder lookahead at 48 kHz.
	DefaultPreSkip = 312
)

// OpusHead is the identification header carried on the first (BOS) page.
type OpusHead struct {
	Version         uint8
	Channels        uint8
	PreSkip         uint16
	InputSampleRate uint32
	OutputGain      int16
	MappingFamily   uint8

	// Extended fields, present for mapping families other than 0.
	StreamCount    uint8
	CoupledCount   uint8
	ChannelMapping []byte
}

// Encode serializes the header: 19 bytes for mapping family 0, otherwise
// 21 bytes plus the channel mapping table.
func (h *OpusHead) Encode() []byte {
	size := opusHeadMinSize
	if h.MappingFamily != 0 {
		size = 21 + len(h.ChannelMapping)
	}
	data := make([]byte, size)
	copy(data[0:8], opusHeadMagic)
	data[8] = h.Version
	data[9] = h.Channels
	binary.LittleEndian.PutUint16(data[10:12], h.PreSkip)
	binary.LittleEndian.PutUint32(data[12:16], h.InputSampleRate)
	binary.LittleEndian.PutUint16(data[16:18], uint16(h.OutputGain))
	data[18] = h.MappingFamily
	if h.MappingFamily != 0 {
		data[19] = h.StreamCount
		data[20] = h.CoupledCount
		copy(data[21:], h.ChannelMapping)
	}
	return data
}

// ParseOpusHead decodes an OpusHead packet.
func ParseOpusHead(data []byte) (*OpusHead, error) {
	if len(data) < opusHeadMinSize || string(data[0:8]) != opusHeadMagic {
		return nil, ErrInvalidHeader
	}
	if data[8] != opusHeadVersion {
		return nil, fmt.Errorf("%w: unsupported OpusHead version %d", ErrInvalidHeader, data[8])
	}
	h := &OpusHead{
		Version:         data[8],
		Channels:        data[9],
		PreSkip:         binary.LittleEndian.Uint16(data[10:12]),
		InputSampleRate: binary.LittleEndian.Uint32(data[12:16]),
		OutputGain:      int16(binary.LittleEndian.Uint16(data[16:18])),
		MappingFamily:   data[18],
	}
	if h.Channels == 0 {
		return nil, ErrInvalidHeader
	}
	if h.MappingFamily != 0 {
		if len(data) < 21+int(h.Channels) {
			return nil, ErrInvalidHeader
		}
		h.StreamCount = data[19]
		h.CoupledCount = data[20]
		h.ChannelMapping = append([]byte(nil), data[21:21+int(h.Channels)]...)
	}
	return h, nil
}

// IsOpusHead reports whether the packet starts with the OpusHead magic.
func IsOpusHead(data []byte) bool {
	return len(data) >= 8 && string(data[0:8]) == opusHeadMagic
}

// IsOpusTags reports whether the packet starts with the OpusTags magic.
func IsOpusTags(data []byte) bool {
	return len(data) >= 8 && string(data[0:8]) == opusTagsMagic
}

// OpusTags is the comment header carried on the second page.
type OpusTags struct {
	Vendor   string
	Comments []string
}

// Encode serializes the tags packet. When padTo is larger than the natural
// size, a final "pad=" comment filled with zero bytes grows the packet to
// exactly padTo bytes; this is how Tonie streams keep their audio pages
// starting at a fixed offset.
func (t *OpusTags) Encode(padTo int) ([]byte, error) {
	size := 8 + 4 + len(t.Vendor) + 4
	for _, c := range t.Comments {
		size += 4 + len(c)
	}
	const padPrefix = "pad="
	if padTo > size {
		need := padTo - size
		if need < 4+len(padPrefix)+1 {
			return nil, fmt.Errorf("ogg: cannot pad tags packet by %d bytes", need)
		}
	} else if padTo > 0 && padTo < size {
		return nil, fmt.Errorf("ogg: tags packet is %d bytes, beyond pad target %d", size, padTo)
	}

	comments := t.Comments
	if padTo > size {
		pad := make([]byte, padTo-size-4)
		copy(pad, padPrefix)
		comments = append(append([]string(nil), t.Comments...), string(pad))
	}

	out := make([]byte, 0, padTo)
	out = append(out, opusTagsMagic...)
	out = appendLenString(out, t.Vendor)
	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(comments)))
	out = append(out, count[:]...)
	for _, c := range comments {
		out = appendLenString(out, c)
	}
	return out, nil
}

// ParseOpusTags decodes an OpusTags packet.
func ParseOpusTags(data []byte) (*OpusTags, error) {
	if len(data) < 8+4 || string(data[0:8]) != opusTagsMagic {
		return nil, ErrInvalidHeader
	}
	offset := 8
	vendor, next, err := readLenString(data, offset)
	if err != nil {
		return nil, err
	}
	offset = next
	if len(data) < offset+4 {
		return nil, ErrInvalidHeader
	}
	count := binary.LittleEndian.Uint32(data[offset : offset+4])
	offset += 4
	tags := &OpusTags{Vendor: vendor}
	for i := uint32(0); i < count; i++ {
		comment, next, err := readLenString(data, offset)
		if err != nil {
			return nil, err
		}
		tags.Comments = append(tags.Comments, comment)
		offset = next
	}
	return tags, nil
}

func appendLenString(dst []byte, s string) []byte {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
	dst = append(dst, n[:]...)
	return append(dst, s...)
}

func readLenString(data []byte, offset int) (string, int, error) {
	if len(data) < offset+4 {
		return "", 0, ErrInvalidHeader
	}
	n := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4
	if n < 0 || len(data) < offset+n {
		return "", 0, ErrInvalidHeader
	}
	return string(data[offset : offset+n]), offset + n, nil
}

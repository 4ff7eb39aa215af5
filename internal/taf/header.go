package taf

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// HeaderBlockSize is the fixed size of the header block; audio always
	// begins at this offset.
	HeaderBlockSize = 4096

	// headerPayloadSize is the protobuf message size recorded in the
	// 4-byte big-endian prefix.
	headerPayloadSize = HeaderBlockSize - 4

	// maxHeaderPayload bounds the prefix accepted from foreign files so a
	// corrupt length cannot trigger a huge allocation.
	maxHeaderPayload = 1 << 16
)

// Protobuf field numbers of the Tonie header message.
const (
	fieldDataHash     = 1
	fieldDataLength   = 2
	fieldTimestamp    = 3
	fieldChapterPages = 4
	fieldPadding      = 5
)

// Header is the decoded Tonie header. AudioID doubles as the Ogg bitstream
// serial number of every page in the audio section.
type Header struct {
	AudioID      uint32
	Hash         [sha1.Size]byte
	NumBytes     uint32
	ChapterPages []uint32
}

// Encode serializes the header as the full 4096-byte block: length prefix,
// protobuf fields, and a padding field sized so the block comes out exact.
func (h *Header) Encode() ([]byte, error) {
	body := make([]byte, 0, 64+4*len(h.ChapterPages))
	body = appendTag(body, fieldDataHash, wireBytes)
	body = appendUvarint(body, sha1.Size)
	body = append(body, h.Hash[:]...)
	body = appendTag(body, fieldDataLength, wireVarint)
	body = appendUvarint(body, uint64(h.NumBytes))
	body = appendTag(body, fieldTimestamp, wireVarint)
	body = appendUvarint(body, uint64(h.AudioID))

	var pages []byte
	for _, p := range h.ChapterPages {
		pages = appendUvarint(pages, uint64(p))
	}
	body = appendTag(body, fieldChapterPages, wireBytes)
	body = appendUvarint(body, uint64(len(pages)))
	body = append(body, pages...)

	// The padding field absorbs the remainder. Its own length prefix is
	// part of the budget, so solve for a pad size whose varint length
	// matches.
	remaining := headerPayloadSize - len(body) - 1
	padLen := -1
	for l := 1; l <= 3; l++ {
		candidate := remaining - l
		if candidate >= 0 && uvarintLen(uint64(candidate)) == l {
			padLen = candidate
			break
		}
	}
	if padLen < 0 {
		return nil, fmt.Errorf("%w: header fields leave no room for padding (%d chapters)", ErrFormat, len(h.ChapterPages))
	}
	body = appendTag(body, fieldPadding, wireBytes)
	body = appendUvarint(body, uint64(padLen))
	body = append(body, make([]byte, padLen)...)

	block := make([]byte, 4, HeaderBlockSize)
	binary.BigEndian.PutUint32(block, uint32(len(body)))
	return append(block, body...), nil
}

// ReadHeader decodes a header block from the start of r and returns the
// header together with the total block size (prefix included).
func ReadHeader(r io.Reader) (*Header, int, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	size := binary.BigEndian.Uint32(prefix[:])
	if size == 0 || size > maxHeaderPayload {
		return nil, 0, fmt.Errorf("%w: implausible header size %d", ErrFormat, size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, 0, fmt.Errorf("%w: truncated header payload: %v", ErrFormat, err)
	}
	header, err := decodeHeaderPayload(payload)
	if err != nil {
		return nil, 0, err
	}
	return header, int(size) + 4, nil
}

func decodeHeaderPayload(payload []byte) (*Header, error) {
	h := &Header{}
	sawHash := false
	offset := 0
	for offset < len(payload) {
		key, n := binary.Uvarint(payload[offset:])
		if n <= 0 {
			return nil, fmt.Errorf("%w: bad field key at offset %d", ErrFormat, offset)
		}
		offset += n
		field := int(key >> 3)
		wire := int(key & 0x7)

		switch wire {
		case wireVarint:
			value, n := binary.Uvarint(payload[offset:])
			if n <= 0 {
				return nil, fmt.Errorf("%w: bad varint in field %d", ErrFormat, field)
			}
			offset += n
			switch field {
			case fieldDataLength:
				h.NumBytes = uint32(value)
			case fieldTimestamp:
				h.AudioID = uint32(value)
			}
		case wireBytes:
			length, n := binary.Uvarint(payload[offset:])
			// Compare in uint64 space: a huge length must not wrap
			// negative through int conversion and slip past the check.
			if n <= 0 || length > uint64(len(payload)-offset-n) {
				return nil, fmt.Errorf("%w: bad length in field %d", ErrFormat, field)
			}
			offset += n
			data := payload[offset : offset+int(length)]
			offset += int(length)
			switch field {
			case fieldDataHash:
				if len(data) != sha1.Size {
					return nil, fmt.Errorf("%w: hash field is %d bytes", ErrFormat, len(data))
				}
				copy(h.Hash[:], data)
				sawHash = true
			case fieldChapterPages:
				inner := 0
				for inner < len(data) {
					page, n := binary.Uvarint(data[inner:])
					if n <= 0 {
						return nil, fmt.Errorf("%w: bad chapter page varint", ErrFormat)
					}
					inner += n
					h.ChapterPages = append(h.ChapterPages, uint32(page))
				}
			}
		default:
			return nil, fmt.Errorf("%w: unsupported wire type %d in field %d", ErrFormat, wire, field)
		}
	}
	if !sawHash {
		return nil, fmt.Errorf("%w: missing hash field", ErrFormat)
	}
	return h, nil
}

const (
	wireVarint = 0
	wireBytes  = 2
)

func appendTag(dst []byte, field, wire int) []byte {
	return appendUvarint(dst, uint64(field<<3|wire))
}

func appendUvarint(dst []byte, v uint64) []byte {
	return binary.AppendUvarint(dst, v)
}

func uvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

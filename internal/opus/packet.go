package opus

import (
	"errors"
	"fmt"
)

var ErrInvalidPacket = errors.New("opus: invalid packet")

// Frame count byte flags (framepacking code 3).
const (
	flagVBR     = 0x80
	flagPadding = 0x40
	countMask   = 0x3F
)

// maxPacketSamples is 120 ms at 48 kHz, the limit RFC 6716 puts on a packet.
const maxPacketSamples = 5760

// FrameSamples returns the samples per frame at 48 kHz for the packet's TOC
// configuration.
func FrameSamples(toc byte) int {
	config := toc >> 3
	switch {
	case config < 12: // SILK NB/MB/WB: 10, 20, 40, 60 ms
		return []int{480, 960, 1920, 2880}[config&0x3]
	case config < 16: // Hybrid SWB/FB: 10, 20 ms
		return []int{480, 960}[config&0x1]
	default: // CELT NB/WB/SWB/FB: 2.5, 5, 10, 20 ms
		return []int{120, 240, 480, 960}[config&0x3]
	}
}

// FrameCount returns the number of frames in the packet.
func FrameCount(packet []byte) (int, error) {
	if len(packet) == 0 {
		return 0, ErrInvalidPacket
	}
	switch packet[0] & 0x3 {
	case 0:
		return 1, nil
	case 1, 2:
		return 2, nil
	default:
		if len(packet) < 2 {
			return 0, ErrInvalidPacket
		}
		count := int(packet[1] & countMask)
		if count == 0 {
			return 0, ErrInvalidPacket
		}
		return count, nil
	}
}

// PacketSamples returns the duration of the packet in samples at 48 kHz.
func PacketSamples(packet []byte) (int, error) {
	frames, err := FrameCount(packet)
	if err != nil {
		return 0, err
	}
	samples := frames * FrameSamples(packet[0])
	if samples > maxPacketSamples {
		return 0, fmt.Errorf("%w: %d samples exceeds 120ms", ErrInvalidPacket, samples)
	}
	return samples, nil
}

// MinPadGrowth returns the smallest positive size increase Pad can apply to
// the packet. Packets already using framepacking 3 can grow by a single
// byte; other codes first need a frame count byte.
func MinPadGrowth(packet []byte) int {
	if len(packet) > 0 && packet[0]&0x3 == 3 {
		return 1
	}
	return 2
}

// Pad grows the packet by exactly extra bytes without changing its decoded
// audio, by rewriting it as framepacking code 3 with explicit padding
// (RFC 6716 section 3.2.5). extra == 0 returns an unmodified copy.
func Pad(packet []byte, extra int) ([]byte, error) {
	if len(packet) == 0 {
		return nil, ErrInvalidPacket
	}
	if extra == 0 {
		return append([]byte(nil), packet...), nil
	}
	if extra < 0 {
		return nil, fmt.Errorf("%w: negative padding", ErrInvalidPacket)
	}

	toc := packet[0]
	var countByte byte
	var body []byte

	switch toc & 0x3 {
	case 0:
		countByte = 1
		body = packet[1:]
	case 1:
		if (len(packet)-1)%2 != 0 {
			return nil, fmt.Errorf("%w: code 1 packet with odd frame data", ErrInvalidPacket)
		}
		countByte = 2
		body = packet[1:]
	case 2:
		// Code 2 carries the first frame's length prefix after the TOC,
		// exactly where code 3 VBR expects it.
		countByte = flagVBR | 2
		body = packet[1:]
	case 3:
		if len(packet) < 2 {
			return nil, ErrInvalidPacket
		}
		countByte = packet[1]
		rest := packet[2:]
		if countByte&flagPadding != 0 {
			// Strip the existing padding; it is re-encoded below.
			metaLen, padLen, err := parsePadLength(rest)
			if err != nil {
				return nil, err
			}
			if len(rest) < metaLen+padLen {
				return nil, fmt.Errorf("%w: padding exceeds packet", ErrInvalidPacket)
			}
			body = rest[metaLen : len(rest)-padLen]
		} else {
			body = rest
		}
	}

	// Final layout: TOC, count byte, pad length bytes, body, zero padding.
	// Solve for the pad data size so the total grows by exactly extra.
	budget := len(packet) + extra - 2 - len(body)
	if budget < 1 {
		return nil, fmt.Errorf("%w: growth of %d too small for padding conversion", ErrInvalidPacket, extra)
	}
	meta, padLen, err := encodePadLength(budget)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(packet)+extra)
	out = append(out, toc|0x3, countByte|flagPadding)
	out = append(out, meta...)
	out = append(out, body...)
	out = append(out, make([]byte, padLen)...)
	return out, nil
}

// parsePadLength reads the padding length bytes, returning the number of
// meta bytes consumed and the padding data size they describe.
func parsePadLength(data []byte) (metaLen, padLen int, err error) {
	for {
		if metaLen >= len(data) {
			return 0, 0, fmt.Errorf("%w: truncated padding length", ErrInvalidPacket)
		}
		b := data[metaLen]
		metaLen++
		if b == 255 {
			padLen += 254
			continue
		}
		padLen += int(b)
		return metaLen, padLen, nil
	}
}

// encodePadLength produces padding length bytes plus data size totalling
// exactly budget bytes (meta + data).
func encodePadLength(budget int) ([]byte, int, error) {
	// With k bytes of value 255 and one terminator r, the meta encodes
	// padLen = 254*k + r and consumes k+1 bytes. Find k such that
	// padLen + k + 1 == budget with 0 <= r <= 254.
	for k := 0; ; k++ {
		padLen := budget - 1 - k
		if padLen < 0 {
			return nil, 0, fmt.Errorf("%w: unencodable padding budget %d", ErrInvalidPacket, budget)
		}
		r := padLen - 254*k
		if r < 0 {
			return nil, 0, fmt.Errorf("%w: unencodable padding budget %d", ErrInvalidPacket, budget)
		}
		if r > 254 {
			continue
		}
		meta := make([]byte, k+1)
		for i := 0; i < k; i++ {
			meta[i] = 255
		}
		meta[k] = byte(r)
		return meta, padLen, nil
	}
}

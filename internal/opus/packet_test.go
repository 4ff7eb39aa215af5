package opus

import (
	"bytes"
	"errors"
	"testing"
)

// tocCELT20 is a CELT fullband 20ms stereo TOC with framepacking code 0.
const tocCELT20 = byte(31<<3 | 1<<2 | 0)

func TestPacketSamples(t *testing.T) {
	cases := []struct {
		name   string
		packet []byte
		want   int
	}{
		{"celt 20ms single", []byte{tocCELT20, 0xAA}, 960},
		{"celt 20ms code1", []byte{31<<3 | 1, 0xAA, 0xBB}, 1920},
		{"silk 60ms single", []byte{3 << 3, 0xAA}, 2880},
		{"hybrid 10ms code3 x3", []byte{12<<3 | 3, 0x03, 1, 1, 0xA, 0xB, 0xC}, 1440},
		{"celt 2.5ms", []byte{16 << 3, 0xAA}, 120},
	}
	for _, tc := range cases {
		got, err := PacketSamples(tc.packet)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: samples = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestPacketSamplesRejectsBadPackets(t *testing.T) {
	if _, err := PacketSamples(nil); !errors.Is(err, ErrInvalidPacket) {
		t.Fatalf("expected invalid packet for empty input, got %v", err)
	}
	// 63 frames of 20ms blows through the 120ms packet limit.
	if _, err := PacketSamples([]byte{tocCELT20 | 3, 63}); !errors.Is(err, ErrInvalidPacket) {
		t.Fatalf("expected invalid packet for oversized duration, got %v", err)
	}
}

func TestPadGrowsExactly(t *testing.T) {
	frame := bytes.Repeat([]byte{0x5A}, 40)
	packet := append([]byte{tocCELT20}, frame...)

	for _, extra := range []int{2, 3, 10, 255, 256, 300, 1000} {
		padded, err := Pad(packet, extra)
		if err != nil {
			t.Fatalf("Pad(%d) failed: %v", extra, err)
		}
		if len(padded) != len(packet)+extra {
			t.Fatalf("Pad(%d): size %d, want %d", extra, len(padded), len(packet)+extra)
		}
		if padded[0]&0x3 != 3 {
			t.Fatalf("Pad(%d): packet not framepacking 3", extra)
		}
		samples, err := PacketSamples(padded)
		if err != nil {
			t.Fatalf("Pad(%d): padded packet invalid: %v", extra, err)
		}
		if samples != 960 {
			t.Fatalf("Pad(%d): duration changed to %d samples", extra, samples)
		}
		// Frame data must survive untouched ahead of the zero padding.
		meta, padLen, err := parsePadLength(padded[2:])
		if err != nil {
			t.Fatalf("Pad(%d): %v", extra, err)
		}
		body := padded[2+meta : len(padded)-padLen]
		if !bytes.Equal(body, frame) {
			t.Fatalf("Pad(%d): frame data modified", extra)
		}
		for _, b := range padded[len(padded)-padLen:] {
			if b != 0 {
				t.Fatalf("Pad(%d): nonzero padding byte", extra)
			}
		}
	}
}

func TestPadZeroIsCopy(t *testing.T) {
	packet := []byte{tocCELT20, 1, 2, 3}
	out, err := Pad(packet, 0)
	if err != nil {
		t.Fatalf("Pad(0) failed: %v", err)
	}
	if !bytes.Equal(out, packet) {
		t.Fatal("Pad(0) altered the packet")
	}
	out[0] = 0
	if packet[0] == 0 {
		t.Fatal("Pad(0) returned an aliased slice")
	}
}

func TestPadAlreadyCode3(t *testing.T) {
	// Code 3 CBR, 2 frames, no padding yet.
	packet := []byte{tocCELT20 | 3, 0x02, 1, 2, 3, 4}
	padded, err := Pad(packet, 1)
	if err != nil {
		t.Fatalf("Pad failed: %v", err)
	}
	if len(padded) != len(packet)+1 {
		t.Fatalf("size %d, want %d", len(padded), len(packet)+1)
	}

	// Pad again: re-encoding existing padding keeps growth exact.
	again, err := Pad(padded, 7)
	if err != nil {
		t.Fatalf("second Pad failed: %v", err)
	}
	if len(again) != len(padded)+7 {
		t.Fatalf("size %d, want %d", len(again), len(padded)+7)
	}
	if samples, _ := PacketSamples(again); samples != 1920 {
		t.Fatalf("duration changed: %d", samples)
	}
}

func TestMinPadGrowth(t *testing.T) {
	if got := MinPadGrowth([]byte{tocCELT20, 1}); got != 2 {
		t.Fatalf("code 0 min growth = %d, want 2", got)
	}
	if got := MinPadGrowth([]byte{tocCELT20 | 3, 0x01, 1}); got != 1 {
		t.Fatalf("code 3 min growth = %d, want 1", got)
	}
	if _, err := Pad([]byte{tocCELT20, 1}, 1); !errors.Is(err, ErrInvalidPacket) {
		t.Fatalf("expected failure for growth below minimum, got %v", err)
	}
}

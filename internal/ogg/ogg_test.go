package ogg

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestPageEncodeParseRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 300)
	page := &Page{
		Flags:    FlagBOS,
		Granule:  12345,
		Serial:   0x5005c2a1,
		Sequence: 7,
		Segments: LaceSegments(len(payload)),
		Payload:  payload,
	}

	encoded := page.Encode()
	if len(encoded) != page.Size() {
		t.Fatalf("encoded size %d, Size() %d", len(encoded), page.Size())
	}

	parsed, consumed, err := ParsePage(encoded)
	if err != nil {
		t.Fatalf("ParsePage failed: %v", err)
	}
	if consumed != len(encoded) {
		t.Fatalf("consumed %d of %d bytes", consumed, len(encoded))
	}
	if parsed.Granule != page.Granule || parsed.Serial != page.Serial || parsed.Sequence != page.Sequence {
		t.Fatalf("header fields mismatch: %+v", parsed)
	}
	if !parsed.IsBOS() || parsed.IsEOS() {
		t.Fatalf("flags mismatch: %02x", parsed.Flags)
	}
	if !bytes.Equal(parsed.Payload, payload) {
		t.Fatal("payload mismatch")
	}
}

func TestParsePageRejectsCorruption(t *testing.T) {
	page := &Page{Serial: 1, Segments: LaceSegments(10), Payload: make([]byte, 10)}
	encoded := page.Encode()

	flipped := append([]byte(nil), encoded...)
	flipped[len(flipped)-1] ^= 0xFF
	if _, _, err := ParsePage(flipped); !errors.Is(err, ErrChecksum) {
		t.Fatalf("expected checksum error, got %v", err)
	}

	if _, _, err := ParsePage(encoded[:10]); !errors.Is(err, ErrInvalidPage) {
		t.Fatalf("expected invalid page for truncation, got %v", err)
	}

	noMagic := append([]byte(nil), encoded...)
	copy(noMagic, "NotO")
	if _, _, err := ParsePage(noMagic); !errors.Is(err, ErrInvalidPage) {
		t.Fatalf("expected invalid page for bad magic, got %v", err)
	}
}

func TestLaceSegments(t *testing.T) {
	cases := []struct {
		length int
		want   []byte
	}{
		{0, []byte{0}},
		{1, []byte{1}},
		{255, []byte{255, 0}},
		{256, []byte{255, 1}},
		{510, []byte{255, 255, 0}},
	}
	for _, tc := range cases {
		got := LaceSegments(tc.length)
		if !bytes.Equal(got, tc.want) {
			t.Fatalf("LaceSegments(%d) = %v, want %v", tc.length, got, tc.want)
		}
		if SegmentCount(tc.length) != len(tc.want) {
			t.Fatalf("SegmentCount(%d) = %d, want %d", tc.length, SegmentCount(tc.length), len(tc.want))
		}
	}
}

func TestOpusHeadRoundTrip(t *testing.T) {
	head := &OpusHead{
		Version:         1,
		Channels:        2,
		PreSkip:         DefaultPreSkip,
		InputSampleRate: 48000,
	}
	parsed, err := ParseOpusHead(head.Encode())
	if err != nil {
		t.Fatalf("ParseOpusHead failed: %v", err)
	}
	if parsed.Channels != head.Channels || parsed.PreSkip != head.PreSkip ||
		parsed.InputSampleRate != head.InputSampleRate || parsed.MappingFamily != 0 {
		t.Fatalf("round trip mismatch: %+v != %+v", parsed, head)
	}

	if _, err := ParseOpusHead([]byte("OpusTags")); !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("expected invalid header, got %v", err)
	}
}

func TestOpusTagsPadding(t *testing.T) {
	tags := &OpusTags{Vendor: "tonietool", Comments: []string{"title=Test Story", "artist=Nobody"}}
	const target = 436
	data, err := tags.Encode(target)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(data) != target {
		t.Fatalf("padded tags packet is %d bytes, want %d", len(data), target)
	}

	parsed, err := ParseOpusTags(data)
	if err != nil {
		t.Fatalf("ParseOpusTags failed: %v", err)
	}
	if parsed.Vendor != tags.Vendor {
		t.Fatalf("vendor mismatch: %q", parsed.Vendor)
	}
	if len(parsed.Comments) != len(tags.Comments)+1 {
		t.Fatalf("expected pad comment appended, got %d comments", len(parsed.Comments))
	}
	for i, c := range tags.Comments {
		if parsed.Comments[i] != c {
			t.Fatalf("comment %d mismatch: %q", i, parsed.Comments[i])
		}
	}
}

func TestPacketReaderReassemblesAcrossPages(t *testing.T) {
	big := bytes.Repeat([]byte{0x42}, 600)
	small := []byte{1, 2, 3}

	// Split the big packet across two pages by hand: an open-tail fragment
	// must be laced entirely with 255s, so 255 bytes land on the first page
	// and the remaining 345 on the second.
	first := &Page{
		Flags:    FlagBOS,
		Serial:   9,
		Sequence: 0,
		Segments: []byte{255},
		Payload:  big[:255],
	}
	second := &Page{
		Flags:    FlagContinued | FlagEOS,
		Serial:   9,
		Sequence: 1,
		Granule:  960,
		Segments: []byte{255, 90, 3},
		Payload:  append(append([]byte(nil), big[255:]...), small...),
	}

	var stream bytes.Buffer
	stream.Write(first.Encode())
	stream.Write(second.Encode())

	pr := NewPacketReader(&stream)
	got, err := pr.NextPacket()
	if err != nil {
		t.Fatalf("first packet: %v", err)
	}
	if !bytes.Equal(got, big) {
		t.Fatalf("reassembled packet mismatch: %d bytes", len(got))
	}
	got, err = pr.NextPacket()
	if err != nil {
		t.Fatalf("second packet: %v", err)
	}
	if !bytes.Equal(got, small) {
		t.Fatalf("trailing packet mismatch: %v", got)
	}
	if _, err := pr.NextPacket(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
	if pr.Serial() != 9 {
		t.Fatalf("serial = %d", pr.Serial())
	}
	if pr.Granule() != 960 {
		t.Fatalf("granule = %d", pr.Granule())
	}
}

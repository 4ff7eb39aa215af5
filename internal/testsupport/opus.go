package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"tonietool/internal/ogg"
)

// celtStereo20 is a CELT fullband 20ms stereo TOC byte, one frame per
// packet (960 samples at 48 kHz).
const celtStereo20 = byte(31<<3 | 1<<2)

// OpusStreamBytes builds a minimal Ogg/Opus elementary stream with the
// given number of 20ms packets, the way opusenc lays one out.
func OpusStreamBytes(t testing.TB, packets int, serial uint32) []byte {
	t.Helper()
	var buf bytes.Buffer

	head := &ogg.OpusHead{Version: 1, Channels: 2, PreSkip: ogg.DefaultPreSkip, InputSampleRate: 44100}
	headPacket := head.Encode()
	buf.Write((&ogg.Page{
		Flags:    ogg.FlagBOS,
		Serial:   serial,
		Segments: ogg.LaceSegments(len(headPacket)),
		Payload:  headPacket,
	}).Encode())

	tags := &ogg.OpusTags{Vendor: "test vendor"}
	tagsPacket, err := tags.Encode(0)
	if err != nil {
		t.Fatalf("encode tags: %v", err)
	}
	buf.Write((&ogg.Page{
		Serial:   serial,
		Sequence: 1,
		Segments: ogg.LaceSegments(len(tagsPacket)),
		Payload:  tagsPacket,
	}).Encode())

	const packetLen = 120
	granule := uint64(0)
	seq := uint32(2)
	for written := 0; written < packets; {
		count := packets - written
		if count > 10 {
			count = 10
		}
		var segments, payload []byte
		for i := 0; i < count; i++ {
			packet := make([]byte, packetLen)
			packet[0] = celtStereo20
			for j := 1; j < packetLen; j++ {
				packet[j] = byte(written + i + j)
			}
			segments = append(segments, ogg.LaceSegments(packetLen)...)
			payload = append(payload, packet...)
			granule += 960
		}
		written += count
		page := &ogg.Page{
			Granule:  granule,
			Serial:   serial,
			Sequence: seq,
			Segments: segments,
			Payload:  payload,
		}
		if written == packets {
			page.Flags = ogg.FlagEOS
		}
		buf.Write(page.Encode())
		seq++
	}
	return buf.Bytes()
}

// WriteOpusStream writes a synthetic Ogg/Opus file to path.
func WriteOpusStream(t testing.TB, path string, packets int, serial uint32) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, OpusStreamBytes(t, packets, serial), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

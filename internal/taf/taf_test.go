package taf

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"tonietool/internal/ogg"
)

// tocStereo20 is a CELT fullband 20ms stereo TOC, one frame per packet.
const tocStereo20 = byte(31<<3 | 1<<2)

// makeOpusSource builds a minimal Ogg/Opus elementary stream the way
// opusenc lays one out: OpusHead, OpusTags, then audio pages.
func makeOpusSource(t *testing.T, packets, packetLen int, serial uint32) []byte {
	t.Helper()
	var buf bytes.Buffer

	head := &ogg.OpusHead{Version: 1, Channels: 2, PreSkip: ogg.DefaultPreSkip, InputSampleRate: 44100}
	headPacket := head.Encode()
	headPage := &ogg.Page{
		Flags:    ogg.FlagBOS,
		Serial:   serial,
		Segments: ogg.LaceSegments(len(headPacket)),
		Payload:  headPacket,
	}
	buf.Write(headPage.Encode())

	tags := &ogg.OpusTags{Vendor: "test vendor"}
	tagsPacket, err := tags.Encode(0)
	if err != nil {
		t.Fatalf("encode tags: %v", err)
	}
	tagsPage := &ogg.Page{
		Serial:   serial,
		Sequence: 1,
		Segments: ogg.LaceSegments(len(tagsPacket)),
		Payload:  tagsPacket,
	}
	buf.Write(tagsPage.Encode())

	granule := uint64(0)
	seq := uint32(2)
	perPage := 10
	for written := 0; written < packets; {
		var segments, payload []byte
		count := perPage
		if packets-written < count {
			count = packets - written
		}
		for i := 0; i < count; i++ {
			packet := make([]byte, packetLen)
			packet[0] = tocStereo20
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

func buildTestContainer(t *testing.T, dir string, audioID uint32, sourcePackets ...int) (string, *Info) {
	t.Helper()
	sources := make([]Source, 0, len(sourcePackets))
	for i, n := range sourcePackets {
		sources = append(sources, Source{
			Name: "source",
			R:    bytes.NewReader(makeOpusSource(t, n, 120, uint32(1000+i))),
		})
	}
	outPath := filepath.Join(dir, "out.taf")
	info, err := Build(outPath, sources, BuildOptions{
		AudioID:  audioID,
		Comments: []string{"title=Test"},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return outPath, info
}

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	header := &Header{
		AudioID:      0x66A1B2C3,
		NumBytes:     123456,
		ChapterPages: []uint32{0, 17, 345},
	}
	copy(header.Hash[:], bytes.Repeat([]byte{0xCD}, sha1.Size))

	block, err := header.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(block) != HeaderBlockSize {
		t.Fatalf("header block is %d bytes, want %d", len(block), HeaderBlockSize)
	}

	decoded, size, err := ReadHeader(bytes.NewReader(block))
	if err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}
	if size != HeaderBlockSize {
		t.Fatalf("header size %d, want %d", size, HeaderBlockSize)
	}
	if decoded.AudioID != header.AudioID || decoded.NumBytes != header.NumBytes {
		t.Fatalf("scalar fields mismatch: %+v", decoded)
	}
	if decoded.Hash != header.Hash {
		t.Fatal("hash mismatch")
	}
	if len(decoded.ChapterPages) != 3 {
		t.Fatalf("chapter pages: %v", decoded.ChapterPages)
	}
	for i, p := range header.ChapterPages {
		if decoded.ChapterPages[i] != p {
			t.Fatalf("chapter page %d: %d != %d", i, decoded.ChapterPages[i], p)
		}
	}
}

func TestReadHeaderRejectsTruncation(t *testing.T) {
	header := &Header{AudioID: 1, NumBytes: 1}
	block, err := header.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	for _, cut := range []int{0, 2, 4, 100, HeaderBlockSize - 1} {
		if _, _, err := ReadHeader(bytes.NewReader(block[:cut])); !errors.Is(err, ErrFormat) {
			t.Fatalf("cut at %d: expected ErrFormat, got %v", cut, err)
		}
	}
	if _, _, err := ReadHeader(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF})); !errors.Is(err, ErrFormat) {
		t.Fatal("expected ErrFormat for implausible size prefix")
	}
}

func TestReadHeaderRejectsOversizedLengthField(t *testing.T) {
	// Declared lengths far beyond the payload, including values that flip
	// negative when narrowed to int.
	for _, length := range []uint64{1 << 20, 1 << 40, 1 << 63, ^uint64(0)} {
		payload := binary.AppendUvarint([]byte{fieldDataHash<<3 | wireBytes}, length)
		block := make([]byte, 4, 4+len(payload))
		binary.BigEndian.PutUint32(block, uint32(len(payload)))
		block = append(block, payload...)
		if _, _, err := ReadHeader(bytes.NewReader(block)); !errors.Is(err, ErrFormat) {
			t.Fatalf("length %d: expected ErrFormat, got %v", length, err)
		}
	}
}

func TestBuildProducesValidContainer(t *testing.T) {
	dir := t.TempDir()
	path, info := buildTestContainer(t, dir, 0x5F000001, 120, 80)

	if !info.Valid() {
		t.Fatalf("container not valid: %+v", info)
	}
	if len(info.Chapters) != 2 {
		t.Fatalf("chapter count = %d, want 2", len(info.Chapters))
	}
	if info.Chapters[0].StartPage != 0 {
		t.Fatalf("first chapter page = %d, want 0", info.Chapters[0].StartPage)
	}
	if info.Chapters[1].StartPage <= info.Chapters[0].StartPage {
		t.Fatal("chapter start pages not strictly increasing")
	}
	if !info.Aligned {
		t.Fatal("audio pages not aligned to the page size")
	}
	wantGranule := uint64((120 + 80) * 960)
	if info.Granule != wantGranule {
		t.Fatalf("granule = %d, want %d", info.Granule, wantGranule)
	}
	if info.Header.AudioID != 0x5F000001 {
		t.Fatalf("audio id = %08x", info.Header.AudioID)
	}

	// Every audio page must be exactly PageSize bytes and share the serial.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if (len(raw)-HeaderBlockSize-0x200)%PageSize != 0 {
		t.Fatalf("audio page section size %d not page aligned", len(raw)-HeaderBlockSize-0x200)
	}
}

func TestExtractMatchesRecordedHash(t *testing.T) {
	dir := t.TempDir()
	path, info := buildTestContainer(t, dir, 0x60000000, 50)

	var extracted bytes.Buffer
	n, err := Extract(path, &extracted)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if n != int64(info.Header.NumBytes) {
		t.Fatalf("extracted %d bytes, header says %d", n, info.Header.NumBytes)
	}
	if sha1.Sum(extracted.Bytes()) != info.Header.Hash {
		t.Fatal("extracted stream hash does not match header hash")
	}

	// The extracted stream must be standard, parseable Ogg/Opus.
	packets := ogg.NewPacketReader(bytes.NewReader(extracted.Bytes()))
	first, err := packets.NextPacket()
	if err != nil {
		t.Fatalf("extracted stream unreadable: %v", err)
	}
	if _, err := ogg.ParseOpusHead(first); err != nil {
		t.Fatalf("extracted stream lacks OpusHead: %v", err)
	}
	count := 0
	for {
		if _, err := packets.NextPacket(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			t.Fatalf("packet read failed: %v", err)
		}
		count++
	}
	if count < 50 {
		t.Fatalf("expected at least 50 packets, got %d", count)
	}
}

func TestSplitYieldsOneFilePerChapter(t *testing.T) {
	dir := t.TempDir()
	path, _ := buildTestContainer(t, dir, 0x61000000, 90, 60)

	outDir := filepath.Join(dir, "split")
	paths, err := Split(path, outDir, "")
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("split produced %d files, want 2", len(paths))
	}

	wantSamples := []uint64{90 * 960, 60 * 960}
	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatal(err)
		}
		var lastGranule uint64
		sawBOS, sawEOS := false, false
		reader := ogg.NewReader(bytes.NewReader(data))
		for {
			page, err := reader.NextPage()
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				t.Fatalf("chapter %d: %v", i+1, err)
			}
			sawBOS = sawBOS || page.IsBOS()
			sawEOS = sawEOS || page.IsEOS()
			lastGranule = page.Granule
		}
		if !sawBOS || !sawEOS {
			t.Fatalf("chapter %d: missing BOS/EOS", i+1)
		}
		if lastGranule != wantSamples[i] {
			t.Fatalf("chapter %d: granule %d, want %d", i+1, lastGranule, wantSamples[i])
		}
	}
}

func TestCompareFileWithItself(t *testing.T) {
	dir := t.TempDir()
	path, _ := buildTestContainer(t, dir, 0x62000000, 40)

	result, err := Compare(path, path, true)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if !result.Identical() {
		t.Fatalf("self comparison not identical: %+v", result)
	}
	if len(result.HeaderDiffs)+len(result.ChapterDiffs)+len(result.AudioDiffs) != 0 {
		t.Fatalf("unexpected diffs: %+v", result)
	}
	if !result.ContentChecked || !result.ContentIdentical {
		t.Fatal("detailed comparison should report identical content")
	}
}

func TestCompareFlagsTimestampDifference(t *testing.T) {
	dir := t.TempDir()
	pathA, _ := buildTestContainer(t, dir, 0x63000000, 40)
	pathB := filepath.Join(dir, "b.taf")
	source := Source{Name: "b", R: bytes.NewReader(makeOpusSource(t, 40, 120, 7))}
	if _, err := Build(pathB, []Source{source}, BuildOptions{AudioID: 0x63000001, Comments: []string{"title=Test"}}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	result, err := Compare(pathA, pathB, false)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if result.Identical() {
		t.Fatal("expected header diff for differing timestamps")
	}
	found := false
	for _, d := range result.HeaderDiffs {
		if d.Field == "timestamp" {
			found = true
		}
	}
	if !found {
		t.Fatalf("timestamp diff missing: %+v", result.HeaderDiffs)
	}
}

func TestAnalyzeRejectsCorruptHeader(t *testing.T) {
	dir := t.TempDir()
	path, _ := buildTestContainer(t, dir, 0x64000000, 30)

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	truncated := filepath.Join(dir, "truncated.taf")
	if err := os.WriteFile(truncated, raw[:1000], 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Analyze(truncated); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}

func TestAnalyzeRejectsCorruptAudio(t *testing.T) {
	dir := t.TempDir()
	path, _ := buildTestContainer(t, dir, 0x65000000, 30)

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// Damage the capture pattern of the first audio page.
	copy(raw[HeaderBlockSize+0x200:], "XXXX")
	corrupt := filepath.Join(dir, "corrupt.taf")
	if err := os.WriteFile(corrupt, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Analyze(corrupt); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestAnalyzeFlagsSerialMismatch(t *testing.T) {
	dir := t.TempDir()
	path, info := buildTestContainer(t, dir, 0x66000000, 30)

	// Rewrite the header with a different audio id; page serials no longer
	// match and the recorded hash stays stale.
	header := *info.Header
	header.AudioID = 0x12345678
	block, err := header.Encode()
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteAt(block, 0); err != nil {
		t.Fatal(err)
	}
	f.Close()

	result, err := Analyze(path)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.SerialMatch {
		t.Fatal("expected serial mismatch to be flagged")
	}
	if result.Valid() {
		t.Fatal("file with mismatched serial must not be valid")
	}
}

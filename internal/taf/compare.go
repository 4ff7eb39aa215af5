package taf

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// FieldDiff records a single disagreement between two containers.
type FieldDiff struct {
	Field string
	A     string
	B     string
}

// ComparisonResult captures the structural and, in detailed mode, byte-level
// differences between two containers.
type ComparisonResult struct {
	PathA string
	PathB string

	HeaderDiffs  []FieldDiff
	ChapterDiffs []FieldDiff
	AudioDiffs   []FieldDiff

	// ContentChecked is set in detailed mode, where both embedded streams
	// are re-extracted and hashed with SHA256.
	ContentChecked   bool
	ContentIdentical bool
	ContentHashA     string
	ContentHashB     string
}

// Identical reports whether no differences were found at the requested
// depth.
func (r *ComparisonResult) Identical() bool {
	if len(r.HeaderDiffs)+len(r.ChapterDiffs)+len(r.AudioDiffs) > 0 {
		return false
	}
	if r.ContentChecked && !r.ContentIdentical {
		return false
	}
	return true
}

// Compare analyzes both containers and diffs headers, chapter tables and
// derived audio properties. With detailed set it additionally compares the
// SHA256 of the two embedded streams.
func Compare(pathA, pathB string, detailed bool) (*ComparisonResult, error) {
	infoA, err := Analyze(pathA)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pathA, err)
	}
	infoB, err := Analyze(pathB)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pathB, err)
	}

	result := &ComparisonResult{PathA: pathA, PathB: pathB}
	result.HeaderDiffs = diffHeaders(infoA.Header, infoB.Header)
	result.ChapterDiffs = diffChapters(infoA, infoB)
	result.AudioDiffs = diffAudio(infoA, infoB)

	if detailed {
		hashA, err := contentHash(pathA)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pathA, err)
		}
		hashB, err := contentHash(pathB)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pathB, err)
		}
		result.ContentChecked = true
		result.ContentHashA = hashA
		result.ContentHashB = hashB
		result.ContentIdentical = hashA == hashB
	}
	return result, nil
}

func diffHeaders(a, b *Header) []FieldDiff {
	var diffs []FieldDiff
	if a.AudioID != b.AudioID {
		diffs = append(diffs, FieldDiff{"timestamp", fmt.Sprintf("%d (0x%08X)", a.AudioID, a.AudioID), fmt.Sprintf("%d (0x%08X)", b.AudioID, b.AudioID)})
	}
	if a.Hash != b.Hash {
		diffs = append(diffs, FieldDiff{"sha1 hash", hex.EncodeToString(a.Hash[:]), hex.EncodeToString(b.Hash[:])})
	}
	if a.NumBytes != b.NumBytes {
		diffs = append(diffs, FieldDiff{"audio length", fmt.Sprintf("%d", a.NumBytes), fmt.Sprintf("%d", b.NumBytes)})
	}
	return diffs
}

func diffChapters(a, b *Info) []FieldDiff {
	var diffs []FieldDiff
	if len(a.Chapters) != len(b.Chapters) {
		diffs = append(diffs, FieldDiff{"chapter count", fmt.Sprintf("%d", len(a.Chapters)), fmt.Sprintf("%d", len(b.Chapters))})
		return diffs
	}
	for i := range a.Chapters {
		ca, cb := a.Chapters[i], b.Chapters[i]
		if ca.StartPage != cb.StartPage {
			diffs = append(diffs, FieldDiff{fmt.Sprintf("chapter %d start page", i+1), fmt.Sprintf("%d", ca.StartPage), fmt.Sprintf("%d", cb.StartPage)})
		}
		if ca.Duration() != cb.Duration() {
			diffs = append(diffs, FieldDiff{fmt.Sprintf("chapter %d duration", i+1), ca.Duration().String(), cb.Duration().String()})
		}
	}
	return diffs
}

func diffAudio(a, b *Info) []FieldDiff {
	var diffs []FieldDiff
	if a.Channels != b.Channels {
		diffs = append(diffs, FieldDiff{"channels", fmt.Sprintf("%d", a.Channels), fmt.Sprintf("%d", b.Channels)})
	}
	if a.TotalPages != b.TotalPages {
		diffs = append(diffs, FieldDiff{"page count", fmt.Sprintf("%d", a.TotalPages), fmt.Sprintf("%d", b.TotalPages)})
	}
	if a.Duration() != b.Duration() {
		diffs = append(diffs, FieldDiff{"duration", a.Duration().String(), b.Duration().String()})
	}
	if a.Valid() != b.Valid() {
		diffs = append(diffs, FieldDiff{"valid", fmt.Sprintf("%t", a.Valid()), fmt.Sprintf("%t", b.Valid())})
	}
	return diffs
}

func contentHash(path string) (string, error) {
	digest := sha256.New()
	if _, err := Extract(path, digest); err != nil {
		return "", err
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

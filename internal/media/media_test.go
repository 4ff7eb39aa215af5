package media_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tonietool/internal/media"
	"tonietool/internal/services"
	"tonietool/internal/testsupport"
)

func TestCollectSingleFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "story.mp3")
	testsupport.WriteFile(t, src, 64)

	selections, err := media.Collect(src, media.DiscoverOptions{})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(selections) != 1 {
		t.Fatalf("expected one selection, got %d", len(selections))
	}
	if selections[0].Name != "story" {
		t.Fatalf("name = %q", selections[0].Name)
	}
	if len(selections[0].Sources) != 1 || selections[0].Sources[0] != src {
		t.Fatalf("sources = %v", selections[0].Sources)
	}
}

func TestCollectRejectsUnsupportedFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "notes.txt")
	testsupport.WriteFile(t, src, 8)

	_, err := media.Collect(src, media.DiscoverOptions{})
	if !errors.Is(err, services.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestCollectDirectorySortsChapters(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"03.mp3", "01.mp3", "02.mp3", "cover.jpg"} {
		testsupport.WriteFile(t, filepath.Join(dir, name), 16)
	}

	selections, err := media.Collect(dir, media.DiscoverOptions{})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	sources := selections[0].Sources
	if len(sources) != 3 {
		t.Fatalf("sources = %v", sources)
	}
	for i, want := range []string{"01.mp3", "02.mp3", "03.mp3"} {
		if filepath.Base(sources[i]) != want {
			t.Fatalf("chapter %d = %q, want %q", i, filepath.Base(sources[i]), want)
		}
	}
}

func TestCollectRecursiveOneSelectionPerAlbum(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "album-a", "01.mp3"), 16)
	testsupport.WriteFile(t, filepath.Join(root, "album-a", "02.mp3"), 16)
	testsupport.WriteFile(t, filepath.Join(root, "album-b", "01.flac"), 16)
	testsupport.WriteFile(t, filepath.Join(root, "album-b", "deep", "ignored.mp3"), 16)

	selections, err := media.Collect(root, media.DiscoverOptions{Recursive: true, MaxDepth: 1})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(selections) != 2 {
		t.Fatalf("expected 2 selections, got %d: %+v", len(selections), selections)
	}
	if selections[0].Name != "album-a" || selections[1].Name != "album-b" {
		t.Fatalf("names = %q, %q", selections[0].Name, selections[1].Name)
	}
}

func TestParsePlaylist(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "a.mp3"), 16)
	testsupport.WriteFile(t, filepath.Join(dir, "b.mp3"), 16)

	lst := filepath.Join(dir, "bedtime.lst")
	content := "# Filename: Bedtime Stories\n" +
		"# a regular comment\n" +
		"\n" +
		"a.mp3\n" +
		filepath.Join(dir, "b.mp3") + "\n"
	if err := os.WriteFile(lst, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	sel, err := media.ParsePlaylist(lst)
	if err != nil {
		t.Fatalf("ParsePlaylist failed: %v", err)
	}
	if sel.Name != "Bedtime Stories" {
		t.Fatalf("name = %q", sel.Name)
	}
	if len(sel.Sources) != 2 {
		t.Fatalf("sources = %v", sel.Sources)
	}
	if filepath.Base(sel.Sources[0]) != "a.mp3" || !filepath.IsAbs(sel.Sources[0]) {
		t.Fatalf("relative entry not resolved: %q", sel.Sources[0])
	}
}

func TestParsePlaylistRejectsMissingEntry(t *testing.T) {
	dir := t.TempDir()
	lst := filepath.Join(dir, "broken.lst")
	if err := os.WriteFile(lst, []byte("missing.mp3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := media.ParsePlaylist(lst)
	if !errors.Is(err, services.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestOutputNameFromTemplate(t *testing.T) {
	sel := media.Selection{Name: "fallback"}
	meta := media.Metadata{Artist: "Jane Doe", Album: "Night Tales", Track: 3}
	opts := media.NamingOptions{UseMediaTags: true, Template: "{artist} - {album}"}

	got := media.OutputName(sel, meta, opts, 0)
	if got != "Jane Doe - Night Tales" {
		t.Fatalf("name = %q", got)
	}
}

func TestOutputNameTitleCasesLowercaseTags(t *testing.T) {
	sel := media.Selection{Name: "fallback"}
	meta := media.Metadata{Artist: "jane doe", Album: "night tales"}
	opts := media.NamingOptions{UseMediaTags: true}

	got := media.OutputName(sel, meta, opts, 0)
	if got != "Jane Doe - Night Tales" {
		t.Fatalf("name = %q", got)
	}
}

func TestOutputNameAppendsAudioID(t *testing.T) {
	sel := media.Selection{Name: "story"}
	got := media.OutputName(sel, media.Metadata{}, media.NamingOptions{AppendID: true}, 1700000000)
	if got != "story [1700000000]" {
		t.Fatalf("name = %q", got)
	}
}

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"a/b:c", "a-b-c"},
		{"  spaced\tout  ", "spaced out"},
		{"", "tonie"},
		{"ok name", "ok name"},
	}
	for _, tc := range cases {
		if got := media.NormalizeName(tc.in); got != tc.want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestReadMetadataToleratesUntaggedFiles(t *testing.T) {
	src := filepath.Join(t.TempDir(), "plain.mp3")
	testsupport.WriteFile(t, src, 64)

	meta := media.ReadMetadata(media.Selection{Sources: []string{src}})
	if meta.Artist != "" || meta.Title != "" {
		t.Fatalf("expected empty metadata, got %+v", meta)
	}
}

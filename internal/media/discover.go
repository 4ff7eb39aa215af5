package media

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tonietool/internal/services"
)

// Selection is one conversion job: an ordered set of source files that
// become the chapters of a single container.
type Selection struct {
	// Name is the default output stem, before template expansion.
	Name string
	// Sources are the chapter inputs in playback order.
	Sources []string
}

// DiscoverOptions controls directory traversal.
type DiscoverOptions struct {
	// Recursive descends into subdirectories, producing one selection per
	// directory that contains audio.
	Recursive bool
	// MaxDepth bounds recursion; 0 means unlimited.
	MaxDepth int
}

// audioExtensions are the input formats the encode stage accepts.
var audioExtensions = map[string]bool{
	".aac":  true,
	".flac": true,
	".m4a":  true,
	".m4b":  true,
	".mp3":  true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
	".wma":  true,
}

// IsAudioFile reports whether path has a supported audio extension.
func IsAudioFile(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}

// Collect expands one input argument into selections. A single audio file
// is its own selection, a .lst playlist names its chapters explicitly, and
// a directory groups its audio files as chapters in lexical order.
func Collect(input string, opts DiscoverOptions) ([]Selection, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, services.Wrap(services.ErrConfig, "discover", "stat input", input, err)
	}

	if !info.IsDir() {
		if strings.EqualFold(filepath.Ext(input), ".lst") {
			sel, err := ParsePlaylist(input)
			if err != nil {
				return nil, err
			}
			return []Selection{sel}, nil
		}
		if !IsAudioFile(input) {
			return nil, services.Wrap(services.ErrConfig, "discover", "inspect input",
				fmt.Sprintf("%s is not a supported audio file", input), nil)
		}
		return []Selection{{Name: stem(input), Sources: []string{input}}}, nil
	}

	if opts.Recursive {
		return collectRecursive(input, opts.MaxDepth)
	}
	sel, err := collectDirectory(input)
	if err != nil {
		return nil, err
	}
	if len(sel.Sources) == 0 {
		return nil, services.Wrap(services.ErrConfig, "discover", "scan directory",
			fmt.Sprintf("%s contains no audio files", input), nil)
	}
	return []Selection{sel}, nil
}

// collectDirectory gathers the audio files directly inside dir.
func collectDirectory(dir string) (Selection, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Selection{}, services.Wrap(services.ErrConfig, "discover", "read directory", dir, err)
	}
	sel := Selection{Name: filepath.Base(dir)}
	for _, entry := range entries {
		if entry.IsDir() || !IsAudioFile(entry.Name()) {
			continue
		}
		sel.Sources = append(sel.Sources, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(sel.Sources)
	return sel, nil
}

// collectRecursive walks root and emits one selection per directory that
// holds audio files, in path order.
func collectRecursive(root string, maxDepth int) ([]Selection, error) {
	var selections []Selection
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if maxDepth > 0 && pathDepth(root, path) > maxDepth {
			return filepath.SkipDir
		}
		sel, err := collectDirectory(path)
		if err != nil {
			return err
		}
		if len(sel.Sources) > 0 {
			selections = append(selections, sel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(selections) == 0 {
		return nil, services.Wrap(services.ErrConfig, "discover", "scan directory",
			fmt.Sprintf("%s contains no audio files", root), nil)
	}
	return selections, nil
}

func pathDepth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

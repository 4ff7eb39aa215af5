package media

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tonietool/internal/services"
)

// filenameDirective inside a playlist comment overrides the output name.
const filenameDirective = "filename:"

// ParsePlaylist reads a .lst file: one source path per line, `#` comments,
// and an optional `# Filename: <name>` directive naming the output.
// Relative entries resolve against the playlist's own directory.
func ParsePlaylist(path string) (Selection, error) {
	f, err := os.Open(path)
	if err != nil {
		return Selection{}, services.Wrap(services.ErrConfig, "discover", "open playlist", path, err)
	}
	defer f.Close()

	sel := Selection{Name: stem(path)}
	dir := filepath.Dir(path)

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			comment := strings.TrimSpace(strings.TrimPrefix(line, "#"))
			if rest, ok := cutDirective(comment, filenameDirective); ok {
				sel.Name = rest
			}
			continue
		}

		entry := line
		if !filepath.IsAbs(entry) {
			entry = filepath.Join(dir, entry)
		}
		if _, err := os.Stat(entry); err != nil {
			return Selection{}, services.Wrap(services.ErrConfig, "discover", "resolve playlist entry",
				fmt.Sprintf("%s line %d: %s", path, lineNo, entry), err)
		}
		sel.Sources = append(sel.Sources, entry)
	}
	if err := scanner.Err(); err != nil {
		return Selection{}, services.Wrap(services.ErrConfig, "discover", "read playlist", path, err)
	}
	if len(sel.Sources) == 0 {
		return Selection{}, services.Wrap(services.ErrConfig, "discover", "read playlist",
			fmt.Sprintf("%s lists no source files", path), nil)
	}
	return sel, nil
}

// cutDirective matches a case-insensitive "key: value" comment.
func cutDirective(comment, directive string) (string, bool) {
	if len(comment) < len(directive) {
		return "", false
	}
	if !strings.EqualFold(comment[:len(directive)], directive) {
		return "", false
	}
	return strings.TrimSpace(comment[len(directive):]), true
}

package media

import (
	"os"

	"github.com/dhowden/tag"
)

// Metadata is the subset of embedded tags used for output naming.
type Metadata struct {
	Artist string
	Album  string
	Title  string
	Track  int
}

// ReadMetadata extracts tags from the first source of a selection. Files
// without readable tags yield an empty Metadata; naming falls back to the
// selection name in that case.
func ReadMetadata(sel Selection) Metadata {
	if len(sel.Sources) == 0 {
		return Metadata{}
	}
	f, err := os.Open(sel.Sources[0])
	if err != nil {
		return Metadata{}
	}
	defer f.Close()

	parsed, err := tag.ReadFrom(f)
	if err != nil {
		return Metadata{}
	}
	track, _ := parsed.Track()
	return Metadata{
		Artist: parsed.Artist(),
		Album:  parsed.Album(),
		Title:  parsed.Title(),
		Track:  track,
	}
}

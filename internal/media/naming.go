package media

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// DefaultTemplate is used when naming from media tags without an explicit
// template.
const DefaultTemplate = "{artist} - {album}"

// NamingOptions mirror the naming section of the configuration.
type NamingOptions struct {
	UseMediaTags bool
	Template     string
	AppendID     bool
}

// OutputName derives the output file stem for a selection. With media tags
// enabled and present, the template is expanded from them; otherwise the
// selection name is used. AppendID suffixes the audio id so re-conversions
// of the same title stay distinguishable.
func OutputName(sel Selection, meta Metadata, opts NamingOptions, audioID int64) string {
	name := sel.Name
	if opts.UseMediaTags && (meta.Artist != "" || meta.Album != "" || meta.Title != "") {
		template := opts.Template
		if template == "" {
			template = DefaultTemplate
		}
		expanded := expandTemplate(template, sel, meta)
		if strings.TrimSpace(expanded) != "" {
			name = expanded
		}
		// Rippers often store tags in all lowercase.
		if name == strings.ToLower(name) {
			name = TitleCase(name)
		}
	}
	name = NormalizeName(name)
	if opts.AppendID && audioID > 0 {
		name = fmt.Sprintf("%s [%d]", name, audioID)
	}
	return name
}

func expandTemplate(template string, sel Selection, meta Metadata) string {
	replacer := strings.NewReplacer(
		"{artist}", meta.Artist,
		"{album}", meta.Album,
		"{title}", meta.Title,
		"{track}", fmt.Sprintf("%02d", meta.Track),
		"{name}", sel.Name,
	)
	expanded := replacer.Replace(template)
	// Empty tags leave dangling separators behind.
	expanded = strings.Trim(expanded, " -_")
	return expanded
}

// TitleCase capitalizes word starts without lowering existing capitals.
func TitleCase(s string) string {
	return cases.Title(language.Und, cases.NoLower).String(s)
}

// NormalizeName produces a filesystem-safe output stem: NFC-composed,
// forbidden characters replaced, whitespace collapsed.
func NormalizeName(name string) string {
	name = norm.NFC.String(name)
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			return '-'
		case unicode.IsControl(r):
			return -1
		case unicode.IsSpace(r):
			return ' '
		default:
			return r
		}
	}, name)
	fields := strings.Fields(mapped)
	if len(fields) == 0 {
		return "tonie"
	}
	return strings.Join(fields, " ")
}

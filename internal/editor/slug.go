package editor

import (
	"regexp"
	"strings"
)

// MaxSlugLen caps generated slugs.
const MaxSlugLen = 100

var nonSlugRun = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-safe identifier from a title: lower-cased, every run
// of characters outside [a-z0-9] collapsed to one hyphen, no leading or
// trailing hyphens, at most MaxSlugLen bytes.
func Slugify(title string) string {
	s := nonSlugRun.ReplaceAllString(strings.ToLower(title), "-")
	s = strings.Trim(s, "-")
	if len(s) > MaxSlugLen {
		s = strings.TrimRight(s[:MaxSlugLen], "-")
	}
	return s
}

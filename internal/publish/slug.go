package publish

import (
	"regexp"
	"strings"
)

// maxSlugLen is measured in runes.
const maxSlugLen = 60

var (
	slugStripRe = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	slugSpaceRe = regexp.MustCompile(`[\s_]+`)
	slugDashRe  = regexp.MustCompile(`-+`)
)

// Slugify converts text to a URL-friendly slug. Letters of any script are
// kept, so Korean titles produce Korean slugs.
func Slugify(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = slugStripRe.ReplaceAllString(s, "")
	s = slugSpaceRe.ReplaceAllString(s, "-")
	s = slugDashRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if r := []rune(s); len(r) > maxSlugLen {
		s = strings.TrimRight(string(r[:maxSlugLen]), "-")
	}
	return s
}

// slugFor returns the first candidate that slugifies to something non-empty,
// or "untitled".
func slugFor(candidates ...string) string {
	for _, c := range candidates {
		if s := Slugify(c); s != "" {
			return s
		}
	}
	return "untitled"
}

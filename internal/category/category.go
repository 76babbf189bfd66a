package category

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// All is the pseudo-category meaning "no category filter".
const All = "All"

var names = []string{
	"Web Development",
	"Graphics Design",
	"Digital Marketing",
	"Video Editing",
	"Content Writing",
	"SEO Services",
	"Mobile Development",
	"UI/UX Design",
}

var titleCaser = cases.Title(language.English)

// Names returns the catalogue in display order.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

func Valid(name string) bool {
	_, ok := lookup(name)
	return ok
}

// Normalize maps a display name or URL slug ("web-development") to the
// canonical display name. Matching is case-insensitive.
func Normalize(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if n, ok := lookup(s); ok {
		return n, true
	}
	return lookup(FromSlug(s))
}

// Slug turns "Web Development" into "web-development".
func Slug(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "-"))
}

// FromSlug turns "web-development" into "Web Development". Acronyms such as
// "seo-services" are resolved against the catalogue by Normalize.
func FromSlug(slug string) string {
	return titleCaser.String(strings.ReplaceAll(strings.TrimSpace(slug), "-", " "))
}

func lookup(s string) (string, bool) {
	for _, n := range names {
		if strings.EqualFold(n, s) {
			return n, true
		}
	}
	return "", false
}

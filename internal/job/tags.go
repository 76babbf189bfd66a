package job

import (
	"regexp"
	"strings"
)

var hashtagRe = regexp.MustCompile(`#([a-zA-Z0-9_]{1,32})`)

const maxTags = 20

// ExtractTags returns the distinct lower-cased hashtags of content in order
// of first appearance. The result is never nil.
func ExtractTags(content string) []string {
	out := []string{}
	seen := map[string]struct{}{}

	for _, m := range hashtagRe.FindAllStringSubmatch(content, -1) {
		t := strings.ToLower(m[1])
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)

		if len(out) >= maxTags {
			break
		}
	}
	return out
}

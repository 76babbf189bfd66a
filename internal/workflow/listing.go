package workflow

import (
	"strings"

	"gigboard/internal/category"
	"gigboard/internal/client"
)

// Filter keeps the jobs whose title, summary or poster name contains term
// (case-insensitive) and whose category equals cat. An empty term matches
// everything; cat "All" or "" disables the category check.
func Filter(jobs []client.Job, term, cat string) []client.Job {
	term = strings.ToLower(strings.TrimSpace(term))
	cat = strings.TrimSpace(cat)
	anyCategory := cat == "" || strings.EqualFold(cat, category.All)
	if !anyCategory {
		if n, ok := category.Normalize(cat); ok {
			cat = n
		}
	}

	out := make([]client.Job, 0, len(jobs))
	for _, j := range jobs {
		if !anyCategory && !strings.EqualFold(j.Category, cat) {
			continue
		}
		if term != "" && !matches(j, term) {
			continue
		}
		out = append(out, j)
	}
	return out
}

func matches(j client.Job, term string) bool {
	return strings.Contains(strings.ToLower(j.Title), term) ||
		strings.Contains(strings.ToLower(j.Summary), term) ||
		strings.Contains(strings.ToLower(j.PostedBy), term)
}

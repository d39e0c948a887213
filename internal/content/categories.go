package content

import "sort"

// AggregateCategories derives the counted category list from a post set.
//
// Each post contributes at most one count per label (set semantics: a post
// repeating a category in its front-matter still counts once). Output is
// sorted ascending by name using byte order, with no duplicate names.
// Empty input yields an empty, non-nil slice.
func AggregateCategories(posts []Post) []CategoryCount {
	counts := make(map[string]int)
	for _, p := range posts {
		seen := make(map[string]struct{}, len(p.Categories))
		for _, c := range p.Categories {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			counts[c]++
		}
	}

	out := make([]CategoryCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, CategoryCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

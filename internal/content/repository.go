package content

import (
	"context"
	"fmt"
	"sort"
)

// Repository assembles the canonical ordered post list and its derived views.
// It holds no state between calls: every method recomputes from the loader,
// so a changed content directory is always reflected on the next request.
type Repository struct {
	loader *Loader
}

// NewRepository creates a Repository backed by the given Loader.
func NewRepository(loader *Loader) *Repository {
	return &Repository{loader: loader}
}

// ListPublished returns the visible posts ordered by date descending.
// Equal dates keep the loader's enumeration order (lexical path order).
func (r *Repository) ListPublished(ctx context.Context) ([]Post, error) {
	all, err := r.loader.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	published := make([]Post, 0, len(all))
	for _, p := range all {
		if p.Visible() {
			published = append(published, p)
		}
	}

	sort.SliceStable(published, func(i, j int) bool {
		return published[i].Date.After(published[j].Date)
	})
	return published, nil
}

// BySlug returns the visible post with the given slug.
func (r *Repository) BySlug(ctx context.Context, slug string) (Post, error) {
	posts, err := r.ListPublished(ctx)
	if err != nil {
		return Post{}, err
	}
	for _, p := range posts {
		if p.Slug == slug {
			return p, nil
		}
	}
	return Post{}, fmt.Errorf("%w: %q", ErrPostNotFound, slug)
}

// ByCategory returns the visible posts carrying the given category label,
// in the canonical (date descending) order.
func (r *Repository) ByCategory(ctx context.Context, name string) ([]Post, error) {
	posts, err := r.ListPublished(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]Post, 0, len(posts))
	for _, p := range posts {
		if p.HasCategory(name) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// WithNavigation augments an ordered post list with next/previous links.
//
// The list is date descending, so next (toward more recent) is the entry
// at i-1 and previous (toward older) is the entry at i+1. Boundaries get
// a nil neighbor, encoded as 0 on the wire.
func WithNavigation(posts []Post) []NavigatedPost {
	out := make([]NavigatedPost, len(posts))
	for i := range posts {
		out[i].Post = posts[i]
		if i > 0 {
			out[i].Next = &posts[i-1]
		}
		if i < len(posts)-1 {
			out[i].Previous = &posts[i+1]
		}
	}
	return out
}

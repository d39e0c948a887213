package content

import (
	"encoding/json"
	"time"
)

// Metadata holds the declared front-matter fields of a markdown file.
// Show defaults to visible when absent; the pointer distinguishes
// "not declared" from an explicit false.
type Metadata struct {
	Title       string   `yaml:"title"`
	Date        string   `yaml:"date"`
	Description string   `yaml:"description"`
	Categories  []string `yaml:"categories"`
	Show        *bool    `yaml:"show"`
}

// Post is the public representation of one markdown content file.
type Post struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Categories  []string  `json:"categories"`
	Show        bool      `json:"show"`

	// Body is the markdown source after the front-matter block.
	Body string `json:"-"`
}

// Visible reports whether the post should appear in public listings.
func (p Post) Visible() bool { return p.Show }

// HasCategory reports whether the post carries the given category label.
func (p Post) HasCategory(name string) bool {
	for _, c := range p.Categories {
		if c == name {
			return true
		}
	}
	return false
}

// NavigatedPost is a Post augmented with its neighbors in a specific
// ordered collection. Next points toward the more recent post, Previous
// toward the older one. A missing neighbor encodes as 0 on the wire.
type NavigatedPost struct {
	Post
	Next     *Post `json:"-"`
	Previous *Post `json:"-"`
}

// MarshalJSON encodes missing neighbors as the numeric sentinel 0,
// matching the shape consumed by the frontend pagination.
func (n NavigatedPost) MarshalJSON() ([]byte, error) {
	type alias struct {
		Post
		Next     any `json:"next"`
		Previous any `json:"previous"`
	}
	a := alias{Post: n.Post, Next: 0, Previous: 0}
	if n.Next != nil {
		a.Next = *n.Next
	}
	if n.Previous != nil {
		a.Previous = *n.Previous
	}
	return json.Marshal(a)
}

// CategoryCount is the aggregate of one category label over the visible
// post set. It is recomputed on every request, never stored.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Package markdown renders post bodies to HTML.
package markdown

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// ErrRender indicates markdown rendering failed.
var ErrRender = errors.New("markdown rendering failed")

// Renderer converts markdown post bodies to HTML fragments.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer creates a Renderer with GFM extensions, footnotes, auto
// heading IDs, and class-based syntax highlighting.
func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,      // Tables, strikethrough, autolinks, task lists
			extension.Footnote, // [^1] footnotes
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true), // stylesheet controls the theme
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(), // heading anchors for deep links
		),
		goldmark.WithRendererOptions(
			html.WithXHTML(),
		),
	)
	return &Renderer{md: md}
}

// Render converts a markdown body to an HTML fragment.
// Supports context cancellation via goroutine + select since goldmark
// doesn't natively take a context.
func (r *Renderer) Render(ctx context.Context, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type result struct {
		html string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		var buf bytes.Buffer
		if err := r.md.Convert([]byte(body), &buf); err != nil {
			done <- result{err: fmt.Errorf("%w: %v", ErrRender, err)}
			return
		}
		done <- result{html: buf.String()}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.html, res.err
	}
}

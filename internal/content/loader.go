package content

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/adrg/frontmatter"

	"github.com/ismaelpamplona/isma.codes/internal/dateutil"
	"github.com/ismaelpamplona/isma.codes/internal/logging"
)

// Loader discovers markdown files and extracts their metadata.
//
// A malformed file (unreadable, missing title, bad date, duplicate slug)
// is skipped and logged; it never fails the whole load.
type Loader struct {
	fsys fs.FS
	log  logging.Logger
}

// NewLoader creates a Loader over the given content directory.
func NewLoader(dir string, log logging.Logger) *Loader {
	return &Loader{fsys: os.DirFS(dir), log: log}
}

// NewLoaderFS creates a Loader over an fs.FS, used by tests.
func NewLoaderFS(fsys fs.FS, log logging.Logger) *Loader {
	return &Loader{fsys: fsys, log: log}
}

// LoadAll enumerates every markdown file under the content directory and
// returns one Post per well-formed file, in lexical path order. A
// cancelled context abandons the remaining reads.
func (l *Loader) LoadAll(ctx context.Context) ([]Post, error) {
	var paths []string
	err := fs.WalkDir(l.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		// A cancelled walk is the caller's context ending, not a broken
		// content directory.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrContentDir, err)
	}

	// WalkDir already yields lexical order; keep it explicit since the
	// enumeration order is the documented tie-break for equal dates.
	sort.Strings(paths)

	posts := make([]Post, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		post, err := l.loadOne(p)
		if err != nil {
			l.log.Warn("skipping content file",
				logging.String("path", p),
				logging.Err(err),
			)
			continue
		}
		if prev, ok := seen[post.Slug]; ok {
			l.log.Warn("skipping content file",
				logging.String("path", p),
				logging.Err(fmt.Errorf("%w: %q already used by %s", ErrDuplicateSlug, post.Slug, prev)),
			)
			continue
		}
		seen[post.Slug] = p
		posts = append(posts, post)
	}
	return posts, nil
}

// loadOne reads and parses a single markdown file.
func (l *Loader) loadOne(p string) (Post, error) {
	raw, err := fs.ReadFile(l.fsys, p)
	if err != nil {
		return Post{}, fmt.Errorf("%w: reading %s: %v", ErrContentParse, p, err)
	}

	var meta Metadata
	body, err := frontmatter.Parse(bytes.NewReader(raw), &meta)
	if err != nil {
		return Post{}, fmt.Errorf("%w: %s: %v", ErrContentParse, p, err)
	}
	if meta.Title == "" {
		return Post{}, fmt.Errorf("%w: %s", ErrMissingTitle, p)
	}

	date, err := dateutil.Parse(meta.Date)
	if err != nil {
		return Post{}, fmt.Errorf("%w: %s: %v", ErrInvalidDate, p, err)
	}

	show := true
	if meta.Show != nil {
		show = *meta.Show
	}

	return Post{
		Slug:        Slug(p),
		Title:       meta.Title,
		Date:        date,
		Description: meta.Description,
		Categories:  meta.Categories,
		Show:        show,
		Body:        string(body),
	}, nil
}

// Slug derives the stable identifier of a content file: the path with the
// directory prefix and markdown extension stripped.
func Slug(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

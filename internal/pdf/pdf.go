// Package pdf renders HTML to PDF using headless Chrome via go-rod.
//
// Rod downloads a managed Chromium on first run. For containers and CI,
// set ROD_BROWSER_BIN to a pre-installed Chrome and the sandbox is
// disabled automatically.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/ismaelpamplona/isma.codes/internal/fileutil"
)

// Sentinel errors for PDF generation.
var (
	ErrEmptyHTML      = errors.New("html content cannot be empty")
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrPageCreate     = errors.New("failed to create browser page")
	ErrPageLoad       = errors.New("failed to load page")
	ErrPDFGeneration  = errors.New("PDF generation failed")
)

// A4 page dimensions in inches.
const (
	paperWidthInches  = 8.27
	paperHeightInches = 11.69
	marginInches      = 0.5
	defaultTimeout    = 30 * time.Second
)

// renderer abstracts PDF rendering from an HTML file to enable testing
// without a browser.
type renderer interface {
	RenderFromFile(ctx context.Context, filePath string) ([]byte, error)
	Close() error
}

// Generator converts HTML documents to PDF bytes.
type Generator struct {
	renderer      renderer
	stylesheetURL string
}

// Option configures a Generator.
type Option func(*Generator)

// WithStylesheetURL injects a stylesheet link into documents that don't
// already reference it, mirroring how the resume page is styled.
func WithStylesheetURL(url string) Option {
	return func(g *Generator) { g.stylesheetURL = url }
}

// WithTimeout sets the page-load timeout.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("pdf: WithTimeout duration must be positive")
	}
	return func(g *Generator) {
		if r, ok := g.renderer.(*rodRenderer); ok {
			r.timeout = d
		}
	}
}

// withRenderer replaces the rod renderer, used by tests.
func withRenderer(r renderer) Option {
	return func(g *Generator) { g.renderer = r }
}

// NewGenerator creates a Generator backed by headless Chrome.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{renderer: newRodRenderer(defaultTimeout)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Render converts an HTML document to PDF bytes in A4 format.
func (g *Generator) Render(ctx context.Context, htmlContent string) ([]byte, error) {
	if strings.TrimSpace(htmlContent) == "" {
		return nil, ErrEmptyHTML
	}

	htmlContent = g.injectStylesheet(htmlContent)

	tmpPath, cleanup, err := fileutil.WriteTempFile(htmlContent, "html")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return g.renderer.RenderFromFile(ctx, tmpPath)
}

// Close releases the browser.
func (g *Generator) Close() error {
	return g.renderer.Close()
}

// injectStylesheet adds a <link> to the configured stylesheet. Documents
// already referencing it (or without a configured URL) pass through.
func (g *Generator) injectStylesheet(htmlContent string) string {
	if g.stylesheetURL == "" || strings.Contains(htmlContent, g.stylesheetURL) {
		return htmlContent
	}
	link := fmt.Sprintf(`<link rel="stylesheet" href="%s">`, g.stylesheetURL)
	if idx := strings.Index(htmlContent, "</head>"); idx >= 0 {
		return htmlContent[:idx] + link + htmlContent[idx:]
	}
	return link + htmlContent
}

// rodRenderer implements renderer using go-rod with a lazily connected
// browser shared across calls.
type rodRenderer struct {
	browser *rod.Browser
	timeout time.Duration
}

func newRodRenderer(timeout time.Duration) *rodRenderer {
	return &rodRenderer{timeout: timeout}
}

// ensureBrowser lazily launches and connects to the browser.
func (r *rodRenderer) ensureBrowser() error {
	if r.browser != nil {
		return nil
	}

	l := launcher.New()
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}
	// NoSandbox required for CI and containerized environments
	if os.Getenv("CI") == "true" || os.Getenv("ROD_BROWSER_BIN") != "" {
		l = l.NoSandbox(true)
	}
	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	r.browser = rod.New().ControlURL(u)
	if err := r.browser.Connect(); err != nil {
		r.browser = nil
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	return nil
}

func (r *rodRenderer) Close() error {
	if r.browser != nil {
		err := r.browser.Close()
		r.browser = nil
		return err
	}
	return nil
}

// RenderFromFile opens a local HTML file in headless Chrome and renders it
// to PDF. Returns explicit errors instead of panicking when browser
// operations fail.
func (r *rodRenderer) RenderFromFile(ctx context.Context, filePath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.ensureBrowser(); err != nil {
		return nil, err
	}

	page, err := r.browser.Page(proto.TargetCreateTarget{URL: "file://" + filePath})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageCreate, err)
	}
	defer page.Close()

	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, context.DeadlineExceeded
		}
	}
	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reader, err := page.PDF(&proto.PagePrintToPDF{
		PaperWidth:      floatPtr(paperWidthInches),
		PaperHeight:     floatPtr(paperHeightInches),
		MarginTop:       floatPtr(marginInches),
		MarginBottom:    floatPtr(marginInches),
		MarginLeft:      floatPtr(marginInches),
		MarginRight:     floatPtr(marginInches),
		PrintBackground: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPDFGeneration, err)
	}

	pdfBuf, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading PDF stream: %v", ErrPDFGeneration, err)
	}
	return pdfBuf, nil
}

func floatPtr(v float64) *float64 { return &v }

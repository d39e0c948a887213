// Package api exposes the site backend over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	openai "github.com/sashabaranov/go-openai"

	"github.com/ismaelpamplona/isma.codes/internal/assets"
	"github.com/ismaelpamplona/isma.codes/internal/assistant"
	"github.com/ismaelpamplona/isma.codes/internal/content"
	"github.com/ismaelpamplona/isma.codes/internal/logging"
	"github.com/ismaelpamplona/isma.codes/internal/markdown"
	"github.com/ismaelpamplona/isma.codes/internal/pdf"
	"github.com/ismaelpamplona/isma.codes/internal/search"
	"github.com/ismaelpamplona/isma.codes/internal/ticker"
)

// Fields searched by the blog search endpoint.
var searchFields = []string{"title", "description", "categories"}

// PDFRenderer turns an HTML document into PDF bytes.
type PDFRenderer interface {
	Render(ctx context.Context, htmlContent string) ([]byte, error)
}

// ChatService forwards a conversation to the completion API.
type ChatService interface {
	Chat(ctx context.Context, msgs []assistant.Message) (openai.ChatCompletionResponse, error)
	Greeting(ctx context.Context) (openai.ChatCompletionResponse, error)
}

// PriceSource is the live price feed consumed by the SSE endpoint.
type PriceSource interface {
	Subscribe() (<-chan ticker.Tick, func())
	Prices() map[string]ticker.PriceData
}

// DirectorySource resolves exchange symbols to coin names and ranks.
type DirectorySource interface {
	Fetch(ctx context.Context) (map[string]ticker.CoinInfo, error)
}

// Handler carries the wired services behind the HTTP routes.
type Handler struct {
	posts     *content.Repository
	renderer  *markdown.Renderer
	pdf       PDFRenderer
	chat      ChatService
	prices    PriceSource
	directory DirectorySource
	log       logging.Logger
}

// NewHandler wires the services into a Handler. Nil services disable their
// routes with 503 instead of panicking, so the blog still serves when the
// assistant key or browser is absent.
func NewHandler(
	posts *content.Repository,
	renderer *markdown.Renderer,
	pdfRenderer PDFRenderer,
	chat ChatService,
	prices PriceSource,
	directory DirectorySource,
	log logging.Logger,
) *Handler {
	return &Handler{
		posts:     posts,
		renderer:  renderer,
		pdf:       pdfRenderer,
		chat:      chat,
		prices:    prices,
		directory: directory,
		log:       log,
	}
}

// ListPosts handles GET /api/blog/posts.
func (h *Handler) ListPosts(c *gin.Context) {
	posts, err := h.posts.ListPublished(c.Request.Context())
	if err != nil {
		h.fail(c, "list posts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"posts": content.WithNavigation(posts),
		"count": len(posts),
	})
}

// GetPost handles GET /api/blog/posts/:slug. The response carries the
// post metadata, its rendered HTML body, and the navigation neighbors.
func (h *Handler) GetPost(c *gin.Context) {
	slug := c.Param("slug")

	posts, err := h.posts.ListPublished(c.Request.Context())
	if err != nil {
		h.fail(c, "get post", err)
		return
	}

	navigated := content.WithNavigation(posts)
	idx := -1
	for i := range navigated {
		if navigated[i].Slug == slug {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}

	html, err := h.renderer.Render(c.Request.Context(), navigated[idx].Body)
	if err != nil {
		h.fail(c, "render post", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"post": navigated[idx],
		"html": html,
	})
}

// ListCategories handles GET /api/blog/categories.
func (h *Handler) ListCategories(c *gin.Context) {
	posts, err := h.posts.ListPublished(c.Request.Context())
	if err != nil {
		h.fail(c, "list categories", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": content.AggregateCategories(posts)})
}

// GetCategory handles GET /api/blog/categories/:category.
func (h *Handler) GetCategory(c *gin.Context) {
	name := c.Param("category")

	posts, err := h.posts.ByCategory(c.Request.Context(), name)
	if err != nil {
		h.fail(c, "get category", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"category": name,
		"posts":    content.WithNavigation(posts),
		"count":    len(posts),
	})
}

// searchResult pairs a matched post with its match details.
type searchResult struct {
	Post  content.Post `json:"post"`
	Score float64      `json:"score"`
	Field string       `json:"field"`
	Span  search.Span  `json:"span"`
}

// SearchPosts handles GET /api/blog/search?q=&threshold=.
func (h *Handler) SearchPosts(c *gin.Context) {
	query := c.Query("q")

	threshold := -1.0 // negative selects the default
	if raw := c.Query("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be a number between 0 and 1"})
			return
		}
		threshold = parsed
	}

	posts, err := h.posts.ListPublished(c.Request.Context())
	if err != nil {
		h.fail(c, "search posts", err)
		return
	}

	docs := make([]search.Document, len(posts))
	for i, p := range posts {
		docs[i] = search.Document{
			ID: p.Slug,
			Fields: map[string]string{
				"title":       p.Title,
				"description": p.Description,
				"categories":  strings.Join(p.Categories, " "),
			},
		}
	}

	matches, err := search.Search(docs, query, searchFields, threshold)
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
			return
		}
		h.fail(c, "search posts", err)
		return
	}

	results := make([]searchResult, len(matches))
	for i, m := range matches {
		results[i] = searchResult{
			Post:  posts[m.Index],
			Score: m.Score,
			Field: m.Field,
			Span:  m.Span,
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"query":   query,
		"results": results,
		"count":   len(results),
	})
}

// downloadRequest is the POST /api/download-pdf body.
type downloadRequest struct {
	HTML string `json:"html" binding:"required"`
}

// DownloadPDF handles POST /api/download-pdf.
func (h *Handler) DownloadPDF(c *gin.Context) {
	if h.pdf == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "PDF export is not available"})
		return
	}

	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	data, err := h.pdf.Render(c.Request.Context(), req.HTML)
	if err != nil {
		if errors.Is(err, pdf.ErrEmptyHTML) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "html cannot be empty"})
			return
		}
		h.fail(c, "render pdf", err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="resume.pdf"`)
	c.Data(http.StatusCreated, "application/pdf", data)
}

// chatRequest is the POST /api/chat body.
type chatRequest struct {
	Messages []assistant.Message `json:"messages"`
}

// Chat handles POST /api/chat. The completion response is returned
// verbatim; an empty message array asks for the assistant's greeting.
func (h *Handler) Chat(c *gin.Context) {
	if h.chat == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat assistant is not available"})
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	var resp openai.ChatCompletionResponse
	var err error
	if len(req.Messages) == 0 {
		resp, err = h.chat.Greeting(c.Request.Context())
	} else {
		resp, err = h.chat.Chat(c.Request.Context(), req.Messages)
	}
	if err != nil {
		switch {
		case errors.Is(err, assistant.ErrInvalidRole),
			errors.Is(err, assistant.ErrEmptyContent),
			errors.Is(err, assistant.ErrNoMessages):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, assistant.ErrCompletion):
			h.log.Error("chat completion failed", logging.Err(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "chat completion failed"})
		default:
			h.fail(c, "chat", err)
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetDirectory handles GET /api/prices/directory.
func (h *Handler) GetDirectory(c *gin.Context) {
	if h.directory == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "price directory is not available"})
		return
	}

	dir, err := h.directory.Fetch(c.Request.Context())
	if err != nil {
		h.log.Error("directory fetch failed", logging.Err(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream directory unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbols": dir, "count": len(dir)})
}

// GetStylesheet handles GET /assets/styles/:name, serving the embedded
// stylesheets (the resume print style among them).
func (h *Handler) GetStylesheet(c *gin.Context) {
	name := strings.TrimSuffix(c.Param("name"), ".css")

	css, err := assets.Stylesheet(name)
	if err != nil {
		if errors.Is(err, assets.ErrInvalidAssetName) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid stylesheet name"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "stylesheet not found"})
		return
	}
	c.Data(http.StatusOK, "text/css; charset=utf-8", css)
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail logs err and answers with a generic 500.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	h.log.Error("request failed",
		logging.String("op", op),
		logging.String("path", c.Request.URL.Path),
		logging.Err(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

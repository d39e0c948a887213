package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/gin-gonic/gin"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ismaelpamplona/isma.codes/internal/api"
	"github.com/ismaelpamplona/isma.codes/internal/assistant"
	"github.com/ismaelpamplona/isma.codes/internal/content"
	"github.com/ismaelpamplona/isma.codes/internal/logging"
	"github.com/ismaelpamplona/isma.codes/internal/markdown"
	"github.com/ismaelpamplona/isma.codes/internal/pdf"
	"github.com/ismaelpamplona/isma.codes/internal/ticker"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func post(date, title, description string, categories ...string) *fstest.MapFile {
	var sb strings.Builder
	sb.WriteString("---\ntitle: " + title + "\ndate: " + date + "\n")
	sb.WriteString("description: " + description + "\n")
	if len(categories) > 0 {
		sb.WriteString("categories: [" + strings.Join(categories, ", ") + "]\n")
	}
	sb.WriteString("---\n\n## Heading\n\nSome **body** text.\n")
	return &fstest.MapFile{Data: []byte(sb.String())}
}

func testRepository(t *testing.T) *content.Repository {
	t.Helper()
	fsys := fstest.MapFS{
		"go-post.md":   post("2024-03-01", "Understanding Go", "Concurrency patterns in Go", "go"),
		"rust-post.md": post("2024-02-01", "Ownership in Rust", "Borrow checker deep dive", "rust"),
		"old-post.md":  post("2024-01-01", "First Post", "Hello world", "go", "meta"),
	}
	return content.NewRepository(content.NewLoaderFS(fsys, logging.NewNop()))
}

type fakePDF struct {
	data []byte
	err  error
}

func (f *fakePDF) Render(_ context.Context, htmlContent string) ([]byte, error) {
	if strings.TrimSpace(htmlContent) == "" {
		return nil, pdf.ErrEmptyHTML
	}
	return f.data, f.err
}

type fakeChat struct {
	resp     openai.ChatCompletionResponse
	err      error
	lastMsgs []assistant.Message
	greeted  bool
}

func (f *fakeChat) Chat(_ context.Context, msgs []assistant.Message) (openai.ChatCompletionResponse, error) {
	if err := assistant.ValidateMessages(msgs); err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	f.lastMsgs = msgs
	return f.resp, f.err
}

func (f *fakeChat) Greeting(_ context.Context) (openai.ChatCompletionResponse, error) {
	f.greeted = true
	return f.resp, f.err
}

type fakeFeed struct {
	ticks  []ticker.Tick
	prices map[string]ticker.PriceData
}

func (f *fakeFeed) Subscribe() (<-chan ticker.Tick, func()) {
	ch := make(chan ticker.Tick, len(f.ticks))
	for _, tick := range f.ticks {
		ch <- tick
	}
	close(ch)
	return ch, func() {}
}

func (f *fakeFeed) Prices() map[string]ticker.PriceData {
	return f.prices
}

type fakeDirectory struct {
	symbols map[string]ticker.CoinInfo
	err     error
}

func (f *fakeDirectory) Fetch(context.Context) (map[string]ticker.CoinInfo, error) {
	return f.symbols, f.err
}

type option func(*deps)

type deps struct {
	pdf       api.PDFRenderer
	chat      api.ChatService
	prices    api.PriceSource
	directory api.DirectorySource
}

func withPDF(p api.PDFRenderer) option {
	return func(d *deps) { d.pdf = p }
}

func withChat(c api.ChatService) option {
	return func(d *deps) { d.chat = c }
}

func withPrices(p api.PriceSource) option {
	return func(d *deps) { d.prices = p }
}

func withDirectory(s api.DirectorySource) option {
	return func(d *deps) { d.directory = s }
}

func newTestRouter(t *testing.T, opts ...option) *gin.Engine {
	t.Helper()
	var d deps
	for _, opt := range opts {
		opt(&d)
	}
	h := api.NewHandler(
		testRepository(t),
		markdown.NewRenderer(),
		d.pdf,
		d.chat,
		d.prices,
		d.directory,
		logging.NewNop(),
	)
	return api.NewRouter(h, logging.NewNop(), nil)
}

func doRequest(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	t.Parallel()

	w := doRequest(t, newTestRouter(t), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestGetStylesheet(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/assets/styles/resume.css", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/css; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "@page")

	w = doRequest(t, router, http.MethodGet, "/assets/styles/nope.css", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListPosts(t *testing.T) {
	t.Parallel()

	w := doRequest(t, newTestRouter(t), http.MethodGet, "/api/blog/posts", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count int               `json:"count"`
		Posts []json.RawMessage `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)
	require.Len(t, resp.Posts, 3)

	// Newest first, with the numeric sentinel for the missing neighbor.
	first := string(resp.Posts[0])
	assert.Contains(t, first, `"slug":"go-post"`)
	assert.Contains(t, first, `"next":0`)
	assert.Contains(t, first, `"previous":{`)

	last := string(resp.Posts[2])
	assert.Contains(t, last, `"slug":"old-post"`)
	assert.Contains(t, last, `"previous":0`)
}

func TestGetPost(t *testing.T) {
	t.Parallel()

	w := doRequest(t, newTestRouter(t), http.MethodGet, "/api/blog/posts/rust-post", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Post json.RawMessage `json:"post"`
		HTML string          `json:"html"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, string(resp.Post), `"title":"Ownership in Rust"`)
	assert.Contains(t, resp.HTML, "<h2")
	assert.Contains(t, resp.HTML, "<strong>body</strong>")

	// Middle of the list has both neighbors.
	assert.Contains(t, string(resp.Post), `"next":{`)
	assert.Contains(t, string(resp.Post), `"previous":{`)
}

func TestGetPostNotFound(t *testing.T) {
	t.Parallel()

	w := doRequest(t, newTestRouter(t), http.MethodGet, "/api/blog/posts/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListCategories(t *testing.T) {
	t.Parallel()

	w := doRequest(t, newTestRouter(t), http.MethodGet, "/api/blog/categories", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Categories []struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		} `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Categories, 3)
	assert.Equal(t, "go", resp.Categories[0].Name)
	assert.Equal(t, 2, resp.Categories[0].Count)
	assert.Equal(t, "meta", resp.Categories[1].Name)
	assert.Equal(t, "rust", resp.Categories[2].Name)
}

func TestGetCategory(t *testing.T) {
	t.Parallel()

	w := doRequest(t, newTestRouter(t), http.MethodGet, "/api/blog/categories/go", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Category string            `json:"category"`
		Count    int               `json:"count"`
		Posts    []json.RawMessage `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "go", resp.Category)
	assert.Equal(t, 2, resp.Count)
	assert.Contains(t, string(resp.Posts[0]), `"slug":"go-post"`)
}

func TestSearchPosts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantSlug   string
	}{
		{
			name:       "missing query",
			path:       "/api/blog/search",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad threshold",
			path:       "/api/blog/search?q=go&threshold=2",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "title match",
			path:       "/api/blog/search?q=ownership",
			wantStatus: http.StatusOK,
			wantSlug:   "rust-post",
		},
		{
			name:       "typo still matches",
			path:       "/api/blog/search?q=ownershp",
			wantStatus: http.StatusOK,
			wantSlug:   "rust-post",
		},
		{
			name:       "category match",
			path:       "/api/blog/search?q=rust",
			wantStatus: http.StatusOK,
			wantSlug:   "rust-post",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := doRequest(t, newTestRouter(t), http.MethodGet, tt.path, "")
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantSlug == "" {
				return
			}

			var resp struct {
				Results []struct {
					Post struct {
						Slug string `json:"slug"`
					} `json:"post"`
				} `json:"results"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotEmpty(t, resp.Results)
			assert.Equal(t, tt.wantSlug, resp.Results[0].Post.Slug)
		})
	}
}

func TestDownloadPDF(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, withPDF(&fakePDF{data: []byte("%PDF-1.4 fake")}))

	w := doRequest(t, router, http.MethodPost, "/api/download-pdf", `{"html":"<html><body>CV</body></html>"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="resume.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.4 fake", w.Body.String())
}

func TestDownloadPDFBadRequests(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, withPDF(&fakePDF{data: []byte("x")}))

	w := doRequest(t, router, http.MethodPost, "/api/download-pdf", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, router, http.MethodPost, "/api/download-pdf", `{"html":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownloadPDFUnavailable(t *testing.T) {
	t.Parallel()

	w := doRequest(t, newTestRouter(t), http.MethodPost, "/api/download-pdf", `{"html":"<p>x</p>"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestChat(t *testing.T) {
	t.Parallel()

	fake := &fakeChat{resp: openai.ChatCompletionResponse{
		ID: "chatcmpl-test",
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: "assistant", Content: "Hi there!"}},
		},
	}}
	router := newTestRouter(t, withChat(fake))

	w := doRequest(t, router, http.MethodPost, "/api/chat",
		`{"messages":[{"role":"user","content":"What do you work on?"}]}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"chatcmpl-test"`)
	require.Len(t, fake.lastMsgs, 1)
	assert.Equal(t, "What do you work on?", fake.lastMsgs[0].Content)
}

func TestChatEmptyMessagesAsksGreeting(t *testing.T) {
	t.Parallel()

	fake := &fakeChat{resp: openai.ChatCompletionResponse{ID: "chatcmpl-greeting"}}
	router := newTestRouter(t, withChat(fake))

	w := doRequest(t, router, http.MethodPost, "/api/chat", `{"messages":[]}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, fake.greeted)
}

func TestChatInvalidRole(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, withChat(&fakeChat{}))

	w := doRequest(t, router, http.MethodPost, "/api/chat",
		`{"messages":[{"role":"wizard","content":"abracadabra"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatUpstreamFailure(t *testing.T) {
	t.Parallel()

	fake := &fakeChat{err: assistant.ErrCompletion}
	router := newTestRouter(t, withChat(fake))

	w := doRequest(t, router, http.MethodPost, "/api/chat",
		`{"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestChatUnavailable(t *testing.T) {
	t.Parallel()

	w := doRequest(t, newTestRouter(t), http.MethodPost, "/api/chat", `{"messages":[]}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetDirectory(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, withDirectory(&fakeDirectory{symbols: map[string]ticker.CoinInfo{
		"BTC": {Name: "Bitcoin", Rank: 1},
	}}))

	w := doRequest(t, router, http.MethodGet, "/api/prices/directory", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Bitcoin"`)
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestGetDirectoryUpstreamFailure(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, withDirectory(&fakeDirectory{err: errors.New("boom")}))

	w := doRequest(t, router, http.MethodGet, "/api/prices/directory", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestStreamPrices(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{
		prices: map[string]ticker.PriceData{
			"BTCUSDT": {Value: "43250.00", Direction: ticker.DirectionNone},
		},
		ticks: []ticker.Tick{
			{Pair: "BTCUSDT", PriceData: ticker.PriceData{Value: "43251.00", Direction: ticker.DirectionUp}},
		},
	}
	router := newTestRouter(t, withPrices(feed))

	w := doRequest(t, router, http.MethodGet, "/api/prices/stream", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "event:tick")
	assert.Contains(t, body, `"value":"43250.00"`) // snapshot
	assert.Contains(t, body, `"value":"43251.00"`) // live tick
	assert.Contains(t, body, `"direction":"up"`)
}

func TestStreamPricesUnavailable(t *testing.T) {
	t.Parallel()

	w := doRequest(t, newTestRouter(t), http.MethodGet, "/api/prices/stream", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

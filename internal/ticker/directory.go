package ticker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Default upstream endpoints for the coin directory.
const (
	DefaultExchangeInfoURL = "https://api.binance.com/api/v3/exchangeInfo"
	DefaultCoinListURL     = "https://api.coinpaprika.com/v1/coins"
)

// maxDirectoryRank filters out long-tail listings.
const maxDirectoryRank = 1000

// ErrDirectoryFetch indicates an upstream directory request failed.
var ErrDirectoryFetch = errors.New("ticker: directory fetch failed")

// CoinInfo describes one tradeable base asset.
type CoinInfo struct {
	Name string `json:"name"`
	Rank int    `json:"rank"`
}

// Directory resolves exchange symbols to coin names and market ranks by
// joining the exchange symbol list with a coin catalogue.
type Directory struct {
	client          *http.Client
	exchangeInfoURL string
	coinListURL     string
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithHTTPClient replaces the HTTP client, used by tests.
func WithHTTPClient(c *http.Client) DirectoryOption {
	return func(d *Directory) { d.client = c }
}

// WithExchangeInfoURL overrides the exchange symbol endpoint.
func WithExchangeInfoURL(url string) DirectoryOption {
	return func(d *Directory) { d.exchangeInfoURL = url }
}

// WithCoinListURL overrides the coin catalogue endpoint.
func WithCoinListURL(url string) DirectoryOption {
	return func(d *Directory) { d.coinListURL = url }
}

// NewDirectory creates a Directory with production defaults.
func NewDirectory(opts ...DirectoryOption) *Directory {
	d := &Directory{
		client:          &http.Client{Timeout: 15 * time.Second},
		exchangeInfoURL: DefaultExchangeInfoURL,
		coinListURL:     DefaultCoinListURL,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type exchangeInfoResponse struct {
	Symbols []struct {
		BaseAsset string `json:"baseAsset"`
	} `json:"symbols"`
}

type catalogueCoin struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Rank     int    `json:"rank"`
	IsActive bool   `json:"is_active"`
}

// Fetch returns the symbol directory: every base asset listed on the
// exchange that also appears in the coin catalogue as active with a
// rank below the long-tail cutoff.
func (d *Directory) Fetch(ctx context.Context) (map[string]CoinInfo, error) {
	var info exchangeInfoResponse
	if err := d.getJSON(ctx, d.exchangeInfoURL, &info); err != nil {
		return nil, err
	}

	listed := make(map[string]struct{}, len(info.Symbols))
	for _, s := range info.Symbols {
		listed[strings.ToUpper(s.BaseAsset)] = struct{}{}
	}

	var coins []catalogueCoin
	if err := d.getJSON(ctx, d.coinListURL, &coins); err != nil {
		return nil, err
	}

	out := make(map[string]CoinInfo)
	for _, coin := range coins {
		if !coin.IsActive || coin.Rank <= 0 || coin.Rank >= maxDirectoryRank {
			continue
		}
		symbol := strings.ToUpper(coin.Symbol)
		if _, ok := listed[symbol]; !ok {
			continue
		}
		if prev, ok := out[symbol]; ok && prev.Rank <= coin.Rank {
			continue // keep the best-ranked entry for duplicate symbols
		}
		out[symbol] = CoinInfo{Name: coin.Name, Rank: coin.Rank}
	}
	return out, nil
}

func (d *Directory) getJSON(ctx context.Context, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDirectoryFetch, err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDirectoryFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", ErrDirectoryFetch, url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrDirectoryFetch, url, err)
	}
	return nil
}

// Package ticker streams live trade prices for the tracked crypto pairs.
//
// One WebSocket connection is held per pair. The feed owns its connection
// set: consumers attach through Subscribe and the whole set is torn down
// by Close. There is no ambient global state.
package ticker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ismaelpamplona/isma.codes/internal/logging"
	"github.com/ismaelpamplona/isma.codes/internal/retry"
)

// DefaultStreamURL is the Binance combined trade stream base.
const DefaultStreamURL = "wss://stream.binance.com:9443/ws/"

// Tick directions relative to the previous tick of the same pair.
// The first tick of a pair has no reference and reports DirectionNone.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
	DirectionNone = ""
)

// ErrNoPairs indicates a feed configured without trading pairs.
var ErrNoPairs = errors.New("ticker: no trading pairs configured")

// PriceData is the formatted state of one pair.
type PriceData struct {
	Value     string `json:"value"`
	Direction string `json:"direction"`
}

// Tick is one price update event.
type Tick struct {
	Pair string `json:"pair"`
	PriceData
}

// tradeMessage is the subset of the Binance trade event we consume.
type tradeMessage struct {
	Price string `json:"p"`
}

// Conn is the read side of one stream connection.
type Conn interface {
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer opens stream connections; swapped out by tests.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type gorillaDialer struct{}

func (gorillaDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return gorillaConn{conn}, nil
}

type gorillaConn struct {
	conn *websocket.Conn
}

func (c gorillaConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c gorillaConn) Close() error { return c.conn.Close() }

// Feed owns the stream connections for a set of trading pairs and fans
// ticks out to subscribers.
type Feed struct {
	pairs     []string
	streamURL string
	dialer    Dialer
	log       logging.Logger

	mu      sync.Mutex
	last    map[string]PriceData
	subs    map[int]chan Tick
	nextSub int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Feed.
type Option func(*Feed)

// WithStreamURL overrides the stream base URL.
func WithStreamURL(url string) Option {
	return func(f *Feed) { f.streamURL = url }
}

// WithDialer replaces the WebSocket dialer, used by tests.
func WithDialer(d Dialer) Option {
	return func(f *Feed) { f.dialer = d }
}

// NewFeed creates a Feed for the given pairs (e.g. "BTCUSDT").
func NewFeed(pairs []string, log logging.Logger, opts ...Option) (*Feed, error) {
	if len(pairs) == 0 {
		return nil, ErrNoPairs
	}
	f := &Feed{
		pairs:     pairs,
		streamURL: DefaultStreamURL,
		dialer:    gorillaDialer{},
		log:       log,
		last:      make(map[string]PriceData, len(pairs)),
		subs:      make(map[int]chan Tick),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Start opens one connection per pair and begins streaming. Dropped
// connections reconnect with backoff until Close or context end.
func (f *Feed) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	for _, pair := range f.pairs {
		f.wg.Add(1)
		go f.streamPair(ctx, pair)
	}
}

// Close tears down every connection and subscriber channel.
func (f *Feed) Close() {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()

	f.mu.Lock()
	defer f.mu.Unlock()
	for id, ch := range f.subs {
		close(ch)
		delete(f.subs, id)
	}
}

// Subscribe attaches a consumer. The returned cancel function detaches it
// and closes the channel. Slow consumers drop ticks rather than blocking
// the feed.
func (f *Feed) Subscribe() (<-chan Tick, func()) {
	ch := make(chan Tick, 16)

	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = ch
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Prices returns the last known state of every pair.
func (f *Feed) Prices() map[string]PriceData {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]PriceData, len(f.last))
	for pair, data := range f.last {
		out[pair] = data
	}
	return out
}

// streamPair keeps one pair connected, reconnecting on failure.
func (f *Feed) streamPair(ctx context.Context, pair string) {
	defer f.wg.Done()

	url := f.streamURL + strings.ToLower(pair) + "@trade"
	backoff := retry.Config{
		MaxAttempts:  1 << 30, // reconnect until the context ends
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
	}

	_ = retry.Do(ctx, backoff, func() error {
		conn, err := f.dialer.Dial(ctx, url)
		if err != nil {
			f.log.Warn("ticker connect failed",
				logging.String("pair", pair),
				logging.Err(err),
			)
			return err
		}
		defer conn.Close()

		// Unblock the read loop when the feed shuts down.
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-done:
			}
		}()

		for {
			data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				f.log.Warn("ticker stream dropped",
					logging.String("pair", pair),
					logging.Err(err),
				)
				return err
			}
			f.handleTrade(pair, data)
		}
	})
}

// handleTrade parses one trade event and publishes the resulting tick.
func (f *Feed) handleTrade(pair string, data []byte) {
	var trade tradeMessage
	if err := json.Unmarshal(data, &trade); err != nil {
		f.log.Warn("ticker message unparseable",
			logging.String("pair", pair),
			logging.Err(err),
		)
		return
	}
	price, err := strconv.ParseFloat(trade.Price, 64)
	if err != nil {
		f.log.Warn("ticker price unparseable",
			logging.String("pair", pair),
			logging.String("price", trade.Price),
		)
		return
	}

	value := fmt.Sprintf("%.2f", price)

	f.mu.Lock()
	direction := DirectionNone
	if prev, ok := f.last[pair]; ok && prev.Value != value {
		prevPrice, _ := strconv.ParseFloat(prev.Value, 64)
		if price > prevPrice {
			direction = DirectionUp
		} else {
			direction = DirectionDown
		}
	}
	tick := Tick{Pair: pair, PriceData: PriceData{Value: value, Direction: direction}}
	f.last[pair] = tick.PriceData
	for _, ch := range f.subs {
		select {
		case ch <- tick:
		default: // drop for slow consumers
		}
	}
	f.mu.Unlock()
}

package api

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/ismaelpamplona/isma.codes/internal/ticker"
)

// StreamPrices handles GET /api/prices/stream. The client first receives
// a snapshot of the last known price per pair, then one event per trade
// until it disconnects or the feed closes.
func (h *Handler) StreamPrices(c *gin.Context) {
	if h.prices == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "price stream is not available"})
		return
	}

	ch, cancel := h.prices.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	// Snapshot precedes the live stream, in stable pair order.
	snapshot := h.prices.Prices()
	pairs := make([]string, 0, len(snapshot))
	for pair := range snapshot {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)
	for _, pair := range pairs {
		c.SSEvent("tick", ticker.Tick{Pair: pair, PriceData: snapshot[pair]})
	}
	c.Writer.Flush()

	for {
		select {
		case tick, ok := <-ch:
			if !ok {
				return
			}
			c.SSEvent("tick", tick)
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

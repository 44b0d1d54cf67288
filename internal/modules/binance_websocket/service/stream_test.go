package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type restStub struct {
	price float64
	err   error
	calls int
}

func (r *restStub) TickerPrice(context.Context, string) (float64, error) {
	r.calls++
	return r.price, r.err
}

func TestPriceCacheMaxAge(t *testing.T) {
	c := NewPriceCache()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("XRPUSDT", 2.5, now.Add(-10*time.Second))
	px, ok := c.Last("XRPUSDT", 30*time.Second)
	require.True(t, ok)
	assert.Equal(t, 2.5, px)

	_, ok = c.Last("XRPUSDT", 5*time.Second)
	assert.False(t, ok)

	// старый тик не затирает новый
	c.Set("XRPUSDT", 1.0, now.Add(-time.Minute))
	px, _ = c.Last("XRPUSDT", 0)
	assert.Equal(t, 2.5, px)

	_, ok = c.Last("BTCUSDT", 0)
	assert.False(t, ok)
}

func TestPriceFeedFallsBackToREST(t *testing.T) {
	cache := NewPriceCache()
	rest := &restStub{price: 3.1}
	f := NewPriceFeed(cache, rest, 30*time.Second, zap.NewNop())

	px, err := f.Price(context.Background(), "XRPUSDT")
	require.NoError(t, err)
	assert.Equal(t, 3.1, px)
	assert.Equal(t, 1, rest.calls)

	// второй раз из кэша
	px, err = f.Price(context.Background(), "XRPUSDT")
	require.NoError(t, err)
	assert.Equal(t, 3.1, px)
	assert.Equal(t, 1, rest.calls)

	rest.err = errors.New("down")
	_, err = f.Price(context.Background(), "BTCUSDT")
	require.Error(t, err)
}

func TestStreamUpdatesCache(t *testing.T) {
	upgrader := websocket.Upgrader{}
	gotQuery := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery <- r.URL.Query().Get("streams")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"stream":"xrpusdt@miniTicker","data":{"e":"24hrMiniTicker","E":1700000000000,"s":"XRPUSDT","c":"2.3456"}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	cache := NewPriceCache()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	s := NewStream(wsURL, []string{"XRPUSDT", "BTCUSDT"}, cache, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Equal(t, "xrpusdt@miniTicker/btcusdt@miniTicker", <-gotQuery)
	require.Eventually(t, func() bool {
		px, ok := cache.Last("XRPUSDT", 0)
		return ok && px == 2.3456
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop")
	}
}

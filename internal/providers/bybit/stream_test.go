package bybit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantonic/setforge/internal/domain"
)

// wsFixture upgrades incoming connections and replays canned frames
// after acknowledging the subscription.
func wsFixture(t *testing.T, frames []string) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub struct {
			Op   string   `json:"op"`
			Args []string `json:"args"`
		}
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		assert.Equal(t, "subscribe", sub.Op)
		assert.Contains(t, sub.Args, "kline.60.BTCUSDT")

		conn.WriteJSON(map[string]interface{}{"op": "subscribe", "success": true})
		for _, f := range frames {
			conn.WriteMessage(websocket.TextMessage, []byte(f))
		}
		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStreamDeliversOnlyConfirmedCandles(t *testing.T) {
	url := wsFixture(t, []string{
		`{"topic":"kline.60.BTCUSDT","data":[{"start":1704067200000,"open":"42000","high":"42150","low":"41950","close":"42050","volume":"900","confirm":false}]}`,
		`{"topic":"kline.60.BTCUSDT","data":[{"start":1704067200000,"open":"42000","high":"42150","low":"41950","close":"42100","volume":"1000","confirm":true}]}`,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan ClosedCandle, 4)
	s := NewStream(url, nil, zerolog.Nop())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, []string{"BTCUSDT"}, domain.TF1h, out) }()

	select {
	case ev := <-out:
		assert.Equal(t, "BTCUSDT", ev.Symbol)
		assert.Equal(t, domain.TF1h, ev.TF)
		assert.Equal(t, 42100.0, ev.Candle.Close)
		assert.Equal(t, time.UnixMilli(1704067200000).UTC(), ev.Candle.Timestamp)
	case <-time.After(3 * time.Second):
		t.Fatal("no confirmed candle delivered")
	}

	// The forming frame must not have been emitted ahead of the close.
	select {
	case ev := <-out:
		t.Fatalf("unexpected extra candle %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not stop on cancel")
	}
}

func TestStreamRejectsUnsupportedInterval(t *testing.T) {
	out := make(chan ClosedCandle, 1)
	s := NewStream("ws://127.0.0.1:1", nil, zerolog.Nop())
	err := s.Run(context.Background(), []string{"BTCUSDT"}, domain.Timeframe("7h"), out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported interval")
}

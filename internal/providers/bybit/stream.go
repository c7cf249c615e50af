package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/quantonic/setforge/internal/domain"
	"github.com/quantonic/setforge/internal/telemetry"
)

// ClosedCandle is a confirmed kline delivered by the stream.
type ClosedCandle struct {
	Symbol string
	TF     domain.Timeframe
	Candle domain.Candle
}

// Stream subscribes to Bybit public kline topics and emits candles as
// they close. It reconnects with backoff until the context ends.
type Stream struct {
	url     string
	metrics *telemetry.Metrics
	log     zerolog.Logger
}

// NewStream builds a kline stream against the public linear endpoint.
func NewStream(url string, metrics *telemetry.Metrics, log zerolog.Logger) *Stream {
	if url == "" {
		url = "wss://stream.bybit.com/v5/public/linear"
	}
	return &Stream{url: url, metrics: metrics, log: log.With().Str("provider", "bybit-ws").Logger()}
}

type wsMessage struct {
	Topic string `json:"topic"`
	Data  []struct {
		Start   int64  `json:"start"`
		Open    string `json:"open"`
		High    string `json:"high"`
		Low     string `json:"low"`
		Close   string `json:"close"`
		Volume  string `json:"volume"`
		Confirm bool   `json:"confirm"`
	} `json:"data"`
	Op      string `json:"op"`
	Success bool   `json:"success"`
	RetMsg  string `json:"ret_msg"`
}

// Run streams closed candles for the symbol set into out until ctx ends.
// The channel is closed on return.
func (s *Stream) Run(ctx context.Context, symbols []string, tf domain.Timeframe, out chan<- ClosedCandle) error {
	defer close(out)

	code, ok := intervalCodes[tf]
	if !ok {
		return fmt.Errorf("bybit: unsupported interval %s", tf)
	}
	topics := make([]string, len(symbols))
	for i, sym := range symbols {
		topics[i] = fmt.Sprintf("kline.%s.%s", code, sym)
	}

	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.runConn(ctx, topics, tf, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.log.Warn().Err(err).Dur("backoff", backoff).Msg("stream disconnected, reconnecting")
		if s.metrics != nil {
			s.metrics.WSReconnects.Inc()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s *Stream) runConn(ctx context.Context, topics []string, tf domain.Timeframe, out chan<- ClosedCandle) error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 15 * time.Second

	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	sub := map[string]interface{}{"op": "subscribe", "args": topics}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.log.Info().Strs("topics", topics).Msg("stream subscribed")

	// Bybit drops idle connections; the protocol expects an op-level
	// ping rather than a websocket control frame.
	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(20 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-pingDone:
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteJSON(map[string]string{"op": "ping"}); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Debug().Err(err).Msg("skipping undecodable frame")
			continue
		}
		if msg.Op != "" {
			if msg.Op == "subscribe" && !msg.Success {
				return fmt.Errorf("subscribe rejected: %s", msg.RetMsg)
			}
			continue
		}
		if !strings.HasPrefix(msg.Topic, "kline.") {
			continue
		}
		parts := strings.SplitN(msg.Topic, ".", 3)
		if len(parts) != 3 {
			continue
		}
		symbol := parts[2]

		for _, k := range msg.Data {
			if !k.Confirm {
				continue
			}
			c, err := parseStreamCandle(k.Start, k.Open, k.High, k.Low, k.Close, k.Volume)
			if err != nil {
				s.log.Debug().Err(err).Str("symbol", symbol).Msg("skipping malformed kline")
				continue
			}
			select {
			case out <- ClosedCandle{Symbol: symbol, TF: tf, Candle: c}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func parseStreamCandle(startMs int64, o, h, l, c, v string) (domain.Candle, error) {
	fields := [5]string{o, h, l, c, v}
	var vals [5]float64
	for i, f := range fields {
		parsed, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("bybit: kline field %q: %w", f, err)
		}
		vals[i] = parsed
	}
	return domain.Candle{
		Timestamp: time.UnixMilli(startMs).UTC(),
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}

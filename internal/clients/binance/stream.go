package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"nhooyr.io/websocket"
)

const (
	// MainnetStreamURL is the production market stream endpoint
	MainnetStreamURL = "wss://stream.binance.com:9443"
	// TestnetStreamURL is the spot testnet market stream endpoint
	TestnetStreamURL = "wss://stream.testnet.binance.vision"

	dialTimeout = 30 * time.Second

	baseReconnectDelay = 2 * time.Second
	maxReconnectDelay  = 2 * time.Minute

	// Prices older than this are not served.
	priceStaleThreshold = 5 * time.Minute
)

type tick struct {
	price decimal.Decimal
	at    time.Time
}

// PriceStream keeps the latest close of each symbol from the combined
// <symbol>@miniTicker stream.
type PriceStream struct {
	url     string
	symbols []string
	log     zerolog.Logger

	mu     sync.RWMutex
	prices map[string]tick

	now func() time.Time
}

// NewPriceStream creates a stream for the given symbols. baseURL is one of
// MainnetStreamURL or TestnetStreamURL (or a test server).
func NewPriceStream(baseURL string, symbols []string, log zerolog.Logger) *PriceStream {
	return &PriceStream{
		url:     streamURL(baseURL, symbols),
		symbols: symbols,
		prices:  make(map[string]tick),
		now:     time.Now,
		log:     log.With().Str("component", "binance_price_stream").Logger(),
	}
}

func streamURL(baseURL string, symbols []string) string {
	streams := make([]string, len(symbols))
	for i, s := range symbols {
		streams[i] = strings.ToLower(s) + "@miniTicker"
	}
	return strings.TrimRight(baseURL, "/") + "/stream?streams=" + strings.Join(streams, "/")
}

// Latest returns the most recent close for symbol if it is fresh.
func (s *PriceStream) Latest(symbol string) (decimal.Decimal, bool) {
	s.mu.RLock()
	t, ok := s.prices[symbol]
	s.mu.RUnlock()
	if !ok || s.now().Sub(t.at) > priceStaleThreshold {
		return decimal.Decimal{}, false
	}
	return t.price, true
}

// Run connects and reads until ctx is cancelled, reconnecting with
// exponential backoff after every disconnect.
func (s *PriceStream) Run(ctx context.Context) {
	delay := baseReconnectDelay
	for {
		connectedAt := time.Now()
		err := s.session(ctx)
		if ctx.Err() != nil {
			s.log.Info().Msg("Price stream stopped")
			return
		}

		// A session that stayed up for a while resets the backoff.
		if time.Since(connectedAt) > maxReconnectDelay {
			delay = baseReconnectDelay
		}
		s.log.Warn().Err(err).Dur("retry_in", delay).Msg("Price stream disconnected")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (s *PriceStream) session(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	conn, _, err := websocket.Dial(dialCtx, s.url, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to dial price stream: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	s.log.Info().Int("symbols", len(s.symbols)).Msg("Connected to price stream")

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read failed: %w", err)
		}
		if msgType != websocket.MessageText {
			continue
		}
		if err := s.handleMessage(data); err != nil {
			s.log.Debug().Err(err).Msg("Ignoring malformed stream message")
		}
	}
}

type combinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type miniTicker struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Close     string `json:"c"`
}

func (s *PriceStream) handleMessage(data []byte) error {
	var msg combinedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse message: %w", err)
	}
	var ticker miniTicker
	if err := json.Unmarshal(msg.Data, &ticker); err != nil {
		return fmt.Errorf("failed to parse ticker: %w", err)
	}
	if ticker.Symbol == "" {
		return fmt.Errorf("ticker without symbol on stream %q", msg.Stream)
	}
	price, err := decimal.NewFromString(ticker.Close)
	if err != nil {
		return fmt.Errorf("invalid close %q for %s: %w", ticker.Close, ticker.Symbol, err)
	}

	s.mu.Lock()
	s.prices[ticker.Symbol] = tick{price: price, at: s.now()}
	s.mu.Unlock()
	return nil
}

package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"spreadbot-go/internal/market"
)

const defaultStaleAfter = 3 * time.Second

// WSQuoteSource keeps a venue's book-ticker stream open and caches the
// latest bid/ask. GetQuote serves from the cache but refuses quotes older
// than staleAfter, so a dropped stream degrades to skipped ticks rather
// than stale spreads.
type WSQuoteSource struct {
	name       market.Venue
	url        string
	token      string
	staleAfter time.Duration
	log        zerolog.Logger

	mu     sync.RWMutex
	latest market.Quote
}

// NewWSQuoteSource builds a websocket-backed quote source. Run must be
// started for quotes to flow.
func NewWSQuoteSource(name market.Venue, url, token string, staleAfter time.Duration, log zerolog.Logger) *WSQuoteSource {
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &WSQuoteSource{
		name:       name,
		url:        url,
		token:      token,
		staleAfter: staleAfter,
		log:        log,
	}
}

// GetQuote returns the most recent cached quote, or an error when no
// fresh quote is available this tick.
func (w *WSQuoteSource) GetQuote(_ context.Context, token string) (market.Quote, error) {
	w.mu.RLock()
	quote := w.latest
	w.mu.RUnlock()

	if quote.Ts.IsZero() {
		return market.Quote{}, fmt.Errorf("%s: no quote received yet", w.name)
	}
	if age := time.Since(quote.Ts); age > w.staleAfter {
		return market.Quote{}, fmt.Errorf("%s: quote stale by %s", w.name, age)
	}
	if quote.Token != token {
		return market.Quote{}, fmt.Errorf("%s: subscribed to %s, asked for %s", w.name, quote.Token, token)
	}
	return quote, nil
}

type bookTickerMessage struct {
	Bid string `json:"bid"`
	Ask string `json:"ask"`
	Ts  int64  `json:"ts"`
}

// Run keeps the stream connected until the context is canceled,
// reconnecting with exponential backoff.
func (w *WSQuoteSource) Run(ctx context.Context) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Warn().Err(err).Str("venue", string(w.name)).Msg("quote stream disconnected, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
			continue
		}
		return nil
	}
}

func (w *WSQuoteSource) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	w.log.Info().Str("venue", string(w.name)).Str("token", w.token).Msg("connected quote stream")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					w.log.Warn().Err(err).Str("venue", string(w.name)).Msg("ping failed")
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg bookTickerMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			w.log.Warn().Err(err).Str("venue", string(w.name)).Msg("failed to decode book ticker")
			continue
		}

		bid, errBid := strconv.ParseFloat(msg.Bid, 64)
		ask, errAsk := strconv.ParseFloat(msg.Ask, 64)
		if errBid != nil || errAsk != nil || bid <= 0 || ask <= 0 {
			continue
		}

		w.mu.Lock()
		w.latest = market.Quote{
			Venue: w.name,
			Token: w.token,
			Bid:   bid,
			Ask:   ask,
			Ts:    time.Now(),
		}
		w.mu.Unlock()
	}
}

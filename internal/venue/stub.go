package venue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"spreadbot-go/internal/market"
)

// Stub is an in-memory venue for dry runs and tests. Quotes are scripted
// or set directly; orders always fill and are tracked as signed exposure
// so reconciliation behaves like it would against a real venue.
type Stub struct {
	name market.Venue

	mu       sync.Mutex
	quote    market.Quote
	quoteErr error
	orderErr error
	exposure float64
	orderSeq int
	orders   []OrderRequest
}

// NewStub builds an empty stub venue.
func NewStub(name market.Venue) *Stub { return &Stub{name: name} }

// SetQuote installs the quote returned on the next GetQuote calls.
func (s *Stub) SetQuote(bid, ask float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quote = market.Quote{Venue: s.name, Bid: bid, Ask: ask, Ts: time.Now()}
	s.quoteErr = nil
}

// FailQuote makes GetQuote return an error until SetQuote is called.
func (s *Stub) FailQuote(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quoteErr = err
}

// GetQuote returns the scripted quote.
func (s *Stub) GetQuote(_ context.Context, token string) (market.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quoteErr != nil {
		return market.Quote{}, s.quoteErr
	}
	if !s.quote.Valid() {
		return market.Quote{}, fmt.Errorf("%s: no quote scripted", s.name)
	}
	q := s.quote
	q.Token = token
	q.Ts = time.Now()
	return q, nil
}

// FailOrders makes PlaceOrder return an error until called with nil.
func (s *Stub) FailOrders(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderErr = err
}

// Orders returns every request PlaceOrder accepted, in order.
func (s *Stub) Orders() []OrderRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]OrderRequest, len(s.orders))
	copy(out, s.orders)
	return out
}

// PlaceOrder fills unless failure is scripted, adjusting the stub's
// signed exposure.
func (s *Stub) PlaceOrder(_ context.Context, req OrderRequest) (OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.Venue != s.name {
		return OrderResult{}, fmt.Errorf("wrong venue: stub is %s, asked for %s", s.name, req.Venue)
	}
	if s.orderErr != nil {
		return OrderResult{}, s.orderErr
	}
	s.orders = append(s.orders, req)
	if req.Side == market.Buy {
		s.exposure += req.Size
	} else {
		s.exposure -= req.Size
	}
	s.orderSeq++
	return OrderResult{
		OrderID:    fmt.Sprintf("%s-%d", s.name, s.orderSeq),
		FilledSize: req.Size,
	}, nil
}

// GetOpenPosition reports the accumulated stub exposure.
func (s *Stub) GetOpenPosition(_ context.Context, v market.Venue, _ string) (Exposure, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v != s.name {
		return Exposure{}, false, fmt.Errorf("wrong venue: stub is %s, asked for %s", s.name, v)
	}
	if s.exposure == 0 {
		return Exposure{}, false, nil
	}
	return Exposure{Size: s.exposure}, true, nil
}

// SetExposure overrides the stub's reported position, for crash-recovery
// scenarios.
func (s *Stub) SetExposure(size float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exposure = size
}

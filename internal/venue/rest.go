package venue

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"spreadbot-go/internal/market"
)

// RESTClient adapts one venue's v1 HTTP API into the core contracts. It
// implements both QuoteSource and OrderGateway for its venue.
type RESTClient struct {
	name market.Venue
	http *resty.Client
}

// NewRESTClient builds a client for the named venue. The apiKey may be
// empty for public endpoints; request signing lives behind the venue's
// own gateway and is out of scope here.
func NewRESTClient(name market.Venue, baseURL, apiKey string, timeout time.Duration) *RESTClient {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetHeader("X-Api-Key", apiKey)
	}
	return &RESTClient{name: name, http: client}
}

type bookResponse struct {
	Bid float64 `json:"bid"`
	Ask float64 `json:"ask"`
	Ts  int64   `json:"ts"`
}

// GetQuote fetches the current top of book. One-sided books are rejected
// so a stale or empty side can never feed a spread.
func (c *RESTClient) GetQuote(ctx context.Context, token string) (market.Quote, error) {
	var book bookResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&book).
		Get("/v1/book/" + token)
	if err != nil {
		return market.Quote{}, fmt.Errorf("%s quote: %w", c.name, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return market.Quote{}, fmt.Errorf("%s quote: status %d", c.name, resp.StatusCode())
	}

	quote := market.Quote{
		Venue: c.name,
		Token: token,
		Bid:   book.Bid,
		Ask:   book.Ask,
		Ts:    time.UnixMilli(book.Ts),
	}
	if !quote.Valid() {
		return market.Quote{}, fmt.Errorf("%s quote: one-sided book (bid=%.2f ask=%.2f)", c.name, book.Bid, book.Ask)
	}
	return quote, nil
}

type orderRequestBody struct {
	Token    string  `json:"token"`
	Side     string  `json:"side"`
	Size     float64 `json:"size"`
	Leverage int     `json:"leverage"`
}

type orderResponse struct {
	OrderID    string  `json:"order_id"`
	FilledSize float64 `json:"filled_size"`
}

// PlaceOrder submits a market order for one leg. The caller bounds the
// call with its own per-leg timeout context.
func (c *RESTClient) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	var ack orderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(orderRequestBody{
			Token:    req.Token,
			Side:     string(req.Side),
			Size:     req.Size,
			Leverage: req.Leverage,
		}).
		SetResult(&ack).
		Post("/v1/orders")
	if err != nil {
		return OrderResult{}, fmt.Errorf("%s order: %w", c.name, err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		return OrderResult{}, fmt.Errorf("%s order: status %d: %s", c.name, resp.StatusCode(), resp.String())
	}
	if ack.OrderID == "" {
		return OrderResult{}, fmt.Errorf("%s order: empty order id in response", c.name)
	}
	return OrderResult{OrderID: ack.OrderID, FilledSize: ack.FilledSize}, nil
}

type positionResponse struct {
	Size       float64 `json:"size"`
	EntryPrice float64 `json:"entry_price"`
}

// GetOpenPosition reports the venue's real open position for the token.
// A 404 means flat.
func (c *RESTClient) GetOpenPosition(ctx context.Context, v market.Venue, token string) (Exposure, bool, error) {
	if v != c.name {
		return Exposure{}, false, fmt.Errorf("wrong venue: client is %s, asked for %s", c.name, v)
	}
	var pos positionResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&pos).
		Get("/v1/positions/" + token)
	if err != nil {
		return Exposure{}, false, fmt.Errorf("%s position: %w", c.name, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return Exposure{}, false, nil
	}
	if resp.StatusCode() != http.StatusOK {
		return Exposure{}, false, fmt.Errorf("%s position: status %d", c.name, resp.StatusCode())
	}
	if pos.Size == 0 {
		return Exposure{}, false, nil
	}
	return Exposure{Size: pos.Size, EntryPrice: pos.EntryPrice}, true, nil
}

// Package catalogclient resolves variant prices against a remote catalog
// service over HTTP, behind a circuit breaker.
package catalogclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// ErrNotFound the remote catalog does not know the product or combination
var ErrNotFound = errors.New("variant not found")

const variantPricePath = "/api/products/variant-price"

type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[decimal.Decimal]
	log     *zap.Logger
}

func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log,
	}
	c.breaker = gobreaker.NewCircuitBreaker[decimal.Decimal](gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// a missing variant is an answer, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

type variantPriceRequest struct {
	ProductID            string            `json:"productId"`
	VariationCombination map[string]string `json:"variationCombination"`
}

type variantPriceResponse struct {
	Success bool            `json:"success"`
	Price   decimal.Decimal `json:"price"`
	Error   string          `json:"error"`
}

func (c *Client) VariantPrice(ctx context.Context, productID string, combination map[string]string) (decimal.Decimal, error) {
	return c.breaker.Execute(func() (decimal.Decimal, error) {
		return c.fetch(ctx, productID, combination)
	})
}

func (c *Client) fetch(ctx context.Context, productID string, combination map[string]string) (decimal.Decimal, error) {
	body, err := json.Marshal(variantPriceRequest{ProductID: productID, VariationCombination: combination})
	if err != nil {
		return decimal.Zero, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+variantPricePath, bytes.NewReader(body))
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	var out variantPriceResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return decimal.Zero, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return decimal.Zero, fmt.Errorf("catalog responded %d: %s", resp.StatusCode, out.Error)
	case decodeErr != nil:
		return decimal.Zero, fmt.Errorf("decode catalog response: %w", decodeErr)
	case !out.Success:
		return decimal.Zero, ErrNotFound
	}
	return out.Price, nil
}

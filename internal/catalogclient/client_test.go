package catalogclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClient_VariantPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, variantPricePath, r.URL.Path)
		var req variantPriceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.ProductID != "p1" || req.VariationCombination["Size"] != "M" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"success":false,"error":"not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"price":22.5}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", time.Second, zap.NewNop())

	price, err := c.VariantPrice(context.Background(), "p1", map[string]string{"Size": "M"})
	require.NoError(t, err)
	assert.Equal(t, "22.5", price.String())

	_, err = c.VariantPrice(context.Background(), "p1", map[string]string{"Size": "XXL"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_NotFoundDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, zap.NewNop())
	for i := 0; i < 10; i++ {
		_, err := c.VariantPrice(context.Background(), "p1", nil)
		require.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, c.breaker.State())
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, zap.NewNop())
	for i := 0; i < 5; i++ {
		_, err := c.VariantPrice(context.Background(), "p1", nil)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, c.breaker.State())

	_, err := c.VariantPrice(context.Background(), "p1", nil)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState), "got %v", err)
	assert.Equal(t, int32(5), calls.Load())
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := New(srv.URL, 50*time.Millisecond, zap.NewNop())
	_, err := c.VariantPrice(context.Background(), "p1", nil)
	assert.Error(t, err)
}

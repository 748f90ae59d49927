package upbit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"wonfolio-api/pkg/pricing"
)

func TestProviderFetchQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ticker", r.URL.Path)
		require.Equal(t, "KRW-BTC", r.URL.Query().Get("markets"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"market": "KRW-BTC", "trade_price": 50000000.0}]`))
	}))
	defer server.Close()

	provider := NewProvider("upbit", WithBaseURL(server.URL))
	v, err := provider.FetchQuote(context.Background(), "BTC")
	require.NoError(t, err)
	require.True(t, v.Equal(decimal.NewFromInt(50_000_000)))
}

func TestProviderEmptyTickerList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	provider := NewProvider("upbit", WithBaseURL(server.URL))
	_, err := provider.FetchQuote(context.Background(), "NOPE")
	require.ErrorIs(t, err, pricing.ErrNoQuote)
}

func TestProviderErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	provider := NewProvider("upbit", WithBaseURL(server.URL))
	_, err := provider.FetchQuote(context.Background(), "BTC")
	require.Error(t, err)
}

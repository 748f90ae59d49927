package finnhub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"wonfolio-api/pkg/pricing"
)

func TestClientFetchQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/quote", r.URL.Path)
		require.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		require.Equal(t, "test-key", r.URL.Query().Get("token"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"c": 195.89, "pc": 194.50}`))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	quote, err := client.FetchQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	require.InDelta(t, 195.89, quote.Current, 1e-9)
}

func TestClientFetchQuoteErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	_, err := client.FetchQuote(context.Background(), "AAPL")
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}

func TestProviderWithoutKeyFailsFast(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("keyless provider must not reach the network")
	}))
	defer server.Close()

	provider := NewProvider("finnhub", "", WithBaseURL(server.URL))
	_, err := provider.FetchQuote(context.Background(), "AAPL")
	require.ErrorIs(t, err, pricing.ErrMissingCredential)
}

func TestProviderReturnsZeroQuoteVerbatim(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"c": 0, "pc": 0}`))
	}))
	defer server.Close()

	// Unknown symbols come back as a literal zero; classifying that as
	// no-data is the chain's job, not the adapter's.
	provider := NewProvider("finnhub", "test-key", WithBaseURL(server.URL))
	v, err := provider.FetchQuote(context.Background(), "NOPE")
	require.NoError(t, err)
	require.True(t, v.Equal(decimal.Zero))
}

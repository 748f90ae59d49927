package stooq

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"wonfolio-api/pkg/pricing"
)

const sampleCSV = `Symbol,Date,Time,Open,High,Low,Close,Volume
AAPL.US,2024-01-10,22:00:11,186.06,187.05,183.62,186.19,60943699
`

func TestProviderFetchQuote(t *testing.T) {
	var requested string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Query().Get("s")
		w.Write([]byte(sampleCSV))
	}))
	defer server.Close()

	provider := NewProvider("stooq", WithBaseURL(server.URL))
	v, err := provider.FetchQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, "aapl.us", requested, "plain tickers gain the .us suffix")
	require.True(t, v.Equal(decimal.NewFromFloat(186.19)))
}

func TestProviderKeepsExplicitSuffix(t *testing.T) {
	var requested string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Query().Get("s")
		w.Write([]byte(sampleCSV))
	}))
	defer server.Close()

	provider := NewProvider("stooq", WithBaseURL(server.URL))
	_, err := provider.FetchQuote(context.Background(), "SPY.UK")
	require.NoError(t, err)
	require.Equal(t, "spy.uk", requested)
}

func TestProviderNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Symbol,Date,Time,Open,High,Low,Close,Volume\nNOPE.US,N/D,N/D,N/D,N/D,N/D,N/D,N/D\n"))
	}))
	defer server.Close()

	provider := NewProvider("stooq", WithBaseURL(server.URL))
	_, err := provider.FetchQuote(context.Background(), "NOPE")
	require.ErrorIs(t, err, pricing.ErrNoQuote)
}

func TestProviderMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Symbol,Date\n"))
	}))
	defer server.Close()

	provider := NewProvider("stooq", WithBaseURL(server.URL))
	_, err := provider.FetchQuote(context.Background(), "AAPL")
	require.Error(t, err)
	require.NotErrorIs(t, err, pricing.ErrNoQuote)
}

package snapshot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"chart-observer/src/helpers"
	"chart-observer/src/models"
	"chart-observer/src/network"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoader(t *testing.T, handler http.HandlerFunc) *Loader {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &models.MConfig{Backend: models.MBackendConfig{RestURL: srv.URL + "/api/v1/", RequestTimeout: 5}}
	nm, err := network.NewAsyncNetworkManager(cfg, nil)
	require.NoError(t, err)
	return NewLoader(cfg, nm, nil)
}

var btc5m = models.MSelection{Symbol: "BTCUSDT", Interval: models.Interval5m}

func TestLoad_Success(t *testing.T) {
	var gotPath, gotInterval, gotLimit string
	l := newTestLoader(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotInterval = r.URL.Query().Get("interval")
		gotLimit = r.URL.Query().Get("limit")
		w.Write([]byte(`{"symbol":"BTCUSDT","data":[
			{"time":300,"open":1,"high":2,"low":0.5,"close":1.5,"volume":10,"close_time":599999},
			{"time":600,"open":1.5,"high":3,"low":1,"close":2}]}`))
	})

	candles, err := l.Load(context.Background(), btc5m, 200)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/klines/BTCUSDT", gotPath)
	assert.Equal(t, "5m", gotInterval)
	assert.Equal(t, "200", gotLimit)
	assert.Equal(t, []models.MCandle{
		{Time: 300, Open: 1, High: 2, Low: 0.5, Close: 1.5},
		{Time: 600, Open: 1.5, High: 3, Low: 1, Close: 2},
	}, candles)
}

func TestLoad_EscapesSymbol(t *testing.T) {
	var gotRaw string
	l := newTestLoader(t, func(w http.ResponseWriter, r *http.Request) {
		gotRaw = r.URL.EscapedPath()
		w.Write([]byte(`{"data":[]}`))
	})

	candles, err := l.Load(context.Background(), models.MSelection{Symbol: "BTC/USDT", Interval: models.Interval15m}, 10)
	require.NoError(t, err)
	assert.Empty(t, candles)
	assert.Equal(t, "/api/v1/klines/BTC%2FUSDT", gotRaw)
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		reason helpers.FetchReason
	}{
		{"non-200", http.StatusInternalServerError, `{"data":[]}`, helpers.FetchReasonStatus},
		{"invalid json", http.StatusOK, `<html>`, helpers.FetchReasonPayload},
		{"missing data", http.StatusOK, `{"symbol":"BTCUSDT"}`, helpers.FetchReasonPayload},
		{"backend error", http.StatusOK, `{"error":"Invalid symbol."}`, helpers.FetchReasonBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLoader(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			candles, err := l.Load(context.Background(), btc5m, 200)
			assert.Nil(t, candles)

			var fetchErr *helpers.FetchError
			require.True(t, errors.As(err, &fetchErr), "got %v", err)
			assert.Equal(t, tt.reason, fetchErr.Reason)
		})
	}
}

func TestLoad_StatusCodeCarried(t *testing.T) {
	l := newTestLoader(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := l.Load(context.Background(), btc5m, 200)
	var fetchErr *helpers.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
}

func TestLoad_NetworkFailure(t *testing.T) {
	l := newTestLoader(t, func(w http.ResponseWriter, r *http.Request) {})
	l.BaseURL = "http://127.0.0.1:1"

	_, err := l.Load(context.Background(), btc5m, 200)
	var fetchErr *helpers.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, helpers.FetchReasonNetwork, fetchErr.Reason)
}

func TestLoad_UnorderedPassedThrough(t *testing.T) {
	l := newTestLoader(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"time":600},{"time":300}]}`))
	})

	candles, err := l.Load(context.Background(), btc5m, 200)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(600), candles[0].Time)
}

func TestSymbols(t *testing.T) {
	l := newTestLoader(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/symbols", r.URL.Path)
		w.Write([]byte(`{"data":["ETHUSDT","BTCUSDT"]}`))
	})

	symbols, err := l.Symbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ETHUSDT", "BTCUSDT"}, symbols)
}

func TestSymbols_BackendError(t *testing.T) {
	l := newTestLoader(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"rate limited"}`))
	})

	_, err := l.Symbols(context.Background())
	var fetchErr *helpers.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, helpers.FetchReasonBackend, fetchErr.Reason)
}

func TestDefaultSelection(t *testing.T) {
	tests := []struct {
		name    string
		symbols []string
		want    models.MSelection
	}{
		{"preferred listed", []string{"ETHUSDT", "btcusdt"}, btc5m},
		{"fallback to first", []string{"ETHUSDT", "SOLUSDT"}, models.MSelection{Symbol: "ETHUSDT", Interval: models.Interval5m}},
		{"empty list", nil, btc5m},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultSelection(btc5m, tt.symbols))
		})
	}
}

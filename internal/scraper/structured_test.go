package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"commodity-price-portal/internal/clock"
	"commodity-price-portal/internal/models"
	"commodity-price-portal/internal/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)

func newStructured(endpoints ...string) *StructuredAdapter {
	return NewStructuredAdapter(StructuredConfig{
		Endpoints: endpoints,
		Timeout:   2 * time.Second,
		UserAgent: "test-agent",
	}, nil, clock.NewFakeClock(fixedNow), zap.NewNop())
}

func serveJSON(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func requireCause(t *testing.T, err error, want Cause) *FetchFailure {
	t.Helper()
	require.Error(t, err)
	var ff *FetchFailure
	require.ErrorAs(t, err, &ff)
	assert.Equal(t, want, ff.Cause)
	return ff
}

func TestStructuredParsesArrayPayload(t *testing.T) {
	srv := serveJSON(t, http.StatusOK, `[
		{"komoditas": "Beras Medium", "provinsi": "Jawa Barat", "harga": "Rp 12.500", "satuan": "kg", "tanggal": "2024-03-04"},
		{"commodity": "Gula Pasir", "region": "Bali", "price": 17250, "unit": "kg"},
		{"commodity": "Telur Ayam", "region": "Aceh", "price": null},
		{"commodity": "", "region": "Aceh", "price": 100}
	]`)

	obs, err := newStructured(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 2)

	assert.Equal(t, "Beras Medium", obs[0].CommodityLabel)
	assert.Equal(t, "Jawa Barat", obs[0].RegionLabel)
	assert.Equal(t, int64(12500), obs[0].Price)
	assert.Equal(t, "kg", obs[0].Unit)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), obs[0].ObservedAt)
	assert.Equal(t, srv.URL, obs[0].SourceRef)

	assert.Equal(t, int64(17250), obs[1].Price)
	assert.Equal(t, fixedNow, obs[1].ObservedAt)
}

func TestStructuredParsesWrappedPayload(t *testing.T) {
	srv := serveJSON(t, http.StatusOK, `{"status": "ok", "data": [
		{"name": "Cabai Rawit", "province": "Papua", "value": "45,000"}
	]}`)

	obs, err := newStructured(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, int64(45000), obs[0].Price)
}

func TestStructuredSendsBrowserHeaders(t *testing.T) {
	var ua, accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua, accept = r.UserAgent(), r.Header.Get("Accept")
		_, _ = w.Write([]byte(`[{"commodity":"beras","region":"aceh","price":1}]`))
	}))
	defer srv.Close()

	_, err := newStructured(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-agent", ua)
	assert.Contains(t, accept, "application/json")
}

func TestStructuredHTTPStatusFailure(t *testing.T) {
	srv := serveJSON(t, http.StatusServiceUnavailable, `{"error":"maintenance"}`)

	_, err := newStructured(srv.URL).Fetch(context.Background())
	ff := requireCause(t, err, CauseHTTPStatus)
	assert.Equal(t, http.StatusServiceUnavailable, ff.StatusCode)
}

func TestStructuredParseFailures(t *testing.T) {
	for name, body := range map[string]string{
		"not json":       `<html>blocked</html>`,
		"empty array":    `[]`,
		"no usable rows": `[{"commodity":"beras"}]`,
		"null data":      `{"data": null}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := serveJSON(t, http.StatusOK, body)
			_, err := newStructured(srv.URL).Fetch(context.Background())
			requireCause(t, err, CauseParse)
		})
	}
}

func TestStructuredNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newStructured(url).Fetch(context.Background())
	requireCause(t, err, CauseNetwork)
}

func TestStructuredNoEndpoints(t *testing.T) {
	_, err := newStructured().Fetch(context.Background())
	requireCause(t, err, CauseNetwork)
}

func TestStructuredCombinesEndpointsAndPaces(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`[{"commodity":"beras","region":"aceh","price":11000}]`))
	})
	a := httptest.NewServer(handler)
	defer a.Close()
	b := httptest.NewServer(handler)
	defer b.Close()

	adapter := NewStructuredAdapter(StructuredConfig{Endpoints: []string{a.URL, b.URL}},
		ratelimit.NewPacer(10*time.Millisecond, 0), clock.NewFakeClock(fixedNow), zap.NewNop())

	obs, err := adapter.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, obs, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, a.URL, obs[0].SourceRef)
	assert.Equal(t, b.URL, obs[1].SourceRef)
}

func TestStructuredOneFailingEndpointFailsFetch(t *testing.T) {
	good := serveJSON(t, http.StatusOK, `[{"commodity":"beras","region":"aceh","price":11000}]`)
	bad := serveJSON(t, http.StatusBadGateway, ``)

	_, err := newStructured(good.URL, bad.URL).Fetch(context.Background())
	requireCause(t, err, CauseHTTPStatus)
}

func TestStructuredIdentity(t *testing.T) {
	a := newStructured()
	assert.Equal(t, "structured", a.Name())
	assert.Equal(t, models.StrategyStructured, a.Strategy())
}

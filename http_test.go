package txgateway

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/outofforest/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/outofforest/txgateway/pkg/sim"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(handler http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(method, path, body))
	return resp
}

func TestHTTPPing(t *testing.T) {
	requireT := require.New(t)
	ctx := sim.NewContext(t)

	g, _ := newTestGateway(t, fixedRoute(), acceptingPlacer())
	resp := serve(NewHTTPHandler(ctx, g, HTTPConfig{}, nil), http.MethodGet, "/ping", nil)

	requireT.Equal(http.StatusOK, resp.Code)
	requireT.Equal("pong", resp.Body.String())
}

func TestHTTPRouteSwap(t *testing.T) {
	requireT := require.New(t)
	ctx := sim.NewContext(t)

	g, metrics := newTestGateway(t, fixedRoute(), acceptingPlacer())
	resp := serve(NewHTTPHandler(ctx, g, HTTPConfig{}, nil), http.MethodPost, "/route", strings.NewReader(swapTx("1000", "buy")))

	requireT.Equal(http.StatusOK, resp.Code)
	requireT.Equal("0x0102:0x0", resp.Body.String())
	requireT.NotEmpty(resp.Header().Get(RequestIDHeader))
	requireT.InDelta(1, testutil.ToFloat64(metrics.Requests.WithLabelValues(TransportHTTP, "swap", "success")), 0)
}

func TestHTTPRouteOrder(t *testing.T) {
	requireT := require.New(t)
	ctx := sim.NewContext(t)

	g, _ := newTestGateway(t, fixedRoute(), acceptingPlacer())
	resp := serve(NewHTTPHandler(ctx, g, HTTPConfig{}, nil), http.MethodPost, "/route",
		strings.NewReader(orderTx("binance", "sell", "k:s")))

	requireT.Equal(http.StatusOK, resp.Code)
	requireT.Equal(AckMarker, resp.Body.String())
}

func TestHTTPRequestIDIsEchoed(t *testing.T) {
	requireT := require.New(t)
	ctx := sim.NewContext(t)

	g, _ := newTestGateway(t, fixedRoute(), acceptingPlacer())
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	resp := httptest.NewRecorder()
	NewHTTPHandler(ctx, g, HTTPConfig{}, nil).ServeHTTP(resp, req)

	requireT.Equal("req-1", resp.Header().Get(RequestIDHeader))
}

func TestHTTPRouteWithoutBody(t *testing.T) {
	requireT := require.New(t)
	ctx := sim.NewContext(t)

	g, _ := newTestGateway(t, fixedRoute(), acceptingPlacer())
	normalize := g.normalize
	var normalized int
	g.normalize = func(raw RawTransaction, variant Variant) (TransactionRequest, error) {
		normalized++
		return normalize(raw, variant)
	}
	handler := NewHTTPHandler(ctx, g, HTTPConfig{}, nil)

	for _, body := range []io.Reader{nil, strings.NewReader(""), strings.NewReader(" \n")} {
		resp := serve(handler, http.MethodPost, "/route", body)
		requireT.Equal(http.StatusBadRequest, resp.Code)
	}
	requireT.Zero(normalized)

	resp := serve(handler, http.MethodPost, "/route", strings.NewReader(swapTx("1", "buy")))
	requireT.Equal(http.StatusOK, resp.Code)
	requireT.Equal(1, normalized)
}

func TestHTTPRouteBodyTooLarge(t *testing.T) {
	requireT := require.New(t)
	ctx := sim.NewContext(t)

	g, metrics := newTestGateway(t, fixedRoute(), acceptingPlacer())
	handler := NewHTTPHandler(ctx, g, HTTPConfig{MaxBodySize: 64}, nil)

	resp := serve(handler, http.MethodPost, "/route", strings.NewReader(swapTx("1000", "buy")))
	requireT.Equal(http.StatusRequestEntityTooLarge, resp.Code)
	requireT.InDelta(1, testutil.ToFloat64(metrics.Requests.WithLabelValues(TransportHTTP, "unknown", "malformed_input")), 0)

	handler = NewHTTPHandler(ctx, g, HTTPConfig{MaxBodySize: 1024}, nil)
	resp = serve(handler, http.MethodPost, "/route", strings.NewReader(swapTx("1000", "buy")))
	requireT.Equal(http.StatusOK, resp.Code)
}

func TestHTTPCredentialsAreNotLogged(t *testing.T) {
	requireT := require.New(t)

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := logger.WithLogger(sim.NewContext(t), zap.New(core))

	g, _ := newTestGateway(t, fixedRoute(), acceptingPlacer())
	body := orderTx("binance", "sell", `key:-----BEGIN KEY-----\nTOPSECRET\n-----END KEY-----`)
	requireT.Contains(body, `\\n`)

	resp := serve(NewHTTPHandler(ctx, g, HTTPConfig{}, nil), http.MethodPost, "/route", strings.NewReader(body))
	requireT.Equal(http.StatusOK, resp.Code)

	entries := logs.FilterMessage("routing transaction").All()
	requireT.Len(entries, 1)
	requireT.Equal("<redacted>", entries[0].ContextMap()["transaction"].(RawTransaction).Credentials)

	for _, entry := range logs.All() {
		requireT.NotContains(entry.Message+fmt.Sprint(entry.ContextMap()), "TOPSECRET")
	}
}

func TestHTTPRouteNotFound(t *testing.T) {
	requireT := require.New(t)
	ctx := sim.NewContext(t)

	g, _ := newTestGateway(t, noRoute(), acceptingPlacer())
	resp := serve(NewHTTPHandler(ctx, g, HTTPConfig{}, nil), http.MethodPost, "/route", strings.NewReader(swapTx("1000", "buy")))

	requireT.Equal(http.StatusInternalServerError, resp.Code)
	requireT.Equal(ErrRouteNotFound.Error(), resp.Body.String())
}

func TestHTTPRouteFailures(t *testing.T) {
	requireT := require.New(t)
	ctx := sim.NewContext(t)

	placer := acceptingPlacer()
	g, metrics := newTestGateway(t, fixedRoute(), placer)
	handler := NewHTTPHandler(ctx, g, HTTPConfig{}, nil)

	for _, tc := range []struct {
		body    string
		message string
		reason  string
	}{
		{body: `{"amount":`, message: "malformed input", reason: "malformed_input"},
		{body: orderTx("shadyex", "buy", "k:s"), message: "provider not allowed", reason: "validation"},
		{body: orderTx("kucoin", "buy", "k:s"), message: "authentication failed", reason: "authentication"},
	} {
		resp := serve(handler, http.MethodPost, "/route", strings.NewReader(tc.body))
		requireT.Equal(http.StatusInternalServerError, resp.Code, tc.body)
		requireT.Contains(resp.Body.String(), tc.message, tc.body)
		requireT.NotContains(resp.Body.String(), "k:s")
	}
	requireT.EqualValues(0, placer.calls.Load())
	requireT.InDelta(1, testutil.ToFloat64(metrics.Requests.WithLabelValues(TransportHTTP, "order", "authentication")), 0)
	requireT.InDelta(1, testutil.ToFloat64(metrics.Requests.WithLabelValues(TransportHTTP, "unknown", "malformed_input")), 0)
}

func TestHTTPMetrics(t *testing.T) {
	requireT := require.New(t)
	ctx := sim.NewContext(t)

	registry := prometheus.NewRegistry()
	metrics, err := NewMetrics(registry)
	requireT.NoError(err)
	g, _ := newTestGateway(t, fixedRoute(), acceptingPlacer())
	g.metrics = metrics
	handler := NewHTTPHandler(ctx, g, HTTPConfig{}, registry)

	requireT.Equal(http.StatusOK, serve(handler, http.MethodPost, "/route", strings.NewReader(swapTx("1", "buy"))).Code)

	resp := serve(handler, http.MethodGet, "/metrics", nil)
	requireT.Equal(http.StatusOK, resp.Code)
	requireT.Contains(resp.Body.String(), `txgateway_requests_total{outcome="success",transport="http",variant="swap"} 1`)
}

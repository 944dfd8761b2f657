package txgateway

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	tokenA = "0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984"
	tokenB = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func swapTx(amount, action string) string {
	return fmt.Sprintf(
		`{"amount":%q,"action":%q,"pair":[{"address":%q,"decimals":18},{"address":%q,"decimals":6}]}`,
		amount, action, tokenA, tokenB)
}

func orderTx(provider, action, credentials string) string {
	return fmt.Sprintf(
		`{"amount":"0.5","action":%q,"pair":["BTC","USDT"],"provider":%q,"credentials":%q}`,
		action, provider, credentials)
}

type routeFinderStub struct {
	RouteFunc func(ctx context.Context, query SwapQuery) (*Route, error)
	calls     atomic.Int32
}

func (s *routeFinderStub) Route(ctx context.Context, query SwapQuery) (*Route, error) {
	s.calls.Add(1)
	return s.RouteFunc(ctx, query)
}

func fixedRoute() *routeFinderStub {
	return &routeFinderStub{
		RouteFunc: func(ctx context.Context, query SwapQuery) (*Route, error) {
			return &Route{Calldata: []byte{0x01, 0x02}, Value: big.NewInt(0)}, nil
		},
	}
}

func noRoute() *routeFinderStub {
	return &routeFinderStub{
		RouteFunc: func(ctx context.Context, query SwapQuery) (*Route, error) {
			return nil, nil
		},
	}
}

type orderPlacerStub struct {
	PlaceMarketOrderFunc func(ctx context.Context, order OrderCommand) (OrderAck, error)
	calls                atomic.Int32
}

func (s *orderPlacerStub) PlaceMarketOrder(ctx context.Context, order OrderCommand) (OrderAck, error) {
	s.calls.Add(1)
	return s.PlaceMarketOrderFunc(ctx, order)
}

func acceptingPlacer() *orderPlacerStub {
	return &orderPlacerStub{
		PlaceMarketOrderFunc: func(ctx context.Context, order OrderCommand) (OrderAck, error) {
			return OrderAck{Acknowledged: true, OrderID: "1"}, nil
		},
	}
}

func newTestNormalizer() *Normalizer {
	return NewNormalizer(NormalizerConfig{
		ChainID:          1,
		AllowedProviders: []string{"binance", "kucoin"},
		Now: func() time.Time {
			return testNow
		},
	})
}

func newTestGateway(t *testing.T, finder RouteFinder, placer OrderPlacer) (*Gateway, *Metrics) {
	requireT := require.New(t)

	order, err := NewExchangeOrderResolver(
		Venue{Name: "binance", Placer: placer},
		Venue{Name: "kucoin", RequiresPassword: true, Placer: placer},
	)
	requireT.NoError(err)

	registry, err := NewRegistry(NewSwapRouteResolver(finder), order)
	requireT.NoError(err)

	metrics, err := NewMetrics(prometheus.NewRegistry())
	requireT.NoError(err)

	return New(Config{ResolveTimeout: time.Second}, newTestNormalizer(), registry, metrics), metrics
}

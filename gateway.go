package txgateway

import (
	"context"
	"time"

	"github.com/outofforest/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultResolveTimeout is the time limit of a single resolver dispatch.
const DefaultResolveTimeout = 30 * time.Second

// Config is the configuration of the gateway.
type Config struct {
	ResolveTimeout time.Duration
}

// New creates new gateway.
func New(config Config, normalizer *Normalizer, registry *Registry, metrics *Metrics) *Gateway {
	if config.ResolveTimeout == 0 {
		config.ResolveTimeout = DefaultResolveTimeout
	}
	return &Gateway{
		config:    config,
		normalize: normalizer.Normalize,
		registry:  registry,
		metrics:   metrics,
	}
}

// Gateway runs the normalize, resolve and encode pipeline shared by all the transports.
type Gateway struct {
	config    Config
	normalize func(raw RawTransaction, variant Variant) (TransactionRequest, error)
	registry  *Registry
	metrics   *Metrics
}

// Route processes the transaction and returns encoded result.
func (g *Gateway) Route(ctx context.Context, raw RawTransaction, correlationToken string) ([]byte, error) {
	log := logger.Get(ctx)

	variant, err := raw.ResolveVariant()
	if err != nil {
		return nil, err
	}

	log.Debug("normalizing transaction", zap.String("variant", string(variant)))
	req, err := g.normalize(raw, variant)
	if err != nil {
		return nil, err
	}
	req.CorrelationToken = correlationToken

	resolver, err := g.registry.Get(variant)
	if err != nil {
		return nil, err
	}

	log.Debug("resolving transaction", zap.String("variant", string(variant)))
	result, err := g.resolve(ctx, resolver, req)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errors.WithStack(ErrRouteNotFound)
	}

	log.Debug("encoding result", zap.String("variant", string(variant)))
	return EncodeResult(result, req.CorrelationToken)
}

func (g *Gateway) resolve(ctx context.Context, resolver Resolver, req TransactionRequest) (*ResolverResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.ResolveTimeout)
	defer cancel()

	start := time.Now()
	result, err := resolver.Resolve(ctx, req)
	g.metrics.observeResolve(req.Variant, time.Since(start).Seconds())

	switch {
	case err == nil || isClassified(err):
		return result, err
	case errors.Is(err, context.DeadlineExceeded):
		return nil, errors.WithMessagef(&resolverFailure{cause: err}, "resolution timed out after %s",
			g.config.ResolveTimeout)
	default:
		return nil, errors.WithStack(&resolverFailure{cause: err})
	}
}

// RouteRecord decodes the stream record and processes it.
func (g *Gateway) RouteRecord(ctx context.Context, chunk []byte) (Variant, []byte, error) {
	record, err := Decode(chunk)
	if err != nil {
		return "", nil, err
	}
	raw, err := ParseRawTransaction(record.Payload)
	if err != nil {
		return "", nil, err
	}
	variant, _ := raw.ResolveVariant()

	ctx = logger.WithLogger(ctx, logger.Get(ctx).With(zap.String("correlationToken", record.CorrelationToken)))
	out, err := g.Route(ctx, raw, record.CorrelationToken)
	if err != nil {
		return variant, nil, errors.WithMessagef(err, "record %q", record.CorrelationToken)
	}
	return variant, out, nil
}

package txgateway

import (
	"context"

	"github.com/pkg/errors"
)

// Resolver converts canonical request into the result by calling external collaborator.
// Nil result with nil error means there is no viable route.
type Resolver interface {
	Variant() Variant
	Resolve(ctx context.Context, req TransactionRequest) (*ResolverResult, error)
}

// RouteFinder is the route optimizer. Nil route with nil error means no route was found.
type RouteFinder interface {
	Route(ctx context.Context, query SwapQuery) (*Route, error)
}

// OrderPlacer is the trading venue accepting market orders.
type OrderPlacer interface {
	PlaceMarketOrder(ctx context.Context, order OrderCommand) (OrderAck, error)
}

// NewSwapRouteResolver creates resolver of on-chain swaps.
func NewSwapRouteResolver(finder RouteFinder) *SwapRouteResolver {
	return &SwapRouteResolver{finder: finder}
}

// SwapRouteResolver resolves swaps using route optimizer.
type SwapRouteResolver struct {
	finder RouteFinder
}

// Variant returns the variant served by the resolver.
func (r *SwapRouteResolver) Variant() Variant {
	return VariantSwap
}

// Resolve finds the route for the swap.
func (r *SwapRouteResolver) Resolve(ctx context.Context, req TransactionRequest) (*ResolverResult, error) {
	if req.Swap == nil {
		return nil, errors.Wrap(ErrValidation, "request does not carry swap query")
	}

	route, err := r.finder.Route(ctx, *req.Swap)
	if err != nil {
		return nil, err
	}
	if route == nil {
		return nil, nil
	}
	return &ResolverResult{Variant: VariantSwap, Route: route}, nil
}

// Venue registers trading venue under its name together with its authentication requirements.
type Venue struct {
	Name             string
	RequiresID       bool
	RequiresPassword bool
	Placer           OrderPlacer
}

// NewExchangeOrderResolver creates resolver of exchange orders.
func NewExchangeOrderResolver(venues ...Venue) (*ExchangeOrderResolver, error) {
	r := &ExchangeOrderResolver{venues: make(map[string]Venue, len(venues))}
	for _, v := range venues {
		if v.Name == "" || v.Placer == nil {
			return nil, errors.Errorf("venue %q is incomplete", v.Name)
		}
		if _, exists := r.venues[v.Name]; exists {
			return nil, errors.Errorf("venue %q registered twice", v.Name)
		}
		r.venues[v.Name] = v
	}
	return r, nil
}

// ExchangeOrderResolver places market orders on registered venues.
type ExchangeOrderResolver struct {
	venues map[string]Venue
}

// Variant returns the variant served by the resolver.
func (r *ExchangeOrderResolver) Variant() Variant {
	return VariantOrder
}

// Resolve places the order.
func (r *ExchangeOrderResolver) Resolve(ctx context.Context, req TransactionRequest) (*ResolverResult, error) {
	if req.Order == nil {
		return nil, errors.Wrap(ErrValidation, "request does not carry order command")
	}

	venue, exists := r.venues[req.Order.Provider]
	if !exists {
		return nil, errors.Wrapf(ErrProviderNotAllowed, "venue %q is not registered", req.Order.Provider)
	}
	if err := checkCredentials(venue, req.Order.Credentials); err != nil {
		return nil, err
	}

	ack, err := venue.Placer.PlaceMarketOrder(ctx, *req.Order)
	if err != nil {
		return nil, err
	}
	if !ack.Acknowledged {
		return nil, nil
	}
	return &ResolverResult{Variant: VariantOrder, Ack: &ack}, nil
}

func checkCredentials(venue Venue, c Credentials) error {
	switch {
	case c.Key == nil:
		return errors.Wrapf(ErrAuthentication, "api key for %q is missing", venue.Name)
	case c.Secret == nil:
		return errors.Wrapf(ErrAuthentication, "secret for %q is missing", venue.Name)
	case venue.RequiresID && c.ID == nil:
		return errors.Wrapf(ErrAuthentication, "uid for %q is missing", venue.Name)
	case venue.RequiresPassword && c.Password == nil:
		return errors.Wrapf(ErrAuthentication, "password for %q is missing", venue.Name)
	}
	return nil
}

// NewRegistry creates registry of resolvers. Each variant may be registered once.
func NewRegistry(resolvers ...Resolver) (*Registry, error) {
	r := &Registry{resolvers: make(map[Variant]Resolver, len(resolvers))}
	for _, res := range resolvers {
		v := res.Variant()
		if v != VariantSwap && v != VariantOrder {
			return nil, errors.Errorf("unknown variant %q", v)
		}
		if _, exists := r.resolvers[v]; exists {
			return nil, errors.Errorf("resolver for variant %q registered twice", v)
		}
		r.resolvers[v] = res
	}
	return r, nil
}

// Registry is the lookup table of resolvers, built once at startup.
type Registry struct {
	resolvers map[Variant]Resolver
}

// Get returns resolver serving the variant.
func (r *Registry) Get(variant Variant) (Resolver, error) {
	res, exists := r.resolvers[variant]
	if !exists {
		return nil, errors.Wrapf(ErrValidation, "no resolver for variant %q", variant)
	}
	return res, nil
}

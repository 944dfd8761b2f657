package txgateway

import "github.com/pkg/errors"

// Error kinds. Every error produced by the gateway wraps exactly one of them.
var (
	// ErrMalformedInput is returned when framing or JSON of the input is broken.
	ErrMalformedInput = errors.New("malformed input")

	// ErrValidation is returned when required fields are missing or invalid.
	ErrValidation = errors.New("validation failed")

	// ErrAuthentication is returned when credentials required by the venue are incomplete.
	ErrAuthentication = errors.New("authentication failed")

	// ErrRouteNotFound is returned when resolver has no viable route or order.
	ErrRouteNotFound = errors.New("no route")

	// ErrResolverFailure is returned when external collaborator fails.
	ErrResolverFailure = errors.New("resolver failure")
)

// ErrProviderNotAllowed is returned when exchange is not present in the allow-list.
var ErrProviderNotAllowed = errors.Wrap(ErrValidation, "provider not allowed")

// ErrorReason returns the label describing the kind of error.
func ErrorReason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrMalformedInput):
		return "malformed_input"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, ErrRouteNotFound):
		return "route_not_found"
	default:
		return "resolver_failure"
	}
}

func isClassified(err error) bool {
	return errors.Is(err, ErrMalformedInput) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrAuthentication) ||
		errors.Is(err, ErrRouteNotFound) ||
		errors.Is(err, ErrResolverFailure)
}

// resolverFailure classifies collaborator error as ErrResolverFailure while keeping it in the chain.
type resolverFailure struct {
	cause error
}

func (e *resolverFailure) Error() string {
	return ErrResolverFailure.Error() + ": " + e.cause.Error()
}

func (e *resolverFailure) Is(target error) bool {
	return target == ErrResolverFailure
}

func (e *resolverFailure) Unwrap() error {
	return e.cause
}

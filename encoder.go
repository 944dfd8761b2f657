package txgateway

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// AckMarker is emitted for acknowledged exchange orders.
const AckMarker = "ok"

// EncodeResult serializes result of the resolver, appending correlation token if present.
func EncodeResult(result *ResolverResult, correlationToken string) ([]byte, error) {
	switch {
	case result == nil:
		return nil, errors.WithStack(ErrRouteNotFound)
	case result.Route != nil:
		value := hexutil.EncodeBig(zeroIfNil(result.Route.Value))
		out := make([]byte, 0, 2*len(result.Route.Calldata)+len(value)+4)
		out = append(out, hexutil.Encode(result.Route.Calldata)...)
		out = append(out, Delimiter)
		out = append(out, value...)
		return Encode(out, correlationToken), nil
	case result.Ack != nil:
		return Encode([]byte(AckMarker), correlationToken), nil
	default:
		return nil, errors.Wrapf(ErrResolverFailure, "result of variant %q is empty", result.Variant)
	}
}

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

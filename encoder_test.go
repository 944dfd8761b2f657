package txgateway

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeRoute(t *testing.T) {
	requireT := require.New(t)

	result := &ResolverResult{
		Variant: VariantSwap,
		Route: &Route{
			Calldata: []byte{0x5a, 0xe4, 0x01},
			Value:    big.NewInt(255),
		},
	}

	out, err := EncodeResult(result, "")
	requireT.NoError(err)
	requireT.Equal("0x5ae401:0xff", string(out))

	out, err = EncodeResult(result, "17")
	requireT.NoError(err)
	requireT.Equal("0x5ae401:0xff:17", string(out))
}

func TestEncodeRouteWithoutValue(t *testing.T) {
	out, err := EncodeResult(&ResolverResult{Variant: VariantSwap, Route: &Route{Calldata: []byte{0x01}}}, "")
	require.NoError(t, err)
	require.Equal(t, "0x01:0x0", string(out))
}

func TestEncodeAck(t *testing.T) {
	requireT := require.New(t)

	result := &ResolverResult{Variant: VariantOrder, Ack: &OrderAck{Acknowledged: true}}

	out, err := EncodeResult(result, "")
	requireT.NoError(err)
	requireT.Equal(AckMarker, string(out))

	out, err = EncodeResult(result, "3")
	requireT.NoError(err)
	requireT.Equal(AckMarker+":3", string(out))
}

func TestEncodeAbsentResult(t *testing.T) {
	_, err := EncodeResult(nil, "1")
	require.ErrorIs(t, err, ErrRouteNotFound)
}

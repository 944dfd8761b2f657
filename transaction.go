package txgateway

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Variant identifies the resolver capability serving the request.
type Variant string

// Supported variants.
const (
	VariantSwap  Variant = "swap"
	VariantOrder Variant = "order"
)

// Action is the direction of the trade.
type Action string

// Supported actions.
const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// TradeType tells which side of the swap is held fixed.
type TradeType string

// Trade types.
const (
	ExactInput  TradeType = "exact_input"
	ExactOutput TradeType = "exact_output"
)

// SwapRouter02 is the flavour of the router contract the calldata is generated for.
const SwapRouter02 = "swap_router_02"

// RawTransaction is the transaction as it arrives from the transport.
// Pair elements are decoded according to the variant.
type RawTransaction struct {
	Variant     Variant           `json:"variant,omitempty"`
	Amount      json.Number       `json:"amount"`
	Action      string            `json:"action"`
	Pair        []json.RawMessage `json:"pair"`
	Recipient   string            `json:"recipient,omitempty"`
	Address     string            `json:"address,omitempty"`
	Provider    string            `json:"provider,omitempty"`
	Credentials string            `json:"credentials,omitempty"`
}

// ParseRawTransaction unmarshals the transaction.
func ParseRawTransaction(payload []byte) (RawTransaction, error) {
	var raw RawTransaction
	if err := json.Unmarshal(payload, &raw); err != nil {
		return RawTransaction{}, errors.Wrapf(ErrMalformedInput, "decoding transaction failed: %s", err)
	}
	return raw, nil
}

// ResolveVariant returns the variant the transaction is addressed to.
func (rt RawTransaction) ResolveVariant() (Variant, error) {
	switch rt.Variant {
	case VariantSwap, VariantOrder:
		return rt.Variant, nil
	case "":
		if rt.Provider != "" {
			return VariantOrder, nil
		}
		return VariantSwap, nil
	default:
		return "", errors.Wrapf(ErrValidation, "unknown variant %q", rt.Variant)
	}
}

// Asset describes the token on chain.
type Asset struct {
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
}

// Percent is a fraction used for slippage tolerance.
type Percent struct {
	Numerator   uint64 `json:"numerator"`
	Denominator uint64 `json:"denominator"`
}

// SwapQuery is the normalized request for the route optimizer.
type SwapQuery struct {
	ChainID           uint64
	Amount            *big.Int
	TokenIn           Asset
	TokenOut          Asset
	TradeType         TradeType
	Recipient         *common.Address
	SlippageTolerance Percent
	Deadline          uint64
	RouterType        string
}

// Credentials are the secrets used to authenticate on the trading venue.
// Nil field means the value was absent.
type Credentials struct {
	Key      *string
	Secret   *string
	ID       *string
	Password *string
}

// OrderCommand is the normalized request for the trading venue.
type OrderCommand struct {
	Provider    string
	Symbol      string
	Side        Action
	Amount      string
	Credentials Credentials
}

// TransactionRequest is the canonical request. Exactly one of Swap and Order is set.
// Requests are passed by value and never modified after normalization.
type TransactionRequest struct {
	Variant          Variant
	Swap             *SwapQuery
	Order            *OrderCommand
	CorrelationToken string
}

// Route is the executable result computed by the route optimizer.
type Route struct {
	Calldata []byte
	Value    *big.Int
}

// OrderAck is the acknowledgment of the order returned by the venue.
type OrderAck struct {
	Acknowledged bool
	OrderID      string
}

// ResolverResult is the success value of the resolver. Exactly one of Route and Ack is set.
type ResolverResult struct {
	Variant Variant
	Route   *Route
	Ack     *OrderAck
}

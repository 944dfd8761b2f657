package txgateway

import (
	"encoding/json"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

const (
	credentialFields = 4
	bpsDenominator   = 10000
)

// Default normalization parameters.
const (
	DefaultSlippageBps    = 20
	DefaultDeadlineWindow = 10 * time.Minute
)

// NormalizerConfig is the configuration of the normalizer.
type NormalizerConfig struct {
	ChainID              uint64
	SlippageBps          uint64
	DeadlineWindow       time.Duration
	RejectUnknownActions bool
	AllowedProviders     []string
	Now                  func() time.Time
}

// NewNormalizer creates new normalizer.
func NewNormalizer(config NormalizerConfig) *Normalizer {
	if config.SlippageBps == 0 {
		config.SlippageBps = DefaultSlippageBps
	}
	if config.DeadlineWindow == 0 {
		config.DeadlineWindow = DefaultDeadlineWindow
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Normalizer{
		config: config,
		allowed: lo.SliceToMap(config.AllowedProviders, func(p string) (string, struct{}) {
			return p, struct{}{}
		}),
	}
}

// Normalizer converts raw transactions into canonical requests.
type Normalizer struct {
	config  NormalizerConfig
	allowed map[string]struct{}
}

// Normalize builds the canonical request for the variant.
func (n *Normalizer) Normalize(raw RawTransaction, variant Variant) (TransactionRequest, error) {
	switch variant {
	case VariantSwap:
		query, err := n.normalizeSwap(raw)
		if err != nil {
			return TransactionRequest{}, err
		}
		return TransactionRequest{Variant: VariantSwap, Swap: &query}, nil
	case VariantOrder:
		order, err := n.normalizeOrder(raw)
		if err != nil {
			return TransactionRequest{}, err
		}
		return TransactionRequest{Variant: VariantOrder, Order: &order}, nil
	default:
		return TransactionRequest{}, errors.Wrapf(ErrValidation, "unknown variant %q", variant)
	}
}

// ProviderAllowed tells if exchange is present in the allow-list.
func (n *Normalizer) ProviderAllowed(provider string) bool {
	_, ok := n.allowed[provider]
	return ok
}

// TradeTypeFor maps action to the trade direction. Only "sell" holds output fixed.
func (n *Normalizer) TradeTypeFor(action string) (TradeType, error) {
	a, err := n.action(action)
	if err != nil {
		return "", err
	}
	if a == ActionSell {
		return ExactOutput, nil
	}
	return ExactInput, nil
}

// action returns the action. Unknown actions are treated as buy unless rejection is configured.
func (n *Normalizer) action(action string) (Action, error) {
	switch Action(action) {
	case ActionBuy, ActionSell:
		return Action(action), nil
	}
	if n.config.RejectUnknownActions {
		return "", errors.Wrapf(ErrValidation, "unknown action %q", action)
	}
	return ActionBuy, nil
}

func (n *Normalizer) normalizeSwap(raw RawTransaction) (SwapQuery, error) {
	amount, err := parseAmount(raw.Amount)
	if err != nil {
		return SwapQuery{}, err
	}
	if !amount.IsInt() {
		return SwapQuery{}, errors.Wrapf(ErrValidation, "amount %s is not an integer number of raw units", raw.Amount)
	}

	if len(raw.Pair) != 2 {
		return SwapQuery{}, errors.Wrapf(ErrValidation, "pair must contain 2 assets, got %d", len(raw.Pair))
	}
	tokenIn, err := parseAsset(raw.Pair[0])
	if err != nil {
		return SwapQuery{}, err
	}
	tokenOut, err := parseAsset(raw.Pair[1])
	if err != nil {
		return SwapQuery{}, err
	}

	tradeType, err := n.TradeTypeFor(raw.Action)
	if err != nil {
		return SwapQuery{}, err
	}

	recipient := raw.Recipient
	if recipient == "" {
		recipient = raw.Address
	}
	var recipientAddr *common.Address
	if recipient != "" {
		if !common.IsHexAddress(recipient) {
			return SwapQuery{}, errors.Wrapf(ErrValidation, "recipient %q is not a valid address", recipient)
		}
		recipientAddr = lo.ToPtr(common.HexToAddress(recipient))
	}

	return SwapQuery{
		ChainID:   n.config.ChainID,
		Amount:    new(big.Int).Set(amount.Num()),
		TokenIn:   tokenIn,
		TokenOut:  tokenOut,
		TradeType: tradeType,
		Recipient: recipientAddr,
		SlippageTolerance: Percent{
			Numerator:   n.config.SlippageBps,
			Denominator: bpsDenominator,
		},
		Deadline:   uint64(n.config.Now().Add(n.config.DeadlineWindow).Unix()),
		RouterType: SwapRouter02,
	}, nil
}

func (n *Normalizer) normalizeOrder(raw RawTransaction) (OrderCommand, error) {
	if !n.ProviderAllowed(raw.Provider) {
		return OrderCommand{}, errors.Wrapf(ErrProviderNotAllowed, "provider %q", raw.Provider)
	}

	if _, err := parseAmount(raw.Amount); err != nil {
		return OrderCommand{}, err
	}

	if len(raw.Pair) != 2 {
		return OrderCommand{}, errors.Wrapf(ErrValidation, "pair must contain 2 symbols, got %d", len(raw.Pair))
	}
	pair := make([]string, 0, 2)
	for _, p := range raw.Pair {
		var symbol string
		if err := json.Unmarshal(p, &symbol); err != nil || symbol == "" {
			return OrderCommand{}, errors.Wrapf(ErrValidation, "invalid symbol %s", p)
		}
		pair = append(pair, symbol)
	}

	side, err := n.action(raw.Action)
	if err != nil {
		return OrderCommand{}, err
	}
	if side == ActionBuy {
		pair = lo.Reverse(pair)
	}

	return OrderCommand{
		Provider:    raw.Provider,
		Symbol:      strings.Join(pair, "/"),
		Side:        side,
		Amount:      raw.Amount.String(),
		Credentials: ParseCredentials(raw.Credentials),
	}, nil
}

// ParseCredentials splits "key:secret:id:password" into credentials.
// Missing trailing fields are absent. Literal "\n" in key and secret becomes a newline.
func ParseCredentials(credentials string) Credentials {
	if credentials == "" {
		return Credentials{}
	}

	fields := strings.SplitN(credentials, string(Delimiter), credentialFields)
	values := make([]*string, credentialFields)
	for i, f := range fields {
		if f == "" {
			continue
		}
		if i < 2 {
			f = strings.ReplaceAll(f, `\n`, "\n")
		}
		values[i] = lo.ToPtr(f)
	}

	return Credentials{
		Key:      values[0],
		Secret:   values[1],
		ID:       values[2],
		Password: values[3],
	}
}

func parseAmount(amount json.Number) (*big.Rat, error) {
	if amount == "" {
		return nil, errors.Wrap(ErrValidation, "amount is required")
	}
	v, ok := new(big.Rat).SetString(amount.String())
	if !ok {
		return nil, errors.Wrapf(ErrValidation, "amount %q is not a number", amount)
	}
	if v.Sign() <= 0 {
		return nil, errors.Wrapf(ErrValidation, "amount %s must be positive", amount)
	}
	return v, nil
}

func parseAsset(raw json.RawMessage) (Asset, error) {
	var descriptor struct {
		Address  string `json:"address"`
		Decimals *uint8 `json:"decimals"`
	}
	if err := json.Unmarshal(raw, &descriptor); err != nil {
		return Asset{}, errors.Wrapf(ErrValidation, "invalid asset %s: %s", raw, err)
	}
	if !common.IsHexAddress(descriptor.Address) {
		return Asset{}, errors.Wrapf(ErrValidation, "asset address %q is not valid", descriptor.Address)
	}
	if descriptor.Decimals == nil {
		return Asset{}, errors.Wrapf(ErrValidation, "decimals of asset %s are missing", descriptor.Address)
	}

	return Asset{
		Address:  common.HexToAddress(descriptor.Address),
		Decimals: *descriptor.Decimals,
	}, nil
}

package onchain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"

	"github.com/outofforest/txgateway"
)

// DefaultMethod is the JSON-RPC method computing the route.
const DefaultMethod = "router_route"

// Dial connects to the route optimizer.
func Dial(ctx context.Context, url, method string) (*Router, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing route optimizer %q failed", url)
	}
	return NewRouter(client, method), nil
}

// NewRouter creates route optimizer client on top of the RPC client.
func NewRouter(client *rpc.Client, method string) *Router {
	if method == "" {
		method = DefaultMethod
	}
	return &Router{
		client: client,
		method: method,
	}
}

// Router queries remote route optimizer over JSON-RPC.
type Router struct {
	client *rpc.Client
	method string
}

type routeQuery struct {
	ChainID           hexutil.Uint64      `json:"chainId"`
	Amount            *hexutil.Big        `json:"amount"`
	TokenIn           txgateway.Asset     `json:"tokenIn"`
	TokenOut          txgateway.Asset     `json:"tokenOut"`
	TradeType         txgateway.TradeType `json:"tradeType"`
	Recipient         *common.Address     `json:"recipient,omitempty"`
	SlippageTolerance txgateway.Percent   `json:"slippageTolerance"`
	Deadline          hexutil.Uint64      `json:"deadline"`
	Type              string              `json:"type"`
}

type methodParameters struct {
	Calldata hexutil.Bytes `json:"calldata"`
	Value    *hexutil.Big  `json:"value"`
}

// Route asks the optimizer for the route. Nil route is returned if optimizer found none.
func (r *Router) Route(ctx context.Context, query txgateway.SwapQuery) (*txgateway.Route, error) {
	var params *methodParameters
	err := r.client.CallContext(ctx, &params, r.method, routeQuery{
		ChainID:           hexutil.Uint64(query.ChainID),
		Amount:            (*hexutil.Big)(query.Amount),
		TokenIn:           query.TokenIn,
		TokenOut:          query.TokenOut,
		TradeType:         query.TradeType,
		Recipient:         query.Recipient,
		SlippageTolerance: query.SlippageTolerance,
		Deadline:          hexutil.Uint64(query.Deadline),
		Type:              query.RouterType,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "calling %s failed", r.method)
	}
	if params == nil {
		return nil, nil
	}

	return &txgateway.Route{
		Calldata: params.Calldata,
		Value:    (*big.Int)(params.Value),
	}, nil
}

// Close closes the connection.
func (r *Router) Close() {
	r.client.Close()
}

// VerifyChainID checks that the node at url serves the expected chain.
func VerifyChainID(ctx context.Context, url string, expected uint64) error {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return errors.Wrapf(err, "dialing node %q failed", url)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching chain id failed")
	}
	if !chainID.IsUint64() || chainID.Uint64() != expected {
		return errors.Errorf("node serves chain %s, expected %d", chainID, expected)
	}
	return nil
}

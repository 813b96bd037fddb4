package provider

import (
	"context"

	"github.com/ethereum/go-ethereum/rpc"
)

// RPCProvider adapts a go-ethereum rpc.Client to the Provider interface for
// node-hosted signers (dev nodes, test chains). Nodes never prompt, so
// eth_requestAccounts maps to eth_accounts, and account/chain change
// notifications never fire.
type RPCProvider struct {
	client *rpc.Client
}

// Dial connects to a JSON-RPC endpoint.
func Dial(ctx context.Context, rawurl string) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, err
	}
	return &RPCProvider{client: client}, nil
}

// Close closes the underlying RPC client.
func (p *RPCProvider) Close() {
	if p.client != nil {
		p.client.Close()
	}
}

// Request issues one JSON-RPC call.
func (p *RPCProvider) Request(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	if method == "eth_requestAccounts" {
		method = "eth_accounts"
	}
	return p.client.CallContext(ctx, result, method, params...)
}

// OnAccountsChanged is a no-op: node-hosted accounts do not change underneath
// the client.
func (p *RPCProvider) OnAccountsChanged(func(accounts []string)) {}

// OnChainChanged is a no-op: a node endpoint is pinned to one chain.
func (p *RPCProvider) OnChainChanged(func(chainID string)) {}

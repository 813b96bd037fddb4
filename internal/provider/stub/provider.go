// Package stub provides an in-memory wallet provider backed by a simulated
// NFT registry and marketplace, used by tests across packages.
package stub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"monadmarket/internal/provider"
)

// Call records one provider request for call-count assertions.
type Call struct {
	Method string
	Params []interface{}
}

// Provider is a scriptable in-memory wallet provider.
type Provider struct {
	mu    sync.Mutex
	calls []Call

	accounts    []string
	chainID     uint64
	knownChains map[uint64]bool
	rejectAll   bool

	market     *Market
	errors     map[string]error
	onceErrors map[string]error

	accountsChanged func([]string)
	chainChanged    func(string)
}

// NewProvider builds a provider on chainID with the given authorized
// accounts. The chain itself is always known to the wallet.
func NewProvider(chainID uint64, market *Market, accounts ...string) *Provider {
	return &Provider{
		accounts:    accounts,
		chainID:     chainID,
		knownChains: map[uint64]bool{chainID: true},
		market:      market,
		errors:      make(map[string]error),
		onceErrors:  make(map[string]error),
	}
}

// AddKnownChain marks a chain as registered with the wallet, so a switch
// request succeeds without wallet_addEthereumChain.
func (p *Provider) AddKnownChain(chainID uint64) {
	p.mu.Lock()
	p.knownChains[chainID] = true
	p.mu.Unlock()
}

// RejectRequests makes every prompt-bearing request fail with the user
// rejection code.
func (p *Provider) RejectRequests(reject bool) {
	p.mu.Lock()
	p.rejectAll = reject
	p.mu.Unlock()
}

// FailMethod forces err on every call of method; nil clears it.
func (p *Provider) FailMethod(method string, err error) {
	p.mu.Lock()
	if err == nil {
		delete(p.errors, method)
	} else {
		p.errors[method] = err
	}
	p.mu.Unlock()
}

// FailNextRequest forces err on the next single call of method only.
func (p *Provider) FailNextRequest(method string, err error) {
	p.mu.Lock()
	p.onceErrors[method] = err
	p.mu.Unlock()
}

// SetAccounts replaces the authorized account set without notifying.
func (p *Provider) SetAccounts(accounts ...string) {
	p.mu.Lock()
	p.accounts = accounts
	p.mu.Unlock()
}

// ChainID returns the wallet's active chain.
func (p *Provider) ChainID() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chainID
}

// CallCount returns how many times method was requested.
func (p *Provider) CallCount(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, call := range p.calls {
		if call.Method == method {
			n++
		}
	}
	return n
}

// Calls returns the recorded requests for method, in order.
func (p *Provider) Calls(method string) []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, 0)
	for _, call := range p.calls {
		if call.Method == method {
			out = append(out, call)
		}
	}
	return out
}

// EmitAccountsChanged fires the wallet's account-change notification.
func (p *Provider) EmitAccountsChanged(accounts []string) {
	p.mu.Lock()
	p.accounts = accounts
	fn := p.accountsChanged
	p.mu.Unlock()
	if fn != nil {
		fn(accounts)
	}
}

// EmitChainChanged fires the wallet's chain-change notification.
func (p *Provider) EmitChainChanged(chainID uint64) {
	p.mu.Lock()
	p.chainID = chainID
	fn := p.chainChanged
	p.mu.Unlock()
	if fn != nil {
		fn(hexutil.EncodeUint64(chainID))
	}
}

// OnAccountsChanged registers the account-change listener.
func (p *Provider) OnAccountsChanged(fn func(accounts []string)) {
	p.mu.Lock()
	p.accountsChanged = fn
	p.mu.Unlock()
}

// OnChainChanged registers the chain-change listener.
func (p *Provider) OnChainChanged(fn func(chainID string)) {
	p.mu.Lock()
	p.chainChanged = fn
	p.mu.Unlock()
}

// Request dispatches one wallet request against the scripted state.
func (p *Provider) Request(_ context.Context, result interface{}, method string, params ...interface{}) error {
	p.mu.Lock()
	p.calls = append(p.calls, Call{Method: method, Params: params})
	forced := p.errors[method]
	if forced == nil {
		if once, ok := p.onceErrors[method]; ok {
			forced = once
			delete(p.onceErrors, method)
		}
	}
	p.mu.Unlock()

	if forced != nil {
		return forced
	}

	value, err := p.dispatch(method, params)
	if err != nil {
		return err
	}
	if result == nil || value == nil {
		return nil
	}
	return assign(result, value)
}

func (p *Provider) dispatch(method string, params []interface{}) (interface{}, error) {
	switch method {
	case "eth_accounts":
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.accounts, nil

	case "eth_requestAccounts":
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.rejectAll {
			return nil, &provider.RPCError{Code: provider.CodeUserRejected, Message: "user rejected the request"}
		}
		return p.accounts, nil

	case "eth_chainId":
		p.mu.Lock()
		defer p.mu.Unlock()
		return hexutil.EncodeUint64(p.chainID), nil

	case "wallet_switchEthereumChain":
		var args provider.SwitchChainParams
		if err := decodeParam(params, 0, &args); err != nil {
			return nil, err
		}
		target, err := hexutil.DecodeUint64(args.ChainID)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.rejectAll {
			return nil, &provider.RPCError{Code: provider.CodeUserRejected, Message: "user rejected the request"}
		}
		if !p.knownChains[target] {
			return nil, &provider.RPCError{Code: provider.CodeUnknownChain, Message: "unrecognized chain"}
		}
		p.chainID = target
		return nil, nil

	case "wallet_addEthereumChain":
		var args provider.AddChainParams
		if err := decodeParam(params, 0, &args); err != nil {
			return nil, err
		}
		target, err := hexutil.DecodeUint64(args.ChainID)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.rejectAll {
			return nil, &provider.RPCError{Code: provider.CodeUserRejected, Message: "user rejected the request"}
		}
		p.knownChains[target] = true
		p.chainID = target
		return nil, nil

	case "eth_call":
		if p.market == nil {
			return nil, fmt.Errorf("no market bound")
		}
		var args txArgs
		if err := decodeParam(params, 0, &args); err != nil {
			return nil, err
		}
		out, err := p.market.Call(args.To, args.Data)
		if err != nil {
			return nil, err
		}
		return hexutil.Bytes(out), nil

	case "eth_sendTransaction":
		if p.market == nil {
			return nil, fmt.Errorf("no market bound")
		}
		var args txArgs
		if err := decodeParam(params, 0, &args); err != nil {
			return nil, err
		}
		return p.market.SendTransaction(args)

	case "eth_getTransactionReceipt":
		if p.market == nil {
			return nil, fmt.Errorf("no market bound")
		}
		var hash common.Hash
		if err := decodeParam(params, 0, &hash); err != nil {
			return nil, err
		}
		receipt := p.market.Receipt(hash)
		if receipt == nil {
			return nil, nil
		}
		return receipt, nil

	case "eth_getBalance":
		if p.market == nil {
			return nil, fmt.Errorf("no market bound")
		}
		var account common.Address
		if err := decodeParam(params, 0, &account); err != nil {
			return nil, err
		}
		return (*hexutil.Big)(p.market.NativeBalance(account)), nil

	default:
		return nil, fmt.Errorf("unsupported method %s", method)
	}
}

// txArgs mirrors the transaction/call object shape on the wire.
type txArgs struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Data  hexutil.Bytes  `json:"data"`
	Value *hexutil.Big   `json:"value"`
}

func decodeParam(params []interface{}, index int, target interface{}) error {
	if index >= len(params) {
		return fmt.Errorf("missing param %d", index)
	}
	data, err := json.Marshal(params[index])
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// assign copies a dispatch result into the caller's result pointer through a
// JSON round trip, matching how a real provider's wire responses decode.
func assign(result, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, result)
}

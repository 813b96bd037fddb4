package provider

import "context"

// Provider is the wallet boundary: EIP-1193-shaped request/response calls plus
// subscriptions to account and chain change notifications. The result argument
// follows the rpc.Client convention (pointer filled on success).
type Provider interface {
	Request(ctx context.Context, result interface{}, method string, params ...interface{}) error
	OnAccountsChanged(fn func(accounts []string))
	OnChainChanged(fn func(chainID string))
}

// Standard wallet provider error codes.
const (
	CodeUserRejected = 4001
	CodeUnknownChain = 4902
)

// RPCError is a provider error carrying the numeric wallet code.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string { return e.Message }

// ErrorCode satisfies the go-ethereum rpc.Error interface.
func (e *RPCError) ErrorCode() int { return e.Code }

// Code extracts a wallet error code from any provider error, 0 when absent.
func Code(err error) int {
	type coded interface{ ErrorCode() int }
	for err != nil {
		if c, ok := err.(coded); ok {
			return c.ErrorCode()
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			return 0
		}
		err = u.Unwrap()
	}
	return 0
}

// Network describes the chain parameters sent with wallet_addEthereumChain.
type Network struct {
	ChainID           uint64
	ChainIDHex        string
	Name              string
	CurrencyName      string
	CurrencySymbol    string
	CurrencyDecimals  uint8
	RPCURLs           []string
	BlockExplorerURLs []string
}

// AddChainParams is the wire shape of a wallet_addEthereumChain request.
type AddChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

// NativeCurrency describes the chain's native asset for wallet registration.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// AddChainParams builds the registration payload for this network.
func (n Network) AddChainParams() AddChainParams {
	return AddChainParams{
		ChainID:   n.ChainIDHex,
		ChainName: n.Name,
		NativeCurrency: NativeCurrency{
			Name:     n.CurrencyName,
			Symbol:   n.CurrencySymbol,
			Decimals: n.CurrencyDecimals,
		},
		RPCURLs:           n.RPCURLs,
		BlockExplorerURLs: n.BlockExplorerURLs,
	}
}

// SwitchChainParams is the wire shape of a wallet_switchEthereumChain request.
type SwitchChainParams struct {
	ChainID string `json:"chainId"`
}

package contracts

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"monadmarket/internal/model"
	"monadmarket/internal/provider"
)

// ErrNotConnected means a mutating call was attempted without a connected
// session.
var ErrNotConnected = errors.New("wallet not connected")

// ReadError wraps a failed read-only contract call. Callers treat it as
// "unknown", never as false or zero.
type ReadError struct {
	Op  string
	Err error
}

func (e *ReadError) Error() string { return fmt.Sprintf("read %s: %v", e.Op, e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

// SessionSource exposes the current wallet session snapshot.
type SessionSource interface {
	Current() model.Session
}

// Config holds gateway settings.
type Config struct {
	NFTAddress         common.Address
	MarketplaceAddress common.Address
	MaxRetries         int
	RetryBackoff       time.Duration
}

// Gateway is the typed façade over the NFT registry and marketplace
// contracts. Every call, read or write, goes through here so retries and
// error mapping are uniform.
type Gateway struct {
	cfg      Config
	provider provider.Provider
	session  SessionSource
	logger   *zap.Logger
}

// New builds a Gateway bound to the two contract addresses.
func New(cfg Config, p provider.Provider, sess SessionSource, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{cfg: cfg, provider: p, session: sess, logger: logger}
}

// NFTAddress returns the bound NFT registry address.
func (g *Gateway) NFTAddress() common.Address { return g.cfg.NFTAddress }

// MarketplaceAddress returns the bound marketplace address.
func (g *Gateway) MarketplaceAddress() common.Address { return g.cfg.MarketplaceAddress }

// TransferEventID returns the ERC-721 Transfer event topic used to recover
// newly minted token ids from receipts.
func TransferEventID() (common.Hash, error) {
	parsed, err := NFTABI()
	if err != nil {
		return common.Hash{}, err
	}
	return parsed.Events["Transfer"].ID, nil
}

// --- mutating calls ---

// Mint submits a mint of tokenURI to the session account.
func (g *Gateway) Mint(ctx context.Context, tokenURI string) (model.TxHandle, error) {
	sess := g.session.Current()
	if !sess.Connected {
		return model.TxHandle{}, ErrNotConnected
	}
	parsed, err := NFTABI()
	if err != nil {
		return model.TxHandle{}, err
	}
	data, err := parsed.Pack("mint", sess.Account, tokenURI)
	if err != nil {
		return model.TxHandle{}, fmt.Errorf("pack mint: %w", err)
	}
	return g.sendTransaction(ctx, model.TxMint, g.cfg.NFTAddress, data, nil)
}

// SetMarketplaceApproval grants or revokes the marketplace's blanket approval
// over the session account's tokens.
func (g *Gateway) SetMarketplaceApproval(ctx context.Context, approved bool) (model.TxHandle, error) {
	if !g.session.Current().Connected {
		return model.TxHandle{}, ErrNotConnected
	}
	parsed, err := NFTABI()
	if err != nil {
		return model.TxHandle{}, err
	}
	data, err := parsed.Pack("setApprovalForAll", g.cfg.MarketplaceAddress, approved)
	if err != nil {
		return model.TxHandle{}, fmt.Errorf("pack setApprovalForAll: %w", err)
	}
	return g.sendTransaction(ctx, model.TxApprove, g.cfg.NFTAddress, data, nil)
}

// ListItem submits a listing of tokenID at priceWei.
func (g *Gateway) ListItem(ctx context.Context, tokenID uint64, priceWei *big.Int) (model.TxHandle, error) {
	if !g.session.Current().Connected {
		return model.TxHandle{}, ErrNotConnected
	}
	parsed, err := MarketplaceABI()
	if err != nil {
		return model.TxHandle{}, err
	}
	data, err := parsed.Pack("listItem", g.cfg.NFTAddress, new(big.Int).SetUint64(tokenID), priceWei)
	if err != nil {
		return model.TxHandle{}, fmt.Errorf("pack listItem: %w", err)
	}
	return g.sendTransaction(ctx, model.TxList, g.cfg.MarketplaceAddress, data, nil)
}

// BuyItem submits a purchase of listingID carrying priceWei as the
// transaction value.
func (g *Gateway) BuyItem(ctx context.Context, listingID uint64, priceWei *big.Int) (model.TxHandle, error) {
	if !g.session.Current().Connected {
		return model.TxHandle{}, ErrNotConnected
	}
	parsed, err := MarketplaceABI()
	if err != nil {
		return model.TxHandle{}, err
	}
	data, err := parsed.Pack("buyItem", new(big.Int).SetUint64(listingID))
	if err != nil {
		return model.TxHandle{}, fmt.Errorf("pack buyItem: %w", err)
	}
	return g.sendTransaction(ctx, model.TxBuy, g.cfg.MarketplaceAddress, data, priceWei)
}

// DelistItem submits a delisting of listingID.
func (g *Gateway) DelistItem(ctx context.Context, listingID uint64) (model.TxHandle, error) {
	if !g.session.Current().Connected {
		return model.TxHandle{}, ErrNotConnected
	}
	parsed, err := MarketplaceABI()
	if err != nil {
		return model.TxHandle{}, err
	}
	data, err := parsed.Pack("delistItem", new(big.Int).SetUint64(listingID))
	if err != nil {
		return model.TxHandle{}, fmt.Errorf("pack delistItem: %w", err)
	}
	return g.sendTransaction(ctx, model.TxDelist, g.cfg.MarketplaceAddress, data, nil)
}

// WithdrawEarnings submits a withdrawal of the session account's accumulated
// proceeds.
func (g *Gateway) WithdrawEarnings(ctx context.Context) (model.TxHandle, error) {
	if !g.session.Current().Connected {
		return model.TxHandle{}, ErrNotConnected
	}
	parsed, err := MarketplaceABI()
	if err != nil {
		return model.TxHandle{}, err
	}
	data, err := parsed.Pack("withdrawEarnings")
	if err != nil {
		return model.TxHandle{}, fmt.Errorf("pack withdrawEarnings: %w", err)
	}
	return g.sendTransaction(ctx, model.TxWithdraw, g.cfg.MarketplaceAddress, data, nil)
}

func (g *Gateway) sendTransaction(ctx context.Context, kind model.TxKind, to common.Address, data []byte, value *big.Int) (model.TxHandle, error) {
	sess := g.session.Current()
	args := map[string]interface{}{
		"from": sess.Account,
		"to":   to,
		"data": hexutil.Bytes(data),
	}
	if value != nil && value.Sign() > 0 {
		args["value"] = (*hexutil.Big)(value)
	}

	var hash common.Hash
	if err := g.provider.Request(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return model.TxHandle{}, fmt.Errorf("submit %s: %w", kind, err)
	}

	g.logger.Info("transaction submitted",
		zap.String("kind", string(kind)),
		zap.String("hash", hash.Hex()),
	)
	return model.TxHandle{Hash: hash, Kind: kind}, nil
}

// --- read-only calls ---

// OwnerOf returns the owner of tokenID.
func (g *Gateway) OwnerOf(ctx context.Context, tokenID uint64) (common.Address, error) {
	values, err := g.callNFT(ctx, "ownerOf", new(big.Int).SetUint64(tokenID))
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(values[0])
}

// TokenURI returns the metadata URI of tokenID.
func (g *Gateway) TokenURI(ctx context.Context, tokenID uint64) (string, error) {
	values, err := g.callNFT(ctx, "tokenURI", new(big.Int).SetUint64(tokenID))
	if err != nil {
		return "", err
	}
	return asString(values[0])
}

// IsMarketplaceApproved reports whether owner has granted the marketplace
// blanket approval.
func (g *Gateway) IsMarketplaceApproved(ctx context.Context, owner common.Address) (bool, error) {
	values, err := g.callNFT(ctx, "isApprovedForAll", owner, g.cfg.MarketplaceAddress)
	if err != nil {
		return false, err
	}
	return asBool(values[0])
}

// BalanceOf returns the token count held by owner.
func (g *Gateway) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	values, err := g.callNFT(ctx, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// TotalSupply returns the number of tokens ever minted.
func (g *Gateway) TotalSupply(ctx context.Context) (uint64, error) {
	values, err := g.callNFT(ctx, "totalSupply")
	if err != nil {
		return 0, err
	}
	return asUint64(values[0])
}

// GetListing fetches one listing record by id.
func (g *Gateway) GetListing(ctx context.Context, listingID uint64) (model.Listing, error) {
	values, err := g.callMarketplace(ctx, "getListing", new(big.Int).SetUint64(listingID))
	if err != nil {
		return model.Listing{}, err
	}
	if len(values) < 5 {
		return model.Listing{}, &ReadError{Op: "getListing", Err: fmt.Errorf("short return: %d values", len(values))}
	}

	tokenID, err := asUint64(values[0])
	if err != nil {
		return model.Listing{}, &ReadError{Op: "getListing", Err: err}
	}
	nftContract, err := asAddress(values[1])
	if err != nil {
		return model.Listing{}, &ReadError{Op: "getListing", Err: err}
	}
	seller, err := asAddress(values[2])
	if err != nil {
		return model.Listing{}, &ReadError{Op: "getListing", Err: err}
	}
	price, err := asBigInt(values[3])
	if err != nil {
		return model.Listing{}, &ReadError{Op: "getListing", Err: err}
	}
	active, err := asBool(values[4])
	if err != nil {
		return model.Listing{}, &ReadError{Op: "getListing", Err: err}
	}

	return model.Listing{
		ListingID:   listingID,
		TokenID:     tokenID,
		NFTContract: nftContract.Hex(),
		Seller:      seller.Hex(),
		PriceWei:    price,
		Price:       price.String(),
		Active:      active,
	}, nil
}

// CurrentListingID returns the marketplace's next-to-assign listing id.
func (g *Gateway) CurrentListingID(ctx context.Context) (uint64, error) {
	values, err := g.callMarketplace(ctx, "getCurrentListingId")
	if err != nil {
		return 0, err
	}
	return asUint64(values[0])
}

// WithdrawableEarnings returns seller's accumulated proceeds.
func (g *Gateway) WithdrawableEarnings(ctx context.Context, seller common.Address) (*big.Int, error) {
	values, err := g.callMarketplace(ctx, "withdrawableEarnings", seller)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// MarketplaceFee returns the marketplace fee parameter.
func (g *Gateway) MarketplaceFee(ctx context.Context) (*big.Int, error) {
	values, err := g.callMarketplace(ctx, "MARKETPLACE_FEE")
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// Balance returns the native-currency balance of account.
func (g *Gateway) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	var raw hexutil.Big
	err := withRetry(ctx, g.logger, g.cfg.MaxRetries, g.cfg.RetryBackoff, func(ctx context.Context) error {
		return g.provider.Request(ctx, &raw, "eth_getBalance", account, "latest")
	})
	if err != nil {
		return nil, &ReadError{Op: "eth_getBalance", Err: err}
	}
	return (*big.Int)(&raw), nil
}

func (g *Gateway) callNFT(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	parsed, err := NFTABI()
	if err != nil {
		return nil, err
	}
	return g.call(ctx, g.cfg.NFTAddress, parsed, method, args...)
}

func (g *Gateway) callMarketplace(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	parsed, err := MarketplaceABI()
	if err != nil {
		return nil, err
	}
	return g.call(ctx, g.cfg.MarketplaceAddress, parsed, method, args...)
}

func (g *Gateway) call(ctx context.Context, target common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	callArgs := map[string]interface{}{
		"to":   target,
		"data": hexutil.Bytes(data),
	}

	var resp hexutil.Bytes
	err = withRetry(ctx, g.logger, g.cfg.MaxRetries, g.cfg.RetryBackoff, func(ctx context.Context) error {
		return g.provider.Request(ctx, &resp, "eth_call", callArgs, "latest")
	})
	if err != nil {
		return nil, &ReadError{Op: method, Err: err}
	}

	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, &ReadError{Op: method, Err: fmt.Errorf("unpack: %w", err)}
	}
	return values, nil
}

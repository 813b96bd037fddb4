package market

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"monadmarket/internal/cache"
	"monadmarket/internal/contracts"
	"monadmarket/internal/model"
	"monadmarket/internal/session"
	"monadmarket/internal/txtrack"
)

// ErrMintEventMissing means a mint receipt carried no Transfer event to
// recover the new token id from.
var ErrMintEventMissing = errors.New("mint receipt has no transfer event")

// Notifier receives one user-visible message per workflow outcome, carrying
// the raw provider message on failure.
type Notifier func(level string, message string)

// Orchestrator composes session, gateway, tracker, and cache into the
// user-facing workflows: connect, mint, list, buy, delist, withdraw.
type Orchestrator struct {
	session *session.ChainSession
	gateway *contracts.Gateway
	tracker *txtrack.Tracker
	cache   *cache.ListingCache
	logger  *zap.Logger
	notify  Notifier

	mu           sync.Mutex
	listingLocks map[uint64]*sync.Mutex
}

// New wires the orchestrator and registers the session reset hooks: an empty
// account set drops the session, chain drift additionally discards the cache.
func New(sess *session.ChainSession, gateway *contracts.Gateway, tracker *txtrack.Tracker, listings *cache.ListingCache, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		session:      sess,
		gateway:      gateway,
		tracker:      tracker,
		cache:        listings,
		logger:       logger,
		listingLocks: make(map[uint64]*sync.Mutex),
	}
	sess.OnDisconnect(func() {
		o.emit("warning", "wallet disconnected")
	})
	sess.OnReset(func() {
		listings.Reset()
		o.emit("warning", "network changed, client state reset")
	})
	return o
}

// OnNotice registers the user-visible notification sink.
func (o *Orchestrator) OnNotice(fn Notifier) { o.notify = fn }

// Connect establishes the wallet session and primes the caches. Sweep
// failures do not fail the connect; the caches stay empty until the next
// refresh.
func (o *Orchestrator) Connect(ctx context.Context) (model.Session, error) {
	sess, err := o.session.Connect(ctx)
	if err != nil {
		return model.Session{}, o.fail("connect", err)
	}
	o.prime(ctx, sess)
	o.emit("success", "wallet connected")
	return sess, nil
}

// Resume connects silently when the wallet already authorized an account.
func (o *Orchestrator) Resume(ctx context.Context) (model.Session, bool, error) {
	sess, ok, err := o.session.Resume(ctx)
	if err != nil {
		return model.Session{}, false, o.fail("resume", err)
	}
	if ok {
		o.prime(ctx, sess)
	}
	return sess, ok, nil
}

// Session returns the current session snapshot.
func (o *Orchestrator) Session() model.Session { return o.session.Current() }

// Preview fetches and parses the metadata behind tokenURI before any mint is
// submitted, so the user can inspect what the token will look like. A failed
// preview never blocks the mint itself.
func (o *Orchestrator) Preview(ctx context.Context, tokenURI string) (model.TokenMetadata, error) {
	meta, err := o.cache.PreviewMetadata(ctx, tokenURI)
	if err != nil {
		return model.TokenMetadata{}, o.fail("preview", err)
	}
	return meta, nil
}

// Mint submits a mint of tokenURI, awaits finality, and returns the token id
// recovered from the receipt's Transfer event.
func (o *Orchestrator) Mint(ctx context.Context, tokenURI string) (uint64, error) {
	handle, err := o.gateway.Mint(ctx, tokenURI)
	if err != nil {
		return 0, o.fail("mint", err)
	}
	receipt, err := o.tracker.Await(ctx, handle)
	if err != nil {
		return 0, o.fail("mint", err)
	}

	tokenID, err := o.mintedTokenID(receipt.Logs)
	if err != nil {
		return 0, o.fail("mint", err)
	}

	if _, err := o.cache.RefreshHoldings(ctx, o.session.Current().Account); err != nil {
		o.logger.Warn("holdings refresh after mint failed", zap.Error(err))
	}
	o.emit("success", fmt.Sprintf("minted token %d", tokenID))
	return tokenID, nil
}

// List runs the two-phase approve-then-list protocol for tokenID at the
// decimal ether price. The listing is never submitted before a required
// approval confirms, and an unknown approval status aborts before any
// transaction is sent.
func (o *Orchestrator) List(ctx context.Context, tokenID uint64, price string) error {
	priceWei, err := model.ParseEther(price)
	if err != nil {
		return o.fail("list", err)
	}

	sess := o.session.Current()
	if !sess.Connected {
		return o.fail("list", contracts.ErrNotConnected)
	}

	approved, err := o.gateway.IsMarketplaceApproved(ctx, sess.Account)
	if err != nil {
		return o.fail("list", fmt.Errorf("approval status unknown: %w", err))
	}
	if !approved {
		handle, err := o.gateway.SetMarketplaceApproval(ctx, true)
		if err != nil {
			return o.fail("list", err)
		}
		if _, err := o.tracker.Await(ctx, handle); err != nil {
			return o.fail("list", fmt.Errorf("approval: %w", err))
		}
	}

	handle, err := o.gateway.ListItem(ctx, tokenID, priceWei)
	if err != nil {
		return o.fail("list", err)
	}
	if _, err := o.tracker.Await(ctx, handle); err != nil {
		return o.fail("list", err)
	}

	o.refreshMarket(ctx, sess.Account)
	o.emit("success", fmt.Sprintf("token %d listed at %s", tokenID, price))
	return nil
}

// Buy purchases listingID at the price recorded in the cache at call time.
// A since-changed on-chain price makes the transaction revert with a value
// mismatch; no pre-validation beyond the cached record is attempted.
func (o *Orchestrator) Buy(ctx context.Context, listingID uint64) error {
	unlock := o.lockListing(listingID)
	defer unlock()

	listing, err := o.cachedListing(ctx, listingID)
	if err != nil {
		return o.fail("buy", err)
	}

	handle, err := o.gateway.BuyItem(ctx, listingID, listing.PriceWei)
	if err != nil {
		return o.fail("buy", err)
	}
	if _, err := o.tracker.Await(ctx, handle); err != nil {
		return o.fail("buy", err)
	}

	o.refreshMarket(ctx, o.session.Current().Account)
	o.emit("success", fmt.Sprintf("bought listing %d", listingID))
	return nil
}

// Delist removes listingID, requiring the session account to be the recorded
// seller.
func (o *Orchestrator) Delist(ctx context.Context, listingID uint64) error {
	unlock := o.lockListing(listingID)
	defer unlock()

	listing, err := o.cachedListing(ctx, listingID)
	if err != nil {
		return o.fail("delist", err)
	}

	sess := o.session.Current()
	if !sess.Connected {
		return o.fail("delist", contracts.ErrNotConnected)
	}
	if common.HexToAddress(listing.Seller) != sess.Account {
		return o.fail("delist", fmt.Errorf("listing %d is not sold by %s", listingID, sess.Account.Hex()))
	}

	handle, err := o.gateway.DelistItem(ctx, listingID)
	if err != nil {
		return o.fail("delist", err)
	}
	if _, err := o.tracker.Await(ctx, handle); err != nil {
		return o.fail("delist", err)
	}

	if _, err := o.cache.RefreshListings(ctx); err != nil {
		o.logger.Warn("listings refresh after delist failed", zap.Error(err))
	}
	o.emit("success", fmt.Sprintf("listing %d removed", listingID))
	return nil
}

// Withdraw collects accumulated proceeds. A zero balance is a no-op that
// submits nothing.
func (o *Orchestrator) Withdraw(ctx context.Context) (*big.Int, error) {
	sess := o.session.Current()
	if !sess.Connected {
		return nil, o.fail("withdraw", contracts.ErrNotConnected)
	}

	earnings, err := o.gateway.WithdrawableEarnings(ctx, sess.Account)
	if err != nil {
		return nil, o.fail("withdraw", err)
	}
	if earnings.Sign() == 0 {
		o.emit("info", "no earnings to withdraw")
		return big.NewInt(0), nil
	}

	handle, err := o.gateway.WithdrawEarnings(ctx)
	if err != nil {
		return nil, o.fail("withdraw", err)
	}
	if _, err := o.tracker.Await(ctx, handle); err != nil {
		return nil, o.fail("withdraw", err)
	}

	o.emit("success", fmt.Sprintf("withdrew %s", model.FormatEther(earnings)))
	return earnings, nil
}

// Earnings returns the session account's withdrawable proceeds.
func (o *Orchestrator) Earnings(ctx context.Context) (*big.Int, error) {
	sess := o.session.Current()
	if !sess.Connected {
		return nil, contracts.ErrNotConnected
	}
	return o.gateway.WithdrawableEarnings(ctx, sess.Account)
}

// Balance returns the session account's native-currency balance.
func (o *Orchestrator) Balance(ctx context.Context) (*big.Int, error) {
	sess := o.session.Current()
	if !sess.Connected {
		return nil, contracts.ErrNotConnected
	}
	return o.gateway.Balance(ctx, sess.Account)
}

func (o *Orchestrator) mintedTokenID(logs []*types.Log) (uint64, error) {
	transferID, err := contracts.TransferEventID()
	if err != nil {
		return 0, err
	}
	nftAddr := o.gateway.NFTAddress()
	for _, entry := range logs {
		if entry == nil || entry.Address != nftAddr {
			continue
		}
		if len(entry.Topics) != 4 || entry.Topics[0] != transferID {
			continue
		}
		return entry.Topics[3].Big().Uint64(), nil
	}
	return 0, ErrMintEventMissing
}

// cachedListing serves Buy and Delist: the price and seller must come from
// the cache at click-time. One refresh covers the cold-start case.
func (o *Orchestrator) cachedListing(ctx context.Context, listingID uint64) (model.Listing, error) {
	if listing, ok := o.cache.Listing(listingID); ok {
		return listing, nil
	}
	if _, err := o.cache.RefreshListings(ctx); err != nil {
		return model.Listing{}, err
	}
	listing, ok := o.cache.Listing(listingID)
	if !ok {
		return model.Listing{}, fmt.Errorf("listing %d is not active", listingID)
	}
	return listing, nil
}

func (o *Orchestrator) lockListing(listingID uint64) func() {
	o.mu.Lock()
	lock, ok := o.listingLocks[listingID]
	if !ok {
		lock = &sync.Mutex{}
		o.listingLocks[listingID] = lock
	}
	o.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (o *Orchestrator) prime(ctx context.Context, sess model.Session) {
	if _, err := o.cache.RefreshListings(ctx); err != nil {
		o.logger.Warn("initial listings refresh failed", zap.Error(err))
	}
	if _, err := o.cache.RefreshHoldings(ctx, sess.Account); err != nil {
		o.logger.Warn("initial holdings refresh failed", zap.Error(err))
	}
}

func (o *Orchestrator) refreshMarket(ctx context.Context, account common.Address) {
	if _, err := o.cache.RefreshListings(ctx); err != nil {
		o.logger.Warn("listings refresh failed", zap.Error(err))
	}
	if _, err := o.cache.RefreshHoldings(ctx, account); err != nil {
		o.logger.Warn("holdings refresh failed", zap.Error(err))
	}
}

func (o *Orchestrator) fail(workflow string, err error) error {
	o.logger.Warn(workflow+" failed", zap.Error(err))
	o.emit("error", fmt.Sprintf("%s failed: %v", workflow, err))
	return fmt.Errorf("%s: %w", workflow, err)
}

func (o *Orchestrator) emit(level, message string) {
	if o.notify != nil {
		o.notify(level, message)
	}
}

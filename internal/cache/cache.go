package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"monadmarket/internal/model"
)

// Reader is the slice of the contract gateway the cache sweeps through.
type Reader interface {
	CurrentListingID(ctx context.Context) (uint64, error)
	GetListing(ctx context.Context, listingID uint64) (model.Listing, error)
	TotalSupply(ctx context.Context) (uint64, error)
	OwnerOf(ctx context.Context, tokenID uint64) (common.Address, error)
	TokenURI(ctx context.Context, tokenID uint64) (string, error)
}

// ListingCache projects current active listings and the user's holdings from
// the chain. Every refresh is a full sweep whose result replaces the cached
// set wholesale; overlapping sweeps race benignly with last-replace-wins.
type ListingCache struct {
	reader   Reader
	metadata *MetadataFetcher
	logger   *zap.Logger

	mu       sync.RWMutex
	listings []model.Listing
	holdings []model.OwnedToken
}

// New builds a ListingCache over the given reader.
func New(reader Reader, metadata *MetadataFetcher, logger *zap.Logger) *ListingCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingCache{reader: reader, metadata: metadata, logger: logger}
}

// RefreshListings sweeps listing ids 1..counter-1 and replaces the cached
// active set. Individual records that fail to load are skipped so one bad id
// never blanks the marketplace; only the counter read itself is fatal.
func (c *ListingCache) RefreshListings(ctx context.Context) ([]model.Listing, error) {
	counter, err := c.reader.CurrentListingID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read listing counter: %w", err)
	}

	listings := make([]model.Listing, 0)
	for id := uint64(1); id < counter; id++ {
		listing, err := c.reader.GetListing(ctx, id)
		if err != nil {
			c.logger.Warn("skip listing", zap.Uint64("listing_id", id), zap.Error(err))
			continue
		}
		if !listing.Active {
			continue
		}
		listing.Metadata = c.tokenMetadata(ctx, listing.TokenID)
		listings = append(listings, listing)
	}

	c.mu.Lock()
	c.listings = listings
	c.mu.Unlock()

	c.logger.Info("listings refreshed", zap.Int("active", len(listings)), zap.Uint64("scanned", counter))
	return c.Listings(), nil
}

// RefreshHoldings sweeps token ids 1..totalSupply and replaces the cached
// holdings for owner. Ids whose ownership query fails (burned or nonexistent
// tokens) are skipped silently.
func (c *ListingCache) RefreshHoldings(ctx context.Context, owner common.Address) ([]model.OwnedToken, error) {
	supply, err := c.reader.TotalSupply(ctx)
	if err != nil {
		return nil, fmt.Errorf("read total supply: %w", err)
	}

	listed := c.listedTokensBy(owner)

	holdings := make([]model.OwnedToken, 0)
	for id := uint64(1); id <= supply; id++ {
		tokenOwner, err := c.reader.OwnerOf(ctx, id)
		if err != nil {
			c.logger.Debug("skip token", zap.Uint64("token_id", id), zap.Error(err))
			continue
		}
		if tokenOwner != owner {
			continue
		}
		holdings = append(holdings, model.OwnedToken{
			TokenID:  id,
			Owner:    tokenOwner.Hex(),
			Listed:   listed[id],
			Metadata: c.tokenMetadata(ctx, id),
		})
	}

	c.mu.Lock()
	c.holdings = holdings
	c.mu.Unlock()

	c.logger.Info("holdings refreshed", zap.Int("owned", len(holdings)), zap.Uint64("supply", supply))
	return c.Holdings(), nil
}

// Listings returns a copy of the cached active listings in ascending id order.
func (c *ListingCache) Listings() []model.Listing {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Listing, len(c.listings))
	copy(out, c.listings)
	return out
}

// Holdings returns a copy of the cached holdings.
func (c *ListingCache) Holdings() []model.OwnedToken {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.OwnedToken, len(c.holdings))
	copy(out, c.holdings)
	return out
}

// Listing returns the cached record for listingID.
func (c *ListingCache) Listing(listingID uint64) (model.Listing, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, listing := range c.listings {
		if listing.ListingID == listingID {
			return listing, true
		}
	}
	return model.Listing{}, false
}

// Search filters the cached listings by token id or seller substring.
func (c *ListingCache) Search(term string) []model.Listing {
	listings := c.Listings()
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return listings
	}
	out := make([]model.Listing, 0, len(listings))
	for _, listing := range listings {
		if strings.Contains(fmt.Sprintf("%d", listing.TokenID), term) ||
			strings.Contains(strings.ToLower(listing.Seller), term) ||
			strings.Contains(strings.ToLower(listing.Metadata.Name), term) {
			out = append(out, listing)
		}
	}
	return out
}

// SortedByPrice returns the cached listings ordered by price. The underlying
// cache keeps scan order; sorting is a projection for display only.
func (c *ListingCache) SortedByPrice(ascending bool) []model.Listing {
	listings := c.Listings()
	sort.SliceStable(listings, func(i, j int) bool {
		cmp := listings[i].PriceWei.Cmp(listings[j].PriceWei)
		if ascending {
			return cmp < 0
		}
		return cmp > 0
	})
	return listings
}

// PreviewMetadata resolves an arbitrary token URI before any token exists for
// it, so a mint can be previewed.
func (c *ListingCache) PreviewMetadata(ctx context.Context, uri string) (model.TokenMetadata, error) {
	if c.metadata == nil {
		return model.TokenMetadata{}, fmt.Errorf("no metadata fetcher configured")
	}
	return c.metadata.Preview(ctx, uri)
}

// Reset discards all cached state, used when the chain changes underneath us.
func (c *ListingCache) Reset() {
	c.mu.Lock()
	c.listings = nil
	c.holdings = nil
	c.mu.Unlock()
}

func (c *ListingCache) tokenMetadata(ctx context.Context, tokenID uint64) model.TokenMetadata {
	if c.metadata == nil {
		return model.PlaceholderMetadata(tokenID)
	}
	uri, err := c.reader.TokenURI(ctx, tokenID)
	if err != nil {
		c.logger.Debug("token uri read failed", zap.Uint64("token_id", tokenID), zap.Error(err))
		return model.PlaceholderMetadata(tokenID)
	}
	return c.metadata.Fetch(ctx, uri, tokenID)
}

func (c *ListingCache) listedTokensBy(owner common.Address) map[uint64]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	listed := make(map[uint64]bool)
	for _, listing := range c.listings {
		if common.HexToAddress(listing.Seller) == owner {
			listed[listing.TokenID] = true
		}
	}
	return listed
}

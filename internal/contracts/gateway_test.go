package contracts_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"monadmarket/internal/contracts"
	"monadmarket/internal/model"
	"monadmarket/internal/provider/stub"
)

var (
	nftAddr    = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	marketAddr = common.HexToAddress("0x00000000000000000000000000000000000000B2")
	seller     = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

type fakeSession struct {
	session model.Session
}

func (f *fakeSession) Current() model.Session { return f.session }

func connectedSession() *fakeSession {
	return &fakeSession{session: model.Session{Account: seller, ChainID: 10143, Connected: true}}
}

func newGateway(t *testing.T, sess contracts.SessionSource) (*contracts.Gateway, *stub.Provider, *stub.Market) {
	t.Helper()
	market := stub.NewMarket(nftAddr, marketAddr)
	p := stub.NewProvider(10143, market, seller.Hex())
	gateway := contracts.New(contracts.Config{NFTAddress: nftAddr, MarketplaceAddress: marketAddr}, p, sess, nil)
	return gateway, p, market
}

func TestMutatingCallsRequireSession(t *testing.T) {
	gateway, p, _ := newGateway(t, &fakeSession{})

	if _, err := gateway.Mint(context.Background(), "ipfs://x"); !errors.Is(err, contracts.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if _, err := gateway.ListItem(context.Background(), 1, big.NewInt(1)); !errors.Is(err, contracts.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if p.CallCount("eth_sendTransaction") != 0 {
		t.Fatalf("no transaction may be submitted without a session")
	}
}

func TestReadsWorkWithoutSession(t *testing.T) {
	gateway, _, market := newGateway(t, &fakeSession{})
	market.MintToken(seller, "ipfs://a")

	supply, err := gateway.TotalSupply(context.Background())
	if err != nil {
		t.Fatalf("total supply: %v", err)
	}
	if supply != 1 {
		t.Fatalf("supply mismatch: %d", supply)
	}
}

func TestGetListingRoundTrip(t *testing.T) {
	gateway, _, market := newGateway(t, connectedSession())
	tokenID := market.MintToken(seller, "ipfs://a")
	price, _ := new(big.Int).SetString("500000000000000000", 10)
	listingID := market.SeedListing(tokenID, seller, price)

	listing, err := gateway.GetListing(context.Background(), listingID)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if listing.ListingID != listingID || listing.TokenID != tokenID {
		t.Fatalf("listing mismatch: %+v", listing)
	}
	if listing.PriceWei.Cmp(price) != 0 {
		t.Fatalf("price mismatch: %s", listing.PriceWei)
	}
	if !listing.Active {
		t.Fatalf("listing should be active")
	}
	if listing.Seller != seller.Hex() {
		t.Fatalf("seller mismatch: %s", listing.Seller)
	}
}

func TestGetListingReadError(t *testing.T) {
	gateway, _, market := newGateway(t, connectedSession())
	market.FailListing(7, true)

	_, err := gateway.GetListing(context.Background(), 7)
	if err == nil {
		t.Fatalf("expected read error")
	}
	var readErr *contracts.ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected ReadError, got %T", err)
	}
}

func TestIsMarketplaceApproved(t *testing.T) {
	gateway, _, _ := newGateway(t, connectedSession())

	approved, err := gateway.IsMarketplaceApproved(context.Background(), seller)
	if err != nil {
		t.Fatalf("approval read: %v", err)
	}
	if approved {
		t.Fatalf("fresh account must not be approved")
	}
}

func TestBuyItemCarriesValue(t *testing.T) {
	gateway, p, market := newGateway(t, connectedSession())
	tokenID := market.MintToken(seller, "ipfs://a")
	price := big.NewInt(12345)
	listingID := market.SeedListing(tokenID, seller, price)

	if _, err := gateway.BuyItem(context.Background(), listingID, price); err != nil {
		t.Fatalf("buy: %v", err)
	}

	calls := p.Calls("eth_sendTransaction")
	if len(calls) != 1 {
		t.Fatalf("expected one transaction, got %d", len(calls))
	}
}

func TestMarketplaceFee(t *testing.T) {
	gateway, _, _ := newGateway(t, connectedSession())

	fee, err := gateway.MarketplaceFee(context.Background())
	if err != nil {
		t.Fatalf("fee read: %v", err)
	}
	if fee.Sign() <= 0 {
		t.Fatalf("fee must be positive, got %s", fee)
	}
}

func TestBalanceRead(t *testing.T) {
	gateway, _, market := newGateway(t, connectedSession())
	market.SetNativeBalance(seller, big.NewInt(999))

	balance, err := gateway.Balance(context.Background(), seller)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(999)) != 0 {
		t.Fatalf("balance mismatch: %s", balance)
	}
}

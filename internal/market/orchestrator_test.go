package market

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"monadmarket/internal/cache"
	"monadmarket/internal/contracts"
	"monadmarket/internal/provider"
	"monadmarket/internal/provider/stub"
	"monadmarket/internal/session"
	"monadmarket/internal/txtrack"
)

var (
	nftAddr    = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	marketAddr = common.HexToAddress("0x00000000000000000000000000000000000000B2")
	sellerAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	buyerAddr  = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func monadNetwork() provider.Network {
	return provider.Network{
		ChainID:          10143,
		ChainIDHex:       "0x279F",
		Name:             "Monad Testnet",
		CurrencyName:     "ETH",
		CurrencySymbol:   "ETH",
		CurrencyDecimals: 18,
		RPCURLs:          []string{"https://testnet-rpc.monad.xyz"},
	}
}

// newActor wires one full client stack over its own provider, sharing the
// simulated market with any other actor.
func newActor(t *testing.T, simulated *stub.Market, chainID uint64, account common.Address) (*Orchestrator, *stub.Provider) {
	t.Helper()
	p := stub.NewProvider(chainID, simulated, account.Hex())
	sess := session.New(p, monadNetwork(), nil)
	gateway := contracts.New(contracts.Config{NFTAddress: nftAddr, MarketplaceAddress: marketAddr}, p, sess, nil)
	tracker := txtrack.New(p, time.Millisecond, nil)
	listings := cache.New(gateway, nil, nil)
	return New(sess, gateway, tracker, listings, nil), p
}

func connect(t *testing.T, o *Orchestrator) {
	t.Helper()
	if _, err := o.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
}

func sentTx(t *testing.T, call stub.Call) (common.Address, []byte, *big.Int) {
	t.Helper()
	var args struct {
		To    common.Address `json:"to"`
		Data  hexutil.Bytes  `json:"data"`
		Value *hexutil.Big   `json:"value"`
	}
	raw, err := json.Marshal(call.Params[0])
	if err != nil {
		t.Fatalf("marshal tx params: %v", err)
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		t.Fatalf("unmarshal tx params: %v", err)
	}
	value := big.NewInt(0)
	if args.Value != nil {
		value = (*big.Int)(args.Value)
	}
	return args.To, args.Data, value
}

func approvalCount(t *testing.T, p *stub.Provider) int {
	t.Helper()
	parsed, err := contracts.NFTABI()
	if err != nil {
		t.Fatalf("nft abi: %v", err)
	}
	selector := parsed.Methods["setApprovalForAll"].ID
	n := 0
	for _, call := range p.Calls("eth_sendTransaction") {
		_, data, _ := sentTx(t, call)
		if len(data) >= 4 && bytes.Equal(data[:4], selector) {
			n++
		}
	}
	return n
}

func TestMintRecoversTokenID(t *testing.T) {
	simulated := stub.NewMarket(nftAddr, marketAddr)
	o, _ := newActor(t, simulated, 10143, sellerAddr)
	connect(t, o)

	tokenID, err := o.Mint(context.Background(), "ipfs://x")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if tokenID != 1 {
		t.Fatalf("token id mismatch: %d", tokenID)
	}
}

func TestPreviewBeforeMint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/meta.json":
			w.Write([]byte(`{"name":"Sunset","description":"A sunset"}`))
		default:
			w.Write([]byte(`not json`))
		}
	}))
	defer server.Close()

	simulated := stub.NewMarket(nftAddr, marketAddr)
	p := stub.NewProvider(10143, simulated, sellerAddr.Hex())
	sess := session.New(p, monadNetwork(), nil)
	gateway := contracts.New(contracts.Config{NFTAddress: nftAddr, MarketplaceAddress: marketAddr}, p, sess, nil)
	tracker := txtrack.New(p, time.Millisecond, nil)
	listings := cache.New(gateway, cache.NewMetadataFetcher(time.Second, nil), nil)
	o := New(sess, gateway, tracker, listings, nil)
	connect(t, o)

	meta, err := o.Preview(context.Background(), server.URL+"/meta.json")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if meta.Name != "Sunset" {
		t.Fatalf("preview mismatch: %+v", meta)
	}

	// A failed preview surfaces its error but never blocks the mint itself.
	if _, err := o.Preview(context.Background(), server.URL+"/broken.json"); err == nil {
		t.Fatalf("expected preview error")
	}
	tokenID, err := o.Mint(context.Background(), server.URL+"/broken.json")
	if err != nil {
		t.Fatalf("mint after failed preview: %v", err)
	}
	if tokenID != 1 {
		t.Fatalf("token id mismatch: %d", tokenID)
	}
}

func TestListApprovesOnlyOnce(t *testing.T) {
	simulated := stub.NewMarket(nftAddr, marketAddr)
	o, p := newActor(t, simulated, 10143, sellerAddr)
	connect(t, o)

	first, err := o.Mint(context.Background(), "ipfs://1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := o.List(context.Background(), first, "0.5"); err != nil {
		t.Fatalf("first list: %v", err)
	}
	if got := approvalCount(t, p); got != 1 {
		t.Fatalf("expected one approval transaction, got %d", got)
	}

	second, err := o.Mint(context.Background(), "ipfs://2")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := o.List(context.Background(), second, "1"); err != nil {
		t.Fatalf("second list: %v", err)
	}
	if got := approvalCount(t, p); got != 1 {
		t.Fatalf("approval must not repeat, got %d", got)
	}
}

func TestListRejectsBadPriceBeforeAnyTransaction(t *testing.T) {
	simulated := stub.NewMarket(nftAddr, marketAddr)
	o, p := newActor(t, simulated, 10143, sellerAddr)
	connect(t, o)

	if err := o.List(context.Background(), 1, "not-a-number"); err == nil {
		t.Fatalf("expected price parse error")
	}
	if got := p.CallCount("eth_sendTransaction"); got != 0 {
		t.Fatalf("no transaction may be submitted, got %d", got)
	}
}

func TestBuySubmitsCachedPrice(t *testing.T) {
	simulated := stub.NewMarket(nftAddr, marketAddr)
	tokenID := simulated.MintToken(sellerAddr, "ipfs://x")
	price := big.NewInt(12345)
	listingID := simulated.SeedListing(tokenID, sellerAddr, price)

	o, p := newActor(t, simulated, 10143, buyerAddr)
	connect(t, o)

	if err := o.Buy(context.Background(), listingID); err != nil {
		t.Fatalf("buy: %v", err)
	}

	calls := p.Calls("eth_sendTransaction")
	if len(calls) != 1 {
		t.Fatalf("expected one transaction, got %d", len(calls))
	}
	to, _, value := sentTx(t, calls[0])
	if to != marketAddr {
		t.Fatalf("wrong target contract: %s", to.Hex())
	}
	if value.Cmp(price) != 0 {
		t.Fatalf("value mismatch: %s", value)
	}
}

func TestWithdrawWithZeroEarningsSubmitsNothing(t *testing.T) {
	simulated := stub.NewMarket(nftAddr, marketAddr)
	o, p := newActor(t, simulated, 10143, sellerAddr)
	connect(t, o)

	amount, err := o.Withdraw(context.Background())
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if amount.Sign() != 0 {
		t.Fatalf("expected zero amount, got %s", amount)
	}
	if got := p.CallCount("eth_sendTransaction"); got != 0 {
		t.Fatalf("zero-earnings withdraw must not submit, got %d", got)
	}
}

func TestDelistRequiresSeller(t *testing.T) {
	simulated := stub.NewMarket(nftAddr, marketAddr)
	tokenID := simulated.MintToken(sellerAddr, "ipfs://x")
	listingID := simulated.SeedListing(tokenID, sellerAddr, big.NewInt(100))

	o, p := newActor(t, simulated, 10143, buyerAddr)

	var notices []string
	o.OnNotice(func(level, message string) { notices = append(notices, level) })
	connect(t, o)

	if err := o.Delist(context.Background(), listingID); err == nil {
		t.Fatalf("expected seller mismatch error")
	}
	if got := p.CallCount("eth_sendTransaction"); got != 0 {
		t.Fatalf("no transaction may be submitted, got %d", got)
	}
	if len(notices) == 0 || notices[len(notices)-1] != "error" {
		t.Fatalf("expected error notice, got %v", notices)
	}
}

func TestChainChangeDiscardsCache(t *testing.T) {
	simulated := stub.NewMarket(nftAddr, marketAddr)
	tokenID := simulated.MintToken(sellerAddr, "ipfs://x")
	simulated.SeedListing(tokenID, sellerAddr, big.NewInt(100))

	o, p := newActor(t, simulated, 10143, sellerAddr)
	connect(t, o)
	if len(o.cache.Listings()) != 1 {
		t.Fatalf("cache not primed on connect")
	}

	p.EmitChainChanged(1)
	if o.Session().Connected {
		t.Fatalf("session must drop on chain change")
	}
	if len(o.cache.Listings()) != 0 {
		t.Fatalf("cache must reset on chain change")
	}
}

func TestMarketplaceRoundTrip(t *testing.T) {
	simulated := stub.NewMarket(nftAddr, marketAddr)

	// The seller's wallet starts on a foreign chain and gets registered and
	// switched during connect.
	seller, sellerProvider := newActor(t, simulated, 1, sellerAddr)
	connect(t, seller)
	if got := sellerProvider.ChainID(); got != 10143 {
		t.Fatalf("seller still on chain %d", got)
	}

	tokenID, err := seller.Mint(context.Background(), "ipfs://x")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := seller.List(context.Background(), tokenID, "0.5"); err != nil {
		t.Fatalf("list: %v", err)
	}

	listings := seller.cache.Listings()
	if len(listings) != 1 {
		t.Fatalf("expected one active listing, got %d", len(listings))
	}
	wantPrice, _ := new(big.Int).SetString("500000000000000000", 10)
	if listings[0].PriceWei.Cmp(wantPrice) != 0 {
		t.Fatalf("listing price mismatch: %s", listings[0].PriceWei)
	}

	buyer, _ := newActor(t, simulated, 10143, buyerAddr)
	connect(t, buyer)
	if err := buyer.Buy(context.Background(), listings[0].ListingID); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if len(buyer.cache.Listings()) != 0 {
		t.Fatalf("listing must leave the active set after purchase")
	}
	holdings := buyer.cache.Holdings()
	if len(holdings) != 1 || holdings[0].TokenID != tokenID {
		t.Fatalf("buyer holdings mismatch: %+v", holdings)
	}

	earnings, err := seller.Earnings(context.Background())
	if err != nil {
		t.Fatalf("earnings: %v", err)
	}
	if earnings.Sign() <= 0 {
		t.Fatalf("seller earnings must accrue, got %s", earnings)
	}

	withdrawn, err := seller.Withdraw(context.Background())
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if withdrawn.Cmp(earnings) != 0 {
		t.Fatalf("withdrawn %s, accrued %s", withdrawn, earnings)
	}
	if simulated.Earnings(sellerAddr).Sign() != 0 {
		t.Fatalf("earnings must be zero after withdraw")
	}
}

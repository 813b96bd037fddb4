package txtrack

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

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

type fakeSession struct{}

func (fakeSession) Current() model.Session {
	return model.Session{Account: seller, ChainID: 10143, Connected: true}
}

func newFixture(t *testing.T) (*contracts.Gateway, *stub.Provider, *stub.Market) {
	t.Helper()
	market := stub.NewMarket(nftAddr, marketAddr)
	p := stub.NewProvider(10143, market, seller.Hex())
	gateway := contracts.New(contracts.Config{NFTAddress: nftAddr, MarketplaceAddress: marketAddr}, p, fakeSession{}, nil)
	return gateway, p, market
}

func TestAwaitConfirmsMint(t *testing.T) {
	gateway, p, _ := newFixture(t)
	tracker := New(p, time.Millisecond, nil)

	handle, err := gateway.Mint(context.Background(), "ipfs://x")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	receipt, err := tracker.Await(context.Background(), handle)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if len(receipt.Logs) != 1 {
		t.Fatalf("expected one transfer log, got %d", len(receipt.Logs))
	}

	ledger := tracker.Ledger()
	if len(ledger) != 1 || ledger[0].State != model.TxConfirmed || ledger[0].Kind != model.TxMint {
		t.Fatalf("ledger mismatch: %+v", ledger)
	}
}

func TestAwaitPollsUntilMined(t *testing.T) {
	gateway, p, market := newFixture(t)
	tracker := New(p, time.Millisecond, nil)

	market.DelayNextReceipt(3)
	handle, err := gateway.Mint(context.Background(), "ipfs://x")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := tracker.Await(context.Background(), handle); err != nil {
		t.Fatalf("await: %v", err)
	}
	if got := p.CallCount("eth_getTransactionReceipt"); got < 4 {
		t.Fatalf("expected at least 4 receipt polls, got %d", got)
	}
}

func TestAwaitRidesOutTransientFetchError(t *testing.T) {
	gateway, p, _ := newFixture(t)
	tracker := New(p, time.Millisecond, nil)

	handle, err := gateway.Mint(context.Background(), "ipfs://x")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	p.FailNextRequest("eth_getTransactionReceipt", fmt.Errorf("connection reset"))

	receipt, err := tracker.Await(context.Background(), handle)
	if err != nil {
		t.Fatalf("await must survive one fetch error: %v", err)
	}
	if receipt.Status != 1 {
		t.Fatalf("unexpected status %d", receipt.Status)
	}

	ledger := tracker.Ledger()
	if len(ledger) != 1 || ledger[0].State != model.TxConfirmed {
		t.Fatalf("ledger mismatch: %+v", ledger)
	}
}

func TestAwaitLeavesLedgerPendingOnFetchFailure(t *testing.T) {
	gateway, p, _ := newFixture(t)
	tracker := New(p, time.Millisecond, nil)

	handle, err := gateway.Mint(context.Background(), "ipfs://x")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	p.FailMethod("eth_getTransactionReceipt", fmt.Errorf("endpoint down"))

	_, err = tracker.Await(context.Background(), handle)
	if err == nil {
		t.Fatalf("expected fetch error")
	}
	if errors.Is(err, ErrReverted) {
		t.Fatalf("a fetch failure is not a reversion: %v", err)
	}

	// The transaction's fate is unknown, so the entry must not read failed.
	ledger := tracker.Ledger()
	if len(ledger) != 1 || ledger[0].State != model.TxPending {
		t.Fatalf("ledger mismatch: %+v", ledger)
	}
}

func TestAwaitSurfacesReversion(t *testing.T) {
	gateway, p, market := newFixture(t)
	tracker := New(p, time.Millisecond, nil)

	// Listing without marketplace approval reverts on chain.
	tokenID := market.MintToken(seller, "ipfs://x")
	handle, err := gateway.ListItem(context.Background(), tokenID, common.Big1)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err = tracker.Await(context.Background(), handle)
	if !errors.Is(err, ErrReverted) {
		t.Fatalf("expected ErrReverted, got %v", err)
	}

	ledger := tracker.Ledger()
	if len(ledger) != 1 || ledger[0].State != model.TxFailed {
		t.Fatalf("ledger mismatch: %+v", ledger)
	}
}

func TestAwaitHonorsDeadline(t *testing.T) {
	gateway, p, market := newFixture(t)
	tracker := New(p, time.Millisecond, nil)

	market.DelayNextReceipt(1 << 30)
	handle, err := gateway.Mint(context.Background(), "ipfs://x")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := tracker.Await(ctx, handle); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

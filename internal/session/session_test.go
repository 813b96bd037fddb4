package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"monadmarket/internal/provider"
	"monadmarket/internal/provider/stub"
)

const sellerAddr = "0x1111111111111111111111111111111111111111"

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

func TestConnectOnRequiredChain(t *testing.T) {
	p := stub.NewProvider(10143, nil, sellerAddr)
	sess := New(p, monadNetwork(), nil)

	got, err := sess.Connect(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !got.Connected || got.ChainID != 10143 {
		t.Fatalf("session mismatch: %+v", got)
	}
	if got.Account != common.HexToAddress(sellerAddr) {
		t.Fatalf("account mismatch: %s", got.Account.Hex())
	}
	if p.CallCount("wallet_switchEthereumChain") != 0 {
		t.Fatalf("unexpected switch request")
	}
}

func TestConnectSwitchesKnownChain(t *testing.T) {
	p := stub.NewProvider(1, nil, sellerAddr)
	p.AddKnownChain(10143)
	sess := New(p, monadNetwork(), nil)

	got, err := sess.Connect(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if got.ChainID != 10143 {
		t.Fatalf("still on chain %d", got.ChainID)
	}
	if p.CallCount("wallet_switchEthereumChain") != 1 {
		t.Fatalf("expected one switch request, got %d", p.CallCount("wallet_switchEthereumChain"))
	}
	if p.CallCount("wallet_addEthereumChain") != 0 {
		t.Fatalf("unexpected add chain request")
	}
}

func TestConnectRegistersUnknownChain(t *testing.T) {
	p := stub.NewProvider(1, nil, sellerAddr)
	sess := New(p, monadNetwork(), nil)

	got, err := sess.Connect(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if got.ChainID != 10143 {
		t.Fatalf("still on chain %d", got.ChainID)
	}
	if p.CallCount("wallet_addEthereumChain") != 1 {
		t.Fatalf("expected one add chain request, got %d", p.CallCount("wallet_addEthereumChain"))
	}
}

func TestConnectSwitchFailureIsTerminal(t *testing.T) {
	p := stub.NewProvider(1, nil, sellerAddr)
	p.AddKnownChain(10143)
	p.FailMethod("wallet_switchEthereumChain", fmt.Errorf("wallet unavailable"))
	sess := New(p, monadNetwork(), nil)

	_, err := sess.Connect(context.Background())
	if !errors.Is(err, ErrNetworkSwitchFailed) {
		t.Fatalf("expected ErrNetworkSwitchFailed, got %v", err)
	}
	if sess.Current().Connected {
		t.Fatalf("session must not connect on the wrong chain")
	}
}

func TestConnectAddChainFailureIsTerminal(t *testing.T) {
	p := stub.NewProvider(1, nil, sellerAddr)
	p.FailMethod("wallet_addEthereumChain", fmt.Errorf("wallet unavailable"))
	sess := New(p, monadNetwork(), nil)

	_, err := sess.Connect(context.Background())
	if !errors.Is(err, ErrNetworkSwitchFailed) {
		t.Fatalf("expected ErrNetworkSwitchFailed, got %v", err)
	}
	if sess.Current().Connected {
		t.Fatalf("session must not connect on the wrong chain")
	}
}

func TestConnectUserRejection(t *testing.T) {
	p := stub.NewProvider(10143, nil, sellerAddr)
	p.RejectRequests(true)
	sess := New(p, monadNetwork(), nil)

	_, err := sess.Connect(context.Background())
	if !errors.Is(err, ErrUserRejected) {
		t.Fatalf("expected ErrUserRejected, got %v", err)
	}
}

func TestConnectWithoutProvider(t *testing.T) {
	sess := New(nil, monadNetwork(), nil)
	if _, err := sess.Connect(context.Background()); !errors.Is(err, ErrNoWalletProvider) {
		t.Fatalf("expected ErrNoWalletProvider, got %v", err)
	}
}

func TestResumeWithoutAuthorization(t *testing.T) {
	p := stub.NewProvider(10143, nil)
	sess := New(p, monadNetwork(), nil)

	_, ok, err := sess.Resume(context.Background())
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if ok {
		t.Fatalf("resume must not connect without prior authorization")
	}
	if p.CallCount("eth_requestAccounts") != 0 {
		t.Fatalf("resume must not prompt")
	}
}

func TestAccountsChangedEmptyTearsDown(t *testing.T) {
	p := stub.NewProvider(10143, nil, sellerAddr)
	sess := New(p, monadNetwork(), nil)

	disconnected := false
	sess.OnDisconnect(func() { disconnected = true })

	if _, err := sess.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	p.EmitAccountsChanged(nil)
	if sess.Current().Connected {
		t.Fatalf("session must be torn down on empty account set")
	}
	if !disconnected {
		t.Fatalf("disconnect callback not fired")
	}
}

func TestAccountsChangedReconnects(t *testing.T) {
	next := "0x2222222222222222222222222222222222222222"
	p := stub.NewProvider(10143, nil, sellerAddr)
	sess := New(p, monadNetwork(), nil)

	if _, err := sess.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	p.EmitAccountsChanged([]string{next})
	got := sess.Current()
	if !got.Connected || got.Account != common.HexToAddress(next) {
		t.Fatalf("session not rebuilt for new account: %+v", got)
	}
}

func TestChainChangedResets(t *testing.T) {
	p := stub.NewProvider(10143, nil, sellerAddr)
	sess := New(p, monadNetwork(), nil)

	reset := false
	sess.OnReset(func() { reset = true })

	if _, err := sess.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	p.EmitChainChanged(1)
	if sess.Current().Connected {
		t.Fatalf("session must be torn down on chain change")
	}
	if !reset {
		t.Fatalf("reset callback not fired")
	}
}

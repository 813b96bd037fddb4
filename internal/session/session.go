package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"monadmarket/internal/model"
	"monadmarket/internal/provider"
)

var (
	// ErrNoWalletProvider means no injected provider object is available.
	ErrNoWalletProvider = errors.New("no wallet provider")
	// ErrUserRejected means the user declined the account or chain request.
	ErrUserRejected = errors.New("user rejected request")
	// ErrNetworkSwitchFailed means the wallet could not switch to or register
	// the required network.
	ErrNetworkSwitchFailed = errors.New("network switch failed")
)

// ChainSession owns the wallet connection: it establishes a chain-verified
// session and tears it down on account or chain change notifications.
type ChainSession struct {
	provider provider.Provider
	network  provider.Network
	logger   *zap.Logger

	mu      sync.RWMutex
	current model.Session

	listenOnce sync.Once

	onDisconnect func()
	onReset      func()
}

// New builds a ChainSession for the required network. The provider may be nil;
// Connect then fails with ErrNoWalletProvider.
func New(p provider.Provider, network provider.Network, logger *zap.Logger) *ChainSession {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainSession{provider: p, network: network, logger: logger}
}

// OnDisconnect registers a callback invoked when the wallet reports an empty
// account set.
func (s *ChainSession) OnDisconnect(fn func()) {
	s.mu.Lock()
	s.onDisconnect = fn
	s.mu.Unlock()
}

// OnReset registers a callback invoked on chain-change drift. Cached contract
// state is chain-specific, so the owner must discard everything and start over.
func (s *ChainSession) OnReset(fn func()) {
	s.mu.Lock()
	s.onReset = fn
	s.mu.Unlock()
}

// Current returns the session snapshot.
func (s *ChainSession) Current() model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Connect establishes a session: request accounts, verify the chain, switching
// or registering the required network when needed, then snapshot the result.
func (s *ChainSession) Connect(ctx context.Context) (model.Session, error) {
	if s.provider == nil {
		return model.Session{}, ErrNoWalletProvider
	}

	accounts, err := s.requestAccounts(ctx, "eth_requestAccounts")
	if err != nil {
		return model.Session{}, err
	}
	if len(accounts) == 0 {
		return model.Session{}, fmt.Errorf("%w: no accounts authorized", ErrUserRejected)
	}
	account := common.HexToAddress(accounts[0])

	chainID, err := s.chainID(ctx)
	if err != nil {
		return model.Session{}, fmt.Errorf("read chain id: %w", err)
	}

	if chainID != s.network.ChainID {
		if err := s.ensureNetwork(ctx); err != nil {
			return model.Session{}, err
		}
		chainID, err = s.chainID(ctx)
		if err != nil {
			return model.Session{}, fmt.Errorf("read chain id after switch: %w", err)
		}
		if chainID != s.network.ChainID {
			return model.Session{}, fmt.Errorf("%w: still on chain %d", ErrNetworkSwitchFailed, chainID)
		}
	}

	sess := model.Session{Account: account, ChainID: chainID, Connected: true}
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	s.listenOnce.Do(func() {
		s.provider.OnAccountsChanged(s.handleAccountsChanged)
		s.provider.OnChainChanged(s.handleChainChanged)
	})

	s.logger.Info("wallet connected",
		zap.String("account", account.Hex()),
		zap.Uint64("chain_id", chainID),
	)
	return sess, nil
}

// Resume connects silently when an account is already authorized, without
// prompting the user. Returns false when no prior authorization exists.
func (s *ChainSession) Resume(ctx context.Context) (model.Session, bool, error) {
	if s.provider == nil {
		return model.Session{}, false, ErrNoWalletProvider
	}
	accounts, err := s.requestAccounts(ctx, "eth_accounts")
	if err != nil {
		return model.Session{}, false, err
	}
	if len(accounts) == 0 {
		return model.Session{}, false, nil
	}
	sess, err := s.Connect(ctx)
	if err != nil {
		return model.Session{}, false, err
	}
	return sess, true, nil
}

// Disconnect clears the session snapshot.
func (s *ChainSession) Disconnect() {
	s.mu.Lock()
	s.current = model.Session{}
	s.mu.Unlock()
}

func (s *ChainSession) requestAccounts(ctx context.Context, method string) ([]string, error) {
	var accounts []string
	if err := s.provider.Request(ctx, &accounts, method); err != nil {
		if provider.Code(err) == provider.CodeUserRejected {
			return nil, fmt.Errorf("%w: %v", ErrUserRejected, err)
		}
		return nil, fmt.Errorf("request accounts: %w", err)
	}
	return accounts, nil
}

func (s *ChainSession) chainID(ctx context.Context) (uint64, error) {
	var raw string
	if err := s.provider.Request(ctx, &raw, "eth_chainId"); err != nil {
		return 0, err
	}
	return parseChainID(raw)
}

// ensureNetwork asks the wallet to switch to the required chain, registering
// it first when the wallet does not know it.
func (s *ChainSession) ensureNetwork(ctx context.Context) error {
	switchParams := provider.SwitchChainParams{ChainID: s.network.ChainIDHex}
	err := s.provider.Request(ctx, nil, "wallet_switchEthereumChain", switchParams)
	if err == nil {
		return nil
	}
	if provider.Code(err) == provider.CodeUserRejected {
		return fmt.Errorf("%w: %v", ErrUserRejected, err)
	}
	if provider.Code(err) != provider.CodeUnknownChain {
		return fmt.Errorf("%w: %v", ErrNetworkSwitchFailed, err)
	}

	s.logger.Info("registering network with wallet", zap.String("chain", s.network.Name))
	if err := s.provider.Request(ctx, nil, "wallet_addEthereumChain", s.network.AddChainParams()); err != nil {
		if provider.Code(err) == provider.CodeUserRejected {
			return fmt.Errorf("%w: %v", ErrUserRejected, err)
		}
		return fmt.Errorf("%w: add chain: %v", ErrNetworkSwitchFailed, err)
	}
	return nil
}

func (s *ChainSession) handleAccountsChanged(accounts []string) {
	if len(accounts) == 0 {
		s.logger.Warn("wallet disconnected")
		s.Disconnect()
		s.mu.RLock()
		fn := s.onDisconnect
		s.mu.RUnlock()
		if fn != nil {
			fn()
		}
		return
	}

	current := s.Current()
	next := common.HexToAddress(accounts[0])
	if current.Connected && next == current.Account {
		return
	}

	s.logger.Info("wallet account changed", zap.String("account", next.Hex()))
	if _, err := s.Connect(context.Background()); err != nil {
		s.logger.Warn("reconnect after account change failed", zap.Error(err))
		s.Disconnect()
	}
}

// handleChainChanged treats chain drift as unrecoverable: the session is torn
// down and the reset callback discards all chain-specific state.
func (s *ChainSession) handleChainChanged(chainID string) {
	s.logger.Warn("chain changed, resetting client state", zap.String("chain_id", chainID))
	s.Disconnect()
	s.mu.RLock()
	fn := s.onReset
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func parseChainID(raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		value, err := hexutil.DecodeUint64(strings.ToLower(raw))
		if err != nil {
			return 0, fmt.Errorf("parse chain id %q: %w", raw, err)
		}
		return value, nil
	}
	var value uint64
	if _, err := fmt.Sscanf(raw, "%d", &value); err != nil {
		return 0, fmt.Errorf("parse chain id %q: %w", raw, err)
	}
	return value, nil
}

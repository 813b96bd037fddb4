package txtrack

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"monadmarket/internal/model"
	"monadmarket/internal/provider"
)

// ErrReverted means the transaction was mined but its execution failed. It is
// never retried automatically; the user must re-initiate.
var ErrReverted = errors.New("transaction reverted")

const (
	defaultPollInterval = 2 * time.Second

	// maxFetchFailures bounds consecutive receipt fetch errors tolerated
	// before Await gives up. The transaction itself is unaffected by a fetch
	// error, so the ledger entry stays pending in that case.
	maxFetchFailures = 3
)

// Tracker resolves submitted transactions into receipts and keeps an
// in-memory ledger of their lifecycle. The ledger is intentionally volatile;
// reconciliation sweeps recover true state after a restart.
type Tracker struct {
	provider     provider.Provider
	logger       *zap.Logger
	pollInterval time.Duration

	mu     sync.Mutex
	ledger []model.PendingTransaction
}

// New builds a Tracker. pollInterval <= 0 selects the default.
func New(p provider.Provider, pollInterval time.Duration, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Tracker{provider: p, logger: logger, pollInterval: pollInterval}
}

// Await blocks until the transaction behind handle is mined, then returns its
// receipt. A reverted execution yields ErrReverted. Transient receipt fetch
// errors are treated as "still pending" up to a small bound; only reversion or
// ctx cancellation resolves the ledger entry to failed, since a fetch error
// says nothing about the transaction's fate. No internal timeout is enforced;
// interactive callers should pass a ctx with a deadline.
func (t *Tracker) Await(ctx context.Context, handle model.TxHandle) (*types.Receipt, error) {
	t.record(handle)

	fetchFailures := 0
	for {
		var receipt *types.Receipt
		if err := t.provider.Request(ctx, &receipt, "eth_getTransactionReceipt", handle.Hash); err != nil {
			fetchFailures++
			if fetchFailures >= maxFetchFailures {
				return nil, fmt.Errorf("fetch receipt %s: %w", handle.Hash.Hex(), err)
			}
			t.logger.Warn("receipt fetch failed, retrying",
				zap.String("hash", handle.Hash.Hex()),
				zap.Int("attempt", fetchFailures),
				zap.Error(err),
			)
		} else {
			fetchFailures = 0
			if receipt != nil {
				if receipt.Status == types.ReceiptStatusFailed {
					t.resolve(handle, model.TxFailed)
					return nil, fmt.Errorf("%w: %s %s", ErrReverted, handle.Kind, handle.Hash.Hex())
				}
				t.resolve(handle, model.TxConfirmed)
				t.logger.Info("transaction confirmed",
					zap.String("kind", string(handle.Kind)),
					zap.String("hash", handle.Hash.Hex()),
					zap.Uint64("block", receipt.BlockNumber.Uint64()),
				)
				return receipt, nil
			}
		}

		timer := time.NewTimer(t.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			t.resolve(handle, model.TxFailed)
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Ledger returns a snapshot of every transaction seen this process.
func (t *Tracker) Ledger() []model.PendingTransaction {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.PendingTransaction, len(t.ledger))
	copy(out, t.ledger)
	return out
}

func (t *Tracker) record(handle model.TxHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ledger = append(t.ledger, model.PendingTransaction{
		Kind:        handle.Kind,
		Hash:        handle.Hash.Hex(),
		State:       model.TxPending,
		SubmittedAt: time.Now().UTC(),
	})
}

func (t *Tracker) resolve(handle model.TxHandle, state model.TxState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	hash := handle.Hash.Hex()
	for i := len(t.ledger) - 1; i >= 0; i-- {
		if t.ledger[i].Hash == hash && t.ledger[i].State == model.TxPending {
			t.ledger[i].State = state
			return
		}
	}
}

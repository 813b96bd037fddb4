package storage

import (
	"context"

	"monadmarket/internal/model"
)

// Storage is a sink for reconciliation sweep results.
type Storage interface {
	PutSnapshot(ctx context.Context, snapshot model.MarketSnapshot) error
}

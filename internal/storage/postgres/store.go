package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"monadmarket/internal/model"
)

// Store provides Postgres persistence for market snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// PutSnapshot upserts the sweep's listings and holdings. Listings absent from
// the sweep are marked inactive so the table mirrors the active set.
func (s *Store) PutSnapshot(ctx context.Context, snapshot model.MarketSnapshot) error {
	batch := &pgx.Batch{}

	batch.Queue(`UPDATE listings SET active = false, updated_at = now() WHERE chain_id = $1`,
		int64(snapshot.ChainID))

	for _, listing := range snapshot.Listings {
		batch.Queue(`
			INSERT INTO listings (
				chain_id, listing_id, token_id, nft_contract, seller, price_wei, active, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			ON CONFLICT (chain_id, listing_id)
			DO UPDATE SET
				token_id = EXCLUDED.token_id,
				nft_contract = EXCLUDED.nft_contract,
				seller = EXCLUDED.seller,
				price_wei = EXCLUDED.price_wei,
				active = EXCLUDED.active,
				updated_at = now()
		`,
			int64(snapshot.ChainID),
			int64(listing.ListingID),
			int64(listing.TokenID),
			listing.NFTContract,
			listing.Seller,
			listing.Price,
			listing.Active,
		)
	}

	for _, token := range snapshot.Holdings {
		batch.Queue(`
			INSERT INTO holdings (
				chain_id, owner, token_id, listed, name, swept_at, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			ON CONFLICT (chain_id, owner, token_id)
			DO UPDATE SET
				listed = EXCLUDED.listed,
				name = EXCLUDED.name,
				swept_at = EXCLUDED.swept_at,
				updated_at = now()
		`,
			int64(snapshot.ChainID),
			token.Owner,
			int64(token.TokenID),
			token.Listed,
			token.Metadata.Name,
			snapshot.SweptAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("snapshot batch: %w", err)
		}
	}
	return nil
}

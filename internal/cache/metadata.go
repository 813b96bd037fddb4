package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"monadmarket/internal/model"
)

const defaultMetadataTimeout = 10 * time.Second

// MetadataFetcher resolves token URIs into display metadata. Fetches are
// best-effort: any failure yields a synthesized placeholder, never an error.
type MetadataFetcher struct {
	client *http.Client
	logger *zap.Logger

	mu   sync.RWMutex
	data map[string]model.TokenMetadata
}

// NewMetadataFetcher builds a fetcher with the given per-request timeout.
func NewMetadataFetcher(timeout time.Duration, logger *zap.Logger) *MetadataFetcher {
	if timeout <= 0 {
		timeout = defaultMetadataTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetadataFetcher{
		client: &http.Client{Timeout: timeout},
		logger: logger,
		data:   make(map[string]model.TokenMetadata),
	}
}

// Fetch returns the metadata behind uri, from cache when available. Malformed
// or unreachable documents degrade to a placeholder for tokenID.
func (f *MetadataFetcher) Fetch(ctx context.Context, uri string, tokenID uint64) model.TokenMetadata {
	if uri == "" {
		return model.PlaceholderMetadata(tokenID)
	}

	f.mu.RLock()
	meta, ok := f.data[uri]
	f.mu.RUnlock()
	if ok {
		return withDefaults(meta, tokenID)
	}

	meta, err := f.fetch(ctx, uri)
	if err != nil {
		f.logger.Debug("metadata fetch failed", zap.String("uri", uri), zap.Error(err))
		return model.PlaceholderMetadata(tokenID)
	}

	f.mu.Lock()
	f.data[uri] = meta
	f.mu.Unlock()
	return withDefaults(meta, tokenID)
}

// Preview resolves an arbitrary metadata URI ahead of minting. Unlike Fetch
// there is no token to synthesize a placeholder for, so failures are surfaced
// to the caller; a fetched document with missing fields gets display defaults.
func (f *MetadataFetcher) Preview(ctx context.Context, uri string) (model.TokenMetadata, error) {
	if uri == "" {
		return model.TokenMetadata{}, fmt.Errorf("metadata uri is empty")
	}

	f.mu.RLock()
	meta, ok := f.data[uri]
	f.mu.RUnlock()
	if !ok {
		var err error
		meta, err = f.fetch(ctx, uri)
		if err != nil {
			return model.TokenMetadata{}, fmt.Errorf("load metadata preview: %w", err)
		}
		f.mu.Lock()
		f.data[uri] = meta
		f.mu.Unlock()
	}

	if meta.Name == "" {
		meta.Name = "Untitled NFT"
	}
	if meta.Description == "" {
		meta.Description = "No description available"
	}
	return meta, nil
}

func (f *MetadataFetcher) fetch(ctx context.Context, uri string) (model.TokenMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return model.TokenMetadata{}, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return model.TokenMetadata{}, err
	}
	defer resp.Body.Close()

	var meta model.TokenMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return model.TokenMetadata{}, err
	}
	return meta, nil
}

func withDefaults(meta model.TokenMetadata, tokenID uint64) model.TokenMetadata {
	placeholder := model.PlaceholderMetadata(tokenID)
	if meta.Name == "" {
		meta.Name = placeholder.Name
	}
	if meta.Description == "" {
		meta.Description = placeholder.Description
	}
	return meta
}

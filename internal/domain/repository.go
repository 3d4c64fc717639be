package domain

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// CacheRepository defines the interface for short-lived in-memory caching
type CacheRepository[V any] interface {
	Get(ctx context.Context, key string) (V, error)
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// MarketplaceClient fetches and parses marketplace pages
type MarketplaceClient interface {
	ResolveIdentity(ctx context.Context, productURL string) (Identity, error)
	FetchListing(ctx context.Context, name string, mode SortMode) (*Listing, error)
	FetchDetail(ctx context.Context, sku int64) (*ProductDetail, error)
}

// MatchRepository is the relational cache of scraped search matches
type MatchRepository interface {
	// FindFresh returns the id of the live match for the key. A stale match is deleted
	// together with its children and reported as not fresh.
	FindFresh(ctx context.Context, name string, mode SortMode) (uuid.UUID, bool, error)
	Persist(ctx context.Context, sourceURL string, identity Identity, mode SortMode, result *ProductResult) (uuid.UUID, error)
	Reconstruct(ctx context.Context, id uuid.UUID, mode SortMode) (*ProductResult, error)
}

// HeaderProvider supplies the currently valid outbound request headers
type HeaderProvider interface {
	Headers() http.Header
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ozonscout/backend/internal/domain"
	"go.uber.org/zap"
)

// SearchServiceConfig holds configuration for the search service
type SearchServiceConfig struct {
	IdentityTTL time.Duration
}

// SearchService runs the acquisition-and-cache pipeline:
// resolve identity -> check cache -> reconstruct, or fetch listing + detail -> aggregate -> persist
type SearchService struct {
	client      domain.MarketplaceClient
	store       domain.MatchRepository
	identities  domain.CacheRepository[domain.Identity]
	identityTTL time.Duration
	logger      *zap.Logger
}

// NewSearchService creates a new search service with dependencies
func NewSearchService(
	client domain.MarketplaceClient,
	store domain.MatchRepository,
	identities domain.CacheRepository[domain.Identity],
	config SearchServiceConfig,
	logger *zap.Logger,
) *SearchService {
	identityTTL := config.IdentityTTL
	if identityTTL == 0 {
		identityTTL = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SearchService{
		client:      client,
		store:       store,
		identities:  identities,
		identityTTL: identityTTL,
		logger:      logger.Named("search"),
	}
}

// ResolveName resolves a product URL to its canonical name and SKU.
// Successful resolutions are memoized for the identity TTL.
func (s *SearchService) ResolveName(ctx context.Context, productURL string) (domain.Identity, error) {
	key := strings.TrimSpace(productURL)
	if key == "" {
		return domain.Identity{}, fmt.Errorf("%w: empty product url", domain.ErrInvalidRequest)
	}

	if s.identities != nil {
		if identity, err := s.identities.Get(ctx, key); err == nil {
			return identity, nil
		}
	}

	identity, err := s.client.ResolveIdentity(ctx, key)
	if err != nil {
		return domain.Identity{}, err
	}

	if s.identities != nil {
		if err := s.identities.Set(ctx, key, identity, s.identityTTL); err != nil {
			s.logger.Warn("identity cache write failed", zap.String("url", key), zap.Error(err))
		}
	}
	return identity, nil
}

// Search returns the listing, price range and top product details for the product at
// productURL, ordered by mode. Results younger than the freshness window are served from
// the store without touching the marketplace.
func (s *SearchService) Search(ctx context.Context, productURL string, mode domain.SortMode) (*domain.SearchResult, error) {
	if mode == "" {
		mode = domain.SortScore
	}

	identity, err := s.ResolveName(ctx, productURL)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotRecognized) {
			s.logger.Info("name not recognized", zap.String("url", productURL))
			return &domain.SearchResult{SortMode: mode, Message: domain.MessageNameNotRecognized}, nil
		}
		return nil, fmt.Errorf("resolve identity: %w", err)
	}

	log := s.logger.With(zap.String("name", identity.Name), zap.String("sort", string(mode)))

	id, fresh, err := s.store.FindFresh(ctx, identity.Name, mode)
	if err != nil {
		return nil, fmt.Errorf("check cache: %w", err)
	}
	if fresh {
		log.Info("serving from cache", zap.String("match_id", id.String()))
		return s.fromStore(ctx, id, mode)
	}

	listing, err := s.client.FetchListing(ctx, identity.Name, mode)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	if listing == nil || len(listing.Products) == 0 {
		log.Info("no products found")
		return &domain.SearchResult{SortMode: mode, Message: domain.MessageNoProducts}, nil
	}

	var detail *domain.ProductDetail
	if listing.Top != nil {
		detail, err = s.client.FetchDetail(ctx, listing.Top.SKU)
		if err != nil {
			return nil, fmt.Errorf("fetch detail: %w", err)
		}
	}

	result := Aggregate(listing, detail)

	if _, err := s.store.Persist(ctx, productURL, identity, mode, result); err != nil {
		if !errors.Is(err, domain.ErrDuplicateMatch) {
			return nil, fmt.Errorf("persist result: %w", err)
		}
		// a concurrent search stored the same key first
		winner, ok, ferr := s.store.FindFresh(ctx, identity.Name, mode)
		if ferr != nil {
			return nil, fmt.Errorf("persist result: %w", errors.Join(err, ferr))
		}
		if !ok {
			log.Warn("duplicate match without live winner", zap.Error(err))
			return nil, fmt.Errorf("persist result: %w", err)
		}
		log.Info("merged with concurrent scrape", zap.String("match_id", winner.String()))
		return s.fromStore(ctx, winner, mode)
	}

	log.Info("fresh scrape", zap.Int("products", len(result.ProductsData)))
	return &domain.SearchResult{SortMode: mode, Message: domain.MessageFreshScrape, Details: result}, nil
}

func (s *SearchService) fromStore(ctx context.Context, id uuid.UUID, mode domain.SortMode) (*domain.SearchResult, error) {
	result, err := s.store.Reconstruct(ctx, id, mode)
	if err != nil {
		return nil, fmt.Errorf("reconstruct match: %w", err)
	}
	return &domain.SearchResult{SortMode: mode, Message: domain.MessageFromCache, Details: result}, nil
}

package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ozonscout/backend/internal/domain"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultFreshnessWindow is how long a scraped match is served from cache
const DefaultFreshnessWindow = 7 * 24 * time.Hour

const day = 24 * time.Hour

// MatchStore is the relational cache of scraped search results
type MatchStore struct {
	db        Database
	freshness time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

var _ domain.MatchRepository = (*MatchStore)(nil)

// NewMatchStore creates a store serving matches younger than freshness
func NewMatchStore(db Database, freshness time.Duration, logger *zap.Logger) *MatchStore {
	if freshness <= 0 {
		freshness = DefaultFreshnessWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchStore{
		db:        db,
		freshness: freshness,
		now:       time.Now,
		logger:    logger.Named("store"),
	}
}

// WithClock replaces the time source, mainly for tests
func (s *MatchStore) WithClock(now func() time.Time) *MatchStore {
	s.now = now
	return s
}

// FindFresh returns the id of the live match for (name, mode). A stale match is
// deleted together with its children and reported as absent.
func (s *MatchStore) FindFresh(ctx context.Context, name string, mode domain.SortMode) (uuid.UUID, bool, error) {
	var match SearchMatch
	err := s.db.Session(ctx).
		Where("canonical_name = ? AND sort_mode = ?", name, string(mode)).
		Take(&match).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("find match: %w", err)
	}

	if s.isFresh(match.UpdatedAt) {
		return match.ID, true, nil
	}

	s.logger.Info("deleting stale match",
		zap.String("id", match.ID.String()),
		zap.String("name", name),
		zap.String("sort", string(mode)),
		zap.Time("updated_at", match.UpdatedAt))
	if err := s.deleteMatch(ctx, match.ID); err != nil {
		return uuid.Nil, false, err
	}
	return uuid.Nil, false, nil
}

// isFresh reports whether a match updated at t is inside the freshness window.
// Whole-day windows compare elapsed whole days.
func (s *MatchStore) isFresh(t time.Time) bool {
	age := s.now().Sub(t)
	if s.freshness%day == 0 {
		age = age.Truncate(day)
	}
	return age <= s.freshness
}

func (s *MatchStore) deleteMatch(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		for _, child := range []any{&ListingURL{}, &TopAttribute{}, &CharacteristicRow{}} {
			if err := tx.Where("match_id = ?", id).Delete(child).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", id).Delete(&SearchMatch{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete match %s: %w", id, err)
	}
	return nil
}

// Persist stores result under (identity.Name, mode) in one transaction and returns
// the new match id. A concurrent write of the same key fails with ErrDuplicateMatch.
func (s *MatchStore) Persist(ctx context.Context, sourceURL string, identity domain.Identity, mode domain.SortMode, result *domain.ProductResult) (uuid.UUID, error) {
	if result == nil {
		return uuid.Nil, fmt.Errorf("%w: nil result", domain.ErrInvalidRequest)
	}

	now := s.now()
	match := SearchMatch{
		ID:            uuid.New(),
		SourceURL:     sourceURL,
		SKU:           identity.SKU,
		CanonicalName: identity.Name,
		SortMode:      string(mode),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	listing := listingRows(match.ID, mode, result.ProductsData)
	attributes := topAttributeRows(match.ID, result)
	characteristics, err := characteristicRows(match.ID, result.Characteristics)
	if err != nil {
		return uuid.Nil, err
	}

	err = s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&match).Error; err != nil {
			if isDuplicateKey(err) {
				return fmt.Errorf("%w: %q/%s", domain.ErrDuplicateMatch, identity.Name, mode)
			}
			return fmt.Errorf("insert match: %w", err)
		}
		if len(listing) > 0 {
			if err := tx.Create(&listing).Error; err != nil {
				return fmt.Errorf("insert listing: %w", err)
			}
		}
		if len(attributes) > 0 {
			if err := tx.Create(&attributes).Error; err != nil {
				return fmt.Errorf("insert top attributes: %w", err)
			}
		}
		if len(characteristics) > 0 {
			if err := tx.Create(&characteristics).Error; err != nil {
				return fmt.Errorf("insert characteristics: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	s.logger.Info("match persisted",
		zap.String("id", match.ID.String()),
		zap.String("name", identity.Name),
		zap.String("sort", string(mode)),
		zap.Int("products", len(listing)),
		zap.Int("characteristics", len(characteristics)))
	return match.ID, nil
}

// Reconstruct rebuilds the result persisted under id for mode
func (s *MatchStore) Reconstruct(ctx context.Context, id uuid.UUID, mode domain.SortMode) (*domain.ProductResult, error) {
	db := s.db.Session(ctx)

	var match SearchMatch
	if err := db.Where("id = ?", id).Take(&match).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrMatchNotFound, id)
		}
		return nil, fmt.Errorf("load match: %w", err)
	}

	var listing []ListingURL
	if err := db.Where("match_id = ? AND sort_mode = ?", id, string(mode)).Order("rank").Find(&listing).Error; err != nil {
		return nil, fmt.Errorf("load listing: %w", err)
	}

	var attributes []TopAttribute
	if err := db.Where("match_id = ?", id).Find(&attributes).Error; err != nil {
		return nil, fmt.Errorf("load top attributes: %w", err)
	}

	var characteristics []CharacteristicRow
	if err := db.Where("match_id = ?", id).Order("position").Find(&characteristics).Error; err != nil {
		return nil, fmt.Errorf("load characteristics: %w", err)
	}

	result := &domain.ProductResult{}
	for _, row := range listing {
		result.ProductsData = append(result.ProductsData, domain.ProductTile{
			URL:     row.ProductURL,
			Name:    row.Name,
			Price:   row.Price,
			Rating:  row.Rating,
			Reviews: row.Reviews,
		})
	}

	applyTopAttributes(result, attributes)

	for _, row := range characteristics {
		var values []string
		if err := json.Unmarshal(row.Value, &values); err != nil {
			return nil, fmt.Errorf("decode characteristic %q: %w", row.Name, err)
		}
		result.Characteristics = append(result.Characteristics, domain.Characteristic{Name: row.Name, Values: values})
	}

	return result, nil
}

func listingRows(id uuid.UUID, mode domain.SortMode, products []domain.ProductTile) []ListingURL {
	rows := make([]ListingURL, 0, len(products))
	for i, p := range products {
		rows = append(rows, ListingURL{
			MatchID:    id,
			SortMode:   string(mode),
			Rank:       i + 1,
			ProductURL: p.URL,
			Name:       p.Name,
			Price:      p.Price,
			Rating:     p.Rating,
			Reviews:    p.Reviews,
		})
	}
	return rows
}

func topAttributeRows(id uuid.UUID, result *domain.ProductResult) []TopAttribute {
	var rows []TopAttribute
	add := func(name, value string) {
		rows = append(rows, TopAttribute{MatchID: id, AttributeName: name, Value: value})
	}

	if p := result.CurrencyPrices; p != nil {
		add(AttrAvgPrice, formatPrice(p.AvgPrice))
		add(AttrMinPrice, formatPrice(p.MinPrice))
		add(AttrMaxPrice, formatPrice(p.MaxPrice))
	}
	if result.ProductImage != nil {
		add(AttrMainImage, *result.ProductImage)
	}
	add(AttrDescription, result.Description)
	add(AttrProductName, result.ProductName)
	return rows
}

func applyTopAttributes(result *domain.ProductResult, rows []TopAttribute) {
	for _, row := range rows {
		switch row.AttributeName {
		case AttrAvgPrice, AttrMinPrice, AttrMaxPrice:
			v, err := strconv.ParseFloat(row.Value, 64)
			if err != nil {
				continue
			}
			if result.CurrencyPrices == nil {
				result.CurrencyPrices = &domain.CurrencyPrices{}
			}
			switch row.AttributeName {
			case AttrAvgPrice:
				result.CurrencyPrices.AvgPrice = v
			case AttrMinPrice:
				result.CurrencyPrices.MinPrice = v
			case AttrMaxPrice:
				result.CurrencyPrices.MaxPrice = v
			}
		case AttrMainImage:
			image := row.Value
			result.ProductImage = &image
		case AttrDescription:
			result.Description = row.Value
		case AttrProductName:
			result.ProductName = row.Value
		}
	}
}

func characteristicRows(id uuid.UUID, characteristics domain.Characteristics) ([]CharacteristicRow, error) {
	rows := make([]CharacteristicRow, 0, len(characteristics))
	for i, ch := range characteristics {
		values := ch.Values
		if values == nil {
			values = []string{}
		}
		raw, err := json.Marshal(values)
		if err != nil {
			return nil, fmt.Errorf("encode characteristic %q: %w", ch.Name, err)
		}
		rows = append(rows, CharacteristicRow{
			MatchID:  id,
			Name:     ch.Name,
			Position: i,
			Value:    datatypes.JSON(raw),
		})
	}
	return rows, nil
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// isDuplicateKey reports a unique constraint violation for drivers with and without error translation
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

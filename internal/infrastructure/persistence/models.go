package persistence

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Reserved top attribute names
const (
	AttrAvgPrice    = "avg_price"
	AttrMinPrice    = "min_price"
	AttrMaxPrice    = "max_price"
	AttrMainImage   = "main_image"
	AttrDescription = "description"
	AttrProductName = "product_name"
)

// SearchMatch is one scraped (canonical name, sort mode) lookup
type SearchMatch struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	SourceURL     string    `gorm:"type:text;not null"`
	SKU           int64     `gorm:"not null"`
	CanonicalName string    `gorm:"type:text;not null;uniqueIndex:idx_search_match_key,priority:1"`
	SortMode      string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_search_match_key,priority:2"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null;index"`

	ListingURLs     []ListingURL        `gorm:"foreignKey:MatchID;constraint:OnDelete:CASCADE"`
	TopAttributes   []TopAttribute      `gorm:"foreignKey:MatchID;constraint:OnDelete:CASCADE"`
	Characteristics []CharacteristicRow `gorm:"foreignKey:MatchID;constraint:OnDelete:CASCADE"`
}

func (SearchMatch) TableName() string { return "ozon_search_match" }

// ListingURL is one ranked product of a match's listing
type ListingURL struct {
	MatchID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	SortMode   string    `gorm:"type:varchar(50);primaryKey"`
	Rank       int       `gorm:"primaryKey;autoIncrement:false"`
	ProductURL string    `gorm:"type:text;not null"`
	Name       string    `gorm:"type:text;not null;default:''"`
	Price      *int64
	Rating     *float64
	Reviews    *int64
}

func (ListingURL) TableName() string { return "ozon_url_products" }

// TopAttribute is one named scalar of the top product or the price range
type TopAttribute struct {
	MatchID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	AttributeName string    `gorm:"type:text;primaryKey"`
	Value         string    `gorm:"type:text;not null"`
}

func (TopAttribute) TableName() string { return "ozon_product_top" }

// CharacteristicRow is one characteristic of the top product with its values as a JSON list
type CharacteristicRow struct {
	MatchID  uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Name     string         `gorm:"column:characteristic_name;type:text;primaryKey"`
	Position int            `gorm:"not null;default:0"`
	Value    datatypes.JSON `gorm:"not null"`
}

func (CharacteristicRow) TableName() string { return "ozon_product_characteristics" }

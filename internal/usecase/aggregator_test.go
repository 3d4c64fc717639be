package usecase

import (
	"testing"

	"github.com/ozonscout/backend/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestAggregate(t *testing.T) {
	image := "https://cdn.ozon.ru/1.jpg"
	listing := &domain.Listing{
		Products: []domain.ProductTile{
			{URL: "https://www.ozon.ru/product/1/", Name: "Стул"},
			{URL: "https://www.ozon.ru/product/2/", Name: "Стул 2"},
		},
		Top:    &domain.TopTile{SKU: 1, Name: "Стул", Image: &image},
		Prices: &domain.CurrencyPrices{MinPrice: 100, MaxPrice: 301, AvgPrice: 200.5},
	}
	detail := &domain.ProductDetail{
		Characteristics: domain.Characteristics{{Name: "Цвет", Values: []string{"Черный"}}},
		Description:     "Описание",
	}

	got := Aggregate(listing, detail)

	assert.Equal(t, listing.Products, got.ProductsData)
	assert.Equal(t, listing.Prices, got.CurrencyPrices)
	assert.Equal(t, "Стул", got.ProductName)
	assert.Equal(t, &image, got.ProductImage)
	assert.Equal(t, "Описание", got.Description)
	assert.Equal(t, detail.Characteristics, got.Characteristics)
}

func TestAggregate_MissingParts(t *testing.T) {
	tests := []struct {
		name    string
		listing *domain.Listing
		detail  *domain.ProductDetail
	}{
		{name: "nothing", listing: nil, detail: nil},
		{name: "listing without top", listing: &domain.Listing{Products: []domain.ProductTile{{Name: "a"}}}, detail: nil},
		{name: "empty detail", listing: &domain.Listing{}, detail: &domain.ProductDetail{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.listing, tt.detail)

			assert.Equal(t, domain.DescriptionNotFound, got.Description)
			assert.Empty(t, got.ProductName)
			assert.Nil(t, got.ProductImage)
			assert.Nil(t, got.CurrencyPrices)
			assert.Empty(t, got.Characteristics)
		})
	}
}

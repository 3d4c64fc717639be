package usecase

import "github.com/ozonscout/backend/internal/domain"

// Aggregate combines a search listing and the detail of its top product into the
// canonical result shared by the fresh-scrape and cache-read paths. The listing is
// kept whole; presentation layers cap it.
func Aggregate(listing *domain.Listing, detail *domain.ProductDetail) *domain.ProductResult {
	result := &domain.ProductResult{Description: domain.DescriptionNotFound}
	if listing == nil {
		return result
	}

	result.ProductsData = listing.Products
	result.CurrencyPrices = listing.Prices

	if top := listing.Top; top != nil {
		result.ProductName = top.Name
		result.ProductImage = top.Image
	}

	if detail != nil {
		if detail.Description != "" {
			result.Description = detail.Description
		}
		result.Characteristics = detail.Characteristics
	}

	return result
}

package ozon

import (
	"context"
	"encoding/json"
	"math"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ozonscout/backend/internal/domain"
	"go.uber.org/zap"
)

const currencyPriceFilter = "currency_price"

var clientRedirectPattern = regexp.MustCompile(`location\.replace\("(.*?)"\)`)

// FetchListing retrieves the search results page for name in the requested order.
// A page without results yields an empty listing, not an error.
func (c *Client) FetchListing(ctx context.Context, name string, mode domain.SortMode) (*domain.Listing, error) {
	params := url.Values{}
	params.Set("text", name)
	params.Set("from_global", "true")
	if sorting, ok := mode.SearchParam(); ok {
		params.Set("sorting", sorting)
	}

	body, err := c.get(ctx, c.baseURL+searchPath, params, "")
	if err != nil {
		return nil, err
	}

	if target, ok := findClientRedirect(body); ok {
		c.logger.Debug("following client redirect", zap.String("target", target))
		body, err = c.get(ctx, c.absolute(target), nil, "{}")
		if err != nil {
			return nil, err
		}
	}

	listing := parseListingPage(body, c.baseURL)
	c.logger.Debug("listing parsed",
		zap.String("name", name), zap.String("sort", string(mode)),
		zap.Int("products", len(listing.Products)))
	return listing, nil
}

// findClientRedirect extracts the target of a script-driven redirect
func findClientRedirect(body string) (string, bool) {
	m := clientRedirectPattern.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	var target string
	if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &target); err != nil {
		target = m[1]
	}
	return target, target != ""
}

func parseListingPage(body, origin string) *domain.Listing {
	listing := &domain.Listing{}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return listing
	}
	state := doc.Find(".client-state").First()
	if state.Length() == 0 {
		return listing
	}

	if data, ok := state.Find(`[id^="` + tileGridPrefix + `"]`).First().Attr("data-state"); ok {
		var grid tileGridState
		if json.Unmarshal([]byte(data), &grid) == nil {
			for i, tile := range grid.Items {
				product := MapToProductTile(tile, origin)
				listing.Products = append(listing.Products, product)
				if i == 0 {
					listing.Top = mapTopTile(tile, product)
				}
			}
		}
	}

	if data, ok := state.Find(`[id^="` + filtersPrefix + `"]`).First().Attr("data-state"); ok {
		listing.Prices = parseCurrencyPrices(data)
	}

	return listing
}

// parseCurrencyPrices reads the price-range filter; the last matching filter wins
func parseCurrencyPrices(data string) *domain.CurrencyPrices {
	var filters filtersState
	if err := json.Unmarshal([]byte(data), &filters); err != nil {
		return nil
	}

	var prices *domain.CurrencyPrices
	for _, section := range filters.Sections {
		for _, f := range section.Filters {
			if f.Key != currencyPriceFilter {
				continue
			}
			r := f.MultipleRangesFilter.RangeFilter
			lo, hi := float64(r.MinValue), float64(r.MaxValue)
			prices = &domain.CurrencyPrices{
				MinPrice: lo,
				MaxPrice: hi,
				AvgPrice: roundTo((lo+hi)/2, 2),
			}
		}
	}
	return prices
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

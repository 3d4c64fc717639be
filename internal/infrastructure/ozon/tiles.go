package ozon

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ozonscout/backend/internal/domain"
)

// Tile field keys as labelled by the site's automation ids
const (
	FieldName     = "tile-name"
	FieldPrice    = "PRICE"
	FieldRating   = "tile-list-rating"
	FieldComments = "tile-list-comments"
)

// Keys of the main-state atoms carrying tile fields
const (
	atomLabelList = "labelList"
	atomText      = "textAtom"
	atomPrice     = "priceV2"
)

// MapToProductTile converts a raw search tile into the public tile view
func MapToProductTile(tile tileState, origin string) domain.ProductTile {
	fields := extractTileFields(tile.MainState)

	var link string
	if tile.Action.Link != "" {
		link = origin + tile.Action.Link
	}

	return domain.ProductTile{
		URL:     link,
		Name:    normalizeName(fields[FieldName]),
		Price:   parseDigits(fields[FieldPrice]),
		Rating:  parseDecimal(fields[FieldRating]),
		Reviews: parseDigits(fields[FieldComments]),
	}
}

// mapTopTile builds the first-ranked tile view used for detail extraction
func mapTopTile(tile tileState, product domain.ProductTile) *domain.TopTile {
	top := &domain.TopTile{SKU: int64(tile.SKU), Name: product.Name}
	if len(tile.TileImage.Items) > 0 {
		if img := tile.TileImage.Items[0].Image.Link; img != "" {
			top.Image = &img
		}
	}
	return top
}

// extractTileFields collects the labelled text fields of a tile's main state
func extractTileFields(mainState []map[string]json.RawMessage) map[string]string {
	fields := make(map[string]string)

	for _, entry := range mainState {
		for kind, raw := range entry {
			switch kind {
			case atomLabelList:
				var s labelListState
				if json.Unmarshal(raw, &s) != nil {
					continue
				}
				for _, item := range s.Items {
					if id := item.TestInfo.AutomatizationID; id != "" {
						fields[id] = item.Title
					}
				}
			case atomText:
				var s textAtomState
				if json.Unmarshal(raw, &s) != nil {
					continue
				}
				if id := s.TestInfo.AutomatizationID; id != "" {
					fields[id] = s.Text
				}
			case atomPrice:
				var s priceState
				if json.Unmarshal(raw, &s) != nil {
					continue
				}
				for _, p := range s.Price {
					if p.TextStyle != "" {
						fields[p.TextStyle] = p.Text
					}
				}
			}
		}
	}

	return fields
}

// parseDigits keeps only the decimal digits of s; no digits means absent
func parseDigits(s string) *int64 {
	digits := keepRunes(s, func(r rune) bool { return r >= '0' && r <= '9' })
	if digits == "" {
		return nil
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// parseDecimal keeps digits and dots of s and parses the rest as a float
func parseDecimal(s string) *float64 {
	kept := keepRunes(s, func(r rune) bool { return (r >= '0' && r <= '9') || r == '.' })
	if kept == "" {
		return nil
	}
	v, err := strconv.ParseFloat(kept, 64)
	if err != nil {
		return nil
	}
	return &v
}

func keepRunes(s string, keep func(rune) bool) string {
	var b strings.Builder
	for _, r := range s {
		if keep(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

package ozon

import (
	"encoding/json"
	"html"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type state struct {
	key   string
	value any
}

// pageJSON renders a page payload whose widget states are JSON-encoded strings, in order
func pageJSON(t *testing.T, states ...state) string {
	t.Helper()

	var b strings.Builder
	b.WriteString(`{"layoutTrackingInfo":"x","widgetStates":{`)
	for i, s := range states {
		if i > 0 {
			b.WriteByte(',')
		}
		inner, ok := s.value.(string)
		if !ok {
			raw, err := json.Marshal(s.value)
			require.NoError(t, err)
			inner = string(raw)
		}
		key, err := json.Marshal(s.key)
		require.NoError(t, err)
		val, err := json.Marshal(inner)
		require.NoError(t, err)
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteString(`}}`)
	return b.String()
}

func listingHTML(t *testing.T, grid, filters any) string {
	t.Helper()

	var b strings.Builder
	b.WriteString(`<html><body><div class="client-state">`)
	if grid != nil {
		raw, err := json.Marshal(grid)
		require.NoError(t, err)
		b.WriteString(`<div id="state-tileGridDesktop-3547909-default-1" data-state="` + html.EscapeString(string(raw)) + `"></div>`)
	}
	if filters != nil {
		raw, err := json.Marshal(filters)
		require.NoError(t, err)
		b.WriteString(`<div id="state-filtersDesktop-3547911-default-1" data-state="` + html.EscapeString(string(raw)) + `"></div>`)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func tile(sku any, link, name, price, rating, comments, image string) map[string]any {
	labeled := func(id, title string) map[string]any {
		return map[string]any{"testInfo": map[string]any{"automatizationId": id}, "title": title}
	}
	return map[string]any{
		"sku":    sku,
		"action": map[string]any{"link": link},
		"tileImage": map[string]any{"items": []any{
			map[string]any{"image": map[string]any{"link": image}},
		}},
		"mainState": []any{
			map[string]any{"priceV2": map[string]any{"price": []any{
				map[string]any{"textStyle": "PRICE", "text": price},
				map[string]any{"textStyle": "ORIGINAL_PRICE", "text": "9 999 ₽"},
			}}},
			map[string]any{"textAtom": map[string]any{
				"testInfo": map[string]any{"automatizationId": "tile-name"},
				"text":     name,
			}},
			map[string]any{"labelList": map[string]any{"items": []any{
				labeled("tile-list-rating", rating),
				labeled("tile-list-comments", comments),
			}}},
		},
	}
}

func priceFilters(minValue, maxValue any) map[string]any {
	return map[string]any{"sections": []any{
		map[string]any{"filters": []any{
			map[string]any{"key": "brand"},
			map[string]any{
				"key": "currency_price",
				"multipleRangesFilter": map[string]any{"rangeFilter": map[string]any{
					"minValue": minValue,
					"maxValue": maxValue,
				}},
			},
		}},
	}}
}

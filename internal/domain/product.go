package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SortMode is the requested ordering of marketplace search results
type SortMode string

const (
	SortScore  SortMode = "score" // default relevance ordering
	SortNew    SortMode = "new"
	SortPrice  SortMode = "price"
	SortRating SortMode = "rating"
)

// NoneValue is rendered in place of a numeric tile field that was absent on the page
const NoneValue = "Нет"

// DescriptionNotFound replaces an empty product description
const DescriptionNotFound = "Описание не найдено"

// ParseSortMode converts user input into a SortMode. Empty input means SortScore.
func ParseSortMode(s string) (SortMode, error) {
	switch mode := SortMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return SortScore, nil
	case SortScore, SortNew, SortPrice, SortRating:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSortMode, s)
	}
}

// SearchParam returns the value of the site's "sorting" query parameter.
// The default score ordering is expressed by omitting the parameter.
func (m SortMode) SearchParam() (string, bool) {
	switch m {
	case SortNew, SortPrice, SortRating:
		return string(m), true
	default:
		return "", false
	}
}

// Identity is a resolved product: the canonical name used as cache key and its catalog SKU
type Identity struct {
	Name string `json:"product_name"`
	SKU  int64  `json:"sku"`
}

// ProductTile is the public view of one ranked search result
type ProductTile struct {
	URL     string
	Name    string
	Price   *int64
	Rating  *float64
	Reviews *int64
}

// MarshalJSON renders absent numeric fields as NoneValue
func (p ProductTile) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		URL     string `json:"url"`
		Name    string `json:"name"`
		Price   any    `json:"price"`
		Rating  any    `json:"rating"`
		Reviews any    `json:"reviews"`
	}{
		URL:     p.URL,
		Name:    p.Name,
		Price:   valueOrNone(p.Price),
		Rating:  valueOrNone(p.Rating),
		Reviews: valueOrNone(p.Reviews),
	})
}

func valueOrNone[T int64 | float64](v *T) any {
	if v == nil {
		return NoneValue
	}
	return *v
}

// CurrencyPrices is the price range of a search listing
type CurrencyPrices struct {
	MinPrice float64 `json:"min_price"`
	MaxPrice float64 `json:"max_price"`
	AvgPrice float64 `json:"avg_price"`
}

// Characteristic is one named product attribute with every value observed for it
type Characteristic struct {
	Name   string
	Values []string
}

// Characteristics keeps attributes in the order they were first seen
type Characteristics []Characteristic

// Add appends value under name, creating the attribute on first use
func (c *Characteristics) Add(name, value string) {
	for i := range *c {
		if (*c)[i].Name == name {
			(*c)[i].Values = append((*c)[i].Values, value)
			return
		}
	}
	*c = append(*c, Characteristic{Name: name, Values: []string{value}})
}

// MarshalJSON renders the attributes as a JSON object preserving their order
func (c Characteristics) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ch := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(ch.Name)
		if err != nil {
			return nil, err
		}
		values := ch.Values
		if values == nil {
			values = []string{}
		}
		val, err := json.Marshal(values)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ProductResult is the canonical aggregate shared by the fresh-scrape and cache-read paths
type ProductResult struct {
	ProductsData    []ProductTile   `json:"products_data"`
	CurrencyPrices  *CurrencyPrices `json:"currency_prices"`
	ProductName     string          `json:"product_name"`
	ProductImage    *string         `json:"product_image"`
	Description     string          `json:"description"`
	Characteristics Characteristics `json:"characteristics"`
}

// Capped returns a shallow copy whose listing holds at most n products
func (r *ProductResult) Capped(n int) *ProductResult {
	if r == nil || len(r.ProductsData) <= n {
		return r
	}
	capped := *r
	capped.ProductsData = r.ProductsData[:n]
	return &capped
}

// SearchResult is what one pipeline invocation returns
type SearchResult struct {
	SortMode SortMode       `json:"sorting_type"`
	Message  string         `json:"message"`
	Details  *ProductResult `json:"details"`
}

// Result message tags
const (
	MessageFreshScrape       = "fresh scrape"
	MessageFromCache         = "served from cache"
	MessageNameNotRecognized = "name not recognized"
	MessageNoProducts        = "no products found"
)

// TopTile is the first-ranked product of a listing; its SKU drives detail extraction
type TopTile struct {
	SKU   int64
	Name  string
	Image *string
}

// Listing is the parsed content of a search results page
type Listing struct {
	Products []ProductTile
	Top      *TopTile
	Prices   *CurrencyPrices
}

// ProductDetail is the parsed content of a product detail page
type ProductDetail struct {
	Characteristics Characteristics
	Description     string
}

package ozon

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ozonscout/backend/internal/domain"
	"go.uber.org/zap"
)

const htmlAnnotation = "HTML"

var htmlTagPattern = regexp.MustCompile(`</?[a-z/]+>`)

// FetchDetail retrieves the characteristics and description of the product with sku
func (c *Client) FetchDetail(ctx context.Context, sku int64) (*domain.ProductDetail, error) {
	path := fmt.Sprintf("/product/%d/", sku)
	body, err := c.get(ctx, c.pageJSONURL(path, detailLayout), nil, "{}")
	if err != nil {
		return nil, err
	}

	detail := parseDetailPage(body)
	c.logger.Debug("detail parsed",
		zap.Int64("sku", sku), zap.Int("characteristics", len(detail.Characteristics)))
	return detail, nil
}

func parseDetailPage(body string) *domain.ProductDetail {
	detail := &domain.ProductDetail{}
	var description strings.Builder

	for _, w := range parseWidgetStates(body) {
		switch {
		case strings.HasPrefix(w.Key, characteristicsPrefix):
			collectCharacteristics(w.Value, &detail.Characteristics)
		case strings.HasPrefix(w.Key, descriptionPrefix):
			collectDescription(w.Value, &description)
		}
	}

	text := description.String()
	if strings.TrimSpace(text) == "" {
		detail.Description = domain.DescriptionNotFound
	} else {
		detail.Description = htmlTagPattern.ReplaceAllString(text, "")
	}
	return detail
}

// collectCharacteristics merges every group of a characteristics fragment into dst
func collectCharacteristics(value []byte, dst *domain.Characteristics) {
	var s characteristicsState
	if err := json.Unmarshal(value, &s); err != nil {
		return
	}
	for _, group := range s.Characteristics {
		for _, member := range objectEntries(group) {
			var entries []characteristicEntry
			if json.Unmarshal(member.Value, &entries) != nil {
				continue
			}
			for _, e := range entries {
				if e.Name == "" {
					continue
				}
				for _, v := range e.Values {
					if v.Text != "" {
						dst.Add(e.Name, v.Text)
					}
				}
			}
		}
	}
}

// collectDescription appends the rich annotation and titled description rows to b
func collectDescription(value []byte, b *strings.Builder) {
	var s descriptionState
	if err := json.Unmarshal(value, &s); err != nil {
		return
	}

	if s.RichAnnotationType != nil {
		if *s.RichAnnotationType == htmlAnnotation {
			if s.RichAnnotation != "" {
				b.WriteString(s.RichAnnotation)
				b.WriteString("\n")
			}
		} else {
			for _, content := range s.RichAnnotationJSON.Content {
				for _, block := range content.Blocks {
					for _, line := range block.Text.Content {
						b.WriteString(rawText(line))
						b.WriteString("\n")
					}
				}
			}
		}
	}

	for _, row := range s.Characteristics {
		fmt.Fprintf(b, "%s: %s\n", rawText(row.Title), rawText(row.Content))
	}
}

package ozon

import (
	"context"
	"fmt"
	"strings"

	"github.com/ozonscout/backend/internal/domain"
	"go.uber.org/zap"
)

// ResolveIdentity turns a product URL into the canonical product name and SKU.
// It fails with ErrIdentityNotRecognized when the URL is not a product link or the
// page carries no product name.
func (c *Client) ResolveIdentity(ctx context.Context, productURL string) (domain.Identity, error) {
	path, ok := c.ProductPath(productURL)
	if !ok {
		return domain.Identity{}, fmt.Errorf("%w: not a product url: %q", domain.ErrIdentityNotRecognized, productURL)
	}

	body, err := c.get(ctx, c.pageJSONURL(path, identityLayout), nil, "{}")
	if err != nil {
		return domain.Identity{}, err
	}

	identity, ok := parseIdentityPage(body)
	if !ok {
		c.logger.Warn("product name not found", zap.String("url", productURL))
		return domain.Identity{}, fmt.Errorf("%w: %q", domain.ErrIdentityNotRecognized, productURL)
	}

	c.logger.Debug("identity resolved",
		zap.String("name", identity.Name), zap.Int64("sku", identity.SKU))
	return identity, nil
}

func parseIdentityPage(body string) (domain.Identity, bool) {
	var (
		prefix string
		name   string
		sku    int64
	)
	for _, w := range parseWidgetStates(body) {
		switch {
		case strings.HasPrefix(w.Key, breadcrumbsPrefix):
			if text, ok := lastBreadcrumb(w.Value); ok {
				prefix = text
			}
		case strings.HasPrefix(w.Key, stickyProductPrefix):
			if p, ok := decodeStickyProduct(w.Value); ok {
				name = p.Name
				sku = int64(p.SKU)
			}
		}
	}

	name = normalizeName(name)
	if name == "" {
		return domain.Identity{}, false
	}
	return domain.Identity{Name: canonicalName(normalizeName(prefix), name), SKU: sku}, true
}

// canonicalName prepends the category prefix unless the name already contains it
func canonicalName(prefix, name string) string {
	if prefix == "" || strings.Contains(strings.ToLower(name), strings.ToLower(prefix)) {
		return name
	}
	return prefix + " " + name
}

// normalizeName collapses runs of whitespace
func normalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

package telegram

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/ozonscout/backend/internal/domain"
)

// Rendering limits
const (
	MaxDescription     = 4000
	MaxCaption         = 1024 // Telegram photo caption limit
	MaxCharacteristics = 7
	MaxListed          = 5
)

// RenderTopProduct renders the name, description and first characteristics of the
// top product as HTML, keeping the whole text within limit runes
func RenderTopProduct(result *domain.ProductResult, limit int) string {
	var head strings.Builder
	head.WriteString("<b>")
	head.WriteString(html.EscapeString(result.ProductName))
	head.WriteString("</b>\n\n")

	var tail strings.Builder
	for i, ch := range result.Characteristics {
		if i == MaxCharacteristics {
			break
		}
		if i == 0 {
			tail.WriteString("\n\n")
		}
		fmt.Fprintf(&tail, "<b>%s</b>: <i>%s</i>\n",
			html.EscapeString(ch.Name),
			html.EscapeString(strings.Join(ch.Values, "; ")))
	}

	budget := limit - runeLen(head.String()) - runeLen(tail.String())
	if budget > MaxDescription {
		budget = MaxDescription
	}
	description := truncate(strings.TrimSpace(result.Description), budget)

	return head.String() + html.EscapeString(description) + tail.String()
}

// RenderProductList renders up to MaxListed product links followed by the price summary
func RenderProductList(result *domain.ProductResult) string {
	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(topProductsTitle)
	b.WriteString("</b>\n")

	for i, p := range result.ProductsData {
		if i == MaxListed {
			break
		}
		fmt.Fprintf(&b, "<a href=\"%s\">Товар %d</a> – %s₽ | ⭐️ %s | 💬 %s\n",
			html.EscapeString(p.URL), i+1,
			formatInt(p.Price), formatFloat(p.Rating), formatInt(p.Reviews))
	}

	if prices := result.CurrencyPrices; prices != nil {
		fmt.Fprintf(&b, "\n<b>%s</b> ~%s₽ от %s₽ до %s₽",
			priceSummaryTitle,
			strconv.FormatFloat(prices.AvgPrice, 'f', -1, 64),
			strconv.FormatFloat(prices.MinPrice, 'f', -1, 64),
			strconv.FormatFloat(prices.MaxPrice, 'f', -1, 64))
	}
	return b.String()
}

func formatInt(v *int64) string {
	if v == nil {
		return domain.NoneValue
	}
	return strconv.FormatInt(*v, 10)
}

func formatFloat(v *float64) string {
	if v == nil {
		return domain.NoneValue
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func runeLen(s string) int {
	return len([]rune(s))
}

// truncate cuts s to at most n runes, marking the cut with an ellipsis
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(runes[:n-1]) + "…"
}

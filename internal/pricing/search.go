package pricing

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	vintedCatalogURL = "https://www.vinted.co.uk/catalog"
	maxSearchTerm    = 60
	// Scraped prices outside this band are treated as noise.
	minPlausiblePrice = 0.5
	maxPlausiblePrice = 500
)

var (
	sizeTokenRe = regexp.MustCompile(`(?i)\b(XS|S|M|L|XL|XXL|\d+\s?cm)\b`)
	spacesRe    = regexp.MustCompile(`\s+`)
	gbpPriceRe  = regexp.MustCompile(`£(\d+(?:\.\d{2})?)`)
)

// Vinted's status_ids for each condition enum.
var vintedStatusIDs = map[string]string{
	"new_with_tags":    "6",
	"new_without_tags": "1",
	"very_good":        "2",
	"good":             "3",
	"satisfactory":     "4",
}

// BuildSearchTerm picks the marketplace search text for an item. The title
// wins with size tokens removed; otherwise brand and category are used.
func BuildSearchTerm(brand, category, title string) string {
	if title = strings.TrimSpace(title); title != "" {
		term := sizeTokenRe.ReplaceAllString(title, "")
		term = strings.TrimSpace(spacesRe.ReplaceAllString(term, " "))
		if r := []rune(term); len(r) > maxSearchTerm {
			term = strings.TrimSpace(string(r[:maxSearchTerm]))
		}
		if term != "" {
			return term
		}
	}
	brand, category = strings.TrimSpace(brand), strings.TrimSpace(category)
	switch {
	case brand != "" && category != "":
		return brand + " " + category
	case brand != "":
		return brand
	case category != "":
		return category
	}
	return "clothing item"
}

// normaliseCondition accepts both the storage enum and display labels.
func normaliseCondition(condition string) string {
	c := strings.ToLower(strings.TrimSpace(condition))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(c)
}

// BuildVintedURL returns the Vinted UK catalogue search for an item.
func BuildVintedURL(brand, category, title, condition string) string {
	params := url.Values{}
	params.Set("search_text", BuildSearchTerm(brand, category, title))
	params.Set("order", "relevance")
	if id, ok := vintedStatusIDs[normaliseCondition(condition)]; ok {
		params.Set("status_ids[]", id)
	}
	return vintedCatalogURL + "?" + params.Encode()
}

// ExtractPrices pulls plausible GBP prices out of scraped page text.
func ExtractPrices(text string) []float64 {
	var prices []float64
	for _, m := range gbpPriceRe.FindAllStringSubmatch(text, -1) {
		p, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if p > minPlausiblePrice && p < maxPlausiblePrice {
			prices = append(prices, p)
		}
	}
	return prices
}

// Median of prices; the mean of the middle pair for even counts. Zero when
// empty.
func Median(prices []float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// MaxConfidence caps the reported confidence by how many real prices were
// found.
func MaxConfidence(priceCount int) int {
	switch {
	case priceCount >= 5:
		return 95
	case priceCount >= 3:
		return 80
	}
	return 60
}

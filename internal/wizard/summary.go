package wizard

import (
	"fmt"
	"strings"

	"github.com/raine/vintifi/internal/adapter"
)

// FormatPrice renders a price for copy/paste, or a dash placeholder
// when unset.
func FormatPrice(p *float64) string {
	if p == nil {
		return "—"
	}
	return fmt.Sprintf("£%.2f", *p)
}

// Summary is the combined copy-all text offered on the Pack step.
func Summary(it Item) string {
	parts := []string{
		it.DisplayTitle(),
		"",
		it.DisplayDescription(),
		"",
		strings.Join(it.Hashtags, " "),
		"",
		"Price: " + FormatPrice(it.ChosenPrice),
	}
	return strings.Join(parts, "\n")
}

// CopyFields are the per-field copy affordances of the Pack step.
func CopyFields(it Item) map[string]string {
	return map[string]string{
		"title":       it.DisplayTitle(),
		"description": it.DisplayDescription(),
		"hashtags":    strings.Join(it.Hashtags, " "),
		"price":       FormatPrice(it.ChosenPrice),
	}
}

// BuildDraft assembles the persistence payload. The condition label is
// mapped to the storage enum here and nowhere else.
func BuildDraft(it Item) (adapter.ListingDraft, error) {
	condition, ok := ConditionToEnum(it.Condition)
	if !ok {
		return adapter.ListingDraft{}, fmt.Errorf("unknown condition %q", it.Condition)
	}
	d := adapter.ListingDraft{
		Title:          it.DisplayTitle(),
		Description:    it.DisplayDescription(),
		Brand:          it.Brand,
		Category:       it.Category,
		Size:           it.Size,
		Condition:      condition,
		Colour:         it.Colour,
		SourceURL:      it.SourceURL,
		Photos:         it.BestPhotos(),
		Hashtags:       append([]string{}, it.Hashtags...),
		Price:          it.ChosenPrice,
		SuggestedPrice: it.SuggestedPrice,
		PriceStrategy:  string(it.PriceStrategy),
		Status:         "draft",
	}
	if it.PriceRange != nil {
		low, high := it.PriceRange.Low, it.PriceRange.High
		d.PriceLow = &low
		d.PriceHigh = &high
	}
	return d, nil
}

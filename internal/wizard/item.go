package wizard

import "strings"

// PriceStrategy selects which end of the price range the chosen price
// follows.
type PriceStrategy string

const (
	StrategyCompetitive PriceStrategy = "competitive"
	StrategyBalanced    PriceStrategy = "balanced"
	StrategyPremium     PriceStrategy = "premium"
)

// Valid reports whether s is a known strategy.
func (s PriceStrategy) Valid() bool {
	return s == StrategyCompetitive || s == StrategyBalanced || s == StrategyPremium
}

// PriceRange is the low/median/high band from a price check.
type PriceRange struct {
	Low    float64 `json:"low"`
	Median float64 `json:"median"`
	High   float64 `json:"high"`
}

// PriceFor returns the range point matching strategy. Unknown strategies
// fall back to the median.
func (r PriceRange) PriceFor(strategy PriceStrategy) float64 {
	switch strategy {
	case StrategyCompetitive:
		return r.Low
	case StrategyPremium:
		return r.High
	}
	return r.Median
}

// Item is the listing draft assembled across the wizard.
type Item struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Brand       string `json:"brand"`
	Category    string `json:"category"`
	Size        string `json:"size"`
	// Condition holds the human readable label, e.g. "Very good".
	Condition string `json:"condition"`
	Colour    string `json:"color"`
	SourceURL string `json:"source_url"`

	OriginalPhotos []string `json:"originalPhotos"`
	// EnhancedPhotos is parallel to OriginalPhotos; nil slots are not yet
	// enhanced.
	EnhancedPhotos []*string `json:"enhancedPhotos"`

	OptimisedTitle       string   `json:"optimisedTitle"`
	OptimisedDescription string   `json:"optimisedDescription"`
	Hashtags             []string `json:"hashtags"`

	SuggestedPrice *float64      `json:"suggestedPrice"`
	PriceRange     *PriceRange   `json:"priceRange"`
	PriceStrategy  PriceStrategy `json:"priceStrategy"`
	ChosenPrice    *float64      `json:"chosenPrice"`
}

// DefaultItem is an empty draft.
func DefaultItem() Item {
	return Item{
		OriginalPhotos: []string{},
		EnhancedPhotos: []*string{},
		Hashtags:       []string{},
		PriceStrategy:  StrategyBalanced,
	}
}

// clone deep-copies every slice and pointer so reducer outputs never share
// backing storage with their inputs.
func (it Item) clone() Item {
	out := it
	out.OriginalPhotos = append([]string{}, it.OriginalPhotos...)
	out.EnhancedPhotos = make([]*string, len(it.EnhancedPhotos))
	for i, p := range it.EnhancedPhotos {
		if p != nil {
			v := *p
			out.EnhancedPhotos[i] = &v
		}
	}
	out.Hashtags = append([]string{}, it.Hashtags...)
	if it.SuggestedPrice != nil {
		v := *it.SuggestedPrice
		out.SuggestedPrice = &v
	}
	if it.PriceRange != nil {
		v := *it.PriceRange
		out.PriceRange = &v
	}
	if it.ChosenPrice != nil {
		v := *it.ChosenPrice
		out.ChosenPrice = &v
	}
	return out
}

// DisplayTitle is the optimised title when present, else the raw title.
func (it Item) DisplayTitle() string {
	if it.OptimisedTitle != "" {
		return it.OptimisedTitle
	}
	return it.Title
}

// DisplayDescription is the optimised description when present.
func (it Item) DisplayDescription() string {
	if it.OptimisedDescription != "" {
		return it.OptimisedDescription
	}
	return it.Description
}

// BestPhotos returns, per slot, the enhanced photo if there is one and the
// original otherwise.
func (it Item) BestPhotos() []string {
	out := make([]string, len(it.OriginalPhotos))
	for i, orig := range it.OriginalPhotos {
		out[i] = orig
		if i < len(it.EnhancedPhotos) && it.EnhancedPhotos[i] != nil {
			out[i] = *it.EnhancedPhotos[i]
		}
	}
	return out
}

// MaxPhotos caps the number of original photos per item.
const MaxPhotos = 10

// Categories offered in the Add Item step.
var Categories = []string{"Tops", "Bottoms", "Dresses", "Outerwear", "Shoes", "Accessories", "Other"}

// conditionTable maps display labels to the storage enum. It is the only
// place that knows both vocabularies.
var conditionTable = []struct {
	Label string
	Enum  string
}{
	{"New with tags", "new_with_tags"},
	{"New without tags", "new_without_tags"},
	{"Very good", "very_good"},
	{"Good", "good"},
	{"Satisfactory", "satisfactory"},
}

// ConditionLabels lists the condition labels in display order.
func ConditionLabels() []string {
	out := make([]string, len(conditionTable))
	for i, c := range conditionTable {
		out[i] = c.Label
	}
	return out
}

// ConditionToEnum maps a label (or an enum value already) to the storage
// enum. Matching is case-insensitive.
func ConditionToEnum(label string) (string, bool) {
	label = strings.TrimSpace(label)
	for _, c := range conditionTable {
		if strings.EqualFold(c.Label, label) || strings.EqualFold(c.Enum, label) {
			return c.Enum, true
		}
	}
	return "", false
}

// ConditionFromEnum maps a storage enum value back to its label.
func ConditionFromEnum(enum string) (string, bool) {
	for _, c := range conditionTable {
		if c.Enum == enum {
			return c.Label, true
		}
	}
	return "", false
}

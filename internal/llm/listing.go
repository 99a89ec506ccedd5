package llm

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/genai"
)

// MaxOptimisePhotos is how many photos are attached to an optimisation
// request.
const MaxOptimisePhotos = 4

var conditionSignals = map[string]string{
	"new_with_tags":    "BNWT",
	"new_without_tags": "Brand New",
	"very_good":        "Excellent Condition",
	"good":             "Good Condition",
	"satisfactory":     "Good Used",
}

// ConditionSignal is the short title suffix for a condition enum.
func ConditionSignal(condition string) string {
	return conditionSignals[condition]
}

// PhotoScore is the photo part of the health score: 25 for three or more
// photos, 18 for two, 10 for one.
func PhotoScore(photos int) int {
	switch {
	case photos >= 3:
		return 25
	case photos == 2:
		return 18
	case photos == 1:
		return 10
	}
	return 0
}

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not specified"
	}
	return strings.TrimSpace(s)
}

// OptimisePrompt builds the copywriting instruction for in.
func OptimisePrompt(in ListingInput) string {
	colour := strings.TrimSpace(in.Colour)
	colourLine := "NOT PROVIDED, DO NOT INCLUDE COLOUR"
	colourRule := "Colour NOT provided. Do not mention any colour anywhere."
	formula := "[Brand] [Item Type] [Size] [Condition Signal]"
	if colour != "" {
		colourLine = colour
		colourRule = fmt.Sprintf("Colour is: %s. Use this exactly.", colour)
		formula = "[Brand] [Item Type] [Colour] [Size] [Condition Signal]"
	}
	notes := ""
	if n := strings.TrimSpace(in.SellerNotes); n != "" {
		notes = fmt.Sprintf("\nSELLER NOTES (disclose honestly): %q\n", n)
	}
	current := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "None"
		}
		return s
	}

	return prompt(`
		You are a real Vinted seller who has completed 2,000+ transactions. Write like a genuine person.

		Item details:
		- Brand: %s
		- Category: %s
		- Size: %s
		- Condition: %s
		- Colour: %s
		- Current title: %s
		- Current description: %s
		- Number of photos: %d

		COLOUR RULE: %s

		TITLE FORMULA (max 80 chars): %s

		Condition signals: new_with_tags=BNWT, new_without_tags=Brand New, very_good=Excellent Condition, good=Good Condition, satisfactory=Good Used

		DESCRIPTION: Write 120-200 words of casual, conversational British English. No markdown and no bullets, plain text paragraphs only. End with 3-5 hashtags.

		BANNED WORDS: elevate, sophisticated, timeless, versatile, effortless, staple, wardrobe essential, stunning, gorgeous, boasts, game-changer, trendy, chic, exquisite, premium quality.
		%s
		Score the listing out of 100: title_score up to 25, description_score up to 25, photo_score %d, completeness_score up to 25, overall is their sum.`,
		orNotSpecified(in.Brand), orNotSpecified(in.Category), orNotSpecified(in.Size),
		orNotSpecified(in.Condition), colourLine, current(in.Title), current(in.Description),
		in.PhotoCount, colourRule, formula, notes, PhotoScore(in.PhotoCount))
}

var healthScoreSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"overall":            {Type: genai.TypeInteger},
		"title_score":        {Type: genai.TypeInteger},
		"description_score":  {Type: genai.TypeInteger},
		"photo_score":        {Type: genai.TypeInteger},
		"completeness_score": {Type: genai.TypeInteger},
	},
	Required: []string{"overall", "title_score", "description_score", "photo_score", "completeness_score"},
}

var listingCopySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"optimised_title":       {Type: genai.TypeString, Description: "Max 80 characters."},
		"optimised_description": {Type: genai.TypeString, Description: "Plain text, blank line between paragraphs, hashtags at the end."},
		"hashtags":              {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"health_score":          healthScoreSchema,
	},
	Required:         []string{"optimised_title", "optimised_description", "hashtags", "health_score"},
	PropertyOrdering: []string{"optimised_title", "optimised_description", "hashtags", "health_score"},
}

// OptimiseListing rewrites the listing copy.
func (g *Gemini) OptimiseListing(ctx context.Context, in ListingInput) (*ListingCopy, error) {
	photos := in.Photos
	if len(photos) > MaxOptimisePhotos {
		photos = photos[:MaxOptimisePhotos]
	}
	parts := append([]*genai.Part{genai.NewPartFromText(OptimisePrompt(in))}, imageParts(photos)...)

	var out ListingCopy
	if err := g.generateJSON(ctx, "optimise listing", listingCopySchema, &out, parts...); err != nil {
		return nil, err
	}
	return &out, nil
}

func formatPrices(prices []float64) string {
	if len(prices) == 0 {
		return "none found"
	}
	s := make([]string, len(prices))
	for i, p := range prices {
		s[i] = "£" + strconv.FormatFloat(p, 'f', 2, 64)
	}
	return strings.Join(s, ", ")
}

// PricePrompt builds the pricing instruction for in.
func PricePrompt(in PriceInput) string {
	excerpt := in.PageExcerpt
	if excerpt == "" {
		excerpt = "(no listing page available)"
	}
	notes := in.MarketNotes
	if notes == "" {
		notes = "(no market research available)"
	}
	maxConfidence := in.MaxConfidence
	if maxConfidence <= 0 {
		maxConfidence = 100
	}
	anchor := ""
	if len(in.ScrapedPrices) >= 3 {
		anchor = " Keep recommended_price within 30% of the median of the scraped prices."
	}
	return prompt(`
		You are a Vinted UK pricing expert. Recommend a selling price for this item.

		Item:
		- Brand: %s
		- Title: %s
		- Category: %s
		- Condition: %s
		- Size: %s

		Prices seen on Vinted search results: %s

		Vinted search page excerpt:
		%s

		Market research:
		%s

		Give prices in GBP. price_range_low <= price_range_median <= price_range_high. recommended_price sits inside the range and should sell within two weeks.%s confidence_score is 0-%d and reflects how much real evidence you had. Keep ai_insights to two or three plain sentences.`,
		orNotSpecified(in.Brand), orNotSpecified(in.Title), orNotSpecified(in.Category),
		orNotSpecified(in.Condition), orNotSpecified(in.Size), formatPrices(in.ScrapedPrices),
		excerpt, notes, anchor, maxConfidence)
}

var priceAnalysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"recommended_price":  {Type: genai.TypeNumber},
		"confidence_score":   {Type: genai.TypeInteger},
		"price_range_low":    {Type: genai.TypeNumber},
		"price_range_median": {Type: genai.TypeNumber},
		"price_range_high":   {Type: genai.TypeNumber},
		"item_title":         {Type: genai.TypeString},
		"ai_insights":        {Type: genai.TypeString},
		"comparable_items": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"title": {Type: genai.TypeString},
					"price": {Type: genai.TypeNumber},
				},
			},
		},
	},
	Required: []string{"recommended_price", "confidence_score", "price_range_low", "price_range_median", "price_range_high"},
}

// AnalysePrices recommends a price from the gathered evidence.
func (g *Gemini) AnalysePrices(ctx context.Context, in PriceInput) (*PriceAnalysis, error) {
	var out PriceAnalysis
	if err := g.generateJSON(ctx, "price analysis", priceAnalysisSchema, &out, genai.NewPartFromText(PricePrompt(in))); err != nil {
		return nil, err
	}
	return &out, nil
}

// maxExtractChars bounds how much page text is sent for extraction.
const maxExtractChars = 8000

// ExtractPrompt builds the extraction instruction for a scraped page.
func ExtractPrompt(in PageInput) string {
	text := in.Text
	if len(text) > maxExtractChars {
		text = text[:maxExtractChars]
	}
	return prompt(`
		Extract the product listing details from this Vinted page.
		Extract ONLY the primary listing for item ID %s (slug: %q). Ignore recommended or similar items.
		Use empty strings for anything not on the page and null for an unknown price.

		Page URL: %s
		Page title: %s

		Content:
		%s`, in.ItemID, in.Slug, in.URL, in.PageTitle, text)
}

var extractedListingSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title":       {Type: genai.TypeString},
		"brand":       {Type: genai.TypeString},
		"category":    {Type: genai.TypeString},
		"size":        {Type: genai.TypeString},
		"condition":   {Type: genai.TypeString},
		"description": {Type: genai.TypeString},
		"price":       {Type: genai.TypeNumber, Nullable: genai.Ptr(true)},
		"photos":      {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
	},
	Required: []string{"title"},
}

// ExtractListing reads the primary listing out of page text.
func (g *Gemini) ExtractListing(ctx context.Context, in PageInput) (*ExtractedListing, error) {
	var out ExtractedListing
	if err := g.generateJSON(ctx, "listing extraction", extractedListingSchema, &out, genai.NewPartFromText(ExtractPrompt(in))); err != nil {
		return nil, err
	}
	return &out, nil
}

package llm

import (
	"context"

	"github.com/raine/vintifi/internal/studio"
)

// Usage contains token usage and cost information.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// Image is raw image bytes with their MIME type.
type Image struct {
	Data     []byte
	MIMEType string
}

// EditRequest asks for one studio operation to be applied to an image.
type EditRequest struct {
	Image          Image
	Operation      studio.Operation
	Params         studio.Params
	GarmentContext string
}

// EditResult is the edited image returned by the model.
type EditResult struct {
	Image Image
	Model string
	Usage Usage
}

// ListingInput is what the seller has filled in so far. Condition is the
// storage enum (e.g. very_good).
type ListingInput struct {
	Title       string
	Description string
	Brand       string
	Category    string
	Size        string
	Condition   string
	Colour      string
	SellerNotes string
	// PhotoCount is the number of photos on the listing; only the first
	// few are attached as Photos.
	PhotoCount int
	Photos     []Image
}

// HealthScore grades a listing out of 100.
type HealthScore struct {
	Overall           int `json:"overall"`
	TitleScore        int `json:"title_score"`
	DescriptionScore  int `json:"description_score"`
	PhotoScore        int `json:"photo_score"`
	CompletenessScore int `json:"completeness_score"`
}

// ListingCopy is the rewritten title, description and hashtags.
type ListingCopy struct {
	Title       string      `json:"optimised_title"`
	Description string      `json:"optimised_description"`
	Hashtags    []string    `json:"hashtags"`
	HealthScore HealthScore `json:"health_score"`
}

// PriceInput is the evidence gathered for a price recommendation.
type PriceInput struct {
	Brand         string
	Title         string
	Category      string
	Condition     string
	Size          string
	ScrapedPrices []float64
	PageExcerpt   string
	MarketNotes   string
	// MaxConfidence caps confidence_score by how much price data there is.
	MaxConfidence int
}

// Comparable is a similar sold or listed item.
type Comparable struct {
	Title string  `json:"title"`
	Price float64 `json:"price"`
}

// PriceAnalysis is the model's pricing verdict.
type PriceAnalysis struct {
	RecommendedPrice float64      `json:"recommended_price"`
	Confidence       int          `json:"confidence_score"`
	Low              float64      `json:"price_range_low"`
	Median           float64      `json:"price_range_median"`
	High             float64      `json:"price_range_high"`
	ItemTitle        string       `json:"item_title"`
	Insights         string       `json:"ai_insights"`
	Comparables      []Comparable `json:"comparable_items"`
}

// PageInput is a scraped marketplace page to pull one listing out of.
type PageInput struct {
	URL       string
	ItemID    string
	Slug      string
	PageTitle string
	Text      string
}

// ExtractedListing is a listing read off a page. Empty strings mean the
// field was not found.
type ExtractedListing struct {
	Title       string   `json:"title"`
	Brand       string   `json:"brand"`
	Category    string   `json:"category"`
	Size        string   `json:"size"`
	Condition   string   `json:"condition"`
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
	Photos      []string `json:"photos"`
}

// ImageEditor applies studio operations to images.
type ImageEditor interface {
	EditImage(ctx context.Context, req EditRequest) (*EditResult, error)
}

// ListingWriter writes optimised listing copy.
type ListingWriter interface {
	OptimiseListing(ctx context.Context, in ListingInput) (*ListingCopy, error)
}

// PriceAnalyst turns market evidence into a price recommendation.
type PriceAnalyst interface {
	AnalysePrices(ctx context.Context, in PriceInput) (*PriceAnalysis, error)
}

// ListingExtractor reads a listing out of scraped page text.
type ListingExtractor interface {
	ExtractListing(ctx context.Context, in PageInput) (*ExtractedListing, error)
}

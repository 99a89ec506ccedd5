package adapter

import "time"

// Wire types shared by the adapters and the backend handlers.

type ProcessImageRequest struct {
	ImageURL       string            `json:"image_url"`
	Operation      string            `json:"operation"`
	Parameters     map[string]string `json:"parameters,omitempty"`
	Source         string            `json:"source,omitempty"`
	PipelineID     string            `json:"pipeline_id,omitempty"`
	PipelineStep   int               `json:"pipeline_step"`
	GarmentContext string            `json:"garment_context,omitempty"`
}

type ProcessImageResponse struct {
	Success     bool   `json:"success"`
	ResultURL   string `json:"resultUrl,omitempty"`
	JobID       string `json:"jobId,omitempty"`
	CreditsUsed int    `json:"creditsUsed"`
	Error       string `json:"error,omitempty"`
}

type OptimiseRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Brand       string   `json:"brand"`
	Category    string   `json:"category"`
	Size        string   `json:"size"`
	Condition   string   `json:"condition"`
	Colour      string   `json:"colour"`
	Photos      []string `json:"photos,omitempty"`
	SellWizard  bool     `json:"sell_wizard"`
}

type OptimiseResult struct {
	OptimisedTitle       string       `json:"optimised_title"`
	OptimisedDescription string       `json:"optimised_description"`
	Hashtags             []string     `json:"hashtags"`
	SuggestedTags        []string     `json:"suggested_tags,omitempty"`
	HealthScore          *HealthScore `json:"health_score,omitempty"`
	CreditsUsed          int          `json:"creditsUsed"`
}

// HealthScore grades a listing out of 100. The parts sum to Overall.
type HealthScore struct {
	Overall           int `json:"overall"`
	TitleScore        int `json:"title_score"`
	DescriptionScore  int `json:"description_score"`
	PhotoScore        int `json:"photo_score"`
	CompletenessScore int `json:"completeness_score"`
}

type PriceCheckRequest struct {
	Brand      string `json:"brand"`
	Title      string `json:"title"`
	Category   string `json:"category"`
	Condition  string `json:"condition"`
	Size       string `json:"size"`
	SellWizard bool   `json:"sell_wizard"`
}

type PriceRange struct {
	Low    float64 `json:"low"`
	Median float64 `json:"median"`
	High   float64 `json:"high"`
}

type PriceCheckResult struct {
	PriceRange     PriceRange `json:"priceRange"`
	SuggestedPrice float64    `json:"suggestedPrice"`
	Confidence     int        `json:"confidence"`
	Comparables    int        `json:"comparables"`
	Insights       string     `json:"insights,omitempty"`
	SearchURL      string     `json:"searchUrl,omitempty"`
}

type ImportRequest struct {
	URL string `json:"url"`
}

// ImportedItem is a listing pulled from a marketplace URL. Condition is the
// storage enum.
type ImportedItem struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Brand       string   `json:"brand"`
	Category    string   `json:"category"`
	Size        string   `json:"size"`
	Condition   string   `json:"condition"`
	Colour      string   `json:"colour"`
	Price       *float64 `json:"price,omitempty"`
	Photos      []string `json:"photos"`
	SourceURL   string   `json:"source_url"`
}

type UploadResult struct {
	URL string `json:"url"`
}

// CheckoutRequest starts a subscription (Tier set) or a credit pack
// purchase (Pack set).
type CheckoutRequest struct {
	Type   string `json:"type"`
	Tier   string `json:"tier,omitempty"`
	Pack   string `json:"pack,omitempty"`
	Annual bool   `json:"annual,omitempty"`
}

type CheckoutResult struct {
	URL string `json:"url"`
}

type Profile struct {
	UserID                  string `json:"user_id"`
	Email                   string `json:"email"`
	SubscriptionTier        string `json:"subscription_tier"`
	CreditsBalance          int    `json:"credits_balance"`
	CreditsMonthlyAllowance int    `json:"credits_monthly_allowance"`
	FirstItemPassUsed       bool   `json:"first_item_pass_used"`
}

// ListingDraft is the payload written when a wizard is saved.
type ListingDraft struct {
	ID             string   `json:"id,omitempty"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Brand          string   `json:"brand"`
	Category       string   `json:"category"`
	Size           string   `json:"size"`
	Condition      string   `json:"condition"`
	Colour         string   `json:"colour"`
	SourceURL      string   `json:"source_url,omitempty"`
	Photos         []string `json:"photos"`
	Hashtags       []string `json:"hashtags"`
	Price          *float64 `json:"price"`
	SuggestedPrice *float64 `json:"suggested_price"`
	PriceLow       *float64 `json:"price_low"`
	PriceHigh      *float64 `json:"price_high"`
	PriceStrategy  string   `json:"price_strategy"`
	Status         string   `json:"status"`
}

type Listing struct {
	ListingDraft
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UpsertResult struct {
	ID string `json:"id"`
}

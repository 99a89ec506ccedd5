package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/raine/vintifi/internal/llm"
)

const (
	defaultDomain = "www.vinted.co.uk"
	mobileUA      = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15"
)

var (
	itemURLRe = regexp.MustCompile(`^https?://(www\.)?vinted\.(co\.uk|fr|de|nl|be|es|it|pl|com)/items/\d+`)
	itemIDRe  = regexp.MustCompile(`items/(\d+)`)
	slugRe    = regexp.MustCompile(`items/\d+-([^?#]+)`)
	domainRe  = regexp.MustCompile(`vinted\.(co\.uk|fr|de|nl|be|es|it|pl|com)`)
)

var ErrInvalidURL = errors.New("not a vinted item url")

// ItemRef identifies a listing on one of the Vinted storefronts.
type ItemRef struct {
	URL    string
	ID     string
	Slug   string
	Domain string
}

// ParseItemURL validates a Vinted item URL and pulls out its parts. The slug
// has dashes turned into spaces.
func ParseItemURL(raw string) (ItemRef, error) {
	raw = strings.TrimSpace(raw)
	if !itemURLRe.MatchString(raw) {
		return ItemRef{}, ErrInvalidURL
	}
	ref := ItemRef{URL: raw, Domain: defaultDomain}
	if m := itemIDRe.FindStringSubmatch(raw); m != nil {
		ref.ID = m[1]
	}
	if m := slugRe.FindStringSubmatch(raw); m != nil {
		ref.Slug = strings.ReplaceAll(m[1], "-", " ")
	}
	if m := domainRe.FindStringSubmatch(raw); m != nil {
		ref.Domain = "www.vinted." + m[1]
	}
	return ref, nil
}

// Vinted status_ids, the same ids the catalogue search filters on.
var numericConditions = map[string]string{
	"6": "New with tags",
	"1": "New without tags",
	"2": "Very good",
	"3": "Good",
	"4": "Satisfactory",
}

// MapCondition turns a Vinted status (numeric id or free text) into a
// condition label. Unrecognised text is returned as is.
func MapCondition(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if label, ok := numericConditions[s]; ok {
		return label
	}
	switch {
	case s == "new_with_tags" || strings.Contains(s, "new with tags"):
		return "New with tags"
	case strings.Contains(s, "new without") || (strings.Contains(s, "new") && !strings.Contains(s, "tag")):
		return "New without tags"
	case strings.Contains(s, "very good") || s == "very_good":
		return "Very good"
	case strings.Contains(s, "good"):
		return "Good"
	case strings.Contains(s, "satisf"):
		return "Satisfactory"
	}
	return strings.TrimSpace(raw)
}

// Checked in order; "t-shirt" must come before "shirt" and "sweatshirt"
// before "shirt".
var categoryKeywords = []struct{ keyword, category string }{
	{"t-shirt", "T-shirts"},
	{"sweatshirt", "Hoodies"},
	{"top", "Tops"},
	{"shirt", "Shirts"},
	{"hoodie", "Hoodies"},
	{"jumper", "Jumpers"},
	{"sweater", "Jumpers"},
	{"cardigan", "Jumpers"},
	{"jacket", "Jackets"},
	{"blazer", "Jackets"},
	{"coat", "Coats"},
	{"jean", "Jeans"},
	{"trouser", "Trousers"},
	{"short", "Shorts"},
	{"skirt", "Skirts"},
	{"dress", "Dresses"},
	{"shoe", "Shoes"},
	{"trainer", "Trainers"},
	{"sneaker", "Trainers"},
	{"boot", "Boots"},
	{"bag", "Bags"},
	{"accessor", "Accessories"},
}

// MapCategory maps a marketplace category onto ours by keyword.
// Unmatched categories pass through.
func MapCategory(raw string) string {
	lower := strings.ToLower(raw)
	for _, c := range categoryKeywords {
		if strings.Contains(lower, c.keyword) {
			return c.category
		}
	}
	return strings.TrimSpace(raw)
}

type titled struct {
	Title string `json:"title"`
}

type vintedPhoto struct {
	FullSizeURL string `json:"full_size_url"`
	URL         string `json:"url"`
}

type vintedItem struct {
	Title        string          `json:"title"`
	Brand        *titled         `json:"brand"`
	BrandTitle   string          `json:"brand_title"`
	Catalog      *titled         `json:"catalog"`
	Category     *titled         `json:"category"`
	SizeTitle    string          `json:"size_title"`
	Status       json.RawMessage `json:"status"`
	StatusID     json.RawMessage `json:"status_id"`
	Description  string          `json:"description"`
	PriceNumeric json.RawMessage `json:"price_numeric"`
	Photos       []vintedPhoto   `json:"photos"`
}

type vintedItemResponse struct {
	Item *vintedItem `json:"item"`
}

// scalar reads a JSON string or number as text.
func scalar(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// VintedClient reads items from the storefront's public item API.
type VintedClient struct {
	httpClient *resty.Client
	// baseURL replaces https://{domain} when set.
	baseURL string
}

func NewVintedClient(baseURL string) *VintedClient {
	return &VintedClient{
		baseURL: baseURL,
		httpClient: resty.New().
			SetTimeout(20*time.Second).
			SetHeader("User-Agent", mobileUA).
			SetHeader("Accept", "application/json").
			SetHeader("Accept-Language", "en-GB,en;q=0.9"),
	}
}

// Item fetches and maps one listing.
func (c *VintedClient) Item(ctx context.Context, ref ItemRef) (*llm.ExtractedListing, error) {
	base := c.baseURL
	if base == "" {
		base = "https://" + ref.Domain
	}

	var result vintedItemResponse
	res, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Referer", "https://"+ref.Domain+"/").
		SetResult(&result).
		Get(base + "/api/v2/items/" + ref.ID)
	if err != nil {
		return nil, fmt.Errorf("vinted item request failed: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("vinted item request failed: status %d", res.StatusCode())
	}
	if result.Item == nil {
		return nil, fmt.Errorf("vinted item response has no item")
	}
	return mapVintedItem(result.Item), nil
}

func mapVintedItem(item *vintedItem) *llm.ExtractedListing {
	out := &llm.ExtractedListing{
		Title:       item.Title,
		Size:        item.SizeTitle,
		Description: item.Description,
		Photos:      []string{},
	}

	switch {
	case item.Brand != nil && item.Brand.Title != "":
		out.Brand = item.Brand.Title
	default:
		out.Brand = item.BrandTitle
	}

	switch {
	case item.Catalog != nil && item.Catalog.Title != "":
		out.Category = MapCategory(item.Catalog.Title)
	case item.Category != nil:
		out.Category = MapCategory(item.Category.Title)
	}

	status := scalar(item.Status)
	if status == "" {
		status = scalar(item.StatusID)
	}
	out.Condition = MapCondition(status)

	if p := scalar(item.PriceNumeric); p != "" {
		if price, err := strconv.ParseFloat(p, 64); err == nil {
			out.Price = &price
		}
	}

	for _, p := range item.Photos {
		switch {
		case p.FullSizeURL != "":
			out.Photos = append(out.Photos, p.FullSizeURL)
		case p.URL != "":
			out.Photos = append(out.Photos, p.URL)
		}
	}
	return out
}

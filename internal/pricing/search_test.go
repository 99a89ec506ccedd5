package pricing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSearchTerm(t *testing.T) {
	tests := []struct {
		name                   string
		brand, category, title string
		want                   string
	}{
		{"title without sizes", "Nike", "Hoodies", "Nike Tech Fleece Hoodie M", "Nike Tech Fleece Hoodie"},
		{"centimetre sizes", "", "", "Zara Midi Dress 38 cm XL", "Zara Midi Dress"},
		{"brand and category", "Nike", "Hoodies", "", "Nike Hoodies"},
		{"brand only", "Nike", "", "  ", "Nike"},
		{"category only", "", "Jeans", "", "Jeans"},
		{"nothing", "", "", "", "clothing item"},
		{"title of only sizes", "Levis", "Jeans", "XL", "Levis Jeans"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildSearchTerm(tt.brand, tt.category, tt.title))
		})
	}

	long := BuildSearchTerm("", "", strings.Repeat("word ", 30))
	assert.LessOrEqual(t, len([]rune(long)), maxSearchTerm)
}

func TestBuildVintedURL(t *testing.T) {
	assert.Equal(t,
		"https://www.vinted.co.uk/catalog?order=relevance&search_text=Nike+Hoodie&status_ids%5B%5D=2",
		BuildVintedURL("Nike", "", "Nike Hoodie", "very_good"))

	// Display labels map to the same filter
	assert.Contains(t, BuildVintedURL("", "", "Dress", "New with tags"), "status_ids%5B%5D=6")

	assert.Equal(t,
		"https://www.vinted.co.uk/catalog?order=relevance&search_text=Dress",
		BuildVintedURL("", "", "Dress", "mint"))
}

func TestExtractPrices(t *testing.T) {
	text := "Nike hoodie £12.00 · £8 · postage £0.50 · bundle £650 · £15.5 · $20"
	assert.Equal(t, []float64{12, 8, 15}, ExtractPrices(text))
	assert.Empty(t, ExtractPrices("no prices here"))
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 5.0, Median([]float64{9, 1, 5}))
	assert.Equal(t, 6.0, Median([]float64{10, 2, 4, 8}))

	in := []float64{3, 1, 2}
	Median(in)
	assert.Equal(t, []float64{3, 1, 2}, in, "input is not reordered")
}

func TestMaxConfidence(t *testing.T) {
	assert.Equal(t, 60, MaxConfidence(0))
	assert.Equal(t, 60, MaxConfidence(2))
	assert.Equal(t, 80, MaxConfidence(3))
	assert.Equal(t, 95, MaxConfidence(5))
	assert.Equal(t, 95, MaxConfidence(40))
}

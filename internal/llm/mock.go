package llm

import (
	"context"
	"sync"
)

// MockCall records a call made to MockModel.
type MockCall struct {
	Method string
	Args   []any
}

// MockModel is a test double for every model interface in this package.
type MockModel struct {
	mu sync.Mutex

	EditImageFunc       func(ctx context.Context, req EditRequest) (*EditResult, error)
	OptimiseListingFunc func(ctx context.Context, in ListingInput) (*ListingCopy, error)
	AnalysePricesFunc   func(ctx context.Context, in PriceInput) (*PriceAnalysis, error)
	ExtractListingFunc  func(ctx context.Context, in PageInput) (*ExtractedListing, error)

	Calls []MockCall
}

var (
	_ ImageEditor      = (*MockModel)(nil)
	_ ListingWriter    = (*MockModel)(nil)
	_ PriceAnalyst     = (*MockModel)(nil)
	_ ListingExtractor = (*MockModel)(nil)
)

func (m *MockModel) record(method string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
}

// CallCount returns how many times method was called.
func (m *MockModel) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (m *MockModel) EditImage(ctx context.Context, req EditRequest) (*EditResult, error) {
	m.record("EditImage", req)
	if m.EditImageFunc != nil {
		return m.EditImageFunc(ctx, req)
	}
	return &EditResult{Image: Image{Data: []byte("edited:" + string(req.Operation)), MIMEType: "image/png"}, Model: "mock"}, nil
}

func (m *MockModel) OptimiseListing(ctx context.Context, in ListingInput) (*ListingCopy, error) {
	m.record("OptimiseListing", in)
	if m.OptimiseListingFunc != nil {
		return m.OptimiseListingFunc(ctx, in)
	}
	return &ListingCopy{
		Title:       in.Brand + " " + in.Title,
		Description: "Mock description",
		Hashtags:    []string{"#mock"},
		HealthScore: HealthScore{Overall: 70, TitleScore: 20, DescriptionScore: 20, PhotoScore: PhotoScore(in.PhotoCount), CompletenessScore: 20},
	}, nil
}

func (m *MockModel) AnalysePrices(ctx context.Context, in PriceInput) (*PriceAnalysis, error) {
	m.record("AnalysePrices", in)
	if m.AnalysePricesFunc != nil {
		return m.AnalysePricesFunc(ctx, in)
	}
	return &PriceAnalysis{RecommendedPrice: 15, Confidence: 70, Low: 10, Median: 15, High: 20}, nil
}

func (m *MockModel) ExtractListing(ctx context.Context, in PageInput) (*ExtractedListing, error) {
	m.record("ExtractListing", in)
	if m.ExtractListingFunc != nil {
		return m.ExtractListingFunc(ctx, in)
	}
	return &ExtractedListing{Title: in.PageTitle}, nil
}

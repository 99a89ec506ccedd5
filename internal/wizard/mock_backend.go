package wizard

import (
	"context"
	"sync"

	"github.com/raine/vintifi/internal/adapter"
	"github.com/raine/vintifi/internal/studio"
)

// MockBackend is a Backend for tests. Unset funcs return canned successes.
type MockBackend struct {
	ProcessImageFunc    func(ctx context.Context, imageURL string, op studio.Operation, params studio.Params, opts studio.ProcessOptions) studio.ImageResult
	ImportListingFunc   func(ctx context.Context, url string) (*adapter.ImportedItem, error)
	UploadImageFunc     func(ctx context.Context, filename string, data []byte) (string, error)
	OptimiseListingFunc func(ctx context.Context, req adapter.OptimiseRequest) (*adapter.OptimiseResult, error)
	PriceCheckFunc      func(ctx context.Context, req adapter.PriceCheckRequest) (*adapter.PriceCheckResult, error)
	UpsertListingFunc   func(ctx context.Context, draft adapter.ListingDraft) (string, error)
	GetProfileFunc      func(ctx context.Context) (*adapter.Profile, error)

	mu sync.Mutex

	// Calls tracks all method invocations for assertions
	Calls []MockCall
}

// MockCall records a method call for test assertions.
type MockCall struct {
	Method string
	Args   []any
}

var _ Backend = (*MockBackend)(nil)

func (m *MockBackend) record(method string, args ...any) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
	m.mu.Unlock()
}

// CallCount returns how many times method was invoked.
func (m *MockBackend) CallCount(method string) int {
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

func (m *MockBackend) ProcessImage(ctx context.Context, imageURL string, op studio.Operation, params studio.Params, opts studio.ProcessOptions) studio.ImageResult {
	m.record("ProcessImage", imageURL, op, opts.Source)
	if m.ProcessImageFunc != nil {
		return m.ProcessImageFunc(ctx, imageURL, op, params, opts)
	}
	return studio.ImageResult{Success: true, ImageURL: imageURL + "?op=" + string(op)}
}

func (m *MockBackend) ImportListing(ctx context.Context, url string) (*adapter.ImportedItem, error) {
	m.record("ImportListing", url)
	if m.ImportListingFunc != nil {
		return m.ImportListingFunc(ctx, url)
	}
	return &adapter.ImportedItem{
		Title:     "Mock item",
		Brand:     "Mock",
		Category:  "Other",
		Size:      "M",
		Condition: "good",
		Photos:    []string{"https://mock.example/1.jpg"},
		SourceURL: url,
	}, nil
}

func (m *MockBackend) UploadImage(ctx context.Context, filename string, data []byte) (string, error) {
	m.record("UploadImage", filename, len(data))
	if m.UploadImageFunc != nil {
		return m.UploadImageFunc(ctx, filename, data)
	}
	return "https://mock.example/" + filename, nil
}

func (m *MockBackend) OptimiseListing(ctx context.Context, req adapter.OptimiseRequest) (*adapter.OptimiseResult, error) {
	m.record("OptimiseListing", req)
	if m.OptimiseListingFunc != nil {
		return m.OptimiseListingFunc(ctx, req)
	}
	return &adapter.OptimiseResult{
		OptimisedTitle:       "Optimised " + req.Title,
		OptimisedDescription: req.Description,
		Hashtags:             []string{"#mock"},
	}, nil
}

func (m *MockBackend) PriceCheck(ctx context.Context, req adapter.PriceCheckRequest) (*adapter.PriceCheckResult, error) {
	m.record("PriceCheck", req)
	if m.PriceCheckFunc != nil {
		return m.PriceCheckFunc(ctx, req)
	}
	return &adapter.PriceCheckResult{
		PriceRange:     adapter.PriceRange{Low: 10, Median: 15, High: 20},
		SuggestedPrice: 15,
		Confidence:     60,
	}, nil
}

func (m *MockBackend) UpsertListing(ctx context.Context, draft adapter.ListingDraft) (string, error) {
	m.record("UpsertListing", draft)
	if m.UpsertListingFunc != nil {
		return m.UpsertListingFunc(ctx, draft)
	}
	return "mock-listing-id", nil
}

func (m *MockBackend) GetProfile(ctx context.Context) (*adapter.Profile, error) {
	m.record("GetProfile")
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx)
	}
	return &adapter.Profile{UserID: "mock-user", SubscriptionTier: "free", CreditsBalance: 5}, nil
}

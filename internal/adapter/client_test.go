package adapter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raine/vintifi/internal/studio"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientOpts{BaseURL: srv.URL})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestProcessImage_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/functions/v1/vintography", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		var body ProcessImageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://img/in.jpg", body.ImageURL)
		assert.Equal(t, "clean_bg", body.Operation)
		assert.Equal(t, "sell_wizard", body.Source)
		assert.Equal(t, "p-1", body.PipelineID)
		assert.Equal(t, 1, body.PipelineStep)

		writeJSON(w, http.StatusOK, ProcessImageResponse{Success: true, ResultURL: "https://img/out.png", JobID: "j", CreditsUsed: 1})
	})

	ctx := WithToken(context.Background(), "tok-1")
	res := c.ProcessImage(ctx, "https://img/in.jpg", studio.OpCleanBG, studio.Params{}, studio.ProcessOptions{
		Source:       studio.SourceSellWizard,
		PipelineID:   "p-1",
		PipelineStep: 1,
	})
	assert.True(t, res.Success)
	assert.Equal(t, "https://img/out.png", res.ImageURL)
	assert.Empty(t, res.Error)
}

func TestProcessImage_FailuresEchoInput(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr string
	}{
		{
			name: "http error with message",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Rate limit exceeded, please try again shortly."})
			},
			wantErr: "Rate limit exceeded, please try again shortly.",
		},
		{
			name: "http error without body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantErr: "Image processing failed. Please try again.",
		},
		{
			name: "provider reported failure",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, ProcessImageResponse{Success: false, Error: "No image returned"})
			},
			wantErr: "No image returned",
		},
		{
			name: "success without url",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, ProcessImageResponse{Success: true})
			},
			wantErr: "Image processing failed. Please try again.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			res := c.ProcessImage(context.Background(), "https://img/in.jpg", studio.OpEnhance, nil, studio.ProcessOptions{})
			assert.False(t, res.Success)
			assert.Equal(t, "https://img/in.jpg", res.ImageURL)
			assert.Equal(t, tt.wantErr, res.Error)
		})
	}
}

func TestProcessImage_TransportFailure(t *testing.T) {
	c := NewClient(ClientOpts{BaseURL: "http://127.0.0.1:1"})
	res := c.ProcessImage(context.Background(), "in", studio.OpEnhance, nil, studio.ProcessOptions{})
	assert.False(t, res.Success)
	assert.Equal(t, "in", res.ImageURL)
	assert.NotEmpty(t, res.Error)
}

func TestInsufficientCredits(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusPaymentRequired, map[string]string{"error": "Insufficient credits"})
	})

	_, err := c.OptimiseListing(context.Background(), OptimiseRequest{Title: "x"})
	require.ErrorIs(t, err, ErrInsufficientCredits)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusPaymentRequired, apiErr.Status)
	assert.Equal(t, "Insufficient credits", apiErr.Message)
}

func TestAPIErrorWithoutCreditsIsNotInsufficient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid operation"})
	})

	_, err := c.PriceCheck(context.Background(), PriceCheckRequest{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInsufficientCredits)
	assert.Contains(t, err.Error(), "Invalid operation")
}

func TestPriceCheck(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/functions/v1/price-check", r.URL.Path)
		var body PriceCheckRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Nike", body.Brand)
		assert.True(t, body.SellWizard)
		writeJSON(w, http.StatusOK, PriceCheckResult{
			PriceRange:     PriceRange{Low: 20, Median: 30, High: 45},
			SuggestedPrice: 30,
			Confidence:     80,
		})
	})

	res, err := c.PriceCheck(context.Background(), PriceCheckRequest{Brand: "Nike", SellWizard: true})
	require.NoError(t, err)
	assert.Equal(t, 30.0, res.PriceRange.Median)
	assert.Equal(t, 80, res.Confidence)
}

func TestUploadImage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/functions/v1/upload", r.URL.Path)
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "photo.jpg", hdr.Filename)
		assert.Equal(t, []byte("jpeg-bytes"), data)
		writeJSON(w, http.StatusOK, UploadResult{URL: "https://blobs/photo.jpg"})
	})

	url, err := c.UploadImage(context.Background(), "photo.jpg", []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "https://blobs/photo.jpg", url)
}

func TestListingsRoundTrip(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/listings":
			var d ListingDraft
			require.NoError(t, json.NewDecoder(r.Body).Decode(&d))
			assert.Equal(t, "good", d.Condition)
			writeJSON(w, http.StatusOK, UpsertResult{ID: "l-1"})
		case r.Method == http.MethodGet && r.URL.Path == "/api/listings/l-1":
			writeJSON(w, http.StatusOK, Listing{ListingDraft: ListingDraft{ID: "l-1", Title: "T"}, UserID: "u"})
		case r.Method == http.MethodGet && r.URL.Path == "/api/listings/missing":
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		case r.Method == http.MethodGet && r.URL.Path == "/api/listings":
			writeJSON(w, http.StatusOK, map[string]any{"listings": []Listing{{ListingDraft: ListingDraft{ID: "l-1"}}}})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})
	ctx := context.Background()

	id, err := c.UpsertListing(ctx, ListingDraft{Title: "T", Condition: "good"})
	require.NoError(t, err)
	assert.Equal(t, "l-1", id)

	l, err := c.GetListing(ctx, "l-1")
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, "T", l.Title)

	l, err = c.GetListing(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, l)

	all, err := c.ListListings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetProfileAndCheckout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/profile":
			writeJSON(w, http.StatusOK, Profile{UserID: "u", SubscriptionTier: "pro", CreditsBalance: 42})
		case "/functions/v1/create-checkout":
			var body CheckoutRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "pack_10", body.Pack)
			writeJSON(w, http.StatusOK, CheckoutResult{URL: "https://checkout/session"})
		case "/functions/v1/scrape-vinted":
			writeJSON(w, http.StatusOK, ImportedItem{Title: "Imported", Condition: "very_good"})
		}
	})
	ctx := context.Background()

	p, err := c.GetProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, p.CreditsBalance)

	url, err := c.CreateCheckout(ctx, CheckoutRequest{Type: "credits", Pack: "pack_10"})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout/session", url)

	item, err := c.ImportListing(ctx, "https://www.vinted.co.uk/items/1")
	require.NoError(t, err)
	assert.Equal(t, "very_good", item.Condition)
}

func TestTokenFromContext(t *testing.T) {
	assert.Empty(t, TokenFrom(context.Background()))
	assert.Equal(t, "abc", TokenFrom(WithToken(context.Background(), "abc")))
}

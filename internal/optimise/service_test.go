package optimise

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raine/vintifi/internal/adapter"
	"github.com/raine/vintifi/internal/apierror"
	"github.com/raine/vintifi/internal/auth"
	"github.com/raine/vintifi/internal/llm"
	"github.com/raine/vintifi/internal/storage"
)

type fakeFetcher struct{}

func (fakeFetcher) Fetch(_ context.Context, url string) ([]byte, string, error) {
	if strings.Contains(url, "broken") {
		return nil, "", errors.New("404")
	}
	return []byte(url), "image/jpeg", nil
}

func newStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	key, err := storage.DeriveKey("test")
	require.NoError(t, err)
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), key)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var user = auth.User{ID: "u1"}

func TestOptimise(t *testing.T) {
	store := newStore(t)
	model := &llm.MockModel{
		OptimiseListingFunc: func(_ context.Context, in llm.ListingInput) (*llm.ListingCopy, error) {
			return &llm.ListingCopy{
				Title:       "Nike Hoodie Black M Good Condition",
				Description: "**Lovely** hoodie.\n\n\n\n- warm\n## Details\nworn _twice_",
				Hashtags:    []string{"nike", "#Nike", "#street wear", "", "#y2k"},
				HealthScore: llm.HealthScore{Overall: 99, TitleScore: 20, DescriptionScore: 22, PhotoScore: 0, CompletenessScore: 18},
			}, nil
		},
	}
	svc := NewService(store, model, fakeFetcher{}, nil)

	res, err := svc.Optimise(context.Background(), user, adapter.OptimiseRequest{
		Title:     "hoodie",
		Brand:     "Nike",
		Condition: "good",
		Photos:    []string{"a", "broken", "b", "c", "d", "e"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Nike Hoodie Black M Good Condition", res.OptimisedTitle)
	assert.Equal(t, "Lovely hoodie.\n\nwarm\nDetails\nworn twice", res.OptimisedDescription)
	assert.Equal(t, []string{"#nike", "#streetwear", "#y2k"}, res.Hashtags)
	assert.Equal(t, &adapter.HealthScore{Overall: 85, TitleScore: 20, DescriptionScore: 22, PhotoScore: 25, CompletenessScore: 18}, res.HealthScore)
	assert.Equal(t, 1, res.CreditsUsed)

	in := model.Calls[0].Args[0].(llm.ListingInput)
	assert.Equal(t, 6, in.PhotoCount)
	require.Len(t, in.Photos, llm.MaxOptimisePhotos)
	assert.Equal(t, "a", string(in.Photos[0].Data))
	assert.Equal(t, "b", string(in.Photos[1].Data), "broken photo skipped")
}

func TestOptimise_FirstItemPassAndRefund(t *testing.T) {
	store := newStore(t)
	model := &llm.MockModel{}
	svc := NewService(store, model, nil, nil)

	res, err := svc.Optimise(context.Background(), user, adapter.OptimiseRequest{Title: "t", SellWizard: true})
	require.NoError(t, err)
	assert.Equal(t, 0, res.CreditsUsed)

	model.OptimiseListingFunc = func(context.Context, llm.ListingInput) (*llm.ListingCopy, error) {
		return nil, fmt.Errorf("gemini: %w", llm.ErrRateLimited)
	}
	_, err = svc.Optimise(context.Background(), user, adapter.OptimiseRequest{Title: "t", SellWizard: true})
	assert.Equal(t, http.StatusTooManyRequests, apierror.Status(err))

	p, err := store.GetProfile("u1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.CreditsBalance, "failed call refunded")
	assert.True(t, p.FirstItemPassUsed)
}

func TestOptimise_Insufficient(t *testing.T) {
	store := newStore(t)
	_, err := store.EnsureProfile("u1", "")
	require.NoError(t, err)
	_, err = store.DeductCredits("u1", 3, "x", "")
	require.NoError(t, err)

	model := &llm.MockModel{}
	_, err = NewService(store, model, nil, nil).Optimise(context.Background(), user, adapter.OptimiseRequest{})
	assert.Equal(t, http.StatusPaymentRequired, apierror.Status(err))
	assert.Equal(t, 0, model.CallCount("OptimiseListing"))
}

func TestStripMarkdown(t *testing.T) {
	assert.Equal(t, "bold and italic", StripMarkdown("***bold*** and __italic__"))
	assert.Equal(t, "a\n\nb", StripMarkdown("a\n\n\n\n\nb"))
	assert.Equal(t, "#nike #vintage", StripMarkdown("#nike #vintage"))
	assert.Equal(t, "Title\nitem", StripMarkdown("### Title\n• item"))
}

func TestNormaliseHashtags(t *testing.T) {
	assert.Equal(t, []string{}, NormaliseHashtags(nil))
	assert.Equal(t, []string{"#a", "#b", "#c", "#d", "#e"}, NormaliseHashtags([]string{"a", "b", "c", "d", "e", "f"}))
	assert.Equal(t, []string{"#Vintage"}, NormaliseHashtags([]string{"##Vintage", "#vintage"}))
}

func TestTrimTitle(t *testing.T) {
	assert.Equal(t, "Short", TrimTitle("  Short "))
	long := strings.Repeat("word ", 30)
	got := TrimTitle(long)
	assert.LessOrEqual(t, len([]rune(got)), MaxTitleLength)
	assert.False(t, strings.HasSuffix(got, " "))
	assert.True(t, strings.HasSuffix(got, "word"))
}

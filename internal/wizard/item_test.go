package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionMapping(t *testing.T) {
	tests := []struct {
		label string
		enum  string
	}{
		{"New with tags", "new_with_tags"},
		{"New without tags", "new_without_tags"},
		{"Very good", "very_good"},
		{"Good", "good"},
		{"Satisfactory", "satisfactory"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			enum, ok := ConditionToEnum(tt.label)
			require.True(t, ok)
			assert.Equal(t, tt.enum, enum)

			label, ok := ConditionFromEnum(tt.enum)
			require.True(t, ok)
			assert.Equal(t, tt.label, label)
		})
	}

	enum, ok := ConditionToEnum("  very GOOD ")
	assert.True(t, ok)
	assert.Equal(t, "very_good", enum)

	enum, ok = ConditionToEnum("very_good")
	assert.True(t, ok)
	assert.Equal(t, "very_good", enum)

	_, ok = ConditionToEnum("mint")
	assert.False(t, ok)
	_, ok = ConditionFromEnum("Good")
	assert.False(t, ok)
}

func TestConditionLabelsOrder(t *testing.T) {
	assert.Equal(t, []string{"New with tags", "New without tags", "Very good", "Good", "Satisfactory"}, ConditionLabels())
}

func TestValidateStep(t *testing.T) {
	err := ValidateStep(StepAddItem, DefaultItem())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"title", "brand", "size", "category", "condition", "photos"}, verr.Fields)

	it := DefaultItem()
	it.Title, it.Brand, it.Size, it.Category, it.Condition = "Air Max", "Nike", "UK 9", "Shoes", "Good"
	it.OriginalPhotos = []string{"a"}
	assert.NoError(t, ValidateStep(StepAddItem, it))

	assert.NoError(t, ValidateStep(StepPhotos, DefaultItem()))
	assert.NoError(t, ValidateStep(StepPack, DefaultItem()))

	require.ErrorAs(t, ValidateStep(StepOptimise, DefaultItem()), &verr)
	assert.Equal(t, []string{"optimisedTitle"}, verr.Fields)

	require.ErrorAs(t, ValidateStep(StepPrice, DefaultItem()), &verr)
	assert.Equal(t, []string{"priceRange"}, verr.Fields)
}

func TestSummaryAndCopyFields(t *testing.T) {
	price := 18.0
	it := DefaultItem()
	it.Title = "raw"
	it.OptimisedTitle = "Nike Air Max 90 Trainers UK 9"
	it.Description = "desc"
	it.Hashtags = []string{"#nike", "#airmax"}
	it.ChosenPrice = &price

	assert.Equal(t, "Nike Air Max 90 Trainers UK 9\n\ndesc\n\n#nike #airmax\n\nPrice: £18.00", Summary(it))
	fields := CopyFields(it)
	assert.Equal(t, "£18.00", fields["price"])
	assert.Equal(t, "#nike #airmax", fields["hashtags"])

	assert.Equal(t, "—", FormatPrice(nil))
}

func TestBuildDraft(t *testing.T) {
	s := reduceAll(InitialState(),
		SetItemData{Patch: ItemPatch{
			Title:     strPtr("Air Max"),
			Brand:     strPtr("Nike"),
			Category:  strPtr("Shoes"),
			Size:      strPtr("UK 9"),
			Condition: strPtr("Very good"),
		}},
		AddOriginalPhoto{URL: "a"},
		AddOriginalPhoto{URL: "b"},
		SetEnhancedPhoto{Index: 1, URL: "b2"},
		SetPriceData{PriceRange: PriceRange{Low: 20, Median: 30, High: 45}, SuggestedPrice: 30},
	)
	d, err := BuildDraft(s.Item)
	require.NoError(t, err)
	assert.Equal(t, "very_good", d.Condition)
	assert.Equal(t, []string{"a", "b2"}, d.Photos)
	assert.Equal(t, 30.0, *d.Price)
	assert.Equal(t, 20.0, *d.PriceLow)
	assert.Equal(t, 45.0, *d.PriceHigh)
	assert.Equal(t, "balanced", d.PriceStrategy)
	assert.Equal(t, "draft", d.Status)

	it := s.Item
	it.Condition = "mint"
	_, err = BuildDraft(it)
	assert.Error(t, err)
}

func TestDecodeAction(t *testing.T) {
	a, err := DecodeAction([]byte(`{"type":"SET_CHOSEN_PRICE","price":18}`))
	require.NoError(t, err)
	assert.Equal(t, SetChosenPrice{Price: 18}, a)

	a, err = DecodeAction([]byte(`{"type":"SET_ITEM_DATA","payload":{"title":"Air Max","color":"Red"}}`))
	require.NoError(t, err)
	patch := a.(SetItemData).Patch
	assert.Equal(t, "Air Max", *patch.Title)
	assert.Equal(t, "Red", *patch.Colour)
	assert.Nil(t, patch.Brand)

	a, err = DecodeAction([]byte(`{"type":"NEXT_STEP"}`))
	require.NoError(t, err)
	assert.Equal(t, NextStep{}, a)

	_, err = DecodeAction([]byte(`{"type":"EXPLODE"}`))
	assert.Error(t, err)
	_, err = DecodeAction([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecodeClientActionRejectsControllerActions(t *testing.T) {
	_, err := DecodeClientAction([]byte(`{"type":"TOGGLE_HASHTAG","tag":"#nike"}`))
	assert.NoError(t, err)

	for _, raw := range []string{
		`{"type":"SET_SAVED","listingId":"x"}`,
		`{"type":"SET_PRICING","loading":true}`,
		`{"type":"SET_FIRST_ITEM_FREE","free":true}`,
	} {
		_, err := DecodeClientAction([]byte(raw))
		assert.Error(t, err, raw)
	}
}

package wizard

import "slices"

// Step numbers of the wizard.
const (
	StepAddItem  = 1
	StepPhotos   = 2
	StepOptimise = 3
	StepPrice    = 4
	StepPack     = 5
)

// StepNames are the titles shown for each step, indexed by step-1.
var StepNames = []string{"Add Item", "Photos", "Optimise", "Price", "Pack"}

// State is a Sell Wizard session.
type State struct {
	CurrentStep    int   `json:"currentStep"`
	CompletedSteps []int `json:"completedSteps"`
	// Direction is +1 or -1; only drives transition animation.
	Direction int  `json:"direction"`
	Item      Item `json:"item"`

	IsImporting        bool `json:"isImporting"`
	IsProcessingPhotos bool `json:"isProcessingPhotos"`
	IsOptimising       bool `json:"isOptimising"`
	IsPricing          bool `json:"isPricing"`
	IsSaving           bool `json:"isSaving"`

	FirstItemFree  bool   `json:"firstItemFree"`
	Error          string `json:"error,omitempty"`
	SavedListingID string `json:"savedListingId,omitempty"`
}

// InitialState is a fresh wizard at step 1.
func InitialState() State {
	return State{
		CurrentStep:    StepAddItem,
		CompletedSteps: []int{},
		Direction:      1,
		Item:           DefaultItem(),
		FirstItemFree:  true,
	}
}

// Busy reports whether any async operation is in flight.
func (s State) Busy() bool {
	return s.IsImporting || s.IsProcessingPhotos || s.IsOptimising || s.IsPricing || s.IsSaving
}

// Idle returns s with every busy flag cleared.
func (s State) Idle() State {
	s.IsImporting = false
	s.IsProcessingPhotos = false
	s.IsOptimising = false
	s.IsPricing = false
	s.IsSaving = false
	return s
}

// Saved reports whether the draft has been persisted.
func (s State) Saved() bool {
	return s.SavedListingID != ""
}

// ItemPatch is a partial update of the identity and photo fields. Nil
// pointers are left alone. A non-nil OriginalPhotos replaces the photo list
// and resets every enhanced slot.
type ItemPatch struct {
	Title          *string  `json:"title,omitempty"`
	Description    *string  `json:"description,omitempty"`
	Brand          *string  `json:"brand,omitempty"`
	Category       *string  `json:"category,omitempty"`
	Size           *string  `json:"size,omitempty"`
	Condition      *string  `json:"condition,omitempty"`
	Colour         *string  `json:"color,omitempty"`
	SourceURL      *string  `json:"source_url,omitempty"`
	OriginalPhotos []string `json:"originalPhotos,omitempty"`
}

func (p ItemPatch) apply(it Item) Item {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&it.Title, p.Title)
	set(&it.Description, p.Description)
	set(&it.Brand, p.Brand)
	set(&it.Category, p.Category)
	set(&it.Size, p.Size)
	set(&it.Condition, p.Condition)
	set(&it.Colour, p.Colour)
	set(&it.SourceURL, p.SourceURL)
	if p.OriginalPhotos != nil {
		photos := p.OriginalPhotos
		if len(photos) > MaxPhotos {
			photos = photos[:MaxPhotos]
		}
		it.OriginalPhotos = append([]string{}, photos...)
		it.EnhancedPhotos = make([]*string, len(it.OriginalPhotos))
	}
	return it
}

// Action is a Sell Wizard state transition.
type Action interface {
	wizardAction()
}

type (
	NextStep    struct{}
	PrevStep    struct{}
	SetItemData struct {
		Patch ItemPatch `json:"payload"`
	}
	AddOriginalPhoto struct {
		URL string `json:"url"`
	}
	RemoveOriginalPhoto struct {
		Index int `json:"index"`
	}
	SetEnhancedPhoto struct {
		Index int    `json:"index"`
		URL   string `json:"url"`
	}
	SetImportLoading struct {
		Loading bool `json:"loading"`
	}
	SetProcessingPhotos struct {
		Loading bool `json:"loading"`
	}
	SetOptimising struct {
		Loading bool `json:"loading"`
	}
	SetOptimisedData struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Hashtags    []string `json:"hashtags"`
	}
	ToggleHashtag struct {
		Tag string `json:"tag"`
	}
	SetPricing struct {
		Loading bool `json:"loading"`
	}
	SetPriceData struct {
		PriceRange     PriceRange `json:"priceRange"`
		SuggestedPrice float64    `json:"suggestedPrice"`
	}
	SetPriceStrategy struct {
		Strategy PriceStrategy `json:"strategy"`
	}
	SetChosenPrice struct {
		Price float64 `json:"price"`
	}
	SetSaving struct {
		Loading bool `json:"loading"`
	}
	SetSaved struct {
		ListingID string `json:"listingId"`
	}
	SetError struct {
		Error string `json:"error"`
	}
	Reset            struct{}
	SetFirstItemFree struct {
		Free bool `json:"free"`
	}
)

func (NextStep) wizardAction()            {}
func (PrevStep) wizardAction()            {}
func (SetItemData) wizardAction()         {}
func (AddOriginalPhoto) wizardAction()    {}
func (RemoveOriginalPhoto) wizardAction() {}
func (SetEnhancedPhoto) wizardAction()    {}
func (SetImportLoading) wizardAction()    {}
func (SetProcessingPhotos) wizardAction() {}
func (SetOptimising) wizardAction()       {}
func (SetOptimisedData) wizardAction()    {}
func (ToggleHashtag) wizardAction()       {}
func (SetPricing) wizardAction()          {}
func (SetPriceData) wizardAction()        {}
func (SetPriceStrategy) wizardAction()    {}
func (SetChosenPrice) wizardAction()      {}
func (SetSaving) wizardAction()           {}
func (SetSaved) wizardAction()            {}
func (SetError) wizardAction()            {}
func (Reset) wizardAction()               {}
func (SetFirstItemFree) wizardAction()    {}

// Reduce applies a to s. It performs no I/O, never fails and never mutates
// s; slices in the result are always fresh copies.
func Reduce(s State, a Action) State {
	s.Item = s.Item.clone()
	s.CompletedSteps = append([]int{}, s.CompletedSteps...)

	switch a := a.(type) {
	case NextStep:
		if s.CurrentStep >= StepPack {
			return s
		}
		if !slices.Contains(s.CompletedSteps, s.CurrentStep) {
			s.CompletedSteps = append(s.CompletedSteps, s.CurrentStep)
		}
		s.CurrentStep++
		s.Direction = 1
		return s

	case PrevStep:
		if s.CurrentStep <= StepAddItem {
			return s
		}
		s.CurrentStep--
		s.Direction = -1
		return s

	case SetItemData:
		s.Item = a.Patch.apply(s.Item)
		return s

	case AddOriginalPhoto:
		if len(s.Item.OriginalPhotos) >= MaxPhotos {
			return s
		}
		s.Item.OriginalPhotos = append(s.Item.OriginalPhotos, a.URL)
		s.Item.EnhancedPhotos = append(s.Item.EnhancedPhotos, nil)
		return s

	case RemoveOriginalPhoto:
		if a.Index < 0 || a.Index >= len(s.Item.OriginalPhotos) {
			return s
		}
		s.Item.OriginalPhotos = slices.Delete(s.Item.OriginalPhotos, a.Index, a.Index+1)
		if a.Index < len(s.Item.EnhancedPhotos) {
			s.Item.EnhancedPhotos = slices.Delete(s.Item.EnhancedPhotos, a.Index, a.Index+1)
		}
		return s

	case SetEnhancedPhoto:
		// Slots only exist for original photos; anything else would break
		// the parallel arrays.
		if a.Index < 0 || a.Index >= len(s.Item.OriginalPhotos) {
			return s
		}
		for len(s.Item.EnhancedPhotos) < len(s.Item.OriginalPhotos) {
			s.Item.EnhancedPhotos = append(s.Item.EnhancedPhotos, nil)
		}
		url := a.URL
		s.Item.EnhancedPhotos[a.Index] = &url
		return s

	case SetImportLoading:
		s.IsImporting = a.Loading
		return s

	case SetProcessingPhotos:
		s.IsProcessingPhotos = a.Loading
		return s

	case SetOptimising:
		s.IsOptimising = a.Loading
		return s

	case SetOptimisedData:
		s.Item.OptimisedTitle = a.Title
		s.Item.OptimisedDescription = a.Description
		s.Item.Hashtags = append([]string{}, a.Hashtags...)
		return s

	case ToggleHashtag:
		// Removal only; a removed tag comes back through regeneration
		s.Item.Hashtags = slices.DeleteFunc(s.Item.Hashtags, func(t string) bool { return t == a.Tag })
		return s

	case SetPricing:
		s.IsPricing = a.Loading
		return s

	case SetPriceData:
		r := a.PriceRange
		suggested := a.SuggestedPrice
		chosen := r.PriceFor(s.Item.PriceStrategy)
		s.Item.PriceRange = &r
		s.Item.SuggestedPrice = &suggested
		s.Item.ChosenPrice = &chosen
		return s

	case SetPriceStrategy:
		if !a.Strategy.Valid() {
			return s
		}
		s.Item.PriceStrategy = a.Strategy
		if s.Item.PriceRange != nil {
			chosen := s.Item.PriceRange.PriceFor(a.Strategy)
			s.Item.ChosenPrice = &chosen
		}
		return s

	case SetChosenPrice:
		price := a.Price
		s.Item.ChosenPrice = &price
		return s

	case SetSaving:
		s.IsSaving = a.Loading
		return s

	case SetSaved:
		s.IsSaving = false
		s.SavedListingID = a.ListingID
		return s

	case SetError:
		s.Error = a.Error
		return s

	case Reset:
		next := InitialState()
		next.FirstItemFree = s.FirstItemFree
		return next

	case SetFirstItemFree:
		s.FirstItemFree = a.Free
		return s
	}
	return s
}

package wizard

import (
	"encoding/json"
	"fmt"
)

var actionTypes = map[string]func() Action{
	"NEXT_STEP":             func() Action { return &NextStep{} },
	"PREV_STEP":             func() Action { return &PrevStep{} },
	"SET_ITEM_DATA":         func() Action { return &SetItemData{} },
	"ADD_ORIGINAL_PHOTO":    func() Action { return &AddOriginalPhoto{} },
	"REMOVE_ORIGINAL_PHOTO": func() Action { return &RemoveOriginalPhoto{} },
	"SET_ENHANCED_PHOTO":    func() Action { return &SetEnhancedPhoto{} },
	"SET_IMPORT_LOADING":    func() Action { return &SetImportLoading{} },
	"SET_PROCESSING_PHOTOS": func() Action { return &SetProcessingPhotos{} },
	"SET_OPTIMISING":        func() Action { return &SetOptimising{} },
	"SET_OPTIMISED_DATA":    func() Action { return &SetOptimisedData{} },
	"TOGGLE_HASHTAG":        func() Action { return &ToggleHashtag{} },
	"SET_PRICING":           func() Action { return &SetPricing{} },
	"SET_PRICE_DATA":        func() Action { return &SetPriceData{} },
	"SET_PRICE_STRATEGY":    func() Action { return &SetPriceStrategy{} },
	"SET_CHOSEN_PRICE":      func() Action { return &SetChosenPrice{} },
	"SET_SAVING":            func() Action { return &SetSaving{} },
	"SET_SAVED":             func() Action { return &SetSaved{} },
	"SET_ERROR":             func() Action { return &SetError{} },
	"RESET":                 func() Action { return &Reset{} },
	"SET_FIRST_ITEM_FREE":   func() Action { return &SetFirstItemFree{} },
}

// clientActions are the actions a browser may dispatch directly. Busy
// flags, results and saves are owned by the controller.
var clientActions = map[string]bool{
	"NEXT_STEP":             true,
	"PREV_STEP":             true,
	"SET_ITEM_DATA":         true,
	"ADD_ORIGINAL_PHOTO":    true,
	"REMOVE_ORIGINAL_PHOTO": true,
	"TOGGLE_HASHTAG":        true,
	"SET_PRICE_STRATEGY":    true,
	"SET_CHOSEN_PRICE":      true,
	"SET_ERROR":             true,
}

// DecodeAction parses a tagged action such as
// {"type":"SET_CHOSEN_PRICE","price":18}.
func DecodeAction(data []byte) (Action, error) {
	_, a, err := decode(data)
	return a, err
}

// DecodeClientAction is DecodeAction restricted to the actions a client may
// send on its own.
func DecodeClientAction(data []byte) (Action, error) {
	name, a, err := decode(data)
	if err != nil {
		return nil, err
	}
	if !clientActions[name] {
		return nil, fmt.Errorf("action %s cannot be dispatched by a client", name)
	}
	return a, nil
}

func decode(data []byte) (string, Action, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return "", nil, fmt.Errorf("failed to decode action: %w", err)
	}
	ctor, ok := actionTypes[head.Type]
	if !ok {
		return "", nil, fmt.Errorf("unknown wizard action %q", head.Type)
	}
	ptr := ctor()
	if err := json.Unmarshal(data, ptr); err != nil {
		return "", nil, fmt.Errorf("failed to decode %s: %w", head.Type, err)
	}
	return head.Type, deref(ptr), nil
}

func deref(a Action) Action {
	switch a := a.(type) {
	case *NextStep:
		return *a
	case *PrevStep:
		return *a
	case *SetItemData:
		return *a
	case *AddOriginalPhoto:
		return *a
	case *RemoveOriginalPhoto:
		return *a
	case *SetEnhancedPhoto:
		return *a
	case *SetImportLoading:
		return *a
	case *SetProcessingPhotos:
		return *a
	case *SetOptimising:
		return *a
	case *SetOptimisedData:
		return *a
	case *ToggleHashtag:
		return *a
	case *SetPricing:
		return *a
	case *SetPriceData:
		return *a
	case *SetPriceStrategy:
		return *a
	case *SetChosenPrice:
		return *a
	case *SetSaving:
		return *a
	case *SetSaved:
		return *a
	case *SetError:
		return *a
	case *Reset:
		return *a
	case *SetFirstItemFree:
		return *a
	}
	return a
}

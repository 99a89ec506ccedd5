package studio

import (
	"encoding/json"
	"fmt"
)

// actionTypes maps the wire name of every action to a constructor that
// returns a pointer to decode into.
var actionTypes = map[string]func() Action{
	"SET_PHOTO":                func() Action { return &SetPhoto{} },
	"CLEAR_PHOTO":              func() Action { return &ClearPhoto{} },
	"SELECT_OPERATION":         func() Action { return &SelectOperation{} },
	"DESELECT_OPERATION":       func() Action { return &DeselectOperation{} },
	"ADD_PIPELINE_STEP":        func() Action { return &AddPipelineStep{} },
	"REMOVE_PIPELINE_STEP":     func() Action { return &RemovePipelineStep{} },
	"SET_ACTIVE_STEP":          func() Action { return &SetActiveStep{} },
	"UPDATE_STEP_PARAMS":       func() Action { return &UpdateStepParams{} },
	"OPEN_DRAWER":              func() Action { return &OpenDrawer{} },
	"CLOSE_DRAWER":             func() Action { return &CloseDrawer{} },
	"START_PROCESSING":         func() Action { return &StartProcessing{} },
	"PROCESSING_STEP_COMPLETE": func() Action { return &ProcessingStepComplete{} },
	"PROCESSING_COMPLETE":      func() Action { return &ProcessingComplete{} },
	"PROCESSING_ERROR":         func() Action { return &ProcessingError{} },
	"SET_MODEL_WIZARD_STEP":    func() Action { return &SetModelWizardStep{} },
	"RESET":                    func() Action { return &Reset{} },
	"OPEN_UPGRADE_MODAL":       func() Action { return &OpenUpgradeModal{} },
	"CLOSE_UPGRADE_MODAL":      func() Action { return &CloseUpgradeModal{} },
}

// runnerActions are reported by the pipeline runner and never accepted
// from clients.
var runnerActions = map[string]bool{
	"START_PROCESSING":         true,
	"PROCESSING_STEP_COMPLETE": true,
	"PROCESSING_COMPLETE":      true,
	"PROCESSING_ERROR":         true,
}

// DecodeAction parses a tagged action such as
// {"type":"SELECT_OPERATION","operation":"clean_bg"}.
func DecodeAction(data []byte) (Action, error) {
	_, a, err := decode(data)
	return a, err
}

// DecodeClientAction is DecodeAction without the processing actions.
func DecodeClientAction(data []byte) (Action, error) {
	name, a, err := decode(data)
	if err != nil {
		return nil, err
	}
	if runnerActions[name] {
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
		return "", nil, fmt.Errorf("unknown studio action %q", head.Type)
	}
	ptr := ctor()
	if err := json.Unmarshal(data, ptr); err != nil {
		return "", nil, fmt.Errorf("failed to decode %s: %w", head.Type, err)
	}
	return head.Type, deref(ptr), nil
}

func deref(a Action) Action {
	switch a := a.(type) {
	case *SetPhoto:
		return *a
	case *ClearPhoto:
		return *a
	case *SelectOperation:
		return *a
	case *DeselectOperation:
		return *a
	case *AddPipelineStep:
		return *a
	case *RemovePipelineStep:
		return *a
	case *SetActiveStep:
		return *a
	case *UpdateStepParams:
		return *a
	case *OpenDrawer:
		return *a
	case *CloseDrawer:
		return *a
	case *StartProcessing:
		return *a
	case *ProcessingStepComplete:
		return *a
	case *ProcessingComplete:
		return *a
	case *ProcessingError:
		return *a
	case *SetModelWizardStep:
		return *a
	case *Reset:
		return *a
	case *OpenUpgradeModal:
		return *a
	case *CloseUpgradeModal:
		return *a
	}
	return a
}

package studio

import (
	"errors"
	"fmt"
)

// Operation is a single image edit that can be placed in a pipeline.
type Operation string

const (
	OpCleanBG     Operation = "clean_bg"
	OpLifestyleBG Operation = "lifestyle_bg"
	OpEnhance     Operation = "enhance"
	OpDecrease    Operation = "decrease"
	OpFlatlay     Operation = "flatlay"
	OpMannequin   Operation = "mannequin"
	OpSteam       Operation = "steam"
	OpAIModel     Operation = "ai_model"
)

// Operations lists every operation in menu order.
var Operations = []Operation{
	OpCleanBG,
	OpLifestyleBG,
	OpEnhance,
	OpDecrease,
	OpFlatlay,
	OpMannequin,
	OpSteam,
	OpAIModel,
}

// MaxPipelineSteps is the longest chain a user can build.
const MaxPipelineSteps = 4

// AIModelChainAllowed are the operations that may follow ai_model.
var AIModelChainAllowed = []Operation{OpEnhance, OpDecrease}

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	for _, o := range Operations {
		if o == op {
			return true
		}
	}
	return false
}

// Label returns the name shown in menus.
func (op Operation) Label() string {
	switch op {
	case OpCleanBG:
		return "Clean background"
	case OpLifestyleBG:
		return "Lifestyle background"
	case OpEnhance:
		return "Enhance"
	case OpDecrease:
		return "Decrease"
	case OpFlatlay:
		return "Flat-lay"
	case OpMannequin:
		return "Mannequin"
	case OpSteam:
		return "Steam"
	case OpAIModel:
		return "AI Model"
	}
	return string(op)
}

// Parameter keys read by the operations.
const (
	ParamIntensity       = "intensity"
	ParamStyle           = "style"
	ParamScene           = "scene"
	ParamMannequinType   = "mannequinType"
	ParamLighting        = "lighting"
	ParamBackground      = "background"
	ParamGender          = "gender"
	ParamLook            = "look"
	ParamPose            = "pose"
	ParamModelBackground = "modelBackground"
	ParamFullGarment     = "fullGarment"
	ParamDescription     = "description"
)

// Params is a sparse parameter bag. Each operation reads only the keys it
// needs; absent keys fall back to DefaultParams.
type Params map[string]string

// Clone returns an independent copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a copy of p with every key of partial applied on top.
func (p Params) Merge(partial Params) Params {
	out := p.Clone()
	for k, v := range partial {
		out[k] = v
	}
	return out
}

// Get returns the value for key, or the operation default when unset.
func (p Params) Get(op Operation, key string) string {
	if v, ok := p[key]; ok {
		return v
	}
	return DefaultParams(op)[key]
}

// DefaultParams returns the canonical parameter set for op. ai_model gets a
// fully specified persona so a freshly added step is immediately runnable.
func DefaultParams(op Operation) Params {
	switch op {
	case OpSteam:
		return Params{ParamIntensity: "steam"}
	case OpFlatlay:
		return Params{ParamStyle: "clean_white"}
	case OpLifestyleBG:
		return Params{ParamScene: "living_room"}
	case OpMannequin:
		return Params{
			ParamMannequinType: "invisible",
			ParamLighting:      "natural",
			ParamBackground:    "white",
		}
	case OpAIModel:
		return Params{
			ParamGender:          "woman",
			ParamLook:            "1",
			ParamPose:            "standing",
			ParamModelBackground: "studio_white",
			ParamFullGarment:     "true",
			ParamDescription:     "",
		}
	}
	return Params{}
}

// OperationCredits is the credit cost of running op once.
func OperationCredits(op Operation) int {
	if op == OpAIModel {
		return 4
	}
	return 1
}

// PipelineCredits sums the cost of every step. Order does not matter.
func PipelineCredits(steps []PipelineStep) int {
	total := 0
	for _, s := range steps {
		total += OperationCredits(s.Operation)
	}
	return total
}

// Tier is a subscription tier as stored on the profile.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierBusiness   Tier = "business"
	TierScale      Tier = "scale"
	TierEnterprise Tier = "enterprise"
)

// Rank orders tiers; unknown tiers rank as free.
func (t Tier) Rank() int {
	switch t {
	case TierPro:
		return 1
	case TierBusiness:
		return 2
	case TierScale:
		return 3
	case TierEnterprise:
		return 4
	}
	return 0
}

// RequiredTier is the lowest tier allowed to run op.
func RequiredTier(op Operation) Tier {
	switch op {
	case OpAIModel:
		return TierBusiness
	case OpFlatlay, OpMannequin, OpSteam:
		return TierPro
	}
	return TierFree
}

// IsOperationLocked reports whether tier is below what op requires.
func IsOperationLocked(op Operation, tier Tier) bool {
	return tier.Rank() < RequiredTier(op).Rank()
}

// ErrTierLocked is returned when a pipeline contains an operation the
// user's tier cannot run.
var ErrTierLocked = errors.New("operation requires a higher tier")

// LockedOperations returns the operations in steps that tier cannot run.
func LockedOperations(steps []PipelineStep, tier Tier) []Operation {
	var locked []Operation
	for _, s := range steps {
		if IsOperationLocked(s.Operation, tier) {
			locked = append(locked, s.Operation)
		}
	}
	return locked
}

func chainAllowedAfterAIModel(op Operation) bool {
	for _, o := range AIModelChainAllowed {
		if o == op {
			return true
		}
	}
	return false
}

// ValidatePipeline checks the structural rules: known operations, no
// duplicates, ai_model only first and followed only by the allow-list, at
// most MaxPipelineSteps steps.
func ValidatePipeline(steps []PipelineStep) error {
	if len(steps) > MaxPipelineSteps {
		return fmt.Errorf("pipeline has %d steps, max is %d", len(steps), MaxPipelineSteps)
	}
	seen := make(map[Operation]bool, len(steps))
	for i, s := range steps {
		if !s.Operation.Valid() {
			return fmt.Errorf("unknown operation %q", s.Operation)
		}
		if seen[s.Operation] {
			return fmt.Errorf("operation %s appears more than once", s.Operation)
		}
		seen[s.Operation] = true
		if s.Operation == OpAIModel && i != 0 {
			return fmt.Errorf("ai_model must be the first step")
		}
		if i > 0 && steps[0].Operation == OpAIModel && !chainAllowedAfterAIModel(s.Operation) {
			return fmt.Errorf("%s cannot follow ai_model", s.Operation)
		}
	}
	return nil
}

// CanAppend reports whether op can be appended to steps without breaking
// the pipeline rules.
func CanAppend(steps []PipelineStep, op Operation) bool {
	if !op.Valid() || len(steps) >= MaxPipelineSteps {
		return false
	}
	for _, s := range steps {
		if s.Operation == op {
			return false
		}
	}
	if op == OpAIModel {
		return len(steps) == 0
	}
	if len(steps) > 0 && steps[0].Operation == OpAIModel {
		return chainAllowedAfterAIModel(op)
	}
	return true
}

// AddableOperations returns the operations the add-step menu may offer.
func AddableOperations(steps []PipelineStep) []Operation {
	var ops []Operation
	for _, op := range Operations {
		if CanAppend(steps, op) {
			ops = append(ops, op)
		}
	}
	return ops
}

package studio

import "fmt"

// Preset is a ready-made pipeline offered as a one-tap option.
type Preset struct {
	Name       string
	Label      string
	Operations []Operation
}

var presets = []Preset{
	{Name: "marketplace", Label: "Marketplace ready", Operations: []Operation{OpCleanBG, OpEnhance}},
	{Name: "editorial", Label: "Editorial", Operations: []Operation{OpLifestyleBG}},
	{Name: "quick_clean", Label: "Quick clean", Operations: []Operation{OpCleanBG}},
	{Name: "steam_list", Label: "Steam & list", Operations: []Operation{OpSteam, OpCleanBG}},
}

// Presets returns every preset in display order.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

// FindPreset looks up a preset by name.
func FindPreset(name string) (Preset, bool) {
	for _, p := range presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// Credits is the cost of running the preset once.
func (p Preset) Credits() int {
	total := 0
	for _, op := range p.Operations {
		total += OperationCredits(op)
	}
	return total
}

// RequiredTier is the highest tier any preset step needs.
func (p Preset) RequiredTier() Tier {
	tier := TierFree
	for _, op := range p.Operations {
		if t := RequiredTier(op); t.Rank() > tier.Rank() {
			tier = t
		}
	}
	return tier
}

// Actions returns the action sequence that replaces the current pipeline
// with the preset. The photo is kept.
func (p Preset) Actions() []Action {
	actions := []Action{Reset{}}
	for _, op := range p.Operations {
		actions = append(actions, AddPipelineStep{Operation: op})
	}
	return append(actions, CloseDrawer{})
}

// ApplyPreset builds the preset pipeline on s, refusing presets the tier
// cannot run.
func ApplyPreset(s State, name string, tier Tier) (State, error) {
	p, ok := FindPreset(name)
	if !ok {
		return s, fmt.Errorf("unknown preset %q", name)
	}
	if IsLockedTier(p.RequiredTier(), tier) {
		return s, fmt.Errorf("preset %s: %w", name, ErrTierLocked)
	}
	for _, a := range p.Actions() {
		s = Reduce(s, a)
	}
	return s, nil
}

// IsLockedTier reports whether have is below need.
func IsLockedTier(need, have Tier) bool {
	return have.Rank() < need.Rank()
}

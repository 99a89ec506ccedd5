package wizard

import (
	"fmt"
	"strings"
)

// ValidationError lists the fields that block leaving a step.
type ValidationError struct {
	Step   int
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("step %d is incomplete: missing %s", e.Step, strings.Join(e.Fields, ", "))
}

// ValidateStep checks the fields required to advance from step. Steps 2 and
// 5 have no gate.
func ValidateStep(step int, it Item) error {
	var missing []string
	blank := func(v string) bool { return strings.TrimSpace(v) == "" }

	switch step {
	case StepAddItem:
		if blank(it.Title) {
			missing = append(missing, "title")
		}
		if blank(it.Brand) {
			missing = append(missing, "brand")
		}
		if blank(it.Size) {
			missing = append(missing, "size")
		}
		if blank(it.Category) {
			missing = append(missing, "category")
		}
		if blank(it.Condition) {
			missing = append(missing, "condition")
		}
		if len(it.OriginalPhotos) == 0 {
			missing = append(missing, "photos")
		}
	case StepOptimise:
		if blank(it.OptimisedTitle) {
			missing = append(missing, "optimisedTitle")
		}
	case StepPrice:
		if it.PriceRange == nil {
			missing = append(missing, "priceRange")
		}
	}

	if len(missing) > 0 {
		return &ValidationError{Step: step, Fields: missing}
	}
	return nil
}

package readiness

import (
	"fmt"
	"strings"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
)

// ValidateMasterBlend checks whether every layer may be mixed into the
// final output.
func (e *Engine) ValidateMasterBlend(state model.PipelineState) model.Verdict {
	var reasons []string

	var pending []string
	for _, layer := range state.Layers {
		if !layer.BlendState.Blended() {
			pending = append(pending, layer.Title)
		}
	}
	if len(pending) > 0 {
		reasons = append(reasons, fmt.Sprintf("Master: blend each layer before the master mix (pending: %s)", strings.Join(pending, ", ")))
	}
	if !inUnitRange(state.MasterBlend.Opacity) {
		reasons = append(reasons, "Master: opacity must be between 0 and 1")
	}
	for _, rule := range e.masterRules {
		if rule.Triggered(state) {
			reasons = append(reasons, rule.Message(state))
		}
	}

	return model.VerdictOf(reasons)
}

// ValidateMasterBlend checks the master blend with the default engine.
func ValidateMasterBlend(state model.PipelineState) model.Verdict {
	return defaultEngine.ValidateMasterBlend(state)
}

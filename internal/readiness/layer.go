package readiness

import (
	"fmt"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
)

// ValidateLayerBlend checks whether a layer's streams may be blended.
func (e *Engine) ValidateLayerBlend(layer model.Layer) model.Verdict {
	var reasons []string

	if !layer.StreamA.Rendered() && !layer.StreamB.Rendered() {
		reasons = append(reasons, fmt.Sprintf("%s: render at least one stream before blending", layer.Title))
	}
	if !inUnitRange(layer.BlendState.Opacity) {
		reasons = append(reasons, fmt.Sprintf("%s: blend opacity must be between 0 and 1", layer.Title))
	}
	for _, rule := range e.layerRules {
		if rule.Triggered(layer) {
			reasons = append(reasons, rule.Message(layer))
		}
	}

	return model.VerdictOf(reasons)
}

// ValidateLayerBlend checks a layer with the default engine.
func ValidateLayerBlend(layer model.Layer) model.Verdict {
	return defaultEngine.ValidateLayerBlend(layer)
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}

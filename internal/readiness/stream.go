package readiness

import (
	"fmt"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
)

// Max colors accepted by the GIF palette quantizer
const (
	MinColors = 2
	MaxColors = 256
)

// ValidateStream checks whether stream may be rendered. layer is the layer
// owning the stream. Reasons are reported in a fixed order: source clip,
// resolution, frame rate, colors, duration.
func (e *Engine) ValidateStream(layer model.Layer, stream model.Stream) model.Verdict {
	var reasons []string
	adj := stream.Adjustments

	if layer.SourceClip == nil {
		reasons = append(reasons, fmt.Sprintf("%s: select a source clip before rendering", layer.Title))
	}
	// Negated comparisons so NaN fails too.
	if !(adj.ResolutionPercent > 0) {
		reasons = append(reasons, fmt.Sprintf("Stream %s: resolution percent must be greater than 0", stream.Tag))
	}
	if !(adj.FrameRate > 0) {
		reasons = append(reasons, fmt.Sprintf("Stream %s: frame rate must be greater than 0", stream.Tag))
	}
	if adj.MaxColors < MinColors || adj.MaxColors > MaxColors {
		reasons = append(reasons, fmt.Sprintf("Stream %s: max colors must be between %d and %d", stream.Tag, MinColors, MaxColors))
	}
	if !(adj.ClipDurationSeconds > 0) {
		reasons = append(reasons, fmt.Sprintf("Stream %s: clip duration must be greater than 0 seconds", stream.Tag))
	}

	return model.VerdictOf(reasons)
}

// ValidateStream checks a stream with the default engine.
func ValidateStream(layer model.Layer, stream model.Stream) model.Verdict {
	return defaultEngine.ValidateStream(layer, stream)
}

package readiness

import (
	"fmt"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
)

const generatingLabel = "Generating..."

// Control is the enable/label projection of a verdict for a "generate" button.
type Control struct {
	Enabled bool   `json:"enabled"`
	Label   string `json:"label"`
}

// GenerateControl enables the control iff the stage is ready and not
// already generating.
func GenerateControl(v model.Verdict, isGenerating bool, idleLabel string) Control {
	if isGenerating {
		return Control{Enabled: false, Label: generatingLabel}
	}
	return Control{Enabled: v.IsReady(), Label: idleLabel}
}

// StageReport is one stage's verdict together with its control.
type StageReport struct {
	Verdict model.Verdict `json:"verdict"`
	Control Control       `json:"control"`
}

// StreamReport is the render stage of one stream.
type StreamReport struct {
	Tag model.StreamTag `json:"tag"`
	StageReport
}

// LayerReport holds the render stages of both streams and the layer blend.
type LayerReport struct {
	LayerID string         `json:"layerId"`
	Title   string         `json:"title"`
	Streams []StreamReport `json:"streams"`
	Blend   StageReport    `json:"blend"`
}

// Report is the verdict of every stage of a pipeline snapshot.
type Report struct {
	Layers []LayerReport `json:"layers"`
	Master StageReport   `json:"master"`
}

// Blocked reports whether any stage in the report is blocked.
func (r Report) Blocked() bool {
	for _, layer := range r.Layers {
		for _, stream := range layer.Streams {
			if !stream.Verdict.IsReady() {
				return true
			}
		}
		if !layer.Blend.Verdict.IsReady() {
			return true
		}
	}
	return !r.Master.Verdict.IsReady()
}

// Evaluate validates every stage of state.
func (e *Engine) Evaluate(state model.PipelineState) Report {
	report := Report{Layers: make([]LayerReport, 0, len(state.Layers))}
	for _, layer := range state.Layers {
		lr := LayerReport{LayerID: layer.ID, Title: layer.Title}
		for _, stream := range []model.Stream{layer.StreamA, layer.StreamB} {
			v := e.ValidateStream(layer, stream)
			lr.Streams = append(lr.Streams, StreamReport{
				Tag: stream.Tag,
				StageReport: StageReport{
					Verdict: v,
					Control: GenerateControl(v, stream.IsGenerating, fmt.Sprintf("Render Stream %s", stream.Tag)),
				},
			})
		}
		blend := e.ValidateLayerBlend(layer)
		lr.Blend = StageReport{
			Verdict: blend,
			Control: GenerateControl(blend, layer.BlendState.IsGenerating, "Blend Layer"),
		}
		report.Layers = append(report.Layers, lr)
	}

	master := e.ValidateMasterBlend(state)
	control := GenerateControl(master, state.MasterBlend.IsGenerating, "Generate Master")
	if !state.MasterBlend.IsEnabled {
		control = Control{Enabled: false, Label: "Master Disabled"}
	}
	report.Master = StageReport{Verdict: master, Control: control}
	return report
}

// Evaluate validates every stage with the default engine.
func Evaluate(state model.PipelineState) Report {
	return defaultEngine.Evaluate(state)
}

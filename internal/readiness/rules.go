// Package readiness decides whether each stage of the blend pipeline may run.
//
// Every check is a pure function of a state snapshot and returns a
// model.Verdict. Violations are accumulated, never short-circuited, so that
// callers can show every reason for a stage at once. Combinations of settings
// that are valid on their own but broken together are expressed as
// declarative rules evaluated uniformly by an Engine.
package readiness

import (
	"fmt"
	"strings"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
)

// LayerRule flags a combination of layer settings that cannot be blended.
type LayerRule struct {
	Name      string
	Triggered func(layer model.Layer) bool
	Message   func(layer model.Layer) string
}

// MasterRule flags a combination of settings across layers and the master
// blend that cannot be mixed.
type MasterRule struct {
	Name      string
	Triggered func(state model.PipelineState) bool
	Message   func(state model.PipelineState) string
}

// NegateWithColorMode rejects color-sensitive blend modes when either stream
// has Negate Colors enabled.
var NegateWithColorMode = LayerRule{
	Name: "negate-with-color-mode",
	Triggered: func(layer model.Layer) bool {
		negated := layer.StreamA.Adjustments.NegateColors || layer.StreamB.Adjustments.NegateColors
		return negated && layer.BlendState.Mode.IsColorSensitive()
	},
	Message: func(layer model.Layer) string {
		return fmt.Sprintf("%s: %s is incompatible with the Negate Colors filter",
			layer.Title, layer.BlendState.Mode.DisplayName())
	},
}

// DifferenceUnderColorDodge rejects a Color Dodge master over any layer
// blended with Difference. The compositor clips or produces NaN there.
var DifferenceUnderColorDodge = MasterRule{
	Name: "difference-under-color-dodge",
	Triggered: func(state model.PipelineState) bool {
		return len(differenceLayers(state)) > 0 && state.MasterBlend.Mode == model.BlendColorDodge
	},
	Message: func(state model.PipelineState) string {
		return fmt.Sprintf("Master: %s layer blends are incompatible with a %s master blend (%s)",
			model.BlendDifference.DisplayName(),
			model.BlendColorDodge.DisplayName(),
			strings.Join(differenceLayers(state), ", "))
	},
}

func differenceLayers(state model.PipelineState) []string {
	var titles []string
	for _, layer := range state.Layers {
		if layer.BlendState.Mode == model.BlendDifference {
			titles = append(titles, layer.Title)
		}
	}
	return titles
}

// DefaultLayerRules returns the built-in layer compatibility rules.
func DefaultLayerRules() []LayerRule {
	return []LayerRule{NegateWithColorMode}
}

// DefaultMasterRules returns the built-in master compatibility rules.
func DefaultMasterRules() []MasterRule {
	return []MasterRule{DifferenceUnderColorDodge}
}

// Engine evaluates the three stage validators with a fixed rule set.
// An Engine is immutable and safe for concurrent use.
type Engine struct {
	layerRules  []LayerRule
	masterRules []MasterRule
}

// Option configures an Engine.
type Option func(*Engine)

// WithLayerRules appends layer rules after the defaults.
func WithLayerRules(rules ...LayerRule) Option {
	return func(e *Engine) {
		e.layerRules = append(e.layerRules, rules...)
	}
}

// WithMasterRules appends master rules after the defaults.
func WithMasterRules(rules ...MasterRule) Option {
	return func(e *Engine) {
		e.masterRules = append(e.masterRules, rules...)
	}
}

// WithoutDefaultRules drops the built-in rules, keeping only rules added by
// later options.
func WithoutDefaultRules() Option {
	return func(e *Engine) {
		e.layerRules = nil
		e.masterRules = nil
	}
}

// NewEngine builds an engine with the default rules plus any options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		layerRules:  DefaultLayerRules(),
		masterRules: DefaultMasterRules(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = NewEngine()

// Default returns the shared engine with the built-in rules.
func Default() *Engine {
	return defaultEngine
}

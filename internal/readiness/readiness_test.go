package readiness

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
)

func readyLayer() model.Layer {
	state := model.NewPipelineState(1)
	layer := state.Layers[0]
	layer.SourceClip = &model.ClipRef{ID: "clip-1", URI: "file:///clips/one.mp4"}
	layer.StreamA.GeneratedGifPath = "/gifs/a.gif"
	layer.StreamB.GeneratedGifPath = "/gifs/b.gif"
	return layer
}

func readyState() model.PipelineState {
	state := model.NewPipelineState(2)
	for i := range state.Layers {
		state.Layers[i].SourceClip = &model.ClipRef{ID: "clip", URI: "file:///clip.mp4"}
		state.Layers[i].StreamA.GeneratedGifPath = "/gifs/a.gif"
		state.Layers[i].BlendState.BlendedGifPath = "/gifs/blend.gif"
	}
	return state
}

func requireBlocked(t *testing.T, v model.Verdict) []string {
	t.Helper()
	require.False(t, v.IsReady(), "expected blocked verdict")
	reasons := v.Reasons()
	require.NotEmpty(t, reasons)
	return reasons
}

func TestValidateStream_Ready(t *testing.T) {
	layer := readyLayer()
	v := ValidateStream(layer, layer.StreamA)
	require.True(t, v.IsReady())
	require.Nil(t, v.Reasons())
}

func TestValidateStream_AllViolationsInOrder(t *testing.T) {
	layer := readyLayer()
	layer.SourceClip = nil
	stream := model.Stream{
		Tag: model.StreamA,
		Adjustments: model.AdjustmentSettings{
			ResolutionPercent:   0,
			FrameRate:           -1,
			MaxColors:           1,
			ClipDurationSeconds: 0,
		},
	}

	reasons := requireBlocked(t, ValidateStream(layer, stream))
	require.Len(t, reasons, 5)
	require.True(t, strings.HasPrefix(reasons[0], "Layer 1:"), reasons[0])
	require.Contains(t, reasons[0], "source clip")
	require.Contains(t, reasons[1], "resolution")
	require.Contains(t, reasons[2], "frame rate")
	require.Contains(t, reasons[3], "max colors")
	require.Contains(t, reasons[4], "duration")
}

func TestValidateStream_ClipPresentFourReasons(t *testing.T) {
	layer := readyLayer()
	stream := model.Stream{
		Tag: model.StreamB,
		Adjustments: model.AdjustmentSettings{
			ResolutionPercent:   0,
			FrameRate:           0,
			MaxColors:           999,
			ClipDurationSeconds: 0,
		},
	}

	reasons := requireBlocked(t, ValidateStream(layer, stream))
	require.Len(t, reasons, 4)
	for _, r := range reasons {
		require.NotContains(t, r, "source clip")
	}
}

func TestValidateStream_SingleRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.AdjustmentSettings)
		want   string
	}{
		{"resolution", func(a *model.AdjustmentSettings) { a.ResolutionPercent = -5 }, "resolution"},
		{"resolution NaN", func(a *model.AdjustmentSettings) { a.ResolutionPercent = math.NaN() }, "resolution"},
		{"frame rate", func(a *model.AdjustmentSettings) { a.FrameRate = 0 }, "frame rate"},
		{"colors low", func(a *model.AdjustmentSettings) { a.MaxColors = 1 }, "max colors"},
		{"colors high", func(a *model.AdjustmentSettings) { a.MaxColors = 257 }, "max colors"},
		{"duration", func(a *model.AdjustmentSettings) { a.ClipDurationSeconds = 0 }, "duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layer := readyLayer()
			stream := layer.StreamA
			tt.mutate(&stream.Adjustments)

			reasons := requireBlocked(t, ValidateStream(layer, stream))
			require.Len(t, reasons, 1)
			require.Contains(t, reasons[0], tt.want)
		})
	}
}

func TestValidateStream_ColorBounds(t *testing.T) {
	layer := readyLayer()
	for _, colors := range []int{MinColors, MaxColors} {
		stream := layer.StreamA
		stream.Adjustments.MaxColors = colors
		require.True(t, ValidateStream(layer, stream).IsReady(), "colors=%d", colors)
	}
}

func TestValidateLayerBlend_Ready(t *testing.T) {
	require.True(t, ValidateLayerBlend(readyLayer()).IsReady())
}

func TestValidateLayerBlend_OneRenderedStreamIsEnough(t *testing.T) {
	layer := readyLayer()
	layer.StreamA.GeneratedGifPath = "  "
	require.True(t, ValidateLayerBlend(layer).IsReady())
}

func TestValidateLayerBlend_NoRenderedStream(t *testing.T) {
	layer := readyLayer()
	layer.StreamA.GeneratedGifPath = ""
	layer.StreamB.GeneratedGifPath = " "
	layer.BlendState.Opacity = 2
	layer.BlendState.Mode = model.BlendHue
	layer.StreamB.Adjustments.NegateColors = true

	reasons := requireBlocked(t, ValidateLayerBlend(layer))
	require.Len(t, reasons, 3)
	require.Contains(t, reasons[0], "render at least one stream")
	require.Contains(t, reasons[1], "opacity")
	require.Contains(t, reasons[2], "incompatible")
}

func TestValidateLayerBlend_OpacityBounds(t *testing.T) {
	for _, opacity := range []float64{0, 0.5, 1} {
		layer := readyLayer()
		layer.BlendState.Opacity = opacity
		require.True(t, ValidateLayerBlend(layer).IsReady(), "opacity=%v", opacity)
	}
	for _, opacity := range []float64{-0.01, 1.01, math.NaN()} {
		layer := readyLayer()
		layer.BlendState.Opacity = opacity
		reasons := requireBlocked(t, ValidateLayerBlend(layer))
		require.Len(t, reasons, 1)
	}
}

func TestValidateLayerBlend_ColorModeWithNegate(t *testing.T) {
	layer := readyLayer()
	layer.BlendState.Mode = model.BlendColor
	layer.StreamA.Adjustments.NegateColors = true

	reasons := requireBlocked(t, ValidateLayerBlend(layer))
	require.Len(t, reasons, 1)
	require.Equal(t, "Layer 1: Color is incompatible with the Negate Colors filter", reasons[0])
}

func TestValidateLayerBlend_ColorSensitiveModes(t *testing.T) {
	for _, mode := range model.ValidBlendModes {
		layer := readyLayer()
		layer.BlendState.Mode = mode
		layer.StreamB.Adjustments.NegateColors = true

		v := ValidateLayerBlend(layer)
		require.Equal(t, !mode.IsColorSensitive(), v.IsReady(), "mode=%s", mode)
	}
}

func TestValidateMasterBlend_Ready(t *testing.T) {
	require.True(t, ValidateMasterBlend(readyState()).IsReady())
}

func TestValidateMasterBlend_LayerNotBlended(t *testing.T) {
	state := readyState()
	state.Layers[1].BlendState.BlendedGifPath = ""

	reasons := requireBlocked(t, ValidateMasterBlend(state))
	require.Len(t, reasons, 1)
	require.Contains(t, reasons[0], "blend each layer")
	require.Contains(t, reasons[0], "Layer 2")
}

func TestValidateMasterBlend_AllViolations(t *testing.T) {
	state := readyState()
	state.Layers[0].BlendState.BlendedGifPath = ""
	state.Layers[1].BlendState.Mode = model.BlendDifference
	state.MasterBlend.Mode = model.BlendColorDodge
	state.MasterBlend.Opacity = -1

	reasons := requireBlocked(t, ValidateMasterBlend(state))
	require.Len(t, reasons, 3)
	require.Contains(t, reasons[0], "blend each layer")
	require.Contains(t, reasons[1], "opacity")
	require.Contains(t, reasons[2], "incompatible")
	require.Contains(t, reasons[2], "Layer 2")
}

func TestValidateMasterBlend_DifferenceNeedsColorDodge(t *testing.T) {
	state := readyState()
	state.Layers[0].BlendState.Mode = model.BlendDifference
	require.True(t, ValidateMasterBlend(state).IsReady())

	state.MasterBlend.Mode = model.BlendColorDodge
	require.False(t, ValidateMasterBlend(state).IsReady())

	state.Layers[0].BlendState.Mode = model.BlendMultiply
	require.True(t, ValidateMasterBlend(state).IsReady())
}

func TestValidators_Idempotent(t *testing.T) {
	state := readyState()
	state.Layers[0].SourceClip = nil
	state.Layers[0].StreamA.Adjustments.FrameRate = 0
	state.Layers[1].BlendState.Opacity = 3
	state.MasterBlend.Mode = model.BlendColorDodge

	layer := state.Layers[0]
	require.Equal(t, ValidateStream(layer, layer.StreamA), ValidateStream(layer, layer.StreamA))
	require.Equal(t, ValidateLayerBlend(state.Layers[1]), ValidateLayerBlend(state.Layers[1]))
	require.Equal(t, ValidateMasterBlend(state), ValidateMasterBlend(state))
	require.Equal(t, Evaluate(state), Evaluate(state))
}

func TestEngine_CustomRules(t *testing.T) {
	tooManyLayers := MasterRule{
		Name:      "layer-limit",
		Triggered: func(s model.PipelineState) bool { return len(s.Layers) > 1 },
		Message:   func(model.PipelineState) string { return "Master: only one layer is supported" },
	}
	addition := LayerRule{
		Name:      "no-addition",
		Triggered: func(l model.Layer) bool { return l.BlendState.Mode == model.BlendAddition },
		Message:   func(l model.Layer) string { return l.Title + ": addition disabled" },
	}

	engine := NewEngine(WithMasterRules(tooManyLayers), WithLayerRules(addition))

	state := readyState()
	state.Layers[0].BlendState.Mode = model.BlendAddition
	require.Equal(t, []string{"Layer 1: addition disabled"}, engine.ValidateLayerBlend(state.Layers[0]).Reasons())
	require.Equal(t, []string{"Master: only one layer is supported"}, engine.ValidateMasterBlend(state).Reasons())

	// Default engine is unaffected.
	require.True(t, ValidateMasterBlend(state).IsReady())
}

func TestEngine_WithoutDefaultRules(t *testing.T) {
	engine := NewEngine(WithoutDefaultRules())
	layer := readyLayer()
	layer.BlendState.Mode = model.BlendLuminosity
	layer.StreamA.Adjustments.NegateColors = true
	require.True(t, engine.ValidateLayerBlend(layer).IsReady())
}

func TestGenerateControl(t *testing.T) {
	blocked := model.NewBlocked("nope")

	require.Equal(t, Control{Enabled: true, Label: "Go"}, GenerateControl(model.Ready{}, false, "Go"))
	require.Equal(t, Control{Enabled: false, Label: "Go"}, GenerateControl(blocked, false, "Go"))
	require.Equal(t, Control{Enabled: false, Label: generatingLabel}, GenerateControl(model.Ready{}, true, "Go"))
}

func TestEvaluate(t *testing.T) {
	state := readyState()
	state.Layers[0].StreamB.IsGenerating = true
	state.MasterBlend.IsEnabled = false

	report := Evaluate(state)
	require.Len(t, report.Layers, 2)
	require.Equal(t, "Render Stream A", report.Layers[0].Streams[0].Control.Label)
	require.True(t, report.Layers[0].Streams[0].Control.Enabled)
	require.False(t, report.Layers[0].Streams[1].Control.Enabled)
	require.True(t, report.Layers[0].Blend.Control.Enabled)
	require.True(t, report.Master.Verdict.IsReady())
	require.False(t, report.Master.Control.Enabled)
	require.False(t, report.Blocked())

	state.Layers[1].BlendState.Opacity = 5
	require.True(t, Evaluate(state).Blocked())
}

func TestReport_JSON(t *testing.T) {
	state := readyState()
	state.MasterBlend.Opacity = 2

	data, err := json.Marshal(Evaluate(state))
	require.NoError(t, err)

	var decoded struct {
		Master struct {
			Verdict struct {
				Status  string   `json:"status"`
				Reasons []string `json:"reasons"`
			} `json:"verdict"`
		} `json:"master"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "blocked", decoded.Master.Verdict.Status)
	require.Len(t, decoded.Master.Verdict.Reasons, 1)
}

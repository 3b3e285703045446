package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewBlocked_PanicsWithoutReasons(t *testing.T) {
	require.Panics(t, func() { NewBlocked() })
}

func TestBlocked_ZeroValuePanics(t *testing.T) {
	var v Verdict = Blocked{}
	require.False(t, v.IsReady())
	require.Panics(t, func() { v.Reasons() })
	require.Panics(t, func() { _, _ = json.Marshal(v) })
}

func TestBlocked_ReasonsAreCopied(t *testing.T) {
	in := []string{"first", "second"}
	b := NewBlocked(in...)
	in[0] = "changed"

	out := b.Reasons()
	require.Equal(t, []string{"first", "second"}, out)
	out[1] = "changed"
	require.Equal(t, []string{"first", "second"}, b.Reasons())
}

func TestVerdictOf(t *testing.T) {
	require.Equal(t, Ready{}, VerdictOf(nil))
	require.True(t, VerdictOf([]string{}).IsReady())

	v := VerdictOf([]string{"x"})
	_, ok := v.(Blocked)
	require.True(t, ok)
}

func TestVerdict_JSON(t *testing.T) {
	data, err := json.Marshal(Ready{})
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"ready"}`, string(data))

	data, err = json.Marshal(NewBlocked("a", "b"))
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"blocked","reasons":["a","b"]}`, string(data))
}

func TestBlendMode(t *testing.T) {
	require.Equal(t, "Color Dodge", BlendColorDodge.DisplayName())
	require.Equal(t, "weird", BlendMode("weird").DisplayName())
	require.True(t, BlendLuminosity.IsValid())
	require.False(t, BlendMode("weird").IsValid())

	var sensitive []BlendMode
	for _, m := range ValidBlendModes {
		if m.IsColorSensitive() {
			sensitive = append(sensitive, m)
		}
	}
	require.ElementsMatch(t, []BlendMode{BlendColor, BlendHue, BlendSaturation, BlendLuminosity}, sensitive)
}

func TestParseStreamTag(t *testing.T) {
	tag, ok := ParseStreamTag(" a ")
	require.True(t, ok)
	require.Equal(t, StreamA, tag)

	tag, ok = ParseStreamTag("B")
	require.True(t, ok)
	require.Equal(t, StreamB, tag)

	_, ok = ParseStreamTag("c")
	require.False(t, ok)
}

func TestPipelineState_WithLayerDoesNotMutateOriginal(t *testing.T) {
	state := NewPipelineState(2)
	state.Layers[0].SourceClip = &ClipRef{ID: "clip"}

	updated, err := state.WithLayer("layer-1", func(l Layer) (Layer, error) {
		l.SourceClip.ID = "other"
		l.BlendState.Opacity = 0.25
		return l, nil
	})
	require.NoError(t, err)
	require.Equal(t, "clip", state.Layers[0].SourceClip.ID)
	require.Equal(t, 1.0, state.Layers[0].BlendState.Opacity)
	require.Equal(t, "other", updated.Layers[0].SourceClip.ID)
	require.Equal(t, 0.25, updated.Layers[0].BlendState.Opacity)
}

func TestPipelineState_WithLayerErrors(t *testing.T) {
	state := NewPipelineState(1)

	_, err := state.WithLayer("missing", func(l Layer) (Layer, error) { return l, nil })
	require.True(t, errors.Is(err, ErrLayerNotFound))

	boom := errors.New("boom")
	out, err := state.WithLayer("layer-1", func(l Layer) (Layer, error) { return l, boom })
	require.ErrorIs(t, err, boom)
	require.Equal(t, state, out)
}

func TestLayer_WithStream(t *testing.T) {
	layer := NewPipelineState(1).Layers[0]

	updated, err := layer.WithStream(StreamB, func(s Stream) Stream {
		s.GeneratedGifPath = "/b.gif"
		return s
	})
	require.NoError(t, err)
	require.True(t, updated.StreamB.Rendered())
	require.False(t, layer.StreamB.Rendered())

	_, err = layer.WithStream("C", func(s Stream) Stream { return s })
	require.ErrorIs(t, err, ErrUnknownStream)
}

func TestLayer_Reset(t *testing.T) {
	layer := NewPipelineState(1).Layers[0]
	layer.StreamA.GeneratedGifPath = "/a.gif"
	layer.BlendState.BlendedGifPath = "/blend.gif"
	layer.BlendState.IsGenerating = true
	layer.BlendState.Mode = BlendHue

	reset := layer.Reset()
	require.False(t, reset.StreamA.Rendered())
	require.False(t, reset.BlendState.Blended())
	require.False(t, reset.BlendState.IsGenerating)
	require.Equal(t, BlendHue, reset.BlendState.Mode)
}

package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrLayerNotFound = errors.New("layer not found")
	ErrUnknownStream = errors.New("unknown stream")
)

// Default adjustment values for a freshly created stream
const (
	DefaultResolutionPercent = 100
	DefaultFrameRate         = 15
	DefaultMaxColors         = 256
	DefaultClipDuration      = 3
)

// AdjustmentSettings holds the per-stream render parameters
type AdjustmentSettings struct {
	ResolutionPercent   float64 `json:"resolutionPercent"`
	FrameRate           float64 `json:"frameRate"`
	MaxColors           int     `json:"maxColors"`
	ClipDurationSeconds float64 `json:"clipDurationSeconds"`
	NegateColors        bool    `json:"negateColors"`
}

// DefaultAdjustments returns settings that pass stream validation
func DefaultAdjustments() AdjustmentSettings {
	return AdjustmentSettings{
		ResolutionPercent:   DefaultResolutionPercent,
		FrameRate:           DefaultFrameRate,
		MaxColors:           DefaultMaxColors,
		ClipDurationSeconds: DefaultClipDuration,
	}
}

// Stream is one of the two renderable inputs of a layer
type Stream struct {
	Tag              StreamTag          `json:"tag"`
	Adjustments      AdjustmentSettings `json:"adjustments"`
	GeneratedGifPath string             `json:"generatedGifPath,omitempty"`
	IsGenerating     bool               `json:"isGenerating"`
}

// Rendered reports whether the encoder has delivered this stream's GIF
func (s Stream) Rendered() bool {
	return strings.TrimSpace(s.GeneratedGifPath) != ""
}

// ClipRef points at the source clip a layer renders from
type ClipRef struct {
	ID   string `json:"id"`
	URI  string `json:"uri"`
	Name string `json:"name,omitempty"`
}

// BlendConfig holds the per-layer blend settings and result
type BlendConfig struct {
	Mode           BlendMode `json:"mode"`
	Opacity        float64   `json:"opacity"`
	BlendedGifPath string    `json:"blendedGifPath,omitempty"`
	IsGenerating   bool      `json:"isGenerating"`
}

// Blended reports whether the layer blend has completed
func (b BlendConfig) Blended() bool {
	return strings.TrimSpace(b.BlendedGifPath) != ""
}

// Layer pairs two streams over one source clip
type Layer struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	SourceClip *ClipRef    `json:"sourceClip,omitempty"`
	StreamA    Stream      `json:"streamA"`
	StreamB    Stream      `json:"streamB"`
	BlendState BlendConfig `json:"blendState"`
}

// Stream returns the stream identified by tag
func (l Layer) Stream(tag StreamTag) (Stream, error) {
	switch tag {
	case StreamA:
		return l.StreamA, nil
	case StreamB:
		return l.StreamB, nil
	}
	return Stream{}, fmt.Errorf("%w: %q", ErrUnknownStream, tag)
}

// WithStream returns a copy of l with fn applied to the tagged stream
func (l Layer) WithStream(tag StreamTag, fn func(Stream) Stream) (Layer, error) {
	switch tag {
	case StreamA:
		l.StreamA = fn(l.StreamA)
	case StreamB:
		l.StreamB = fn(l.StreamB)
	default:
		return l, fmt.Errorf("%w: %q", ErrUnknownStream, tag)
	}
	return l, nil
}

// Reset clears every generated artifact of the layer, keeping its settings
func (l Layer) Reset() Layer {
	l.StreamA.GeneratedGifPath = ""
	l.StreamA.IsGenerating = false
	l.StreamB.GeneratedGifPath = ""
	l.StreamB.IsGenerating = false
	l.BlendState.BlendedGifPath = ""
	l.BlendState.IsGenerating = false
	return l
}

func (l Layer) clone() Layer {
	if l.SourceClip != nil {
		clip := *l.SourceClip
		l.SourceClip = &clip
	}
	return l
}

// ShareSetupState describes how the master GIF is shared
type ShareSetupState struct {
	Title       string `json:"title"`
	Subject     string `json:"subject"`
	Caption     string `json:"caption"`
	IncludeLink bool   `json:"includeLink"`
}

// MasterBlendConfig holds the final mix settings and result
type MasterBlendConfig struct {
	Mode          BlendMode       `json:"mode"`
	Opacity       float64         `json:"opacity"`
	MasterGifPath string          `json:"masterGifPath,omitempty"`
	IsGenerating  bool            `json:"isGenerating"`
	IsEnabled     bool            `json:"isEnabled"`
	ShareSetup    ShareSetupState `json:"shareSetup"`
}

// PipelineState is the full editable state of one blending session
type PipelineState struct {
	Layers      []Layer           `json:"layers"`
	MasterBlend MasterBlendConfig `json:"masterBlend"`
}

// NewPipelineState builds a state with layerCount default layers
func NewPipelineState(layerCount int) PipelineState {
	if layerCount < 1 {
		layerCount = 1
	}
	layers := make([]Layer, 0, layerCount)
	for i := 1; i <= layerCount; i++ {
		layers = append(layers, Layer{
			ID:         fmt.Sprintf("layer-%d", i),
			Title:      fmt.Sprintf("Layer %d", i),
			StreamA:    Stream{Tag: StreamA, Adjustments: DefaultAdjustments()},
			StreamB:    Stream{Tag: StreamB, Adjustments: DefaultAdjustments()},
			BlendState: BlendConfig{Mode: BlendNormal, Opacity: 1},
		})
	}
	return PipelineState{
		Layers: layers,
		MasterBlend: MasterBlendConfig{
			Mode:      BlendNormal,
			Opacity:   1,
			IsEnabled: true,
			ShareSetup: ShareSetupState{
				Title:       "GIF blend",
				IncludeLink: true,
			},
		},
	}
}

// Clone returns a deep copy that shares no memory with s
func (s PipelineState) Clone() PipelineState {
	out := s
	out.Layers = make([]Layer, len(s.Layers))
	for i, layer := range s.Layers {
		out.Layers[i] = layer.clone()
	}
	return out
}

// Layer looks up a layer by id
func (s PipelineState) Layer(id string) (Layer, error) {
	for _, layer := range s.Layers {
		if layer.ID == id {
			return layer.clone(), nil
		}
	}
	return Layer{}, fmt.Errorf("%w: %s", ErrLayerNotFound, id)
}

// WithLayer returns a copy of s with fn applied to the layer identified by id
func (s PipelineState) WithLayer(id string, fn func(Layer) (Layer, error)) (PipelineState, error) {
	out := s.Clone()
	for i, layer := range out.Layers {
		if layer.ID != id {
			continue
		}
		updated, err := fn(layer)
		if err != nil {
			return s, err
		}
		updated.ID = layer.ID
		out.Layers[i] = updated
		return out, nil
	}
	return s, fmt.Errorf("%w: %s", ErrLayerNotFound, id)
}

// WithMaster returns a copy of s with fn applied to the master blend
func (s PipelineState) WithMaster(fn func(MasterBlendConfig) MasterBlendConfig) PipelineState {
	out := s.Clone()
	out.MasterBlend = fn(out.MasterBlend)
	return out
}

package model

import "strings"

// Blend modes
type BlendMode string

const (
	BlendNormal     BlendMode = "normal"
	BlendMultiply   BlendMode = "multiply"
	BlendScreen     BlendMode = "screen"
	BlendOverlay    BlendMode = "overlay"
	BlendDarken     BlendMode = "darken"
	BlendLighten    BlendMode = "lighten"
	BlendColorDodge BlendMode = "color_dodge"
	BlendColorBurn  BlendMode = "color_burn"
	BlendHardLight  BlendMode = "hard_light"
	BlendSoftLight  BlendMode = "soft_light"
	BlendDifference BlendMode = "difference"
	BlendExclusion  BlendMode = "exclusion"
	BlendAddition   BlendMode = "addition"
	BlendSubtract   BlendMode = "subtract"
	BlendHue        BlendMode = "hue"
	BlendSaturation BlendMode = "saturation"
	BlendColor      BlendMode = "color"
	BlendLuminosity BlendMode = "luminosity"
)

var ValidBlendModes = []BlendMode{
	BlendNormal, BlendMultiply, BlendScreen, BlendOverlay, BlendDarken,
	BlendLighten, BlendColorDodge, BlendColorBurn, BlendHardLight, BlendSoftLight,
	BlendDifference, BlendExclusion, BlendAddition, BlendSubtract,
	BlendHue, BlendSaturation, BlendColor, BlendLuminosity,
}

var blendModeNames = map[BlendMode]string{
	BlendNormal:     "Normal",
	BlendMultiply:   "Multiply",
	BlendScreen:     "Screen",
	BlendOverlay:    "Overlay",
	BlendDarken:     "Darken",
	BlendLighten:    "Lighten",
	BlendColorDodge: "Color Dodge",
	BlendColorBurn:  "Color Burn",
	BlendHardLight:  "Hard Light",
	BlendSoftLight:  "Soft Light",
	BlendDifference: "Difference",
	BlendExclusion:  "Exclusion",
	BlendAddition:   "Addition",
	BlendSubtract:   "Subtract",
	BlendHue:        "Hue",
	BlendSaturation: "Saturation",
	BlendColor:      "Color",
	BlendLuminosity: "Luminosity",
}

// DisplayName returns the label shown to users, e.g. "Color Dodge".
func (m BlendMode) DisplayName() string {
	if name, ok := blendModeNames[m]; ok {
		return name
	}
	return string(m)
}

// IsValid reports whether m is one of ValidBlendModes.
func (m BlendMode) IsValid() bool {
	_, ok := blendModeNames[m]
	return ok
}

// IsColorSensitive reports whether the mode's math depends on a
// hue/saturation/luminosity decomposition of its inputs.
func (m BlendMode) IsColorSensitive() bool {
	switch m {
	case BlendColor, BlendHue, BlendSaturation, BlendLuminosity:
		return true
	}
	return false
}

// Stream tags
type StreamTag string

const (
	StreamA StreamTag = "A"
	StreamB StreamTag = "B"
)

// ParseStreamTag accepts "a", "A", "b" or "B".
func ParseStreamTag(s string) (StreamTag, bool) {
	switch StreamTag(strings.ToUpper(strings.TrimSpace(s))) {
	case StreamA:
		return StreamA, true
	case StreamB:
		return StreamB, true
	}
	return "", false
}

// Pipeline stages
type Stage string

const (
	StageStream Stage = "stream"
	StageLayer  Stage = "layer"
	StageMaster Stage = "master"
)

// Job status
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

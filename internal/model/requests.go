package model

// CreateSessionRequest represents the request to open a blending session
type CreateSessionRequest struct {
	LayerCount int `json:"layerCount" validate:"omitempty,min=1,max=8"`
}

// SessionResponse represents a session and its current state
type SessionResponse struct {
	SessionID string        `json:"sessionId"`
	State     PipelineState `json:"state"`
}

// SourceClipRequest selects the source clip of a layer
type SourceClipRequest struct {
	ID   string `json:"id" validate:"required,max=200"`
	URI  string `json:"uri" validate:"required,uri"`
	Name string `json:"name" validate:"omitempty,max=200"`
}

// AdjustmentsRequest replaces a stream's adjustment settings. Range checks
// are left to the readiness validators so that every violation is reported
// as a reason; only presence is enforced here.
type AdjustmentsRequest struct {
	ResolutionPercent   *float64 `json:"resolutionPercent" validate:"required"`
	FrameRate           *float64 `json:"frameRate" validate:"required"`
	MaxColors           *int     `json:"maxColors" validate:"required"`
	ClipDurationSeconds *float64 `json:"clipDurationSeconds" validate:"required"`
	NegateColors        bool     `json:"negateColors"`
}

// Settings converts the request to model settings
func (r AdjustmentsRequest) Settings() AdjustmentSettings {
	return AdjustmentSettings{
		ResolutionPercent:   *r.ResolutionPercent,
		FrameRate:           *r.FrameRate,
		MaxColors:           *r.MaxColors,
		ClipDurationSeconds: *r.ClipDurationSeconds,
		NegateColors:        r.NegateColors,
	}
}

// LayerBlendRequest updates a layer's blend mode and opacity
type LayerBlendRequest struct {
	Mode    BlendMode `json:"mode" validate:"required,blendmode"`
	Opacity *float64  `json:"opacity" validate:"required"`
}

// MasterRequest updates the master blend settings
type MasterRequest struct {
	Mode       BlendMode        `json:"mode" validate:"required,blendmode"`
	Opacity    *float64         `json:"opacity" validate:"required"`
	IsEnabled  *bool            `json:"isEnabled" validate:"omitempty"`
	ShareSetup *ShareSetupState `json:"shareSetup" validate:"omitempty"`
}

// PostMessageRequest posts a message to the session's notification feed
type PostMessageRequest struct {
	Text    string `json:"text" validate:"max=500"`
	IsError bool   `json:"isError"`
}

// PostMessageResponse reports whether the message was delivered or suppressed
type PostMessageResponse struct {
	Accepted bool `json:"accepted"`
}

// ShareResponse reports the outcome of a share or copy request
type ShareResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	Link    string `json:"link,omitempty"`
}

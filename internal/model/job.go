package model

import "time"

// Job represents a dispatched stage job
type Job struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"` // one of the JobType constants
	SessionID   string     `json:"sessionId"`
	LayerID     string     `json:"layerId,omitempty"`
	Stream      StreamTag  `json:"stream,omitempty"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep,omitempty"`
	Error       *string    `json:"error,omitempty"`
	OutputPath  string     `json:"outputPath,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Job types
const (
	JobTypeRender = "render"
	JobTypeBlend  = "blend"
	JobTypeMaster = "master"
)

// RenderJobPayload snapshots everything the encoder needs to render one stream
type RenderJobPayload struct {
	SessionID   string             `json:"sessionId"`
	LayerID     string             `json:"layerId"`
	Stream      StreamTag          `json:"stream"`
	SourceClip  ClipRef            `json:"sourceClip"`
	Adjustments AdjustmentSettings `json:"adjustments"`
}

// BlendJobPayload snapshots a layer blend
type BlendJobPayload struct {
	SessionID  string    `json:"sessionId"`
	LayerID    string    `json:"layerId"`
	StreamAGif string    `json:"streamAGif,omitempty"`
	StreamBGif string    `json:"streamBGif,omitempty"`
	Mode       BlendMode `json:"mode"`
	Opacity    float64   `json:"opacity"`
}

// MasterJobPayload snapshots the master blend
type MasterJobPayload struct {
	SessionID string    `json:"sessionId"`
	LayerGifs []string  `json:"layerGifs"`
	Mode      BlendMode `json:"mode"`
	Opacity   float64   `json:"opacity"`
}

// DispatchResponse is returned when a stage job has been queued
type DispatchResponse struct {
	JobID     string    `json:"jobId"`
	Stage     Stage     `json:"stage"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

package service

import (
	"fmt"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
)

// StageTarget identifies one dispatchable stage of a session.
type StageTarget struct {
	Stage   model.Stage     `json:"stage"`
	LayerID string          `json:"layerId,omitempty"`
	Stream  model.StreamTag `json:"stream,omitempty"`
}

func StreamTarget(layerID string, tag model.StreamTag) StageTarget {
	return StageTarget{Stage: model.StageStream, LayerID: layerID, Stream: tag}
}

func LayerTarget(layerID string) StageTarget {
	return StageTarget{Stage: model.StageLayer, LayerID: layerID}
}

func MasterTarget() StageTarget {
	return StageTarget{Stage: model.StageMaster}
}

// describe names the stage for user-facing messages.
func (t StageTarget) describe(layerTitle string) string {
	switch t.Stage {
	case model.StageStream:
		return fmt.Sprintf("%s: Stream %s", layerTitle, t.Stream)
	case model.StageLayer:
		return fmt.Sprintf("%s: blend", layerTitle)
	default:
		return "Master"
	}
}

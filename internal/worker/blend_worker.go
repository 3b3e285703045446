package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/client"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/service"
)

// BlendWorker blends a layer's rendered streams
type BlendWorker struct {
	runner
}

func NewBlendWorker(d Deps) *BlendWorker {
	return &BlendWorker{runner: newRunner(d)}
}

// ProcessTask handles layer blend task processing
func (w *BlendWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.BlendJobPayload
	env, err := service.ParseTask(t, &payload)
	if err != nil {
		return w.reject(ctx, env, err)
	}
	jobID := env.JobID

	w.Logger.Info("starting blend job", zap.String("job", jobID), zap.String("session", payload.SessionID))
	target := service.LayerTarget(payload.LayerID)
	outputKey := client.BlendKey(payload.SessionID, payload.LayerID, jobID)

	var inputs []string
	for _, gif := range []string{payload.StreamAGif, payload.StreamBGif} {
		if gif != "" {
			inputs = append(inputs, gif)
		}
	}
	if len(inputs) == 0 {
		return w.fail(ctx, payload.SessionID, jobID, target, fmt.Errorf("no rendered stream to blend"))
	}

	w.updateJobStatus(ctx, payload.SessionID, jobID, 10, "Loading streams...")

	if w.Encoder == nil {
		if err := w.simulate(ctx, payload.SessionID, jobID, []mockStep{
			{50, "Blending frames..."},
			{90, "Encoding GIF..."},
		}); err != nil {
			return w.fail(ctx, payload.SessionID, jobID, target, err)
		}
		return w.succeed(ctx, payload.SessionID, jobID, target, StageResult{
			Stage: model.StageLayer, LayerID: payload.LayerID, OutputPath: outputKey,
		})
	}

	w.updateJobStatus(ctx, payload.SessionID, jobID, 30, fmt.Sprintf("Blending (%s)...", payload.Mode.DisplayName()))
	resp, err := w.Encoder.Blend(ctx, &client.BlendRequest{
		Inputs:    inputs,
		Mode:      string(payload.Mode),
		Opacity:   payload.Opacity,
		OutputKey: outputKey,
	})
	if err != nil {
		return w.fail(ctx, payload.SessionID, jobID, target, fmt.Errorf("blend failed: %w", err))
	}

	return w.succeed(ctx, payload.SessionID, jobID, target, StageResult{
		Stage:      model.StageLayer,
		LayerID:    payload.LayerID,
		OutputPath: outputPath(resp, outputKey),
		Frames:     resp.Frames,
	})
}

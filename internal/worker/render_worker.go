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

// RenderWorker renders one stream of a layer to a GIF
type RenderWorker struct {
	runner
}

func NewRenderWorker(d Deps) *RenderWorker {
	return &RenderWorker{runner: newRunner(d)}
}

// ProcessTask handles render task processing
func (w *RenderWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.RenderJobPayload
	env, err := service.ParseTask(t, &payload)
	if err != nil {
		return w.reject(ctx, env, err)
	}
	jobID := env.JobID

	w.Logger.Info("starting render job", zap.String("job", jobID), zap.String("session", payload.SessionID))
	target := service.StreamTarget(payload.LayerID, payload.Stream)
	outputKey := client.RenderKey(payload.SessionID, payload.LayerID, payload.Stream, jobID)

	w.updateJobStatus(ctx, payload.SessionID, jobID, 5, "Preparing source clip...")

	if w.Encoder == nil {
		err := w.simulate(ctx, payload.SessionID, jobID, []mockStep{
			{30, "Decoding frames..."},
			{60, "Applying adjustments..."},
			{90, "Quantizing palette..."},
		})
		if err != nil {
			return w.fail(ctx, payload.SessionID, jobID, target, err)
		}
		return w.succeed(ctx, payload.SessionID, jobID, target, StageResult{
			Stage: model.StageStream, LayerID: payload.LayerID, Stream: payload.Stream, OutputPath: outputKey,
		})
	}

	w.updateJobStatus(ctx, payload.SessionID, jobID, 20, "Rendering GIF...")
	adj := payload.Adjustments
	resp, err := w.Encoder.Render(ctx, &client.RenderRequest{
		SourceURI:         payload.SourceClip.URI,
		ResolutionPercent: adj.ResolutionPercent,
		FrameRate:         adj.FrameRate,
		MaxColors:         adj.MaxColors,
		DurationSeconds:   adj.ClipDurationSeconds,
		NegateColors:      adj.NegateColors,
		OutputKey:         outputKey,
	})
	if err != nil {
		return w.fail(ctx, payload.SessionID, jobID, target, fmt.Errorf("render failed: %w", err))
	}

	w.updateJobStatus(ctx, payload.SessionID, jobID, 95, "Finalizing...")
	return w.succeed(ctx, payload.SessionID, jobID, target, StageResult{
		Stage:      model.StageStream,
		LayerID:    payload.LayerID,
		Stream:     payload.Stream,
		OutputPath: outputPath(resp, outputKey),
		Frames:     resp.Frames,
	})
}

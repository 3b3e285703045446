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

// MasterWorker mixes every blended layer into the master GIF
type MasterWorker struct {
	runner
}

func NewMasterWorker(d Deps) *MasterWorker {
	return &MasterWorker{runner: newRunner(d)}
}

// ProcessTask handles master blend task processing
func (w *MasterWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.MasterJobPayload
	env, err := service.ParseTask(t, &payload)
	if err != nil {
		return w.reject(ctx, env, err)
	}
	jobID := env.JobID

	w.Logger.Info("starting master job", zap.String("job", jobID), zap.String("session", payload.SessionID))
	target := service.MasterTarget()
	outputKey := client.MasterKey(payload.SessionID, jobID)

	w.updateJobStatus(ctx, payload.SessionID, jobID, 5, fmt.Sprintf("Loading %d layers...", len(payload.LayerGifs)))

	if w.Encoder == nil {
		if err := w.simulate(ctx, payload.SessionID, jobID, []mockStep{
			{40, "Compositing layers..."},
			{75, "Encoding master GIF..."},
			{95, "Finalizing..."},
		}); err != nil {
			return w.fail(ctx, payload.SessionID, jobID, target, err)
		}
		return w.succeed(ctx, payload.SessionID, jobID, target, StageResult{
			Stage: model.StageMaster, OutputPath: outputKey,
		})
	}

	w.updateJobStatus(ctx, payload.SessionID, jobID, 20, "Compositing layers...")
	resp, err := w.Encoder.Master(ctx, &client.BlendRequest{
		Inputs:    payload.LayerGifs,
		Mode:      string(payload.Mode),
		Opacity:   payload.Opacity,
		OutputKey: outputKey,
	})
	if err != nil {
		return w.fail(ctx, payload.SessionID, jobID, target, fmt.Errorf("master blend failed: %w", err))
	}

	w.updateJobStatus(ctx, payload.SessionID, jobID, 95, "Finalizing...")
	return w.succeed(ctx, payload.SessionID, jobID, target, StageResult{
		Stage:      model.StageMaster,
		OutputPath: outputPath(resp, outputKey),
		Frames:     resp.Frames,
	})
}

// Package worker runs dispatched pipeline stages from the asynq queues.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/client"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/logging"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/service"
)

// ProgressNotifier pushes job events to the session's live clients
type ProgressNotifier interface {
	BroadcastProgress(sessionID, jobID string, progress int, status model.JobStatus, step string)
	BroadcastComplete(sessionID, jobID string, result interface{})
	BroadcastError(sessionID, jobID, code, message string)
}

// Deps are shared by every worker
type Deps struct {
	Pipeline *service.PipelineService
	Dispatch *service.DispatchService
	// Encoder may be nil, in which case outputs are simulated.
	Encoder client.Encoder
	Hub     ProgressNotifier
	Logger  *zap.Logger
	// StepDelay paces simulated progress steps.
	StepDelay time.Duration
}

// StageResult is broadcast when a stage job completes
type StageResult struct {
	Stage      model.Stage     `json:"stage"`
	LayerID    string          `json:"layerId,omitempty"`
	Stream     model.StreamTag `json:"stream,omitempty"`
	OutputPath string          `json:"outputPath"`
	Frames     int             `json:"frames,omitempty"`
}

// bookkeepingTimeout bounds the store writes that follow a stage attempt
const bookkeepingTimeout = 10 * time.Second

type mockStep struct {
	progress int
	step     string
}

// Register wires every stage worker into mux
func Register(mux *asynq.ServeMux, d Deps) {
	mux.HandleFunc(service.TaskTypeRender, NewRenderWorker(d).ProcessTask)
	mux.HandleFunc(service.TaskTypeBlend, NewBlendWorker(d).ProcessTask)
	mux.HandleFunc(service.TaskTypeMaster, NewMasterWorker(d).ProcessTask)
}

type runner struct {
	Deps
}

func newRunner(d Deps) runner {
	d.Logger = logging.OrNop(d.Logger)
	return runner{Deps: d}
}

func (r runner) updateJobStatus(ctx context.Context, sessionID, jobID string, progress int, step string) {
	job, err := r.Dispatch.UpdateJobProgress(ctx, jobID, progress, step)
	if err != nil {
		r.Logger.Warn("failed to update job", zap.String("job", jobID), zap.Error(err))
		return
	}
	r.Hub.BroadcastProgress(sessionID, jobID, progress, job.Status, step)
}

// simulate walks through steps, pausing StepDelay between each
func (r runner) simulate(ctx context.Context, sessionID, jobID string, steps []mockStep) error {
	for _, s := range steps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.StepDelay):
		}
		r.updateJobStatus(ctx, sessionID, jobID, s.progress, s.step)
	}
	return nil
}

// detached outlives the task's context, which asynq cancels on shutdown or
// deadline. A stage left generating would lock its layer until the session
// expires.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
}

func (r runner) succeed(taskCtx context.Context, sessionID, jobID string, target service.StageTarget, result StageResult) error {
	ctx, cancel := detached(taskCtx)
	defer cancel()

	var err error
	switch target.Stage {
	case model.StageStream:
		err = r.Pipeline.CompleteStream(ctx, sessionID, target.LayerID, target.Stream, result.OutputPath)
	case model.StageLayer:
		err = r.Pipeline.CompleteLayerBlend(ctx, sessionID, target.LayerID, result.OutputPath)
	default:
		err = r.Pipeline.CompleteMaster(ctx, sessionID, result.OutputPath)
	}
	if err != nil {
		// The session may have expired while the job ran.
		r.Logger.Warn("failed to record stage output", zap.String("session", sessionID), zap.String("job", jobID), zap.Error(err))
	}

	if _, err := r.Dispatch.CompleteJob(ctx, jobID, result.OutputPath); err != nil {
		r.Logger.Warn("failed to complete job", zap.String("job", jobID), zap.Error(err))
	}
	r.Hub.BroadcastComplete(sessionID, jobID, result)
	r.Logger.Info("job completed", zap.String("session", sessionID), zap.String("job", jobID), zap.String("output", result.OutputPath))
	return nil
}

// fail releases the stage and returns an error asynq will not retry.
// Temporary encoder failures are handed back to asynq while attempts remain;
// the stage stays generating until the last one.
func (r runner) fail(taskCtx context.Context, sessionID, jobID string, target service.StageTarget, cause error) error {
	ctx, cancel := detached(taskCtx)
	defer cancel()

	if client.IsTemporary(cause) && retriesLeft(ctx) {
		r.updateJobStatus(ctx, sessionID, jobID, 0, "Encoder busy, retrying...")
		r.Logger.Warn("job will be retried", zap.String("session", sessionID), zap.String("job", jobID), zap.Error(cause))
		return cause
	}
	if err := r.Pipeline.FailStage(ctx, sessionID, target, cause); err != nil {
		r.Logger.Warn("failed to release stage", zap.String("session", sessionID), zap.Error(err))
	}
	if _, err := r.Dispatch.FailJob(ctx, jobID, cause.Error()); err != nil {
		r.Logger.Warn("failed to mark job failed", zap.String("job", jobID), zap.Error(err))
	}
	r.Hub.BroadcastError(sessionID, jobID, "JOB_FAILED", cause.Error())
	r.Logger.Error("job failed", zap.String("session", sessionID), zap.String("job", jobID), zap.Error(cause))
	return fmt.Errorf("%v: %w", cause, asynq.SkipRetry)
}

// reject ends a task whose payload could not be decoded, releasing the
// stage recorded in its envelope
func (r runner) reject(taskCtx context.Context, env service.TaskEnvelope, cause error) error {
	ctx, cancel := detached(taskCtx)
	defer cancel()

	r.Logger.Error("invalid task payload", zap.String("job", env.JobID), zap.String("session", env.SessionID), zap.Error(cause))
	if env.SessionID != "" && env.Target.Stage != "" {
		if err := r.Pipeline.FailStage(ctx, env.SessionID, env.Target, cause); err != nil {
			r.Logger.Warn("failed to release stage", zap.String("session", env.SessionID), zap.Error(err))
		}
	}
	if env.JobID != "" {
		if _, err := r.Dispatch.FailJob(ctx, env.JobID, "Invalid payload"); err != nil {
			r.Logger.Warn("failed to mark job failed", zap.String("job", env.JobID), zap.Error(err))
		}
	}
	return fmt.Errorf("%v: %w", cause, asynq.SkipRetry)
}

func retriesLeft(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	limit, ok := asynq.GetMaxRetry(ctx)
	return ok && retried < limit
}

func outputPath(resp *client.EncodeResponse, requested string) string {
	if resp != nil && resp.OutputKey != "" {
		return resp.OutputKey
	}
	return requested
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/logging"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/store"
)

// Enqueuer is the subset of *asynq.Client used to queue stage tasks
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// DispatchService starts pipeline stages as background jobs and tracks
// their job records
type DispatchService struct {
	pipeline *PipelineService
	jobs     store.JobStore
	queue    Enqueuer
	logger   *zap.Logger
}

func NewDispatchService(pipeline *PipelineService, jobs store.JobStore, queue Enqueuer, logger *zap.Logger) *DispatchService {
	return &DispatchService{
		pipeline: pipeline,
		jobs:     jobs,
		queue:    queue,
		logger:   logging.OrNop(logger),
	}
}

// StartRender queues the render of one stream
func (s *DispatchService) StartRender(ctx context.Context, sessionID, layerID string, tag model.StreamTag) (*model.DispatchResponse, error) {
	return s.start(ctx, sessionID, StreamTarget(layerID, tag))
}

// StartBlend queues a layer blend
func (s *DispatchService) StartBlend(ctx context.Context, sessionID, layerID string) (*model.DispatchResponse, error) {
	return s.start(ctx, sessionID, LayerTarget(layerID))
}

// StartMaster queues the master blend
func (s *DispatchService) StartMaster(ctx context.Context, sessionID string) (*model.DispatchResponse, error) {
	return s.start(ctx, sessionID, MasterTarget())
}

func (s *DispatchService) start(ctx context.Context, sessionID string, target StageTarget) (*model.DispatchResponse, error) {
	snapshot, err := s.pipeline.Begin(ctx, sessionID, target)
	if err != nil {
		return nil, err
	}

	jobID := uuid.New().String()
	now := time.Now()
	job := &model.Job{
		ID:        jobID,
		SessionID: sessionID,
		LayerID:   target.LayerID,
		Stream:    target.Stream,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
	}

	task, err := s.buildTask(snapshot, sessionID, target, job)
	if err == nil {
		err = s.jobs.SaveJob(ctx, job)
		if err != nil {
			err = fmt.Errorf("failed to save job: %w", err)
		}
	}
	if err == nil {
		_, err = s.queue.Enqueue(task, taskOptions(queueFor(target.Stage))...)
		if err != nil {
			err = fmt.Errorf("failed to enqueue task: %w", err)
			if _, jerr := s.FailJob(ctx, jobID, err.Error()); jerr != nil {
				s.logger.Warn("failed to mark job failed", zap.String("job", jobID), zap.Error(jerr))
			}
		}
	}
	if err != nil {
		s.logger.Error("dispatch failed", zap.String("session", sessionID), zap.String("job", jobID), zap.Error(err))
		if ferr := s.pipeline.FailStage(ctx, sessionID, target, err); ferr != nil {
			s.logger.Warn("failed to release stage", zap.String("session", sessionID), zap.Error(ferr))
		}
		return nil, err
	}

	s.logger.Info("stage dispatched",
		zap.String("session", sessionID),
		zap.String("job", jobID),
		zap.String("stage", string(target.Stage)),
		zap.String("layer", target.LayerID),
	)
	return &model.DispatchResponse{
		JobID:     jobID,
		Stage:     target.Stage,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
	}, nil
}

// buildTask snapshots the stage inputs into a task payload and fills in the
// job type
func (s *DispatchService) buildTask(st model.PipelineState, sessionID string, target StageTarget, job *model.Job) (*asynq.Task, error) {
	env := TaskEnvelope{JobID: job.ID, SessionID: sessionID, Target: target}
	switch target.Stage {
	case model.StageStream:
		layer, err := st.Layer(target.LayerID)
		if err != nil {
			return nil, err
		}
		stream, err := layer.Stream(target.Stream)
		if err != nil {
			return nil, err
		}
		job.Type = model.JobTypeRender
		return newTask(TaskTypeRender, env, &model.RenderJobPayload{
			SessionID:   sessionID,
			LayerID:     layer.ID,
			Stream:      stream.Tag,
			SourceClip:  *layer.SourceClip,
			Adjustments: stream.Adjustments,
		})

	case model.StageLayer:
		layer, err := st.Layer(target.LayerID)
		if err != nil {
			return nil, err
		}
		payload := &model.BlendJobPayload{
			SessionID: sessionID,
			LayerID:   layer.ID,
			Mode:      layer.BlendState.Mode,
			Opacity:   layer.BlendState.Opacity,
		}
		if layer.StreamA.Rendered() {
			payload.StreamAGif = layer.StreamA.GeneratedGifPath
		}
		if layer.StreamB.Rendered() {
			payload.StreamBGif = layer.StreamB.GeneratedGifPath
		}
		job.Type = model.JobTypeBlend
		return newTask(TaskTypeBlend, env, payload)

	default:
		payload := &model.MasterJobPayload{
			SessionID: sessionID,
			Mode:      st.MasterBlend.Mode,
			Opacity:   st.MasterBlend.Opacity,
		}
		for _, layer := range st.Layers {
			payload.LayerGifs = append(payload.LayerGifs, layer.BlendState.BlendedGifPath)
		}
		job.Type = model.JobTypeMaster
		return newTask(TaskTypeMaster, env, payload)
	}
}

// JobStatus returns a job record
func (s *DispatchService) JobStatus(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, jobErr(err)
	}
	return job, nil
}

// UpdateJobProgress updates job progress (called by worker)
func (s *DispatchService) UpdateJobProgress(ctx context.Context, jobID string, progress int, step string) (*model.Job, error) {
	job, err := s.jobs.UpdateJob(ctx, jobID, func(job *model.Job) {
		job.Progress = progress
		job.CurrentStep = step
		if job.Status == model.JobStatusQueued {
			job.Status = model.JobStatusRunning
			now := time.Now()
			job.StartedAt = &now
		}
	})
	if err != nil {
		return nil, jobErr(err)
	}
	return job, nil
}

// CompleteJob marks job as succeeded (called by worker)
func (s *DispatchService) CompleteJob(ctx context.Context, jobID, outputPath string) (*model.Job, error) {
	job, err := s.jobs.UpdateJob(ctx, jobID, func(job *model.Job) {
		job.Status = model.JobStatusSucceeded
		job.Progress = 100
		job.OutputPath = outputPath
		now := time.Now()
		job.CompletedAt = &now
	})
	if err != nil {
		return nil, jobErr(err)
	}
	return job, nil
}

// FailJob marks job as failed (called by worker)
func (s *DispatchService) FailJob(ctx context.Context, jobID, errMsg string) (*model.Job, error) {
	job, err := s.jobs.UpdateJob(ctx, jobID, func(job *model.Job) {
		job.Status = model.JobStatusFailed
		job.Error = &errMsg
		now := time.Now()
		job.CompletedAt = &now
	})
	if err != nil {
		return nil, jobErr(err)
	}
	return job, nil
}

func queueFor(stage model.Stage) string {
	switch stage {
	case model.StageStream:
		return QueueRender
	case model.StageLayer:
		return QueueBlend
	default:
		return QueueMaster
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/client"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/logging"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/notify"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/readiness"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/store"
)

// DefaultLayerCount is used when a session is created without a layer count
const DefaultLayerCount = 2

// MasterSettings is a partial update of the master blend. Nil fields are
// left unchanged.
type MasterSettings struct {
	Mode       model.BlendMode
	Opacity    float64
	IsEnabled  *bool
	ShareSetup *model.ShareSetupState
}

// PipelineService owns session state: edits, readiness reports, stage
// bookkeeping and the per-session notification feed.
type PipelineService struct {
	store   store.StateStore
	notices *notify.Registry
	engine  *readiness.Engine
	storage client.StorageClient
	logger  *zap.Logger
}

// NewPipelineService creates the service. A nil engine uses the default
// rules; a nil storage client skips artifact cleanup.
func NewPipelineService(st store.StateStore, notices *notify.Registry, engine *readiness.Engine, storage client.StorageClient, logger *zap.Logger) *PipelineService {
	if engine == nil {
		engine = readiness.Default()
	}
	return &PipelineService{
		store:   st,
		notices: notices,
		engine:  engine,
		storage: storage,
		logger:  logging.OrNop(logger),
	}
}

// Notices returns the notification center of a session
func (s *PipelineService) Notices(sessionID string) *notify.Center {
	return s.notices.For(sessionID)
}

// CreateSession opens a session with layerCount default layers
func (s *PipelineService) CreateSession(ctx context.Context, layerCount int) (*store.Session, error) {
	if layerCount == 0 {
		layerCount = DefaultLayerCount
	}
	sess, err := s.store.Create(ctx, model.NewPipelineState(layerCount))
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.logger.Info("session created", zap.String("session", sess.ID), zap.Int("layers", layerCount))
	return sess, nil
}

// State returns the stored session
func (s *PipelineService) State(ctx context.Context, sessionID string) (*store.Session, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, sessionErr(err)
	}
	return sess, nil
}

// Report evaluates every stage of the session
func (s *PipelineService) Report(ctx context.Context, sessionID string) (readiness.Report, error) {
	sess, err := s.State(ctx, sessionID)
	if err != nil {
		return readiness.Report{}, err
	}
	return s.engine.Evaluate(sess.State), nil
}

// DeleteSession removes a session and its notification center
func (s *PipelineService) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.notices.Drop(sessionID)
	return nil
}

// SetSourceClip selects a layer's source clip. Choosing a different clip
// discards the layer's rendered and blended GIFs.
func (s *PipelineService) SetSourceClip(ctx context.Context, sessionID, layerID string, clip model.ClipRef) (*store.Session, error) {
	var stale []string
	sess, err := s.update(ctx, sessionID, func(st model.PipelineState) (model.PipelineState, error) {
		return st.WithLayer(layerID, func(l model.Layer) (model.Layer, error) {
			if isGenerating(l) {
				return l, ErrAlreadyGenerating
			}
			if l.SourceClip == nil || l.SourceClip.ID != clip.ID || l.SourceClip.URI != clip.URI {
				stale = artifacts(l)
				l = l.Reset()
			}
			c := clip
			l.SourceClip = &c
			return l, nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.deleteArtifacts(ctx, stale)
	return sess, nil
}

// SetAdjustments replaces the adjustment settings of one stream
func (s *PipelineService) SetAdjustments(ctx context.Context, sessionID, layerID string, tag model.StreamTag, settings model.AdjustmentSettings) (*store.Session, error) {
	return s.update(ctx, sessionID, func(st model.PipelineState) (model.PipelineState, error) {
		return st.WithLayer(layerID, func(l model.Layer) (model.Layer, error) {
			return l.WithStream(tag, func(stream model.Stream) model.Stream {
				stream.Adjustments = settings
				return stream
			})
		})
	})
}

// SetLayerBlend sets a layer's blend mode and opacity. Out-of-range values
// are stored and reported by the readiness report.
func (s *PipelineService) SetLayerBlend(ctx context.Context, sessionID, layerID string, mode model.BlendMode, opacity float64) (*store.Session, error) {
	return s.update(ctx, sessionID, func(st model.PipelineState) (model.PipelineState, error) {
		return st.WithLayer(layerID, func(l model.Layer) (model.Layer, error) {
			l.BlendState.Mode = mode
			l.BlendState.Opacity = opacity
			return l, nil
		})
	})
}

// SetMaster updates the master blend settings
func (s *PipelineService) SetMaster(ctx context.Context, sessionID string, settings MasterSettings) (*store.Session, error) {
	return s.update(ctx, sessionID, func(st model.PipelineState) (model.PipelineState, error) {
		return st.WithMaster(func(m model.MasterBlendConfig) model.MasterBlendConfig {
			m.Mode = settings.Mode
			m.Opacity = settings.Opacity
			if settings.IsEnabled != nil {
				m.IsEnabled = *settings.IsEnabled
			}
			if settings.ShareSetup != nil {
				m.ShareSetup = *settings.ShareSetup
			}
			return m
		}), nil
	})
}

// ResetLayer discards every generated artifact of a layer
func (s *PipelineService) ResetLayer(ctx context.Context, sessionID, layerID string) (*store.Session, error) {
	var stale []string
	sess, err := s.update(ctx, sessionID, func(st model.PipelineState) (model.PipelineState, error) {
		return st.WithLayer(layerID, func(l model.Layer) (model.Layer, error) {
			if isGenerating(l) {
				return l, ErrAlreadyGenerating
			}
			stale = artifacts(l)
			return l.Reset(), nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.deleteArtifacts(ctx, stale)
	return sess, nil
}

// PostMessage publishes a message to the session feed. It reports whether
// the message was delivered rather than dropped as blank or duplicate.
func (s *PipelineService) PostMessage(ctx context.Context, sessionID, text string, isError bool) (bool, error) {
	if _, err := s.State(ctx, sessionID); err != nil {
		return false, err
	}
	return s.post(sessionID, text, isError), nil
}

// Begin validates a stage against the latest state and marks it generating
// in the same atomic update. It returns the snapshot the job must use. A
// refusal is posted to the session feed before it is returned.
func (s *PipelineService) Begin(ctx context.Context, sessionID string, target StageTarget) (model.PipelineState, error) {
	var (
		snapshot model.PipelineState
		label    string
	)
	_, err := s.update(ctx, sessionID, func(st model.PipelineState) (model.PipelineState, error) {
		next, name, err := s.begin(st, target)
		label = name
		if err != nil {
			return st, err
		}
		snapshot = next
		return next, nil
	})
	if err == nil {
		return snapshot, nil
	}

	var blocked *BlockedError
	switch {
	case errors.As(err, &blocked):
		s.post(sessionID, strings.Join(blocked.Reasons, "\n"), true)
	case errors.Is(err, ErrAlreadyGenerating):
		s.post(sessionID, label+" is already generating", true)
	case errors.Is(err, ErrMasterDisabled):
		s.post(sessionID, "Master: enable the master blend before generating", true)
	}
	return model.PipelineState{}, err
}

func (s *PipelineService) begin(st model.PipelineState, target StageTarget) (model.PipelineState, string, error) {
	if target.Stage == model.StageMaster {
		label := target.describe("")
		m := st.MasterBlend
		if !m.IsEnabled {
			return st, label, ErrMasterDisabled
		}
		if m.IsGenerating {
			return st, label, ErrAlreadyGenerating
		}
		if err := blockedErr(target.Stage, s.engine.ValidateMasterBlend(st)); err != nil {
			return st, label, err
		}
		return st.WithMaster(func(m model.MasterBlendConfig) model.MasterBlendConfig {
			m.IsGenerating = true
			return m
		}), label, nil
	}

	layer, err := st.Layer(target.LayerID)
	if err != nil {
		return st, "", err
	}
	label := target.describe(layer.Title)

	switch target.Stage {
	case model.StageStream:
		stream, err := layer.Stream(target.Stream)
		if err != nil {
			return st, label, err
		}
		if stream.IsGenerating {
			return st, label, ErrAlreadyGenerating
		}
		if err := blockedErr(target.Stage, s.engine.ValidateStream(layer, stream)); err != nil {
			return st, label, err
		}
		next, err := st.WithLayer(layer.ID, func(l model.Layer) (model.Layer, error) {
			return l.WithStream(target.Stream, func(stream model.Stream) model.Stream {
				stream.IsGenerating = true
				return stream
			})
		})
		return next, label, err

	case model.StageLayer:
		if layer.BlendState.IsGenerating {
			return st, label, ErrAlreadyGenerating
		}
		if err := blockedErr(target.Stage, s.engine.ValidateLayerBlend(layer)); err != nil {
			return st, label, err
		}
		next, err := st.WithLayer(layer.ID, func(l model.Layer) (model.Layer, error) {
			l.BlendState.IsGenerating = true
			return l, nil
		})
		return next, label, err
	}
	return st, label, fmt.Errorf("unknown stage %q", target.Stage)
}

// CompleteStream records a rendered stream GIF
func (s *PipelineService) CompleteStream(ctx context.Context, sessionID, layerID string, tag model.StreamTag, path string) error {
	return s.finish(ctx, sessionID, StreamTarget(layerID, tag), path, nil)
}

// CompleteLayerBlend records a layer's blended GIF
func (s *PipelineService) CompleteLayerBlend(ctx context.Context, sessionID, layerID, path string) error {
	return s.finish(ctx, sessionID, LayerTarget(layerID), path, nil)
}

// CompleteMaster records the master GIF
func (s *PipelineService) CompleteMaster(ctx context.Context, sessionID, path string) error {
	return s.finish(ctx, sessionID, MasterTarget(), path, nil)
}

// FailStage clears a stage's generating flag and posts the failure
func (s *PipelineService) FailStage(ctx context.Context, sessionID string, target StageTarget, cause error) error {
	if cause == nil {
		cause = errors.New("unknown error")
	}
	return s.finish(ctx, sessionID, target, "", cause)
}

func (s *PipelineService) finish(ctx context.Context, sessionID string, target StageTarget, path string, cause error) error {
	var label, replaced string
	// supersede remembers the output a successful stage overwrites
	supersede := func(prev string) string {
		if cause == nil && prev != path {
			replaced = prev
		}
		return path
	}
	_, err := s.update(ctx, sessionID, func(st model.PipelineState) (model.PipelineState, error) {
		replaced = ""
		if target.Stage == model.StageMaster {
			label = target.describe("")
			return st.WithMaster(func(m model.MasterBlendConfig) model.MasterBlendConfig {
				m.IsGenerating = false
				if cause == nil {
					m.MasterGifPath = supersede(m.MasterGifPath)
				}
				return m
			}), nil
		}
		return st.WithLayer(target.LayerID, func(l model.Layer) (model.Layer, error) {
			label = target.describe(l.Title)
			if target.Stage == model.StageLayer {
				l.BlendState.IsGenerating = false
				if cause == nil {
					l.BlendState.BlendedGifPath = supersede(l.BlendState.BlendedGifPath)
				}
				return l, nil
			}
			return l.WithStream(target.Stream, func(stream model.Stream) model.Stream {
				stream.IsGenerating = false
				if cause == nil {
					stream.GeneratedGifPath = supersede(stream.GeneratedGifPath)
				}
				return stream
			})
		})
	})
	if err != nil {
		return err
	}

	if cause != nil {
		s.logger.Warn("stage failed",
			zap.String("session", sessionID),
			zap.String("stage", string(target.Stage)),
			zap.String("layer", target.LayerID),
			zap.Error(cause),
		)
		s.post(sessionID, fmt.Sprintf("%s failed: %v", label, cause), true)
		return nil
	}
	if strings.TrimSpace(replaced) != "" {
		s.deleteArtifacts(ctx, []string{replaced})
	}
	s.post(sessionID, label+" is ready", false)
	return nil
}

func (s *PipelineService) update(ctx context.Context, sessionID string, fn store.UpdateFunc) (*store.Session, error) {
	sess, err := s.store.Update(ctx, sessionID, fn)
	if err != nil {
		return nil, sessionErr(err)
	}
	return sess, nil
}

func (s *PipelineService) post(sessionID, text string, isError bool) bool {
	return s.notices.For(sessionID).Post(text, isError)
}

func (s *PipelineService) deleteArtifacts(ctx context.Context, keys []string) {
	var objects []string
	for _, key := range keys {
		if client.IsObjectKey(key) {
			objects = append(objects, key)
		}
	}
	if s.storage == nil || len(objects) == 0 {
		return
	}
	if err := s.storage.DeleteObjects(ctx, objects); err != nil {
		s.logger.Warn("failed to delete artifacts", zap.Strings("keys", objects), zap.Error(err))
	}
}

func blockedErr(stage model.Stage, v model.Verdict) error {
	if v.IsReady() {
		return nil
	}
	return &BlockedError{Stage: stage, Reasons: v.Reasons()}
}

func isGenerating(l model.Layer) bool {
	return l.StreamA.IsGenerating || l.StreamB.IsGenerating || l.BlendState.IsGenerating
}

func artifacts(l model.Layer) []string {
	var keys []string
	for _, p := range []string{l.StreamA.GeneratedGifPath, l.StreamB.GeneratedGifPath, l.BlendState.BlendedGifPath} {
		if strings.TrimSpace(p) != "" {
			keys = append(keys, p)
		}
	}
	return keys
}

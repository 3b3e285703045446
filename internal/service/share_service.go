package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/client"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/logging"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/notify"
)

const shareLinkExpiry = 7 * 24 * time.Hour

// SharePorts resolves the share and clipboard adapters of a session
type SharePorts interface {
	Sharer(sessionID string) notify.Sharer
	Clipboard(sessionID string) notify.Clipboard
}

// StaticPorts serves the same adapters to every session
type StaticPorts struct {
	Share notify.Sharer
	Copy  notify.Clipboard
}

func (p StaticPorts) Sharer(string) notify.Sharer       { return p.Share }
func (p StaticPorts) Clipboard(string) notify.Clipboard { return p.Copy }

// ShareService hands the master GIF to the platform share and clipboard
// ports, reporting each outcome on the session feed
type ShareService struct {
	pipeline *PipelineService
	ports    SharePorts
	storage  client.StorageClient
	logger   *zap.Logger
}

// NewShareService creates the service. Without storage the master GIF path
// is shared as is instead of a presigned link.
func NewShareService(pipeline *PipelineService, ports SharePorts, storage client.StorageClient, logger *zap.Logger) *ShareService {
	return &ShareService{
		pipeline: pipeline,
		ports:    ports,
		storage:  storage,
		logger:   logging.OrNop(logger),
	}
}

// Share opens a share intent with the caption and, when enabled, the link
func (s *ShareService) Share(ctx context.Context, sessionID string) (*model.ShareResponse, error) {
	sess, err := s.pipeline.State(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	link, err := s.masterLink(ctx, sessionID, sess.State.MasterBlend)
	if err != nil {
		return nil, err
	}

	setup := sess.State.MasterBlend.ShareSetup
	text := shareText(setup, link)
	if text == "" {
		s.pipeline.post(sessionID, "Share: add a caption or include the link", true)
		return nil, fmt.Errorf("%w: empty share text", ErrNothingToShare)
	}

	if err := s.ports.Sharer(sessionID).Share(ctx, text, setup.Title, setup.Subject); err != nil {
		s.logger.Warn("share failed", zap.String("session", sessionID), zap.Error(err))
		s.pipeline.post(sessionID, fmt.Sprintf("Share failed: %v", err), true)
		return nil, fmt.Errorf("share failed: %w", err)
	}
	s.pipeline.post(sessionID, "Share sheet opened", false)

	resp := &model.ShareResponse{Success: true, Text: text}
	if setup.IncludeLink {
		resp.Link = link
	}
	return resp, nil
}

// CopyLink writes the master GIF link to the clipboard
func (s *ShareService) CopyLink(ctx context.Context, sessionID string) (*model.ShareResponse, error) {
	sess, err := s.pipeline.State(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	link, err := s.masterLink(ctx, sessionID, sess.State.MasterBlend)
	if err != nil {
		return nil, err
	}

	if err := s.ports.Clipboard(sessionID).Copy(link); err != nil {
		s.logger.Warn("copy failed", zap.String("session", sessionID), zap.Error(err))
		s.pipeline.post(sessionID, fmt.Sprintf("Copy failed: %v", err), true)
		return nil, fmt.Errorf("copy failed: %w", err)
	}
	s.pipeline.post(sessionID, "Link copied to clipboard", false)

	return &model.ShareResponse{Success: true, Text: link, Link: link}, nil
}

func (s *ShareService) masterLink(ctx context.Context, sessionID string, master model.MasterBlendConfig) (string, error) {
	path := strings.TrimSpace(master.MasterGifPath)
	if path == "" {
		s.pipeline.post(sessionID, "Master: generate the master GIF before sharing", true)
		return "", fmt.Errorf("%w: master GIF not generated", ErrNothingToShare)
	}
	if s.storage == nil || !client.IsObjectKey(path) {
		return path, nil
	}
	link, err := s.storage.PresignGet(ctx, path, shareLinkExpiry)
	if err != nil {
		s.pipeline.post(sessionID, "Share: could not create a link to the master GIF", true)
		return "", err
	}
	return link, nil
}

func shareText(setup model.ShareSetupState, link string) string {
	var parts []string
	if caption := strings.TrimSpace(setup.Caption); caption != "" {
		parts = append(parts, caption)
	}
	if setup.IncludeLink && link != "" {
		parts = append(parts, link)
	}
	return strings.Join(parts, "\n")
}

package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/client"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/store"
)

// clipExtensions maps accepted source clip content types to file extensions
var clipExtensions = map[string]string{
	"image/gif":       ".gif",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/webm":      ".webm",
}

// IsClipContentType reports whether a content type can be used as a source clip
func IsClipContentType(contentType string) bool {
	_, ok := clipExtensions[strings.ToLower(contentType)]
	return ok
}

// ClipService uploads source clips to object storage
type ClipService struct {
	pipeline *PipelineService
	storage  client.StorageClient
}

func NewClipService(pipeline *PipelineService, storage client.StorageClient) *ClipService {
	return &ClipService{
		pipeline: pipeline,
		storage:  storage,
	}
}

// UploadClip stores a clip and selects it as the layer's source clip
func (s *ClipService) UploadClip(ctx context.Context, sessionID, layerID, name, contentType string, file io.Reader) (*store.Session, error) {
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}
	ext, ok := clipExtensions[strings.ToLower(contentType)]
	if !ok {
		return nil, fmt.Errorf("unsupported clip type %q", contentType)
	}
	// Fail before the upload when the session or layer does not exist.
	sess, err := s.pipeline.State(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := sess.State.Layer(layerID); err != nil {
		return nil, err
	}

	clipID := uuid.New().String()
	key := client.ClipKey(sessionID, clipID, ext)
	uri, err := s.storage.PutObject(ctx, key, file, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload clip: %w", err)
	}

	if name == "" {
		name = path.Base(key)
	}
	return s.pipeline.SetSourceClip(ctx, sessionID, layerID, model.ClipRef{ID: clipID, URI: uri, Name: name})
}

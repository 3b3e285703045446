package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/store"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrJobNotFound        = errors.New("job not found")
	ErrAlreadyGenerating  = errors.New("stage is already generating")
	ErrMasterDisabled     = errors.New("master blend is disabled")
	ErrNothingToShare     = errors.New("nothing to share")
	ErrStorageUnavailable = errors.New("object storage is not configured")

	ErrLayerNotFound = model.ErrLayerNotFound
	ErrUnknownStream = model.ErrUnknownStream
)

// BlockedError carries the reasons a stage could not be dispatched.
type BlockedError struct {
	Stage   model.Stage
	Reasons []string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("%s stage blocked: %s", e.Stage, strings.Join(e.Reasons, "; "))
}

func sessionErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}
	return err
}

func jobErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrJobNotFound, err)
	}
	return err
}

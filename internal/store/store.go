// Package store persists pipeline sessions and dispatched job records.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
)

// ErrNotFound is returned when a session or job does not exist or has expired.
var ErrNotFound = errors.New("not found")

// Session is a stored pipeline snapshot.
type Session struct {
	ID        string              `json:"id"`
	State     model.PipelineState `json:"state"`
	Version   int64               `json:"version"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// UpdateFunc derives the next state from the current one. Returning an
// error aborts the update and leaves the stored state untouched.
type UpdateFunc func(model.PipelineState) (model.PipelineState, error)

// StateStore holds pipeline sessions. Update is atomic per session: fn
// always sees the latest state and concurrent updates never interleave.
type StateStore interface {
	Create(ctx context.Context, state model.PipelineState) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, id string, fn UpdateFunc) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// JobStore holds job records for status polling.
type JobStore interface {
	SaveJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	UpdateJob(ctx context.Context, id string, fn func(*model.Job)) (*model.Job, error)
}

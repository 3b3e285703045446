package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
)

const (
	jobTTL           = 24 * time.Hour
	maxUpdateRetries = 10
)

// RedisStore keeps sessions and jobs as JSON values. Each write refreshes the
// key's TTL, so sessions expire after a period without changes.
type RedisStore struct {
	redis      *redis.Client
	sessionTTL time.Duration
}

func NewRedisStore(redisClient *redis.Client, sessionTTL time.Duration) *RedisStore {
	return &RedisStore{
		redis:      redisClient,
		sessionTTL: sessionTTL,
	}
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func sessionKey(id string) string { return fmt.Sprintf("session:%s", id) }
func jobKey(id string) string     { return fmt.Sprintf("job:%s", id) }

func (s *RedisStore) Create(ctx context.Context, state model.PipelineState) (*Session, error) {
	now := time.Now()
	sess := &Session{
		ID:        uuid.New().String(),
		State:     state,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(sess.ID), data, s.sessionTTL).Err(); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	return s.load(ctx, s.redis, id)
}

// Update applies fn under WATCH and retries when another writer changed the
// session between the read and the EXEC.
func (s *RedisStore) Update(ctx context.Context, id string, fn UpdateFunc) (*Session, error) {
	key := sessionKey(id)
	var out *Session

	txf := func(tx *redis.Tx) error {
		sess, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := fn(sess.State)
		if err != nil {
			return err
		}
		sess.State = next
		sess.Version++
		sess.UpdatedAt = time.Now()

		data, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.sessionTTL)
			return nil
		})
		if err == nil {
			out = sess
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.redis.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("session %s: update contended after %d attempts", id, maxUpdateRetries)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.redis.Del(ctx, sessionKey(id)).Err()
}

func (s *RedisStore) load(ctx context.Context, r getter, id string) (*Session, error) {
	data, err := r.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) SaveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, jobKey(job.ID), data, jobTTL).Err()
}

func (s *RedisStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateJob is a read-modify-write without WATCH; a job record has a single
// writer, the worker processing it.
func (s *RedisStore) UpdateJob(ctx context.Context, id string, fn func(*model.Job)) (*model.Job, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	fn(job)
	if err := s.SaveJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

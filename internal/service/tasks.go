package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task types, one per pipeline stage
const (
	TaskTypeRender = "render:stream"
	TaskTypeBlend  = "blend:layer"
	TaskTypeMaster = "blend:master"
)

// Queue names
const (
	QueueRender = "render"
	QueueBlend  = "blend"
	QueueMaster = "master"
)

// TaskEnvelope is the asynq payload of every stage task. The session and
// target sit outside the stage payload so a worker can release the stage
// even when the payload itself cannot be decoded.
type TaskEnvelope struct {
	JobID     string          `json:"jobId"`
	SessionID string          `json:"sessionId"`
	Target    StageTarget     `json:"target"`
	Payload   json.RawMessage `json:"payload"`
}

func newTask(taskType string, env TaskEnvelope, payload interface{}) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	env.Payload = payloadBytes
	data, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

// ParseTask decodes a stage task into payload. On a payload error the
// returned envelope still carries whatever identifiers could be read.
func ParseTask(t *asynq.Task, payload interface{}) (TaskEnvelope, error) {
	var env TaskEnvelope
	if err := json.Unmarshal(t.Payload(), &env); err != nil {
		return TaskEnvelope{}, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	if env.JobID == "" {
		return env, fmt.Errorf("task %s has no job id", t.Type())
	}
	if err := json.Unmarshal(env.Payload, payload); err != nil {
		return env, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return env, nil
}

func taskOptions(queue string) []asynq.Option {
	return []asynq.Option{
		asynq.Queue(queue),
		asynq.MaxRetry(3),
		asynq.Retention(24 * time.Hour),
	}
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/client"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/notify"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/service"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/store"
)

type captureQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (q *captureQueue) Enqueue(task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func (q *captureQueue) last() *asynq.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tasks[len(q.tasks)-1]
}

type hubEvent struct {
	kind     string
	progress int
	message  string
}

type fakeHub struct {
	mu     sync.Mutex
	events []hubEvent
}

func (h *fakeHub) BroadcastProgress(_, _ string, progress int, _ model.JobStatus, step string) {
	h.record(hubEvent{kind: "progress", progress: progress, message: step})
}

func (h *fakeHub) BroadcastComplete(_, _ string, _ interface{}) {
	h.record(hubEvent{kind: "complete"})
}

func (h *fakeHub) BroadcastError(_, _, _, message string) {
	h.record(hubEvent{kind: "error", message: message})
}

func (h *fakeHub) record(e hubEvent) {
	h.mu.Lock()
	h.events = append(h.events, e)
	h.mu.Unlock()
}

func (h *fakeHub) last() hubEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.events[len(h.events)-1]
}

type fakeEncoder struct {
	err      error
	rendered []*client.RenderRequest
	blended  []*client.BlendRequest
	mastered []*client.BlendRequest
}

func (e *fakeEncoder) Render(_ context.Context, req *client.RenderRequest) (*client.EncodeResponse, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.rendered = append(e.rendered, req)
	return &client.EncodeResponse{OutputKey: req.OutputKey, Frames: 45}, nil
}

func (e *fakeEncoder) Blend(_ context.Context, req *client.BlendRequest) (*client.EncodeResponse, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.blended = append(e.blended, req)
	return &client.EncodeResponse{OutputKey: req.OutputKey}, nil
}

func (e *fakeEncoder) Master(_ context.Context, req *client.BlendRequest) (*client.EncodeResponse, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.mastered = append(e.mastered, req)
	return &client.EncodeResponse{OutputKey: req.OutputKey}, nil
}

func (e *fakeEncoder) HealthCheck(context.Context) error { return nil }

type env struct {
	pipeline *service.PipelineService
	dispatch *service.DispatchService
	queue    *captureQueue
	hub      *fakeHub
	session  string
}

// contextStore fails writes on a done context, as the redis store does
type contextStore struct {
	*store.MemoryStore
}

func (s contextStore) Update(ctx context.Context, id string, fn store.UpdateFunc) (*store.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.MemoryStore.Update(ctx, id, fn)
}

func (s contextStore) UpdateJob(ctx context.Context, id string, fn func(*model.Job)) (*model.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.MemoryStore.UpdateJob(ctx, id, fn)
}

type sessionStore interface {
	store.StateStore
	store.JobStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWith(t, store.NewMemoryStore())
}

func newEnvWith(t *testing.T, st sessionStore) *env {
	t.Helper()
	pipeline := service.NewPipelineService(st, notify.NewRegistry(0, nil), nil, nil, nil)
	queue := &captureQueue{}
	e := &env{
		pipeline: pipeline,
		dispatch: service.NewDispatchService(pipeline, st, queue, nil),
		queue:    queue,
		hub:      &fakeHub{},
	}
	sess, err := pipeline.CreateSession(context.Background(), 1)
	require.NoError(t, err)
	e.session = sess.ID

	_, err = pipeline.SetSourceClip(context.Background(), e.session, "layer-1", model.ClipRef{ID: "c1", URI: "https://cdn.test/c1.mp4"})
	require.NoError(t, err)
	return e
}

func (e *env) deps(encoder client.Encoder) Deps {
	return Deps{Pipeline: e.pipeline, Dispatch: e.dispatch, Encoder: encoder, Hub: e.hub}
}

func (e *env) layer(t *testing.T) model.Layer {
	t.Helper()
	sess, err := e.pipeline.State(context.Background(), e.session)
	require.NoError(t, err)
	return sess.State.Layers[0]
}

func TestRenderWorker_WithEncoder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	enc := &fakeEncoder{}

	resp, err := e.dispatch.StartRender(ctx, e.session, "layer-1", model.StreamA)
	require.NoError(t, err)

	require.NoError(t, NewRenderWorker(e.deps(enc)).ProcessTask(ctx, e.queue.last()))

	require.Len(t, enc.rendered, 1)
	require.Equal(t, "https://cdn.test/c1.mp4", enc.rendered[0].SourceURI)
	require.Equal(t, 256, enc.rendered[0].MaxColors)

	stream := e.layer(t).StreamA
	require.False(t, stream.IsGenerating)
	require.Equal(t, enc.rendered[0].OutputKey, stream.GeneratedGifPath)

	job, err := e.dispatch.JobStatus(ctx, resp.JobID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusSucceeded, job.Status)
	require.Equal(t, 100, job.Progress)
	require.Equal(t, "complete", e.hub.last().kind)
}

func TestRenderWorker_EncoderFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	enc := &fakeEncoder{err: errors.New("bad clip")}

	resp, err := e.dispatch.StartRender(ctx, e.session, "layer-1", model.StreamB)
	require.NoError(t, err)

	err = NewRenderWorker(e.deps(enc)).ProcessTask(ctx, e.queue.last())
	require.ErrorIs(t, err, asynq.SkipRetry)

	stream := e.layer(t).StreamB
	require.False(t, stream.IsGenerating)
	require.False(t, stream.Rendered())

	job, err := e.dispatch.JobStatus(ctx, resp.JobID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusFailed, job.Status)
	require.Contains(t, *job.Error, "bad clip")

	last := e.hub.last()
	require.Equal(t, "error", last.kind)
	require.Contains(t, last.message, "render failed")
}

func TestRenderWorker_TemporaryErrorOutsideAsynqFails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	enc := &fakeEncoder{err: &client.EncoderError{Endpoint: "/render", Status: 503, Message: "busy"}}

	_, err := e.dispatch.StartRender(ctx, e.session, "layer-1", model.StreamA)
	require.NoError(t, err)

	// no retry metadata in ctx, so this is the last attempt
	err = NewRenderWorker(e.deps(enc)).ProcessTask(ctx, e.queue.last())
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.False(t, e.layer(t).StreamA.IsGenerating)
}

func TestRenderWorker_CancelledTaskReleasesStage(t *testing.T) {
	e := newEnvWith(t, contextStore{store.NewMemoryStore()})
	enc := &fakeEncoder{err: context.Canceled}

	resp, err := e.dispatch.StartRender(context.Background(), e.session, "layer-1", model.StreamA)
	require.NoError(t, err)

	taskCtx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewRenderWorker(e.deps(enc)).ProcessTask(taskCtx, e.queue.last())
	require.ErrorIs(t, err, asynq.SkipRetry)

	require.False(t, e.layer(t).StreamA.IsGenerating)
	job, err := e.dispatch.JobStatus(context.Background(), resp.JobID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusFailed, job.Status)

	_, err = e.pipeline.ResetLayer(context.Background(), e.session, "layer-1")
	require.NoError(t, err)
	_, err = e.dispatch.StartRender(context.Background(), e.session, "layer-1", model.StreamA)
	require.NoError(t, err)
}

func TestRenderWorker_CancelledTaskStillRecordsOutput(t *testing.T) {
	e := newEnvWith(t, contextStore{store.NewMemoryStore()})
	enc := &fakeEncoder{}

	_, err := e.dispatch.StartRender(context.Background(), e.session, "layer-1", model.StreamB)
	require.NoError(t, err)

	// the encoder answered but the task deadline passed right after
	taskCtx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, NewRenderWorker(e.deps(enc)).ProcessTask(taskCtx, e.queue.last()))

	stream := e.layer(t).StreamB
	require.False(t, stream.IsGenerating)
	require.True(t, stream.Rendered())
}

func TestWorkers_SimulatedPipeline(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	d := e.deps(nil)

	_, err := e.dispatch.StartRender(ctx, e.session, "layer-1", model.StreamA)
	require.NoError(t, err)
	require.NoError(t, NewRenderWorker(d).ProcessTask(ctx, e.queue.last()))
	require.True(t, e.layer(t).StreamA.Rendered())

	_, err = e.dispatch.StartBlend(ctx, e.session, "layer-1")
	require.NoError(t, err)
	require.NoError(t, NewBlendWorker(d).ProcessTask(ctx, e.queue.last()))
	require.True(t, e.layer(t).BlendState.Blended())

	_, err = e.dispatch.StartMaster(ctx, e.session)
	require.NoError(t, err)
	require.NoError(t, NewMasterWorker(d).ProcessTask(ctx, e.queue.last()))

	sess, err := e.pipeline.State(ctx, e.session)
	require.NoError(t, err)
	require.Contains(t, sess.State.MasterBlend.MasterGifPath, "masters/"+e.session+"/")
	require.False(t, sess.State.MasterBlend.IsGenerating)
}

func TestBlendWorker_PassesRenderedStreams(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	enc := &fakeEncoder{}

	require.NoError(t, e.pipeline.CompleteStream(ctx, e.session, "layer-1", model.StreamB, "renders/b.gif"))
	_, err := e.pipeline.SetLayerBlend(ctx, e.session, "layer-1", model.BlendScreen, 0.5)
	require.NoError(t, err)

	_, err = e.dispatch.StartBlend(ctx, e.session, "layer-1")
	require.NoError(t, err)
	require.NoError(t, NewBlendWorker(e.deps(enc)).ProcessTask(ctx, e.queue.last()))

	require.Len(t, enc.blended, 1)
	require.Equal(t, []string{"renders/b.gif"}, enc.blended[0].Inputs)
	require.Equal(t, "screen", enc.blended[0].Mode)
	require.Equal(t, 0.5, enc.blended[0].Opacity)
}

func TestWorker_InvalidPayload(t *testing.T) {
	e := newEnv(t)
	err := NewMasterWorker(e.deps(nil)).ProcessTask(context.Background(), asynq.NewTask(service.TaskTypeMaster, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestWorker_UndecodablePayloadReleasesStage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	resp, err := e.dispatch.StartRender(ctx, e.session, "layer-1", model.StreamA)
	require.NoError(t, err)
	require.True(t, e.layer(t).StreamA.IsGenerating)

	// keep the envelope, corrupt the stage payload
	var env service.TaskEnvelope
	require.NoError(t, json.Unmarshal(e.queue.last().Payload(), &env))
	env.Payload = json.RawMessage(`"not a payload"`)
	data, err := json.Marshal(env)
	require.NoError(t, err)

	err = NewRenderWorker(e.deps(nil)).ProcessTask(ctx, asynq.NewTask(service.TaskTypeRender, data))
	require.ErrorIs(t, err, asynq.SkipRetry)

	require.False(t, e.layer(t).StreamA.IsGenerating)
	job, err := e.dispatch.JobStatus(ctx, resp.JobID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusFailed, job.Status)
}

func TestRegister(t *testing.T) {
	e := newEnv(t)
	mux := asynq.NewServeMux()
	Register(mux, e.deps(nil))

	h, pattern := mux.Handler(asynq.NewTask(service.TaskTypeBlend, nil))
	require.NotNil(t, h)
	require.Equal(t, service.TaskTypeBlend, pattern)
}

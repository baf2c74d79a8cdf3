// Package hearth implements the server façade: the composition root that
// turns a Store, a Pool, and an event Bus into the five request-processing
// operations a transport layer (pkg/httpapi, or any other caller) drives.
package hearth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/hearthai/hearth/pkg/engine"
	"github.com/hearthai/hearth/pkg/events"
	"github.com/hearthai/hearth/pkg/herrors"
	"github.com/hearthai/hearth/pkg/instance"
	"github.com/hearthai/hearth/pkg/modelspec"
	"github.com/hearthai/hearth/pkg/modeltypes"
	"github.com/hearthai/hearth/pkg/pool"
	"github.com/hearthai/hearth/pkg/store"
	"github.com/hearthai/hearth/pkg/task"
)

// Options configures a Server. Every dependency is constructed by the
// caller and passed in explicitly: there is no package-level global here,
// unlike the teacher's registry package convenience global.
type Options struct {
	Store  *store.Store
	Pool   *pool.Pool
	Events *events.Bus

	// Tracer traces Process* calls. Defaults to a no-op tracer.
	Tracer trace.Tracer

	// Now, if set, overrides time.Now for deterministic tests.
	Now func() time.Time
}

// Server composes the model store, instance pool, and lifecycle event bus
// into the operations an external transport layer calls.
type Server struct {
	store  *store.Store
	pool   *pool.Pool
	events *events.Bus
	tracer trace.Tracer
	now    func() time.Time
}

// New constructs a Server and immediately publishes a ReadyEvent.
func New(opts Options) *Server {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("hearth")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{store: opts.Store, pool: opts.Pool, events: opts.Events, tracer: tracer, now: now}
	if s.events != nil {
		s.events.Publish(events.ReadyEvent{Time: s.now()})
	}
	return s
}

// requireTask fails unless spec declares the given catalog task kind.
func requireTask(spec modelspec.ModelSpec, want modelspec.TaskKind) error {
	if spec.Task != want {
		return herrors.NewValidationError("model", "model "+spec.ID+" does not serve task "+string(want), herrors.ErrUnsupportedCapability)
	}
	return nil
}

func (s *Server) acquire(ctx context.Context, modelID string, lease pool.LeaseRequest) (*instance.Instance, func(), error) {
	lease.ModelID = modelID
	return s.pool.RequestInstance(ctx, lease)
}

func (s *Server) publishTaskCompleted(modelID string, inst *instance.Instance, taskID string, result task.Result) {
	if s.events == nil {
		return
	}
	s.events.Publish(events.TaskCompletedEvent{
		ModelID:      modelID,
		InstanceUID:  inst.UID,
		TaskID:       taskID,
		State:        result.State,
		FinishReason: result.FinishReason,
		Usage:        result.Usage,
		Time:         s.now(),
	})
}

// ProcessChatCompletion runs a chat-completion task against modelID.
func (s *Server) ProcessChatCompletion(ctx context.Context, modelID string, req engine.ChatCompletionRequest, cfg task.Config) (task.Result, error) {
	spec, err := s.store.Get(modelID)
	if err != nil {
		return task.Result{}, err
	}
	if err := requireTask(spec, modelspec.TaskTextCompletion); err != nil {
		return task.Result{}, err
	}

	ctx, span := s.tracer.Start(ctx, "hearth.ProcessChatCompletion")
	defer span.End()

	inst, release, err := s.acquire(ctx, modelID, pool.LeaseRequest{
		ExactFingerprint:  instance.Fingerprint(req.Messages, false),
		PrefixFingerprint: instance.Fingerprint(req.Messages, true),
	})
	if err != nil {
		return task.Result{}, err
	}
	defer release()

	if cfg.Grammars == nil {
		cfg.Grammars = spec.Grammars
	}
	taskID := uuid.NewString()
	result, err := task.New(taskID, inst).RunChatCompletion(ctx, req, cfg)
	s.publishTaskCompleted(modelID, inst, taskID, result)
	if err != nil {
		return result, err
	}
	return result, nil
}

// ProcessCompletion runs a text-completion task against modelID.
func (s *Server) ProcessCompletion(ctx context.Context, modelID string, req engine.CompletionRequest, cfg task.Config) (task.Result, error) {
	spec, err := s.store.Get(modelID)
	if err != nil {
		return task.Result{}, err
	}
	if err := requireTask(spec, modelspec.TaskTextCompletion); err != nil {
		return task.Result{}, err
	}

	ctx, span := s.tracer.Start(ctx, "hearth.ProcessCompletion")
	defer span.End()

	inst, release, err := s.acquire(ctx, modelID, pool.LeaseRequest{
		ExactFingerprint: instance.TextFingerprint(req.Prompt, false),
	})
	if err != nil {
		return task.Result{}, err
	}
	defer release()

	if cfg.Grammars == nil {
		cfg.Grammars = spec.Grammars
	}
	taskID := uuid.NewString()
	result, err := task.New(taskID, inst).RunTextCompletion(ctx, req, cfg)
	s.publishTaskCompleted(modelID, inst, taskID, result)
	if err != nil {
		return result, err
	}
	return result, nil
}

// ProcessEmbedding runs an embedding task against modelID. Embedding
// instances carry no conversational fingerprint, so every lease is
// affinity-free: the first idle instance of the model will do.
func (s *Server) ProcessEmbedding(ctx context.Context, modelID string, req engine.EmbeddingRequest) (modeltypes.EmbeddingsResult, error) {
	spec, err := s.store.Get(modelID)
	if err != nil {
		return modeltypes.EmbeddingsResult{}, err
	}
	if err := requireTask(spec, modelspec.TaskEmbedding); err != nil {
		return modeltypes.EmbeddingsResult{}, err
	}

	ctx, span := s.tracer.Start(ctx, "hearth.ProcessEmbedding")
	defer span.End()

	inst, release, err := s.acquire(ctx, modelID, pool.LeaseRequest{})
	if err != nil {
		return modeltypes.EmbeddingsResult{}, err
	}
	defer release()

	result, err := inst.Engine.RunEmbedding(ctx, inst.Handle, req)
	if err != nil {
		return modeltypes.EmbeddingsResult{}, herrors.NewEngineRuntimeError(inst.UID, "embedding failed", err)
	}
	return result, nil
}

// ProcessImageToText runs an image-captioning task against modelID.
func (s *Server) ProcessImageToText(ctx context.Context, modelID string, req engine.ImageToTextRequest) (modeltypes.ImageToTextResult, error) {
	spec, err := s.store.Get(modelID)
	if err != nil {
		return modeltypes.ImageToTextResult{}, err
	}
	if err := requireTask(spec, modelspec.TaskImageToText); err != nil {
		return modeltypes.ImageToTextResult{}, err
	}

	ctx, span := s.tracer.Start(ctx, "hearth.ProcessImageToText")
	defer span.End()

	inst, release, err := s.acquire(ctx, modelID, pool.LeaseRequest{})
	if err != nil {
		return modeltypes.ImageToTextResult{}, err
	}
	defer release()

	result, err := inst.Engine.RunImageToText(ctx, inst.Handle, req)
	if err != nil {
		return modeltypes.ImageToTextResult{}, herrors.NewEngineRuntimeError(inst.UID, "image-to-text failed", err)
	}
	return result, nil
}

// ProcessSpeechToText runs a transcription task against modelID.
func (s *Server) ProcessSpeechToText(ctx context.Context, modelID string, req engine.SpeechToTextRequest) (modeltypes.TranscriptionResult, error) {
	spec, err := s.store.Get(modelID)
	if err != nil {
		return modeltypes.TranscriptionResult{}, err
	}
	if err := requireTask(spec, modelspec.TaskSpeechToText); err != nil {
		return modeltypes.TranscriptionResult{}, err
	}

	ctx, span := s.tracer.Start(ctx, "hearth.ProcessSpeechToText")
	defer span.End()

	inst, release, err := s.acquire(ctx, modelID, pool.LeaseRequest{})
	if err != nil {
		return modeltypes.TranscriptionResult{}, err
	}
	defer release()

	result, err := inst.Engine.RunSpeechToText(ctx, inst.Handle, req)
	if err != nil {
		return modeltypes.TranscriptionResult{}, herrors.NewEngineRuntimeError(inst.UID, "speech-to-text failed", err)
	}
	return result, nil
}

// Shutdown disposes the pool, releasing every loaded instance.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.pool.Dispose(ctx)
}

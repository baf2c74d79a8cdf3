// Package engine defines the adapter interface the pool and task executor
// use to load, run, and dispose of model instances, independent of any
// particular inference backend.
package engine

import (
	"context"
	"fmt"

	"github.com/hearthai/hearth/pkg/modelspec"
	"github.com/hearthai/hearth/pkg/modeltypes"
)

// Capability is a bitmask of task kinds an Engine supports.
type Capability uint8

const (
	CapChatCompletion Capability = 1 << iota
	CapTextCompletion
	CapEmbedding
	CapImageToText
	CapSpeechToText
)

// Has reports whether the capability set includes want.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

// Handle is opaque state an Engine associates with one loaded instance
// (e.g. a pointer to a loaded llama.cpp context). The pool and scheduler
// never inspect it; only the Engine that produced it does.
type Handle interface{}

// ChatCompletionRequest is the normalized request for a chat-completion task.
type ChatCompletionRequest struct {
	Messages        []modeltypes.Message
	Temperature     *float64
	TopP            *float64
	TopK            *int
	MinP            *float64
	MaxTokens       *int
	Seed            *int64
	Stop            []string
	FrequencyPenalty *float64
	PresencePenalty  *float64
	TokenBias        map[string]float64
	Grammar          string
	Tools            map[string]modeltypes.Tool
	ToolChoice       modeltypes.ToolChoice
	SystemPrompt     string

	// NewMessagesOnly, when true, instructs the engine that the instance's
	// KV cache already holds every message up to but not including these;
	// only they need to be appended before generating. Set by the task
	// executor's context-reset policy.
	NewMessagesOnly bool
}

// CompletionRequest is the normalized request for a text-completion task.
type CompletionRequest struct {
	Prompt      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	Stop        []string
	Grammar     string
}

// EmbeddingRequest is the normalized request for an embedding task.
type EmbeddingRequest struct {
	Input []string
}

// ImageToTextRequest is the normalized request for an image captioning task.
type ImageToTextRequest struct {
	Bytes  []byte
	URL    string
	Prompt string
}

// SpeechToTextRequest is the normalized request for a speech transcription task.
type SpeechToTextRequest struct {
	Audio      []byte
	SampleRate int
}

// Chunk is one piece of streamed output produced during a chat or text
// completion run. OnChunk is invoked synchronously, in generation order,
// strictly before the run's final Result is returned.
type Chunk struct {
	Tokens []int32
	Text   string
}

// OnChunk receives streamed output. Implementations must not block the
// generation loop for long; the task executor owns buffering/fan-out.
type OnChunk func(Chunk)

// Engine is a polymorphic adapter over one inference backend. A single
// Engine value may back many loaded instances (one per Load call); it holds
// no per-instance mutable state itself — that lives behind the Handle.
type Engine interface {
	// Name identifies this engine for logging and registration (e.g. "llama-cpp").
	Name() string

	// Capabilities reports which task kinds this engine supports.
	Capabilities() Capability

	// Load materializes spec's weights into a runtime handle. May be
	// long-running; ctx cancellation must abort the load and release any
	// partially-acquired resources.
	Load(ctx context.Context, spec modelspec.ModelSpec, artifactPath string) (Handle, error)

	// Dispose releases a handle's resources. Must be safe to call once per
	// successful Load and must not panic on a handle left partially loaded.
	Dispose(handle Handle) error

	RunChatCompletion(ctx context.Context, handle Handle, req ChatCompletionRequest, onChunk OnChunk) (modeltypes.GenerateResult, error)
	RunTextCompletion(ctx context.Context, handle Handle, req CompletionRequest, onChunk OnChunk) (modeltypes.GenerateResult, error)
	RunEmbedding(ctx context.Context, handle Handle, req EmbeddingRequest) (modeltypes.EmbeddingsResult, error)
	RunImageToText(ctx context.Context, handle Handle, req ImageToTextRequest) (modeltypes.ImageToTextResult, error)
	RunSpeechToText(ctx context.Context, handle Handle, req SpeechToTextRequest) (modeltypes.TranscriptionResult, error)
}

// UnsupportedTaskError is returned when a task kind is invoked against an
// engine whose Capabilities() does not include it.
type UnsupportedTaskError struct {
	EngineName string
	Task       modelspec.TaskKind
}

func (e *UnsupportedTaskError) Error() string {
	return fmt.Sprintf("engine %q does not support task %q", e.EngineName, e.Task)
}

// CapabilityForTask maps a catalog TaskKind to the Capability bit an Engine
// must advertise to serve it.
func CapabilityForTask(task modelspec.TaskKind) Capability {
	switch task {
	case modelspec.TaskTextCompletion:
		return CapChatCompletion | CapTextCompletion
	case modelspec.TaskEmbedding:
		return CapEmbedding
	case modelspec.TaskImageToText:
		return CapImageToText
	case modelspec.TaskSpeechToText:
		return CapSpeechToText
	default:
		return 0
	}
}

package engine

import (
	"context"

	"github.com/hearthai/hearth/pkg/modelspec"
	"github.com/hearthai/hearth/pkg/modeltypes"
)

// SubInstancePool is the slice of pool.Pool a CompositeEngine needs: the
// ability to lease and release instances of other declared models. Defined
// here, rather than imported from pkg/pool, so pkg/engine has no dependency
// on pkg/pool — pool depends on engine, not the reverse.
type SubInstancePool interface {
	Acquire(ctx context.Context, modelID string) (Engine, Handle, func(), error)
}

// CompositeRoute maps one of the composite engine's own task kinds to the
// model ID of the sub-instance that actually serves it.
type CompositeRoute struct {
	ChatCompletion string
	TextCompletion string
	Embedding      string
	ImageToText    string
	SpeechToText   string
}

// CompositeEngine implements Engine by delegating every Run call to a
// sub-instance leased from a pool, rather than loading weights itself. Load
// is a no-op: there is nothing to materialize, since the composite holds no
// handle of its own. The pool reference is assigned once via SetPool after
// construction rather than passed to the constructor, so a Pool and its CompositeEngine
// can refer to each other without either side needing the other to exist
// first.
type CompositeEngine struct {
	route CompositeRoute
	pool  SubInstancePool
}

// NewCompositeEngine constructs a composite engine for the given routing table.
func NewCompositeEngine(route CompositeRoute) *CompositeEngine {
	return &CompositeEngine{route: route}
}

// SetPool assigns the pool this composite engine delegates to. Must be
// called once, after both the Pool and the CompositeEngine have been
// constructed, to break the cyclic reference between them.
func (c *CompositeEngine) SetPool(pool SubInstancePool) {
	c.pool = pool
}

func (c *CompositeEngine) Name() string { return "composite" }

func (c *CompositeEngine) Capabilities() Capability {
	var caps Capability
	if c.route.ChatCompletion != "" {
		caps |= CapChatCompletion
	}
	if c.route.TextCompletion != "" {
		caps |= CapTextCompletion
	}
	if c.route.Embedding != "" {
		caps |= CapEmbedding
	}
	if c.route.ImageToText != "" {
		caps |= CapImageToText
	}
	if c.route.SpeechToText != "" {
		caps |= CapSpeechToText
	}
	return caps
}

// Load is a no-op: a composite instance holds no weights of its own.
func (c *CompositeEngine) Load(ctx context.Context, spec modelspec.ModelSpec, artifactPath string) (Handle, error) {
	return nil, nil
}

// Dispose is a no-op for the same reason Load is.
func (c *CompositeEngine) Dispose(handle Handle) error { return nil }

func (c *CompositeEngine) RunChatCompletion(ctx context.Context, handle Handle, req ChatCompletionRequest, onChunk OnChunk) (modeltypes.GenerateResult, error) {
	if c.route.ChatCompletion == "" {
		return modeltypes.GenerateResult{}, &UnsupportedTaskError{EngineName: c.Name(), Task: modelspec.TaskTextCompletion}
	}
	sub, subHandle, release, err := c.pool.Acquire(ctx, c.route.ChatCompletion)
	if err != nil {
		return modeltypes.GenerateResult{}, err
	}
	defer release()
	return sub.RunChatCompletion(ctx, subHandle, req, onChunk)
}

func (c *CompositeEngine) RunTextCompletion(ctx context.Context, handle Handle, req CompletionRequest, onChunk OnChunk) (modeltypes.GenerateResult, error) {
	if c.route.TextCompletion == "" {
		return modeltypes.GenerateResult{}, &UnsupportedTaskError{EngineName: c.Name(), Task: modelspec.TaskTextCompletion}
	}
	sub, subHandle, release, err := c.pool.Acquire(ctx, c.route.TextCompletion)
	if err != nil {
		return modeltypes.GenerateResult{}, err
	}
	defer release()
	return sub.RunTextCompletion(ctx, subHandle, req, onChunk)
}

func (c *CompositeEngine) RunEmbedding(ctx context.Context, handle Handle, req EmbeddingRequest) (modeltypes.EmbeddingsResult, error) {
	if c.route.Embedding == "" {
		return modeltypes.EmbeddingsResult{}, &UnsupportedTaskError{EngineName: c.Name(), Task: modelspec.TaskEmbedding}
	}
	sub, subHandle, release, err := c.pool.Acquire(ctx, c.route.Embedding)
	if err != nil {
		return modeltypes.EmbeddingsResult{}, err
	}
	defer release()
	return sub.RunEmbedding(ctx, subHandle, req)
}

func (c *CompositeEngine) RunImageToText(ctx context.Context, handle Handle, req ImageToTextRequest) (modeltypes.ImageToTextResult, error) {
	if c.route.ImageToText == "" {
		return modeltypes.ImageToTextResult{}, &UnsupportedTaskError{EngineName: c.Name(), Task: modelspec.TaskImageToText}
	}
	sub, subHandle, release, err := c.pool.Acquire(ctx, c.route.ImageToText)
	if err != nil {
		return modeltypes.ImageToTextResult{}, err
	}
	defer release()
	return sub.RunImageToText(ctx, subHandle, req)
}

func (c *CompositeEngine) RunSpeechToText(ctx context.Context, handle Handle, req SpeechToTextRequest) (modeltypes.TranscriptionResult, error) {
	if c.route.SpeechToText == "" {
		return modeltypes.TranscriptionResult{}, &UnsupportedTaskError{EngineName: c.Name(), Task: modelspec.TaskSpeechToText}
	}
	sub, subHandle, release, err := c.pool.Acquire(ctx, c.route.SpeechToText)
	if err != nil {
		return modeltypes.TranscriptionResult{}, err
	}
	defer release()
	return sub.RunSpeechToText(ctx, subHandle, req)
}

var _ Engine = (*CompositeEngine)(nil)

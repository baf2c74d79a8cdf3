// Package testutil provides mock implementations used to test the pool,
// scheduler, and task executor without a real inference backend.
package testutil

import (
	"context"
	"sync"

	"github.com/hearthai/hearth/pkg/engine"
	"github.com/hearthai/hearth/pkg/modelspec"
	"github.com/hearthai/hearth/pkg/modeltypes"
)

// MockEngine is a scriptable engine.Engine for exercising the pool,
// scheduler, and task executor in tests.
type MockEngine struct {
	NameValue string
	Caps      engine.Capability

	LoadFunc            func(ctx context.Context, spec modelspec.ModelSpec, artifactPath string) (engine.Handle, error)
	DisposeFunc         func(handle engine.Handle) error
	RunChatFunc         func(ctx context.Context, handle engine.Handle, req engine.ChatCompletionRequest, onChunk engine.OnChunk) (modeltypes.GenerateResult, error)
	RunTextFunc         func(ctx context.Context, handle engine.Handle, req engine.CompletionRequest, onChunk engine.OnChunk) (modeltypes.GenerateResult, error)
	RunEmbeddingFunc    func(ctx context.Context, handle engine.Handle, req engine.EmbeddingRequest) (modeltypes.EmbeddingsResult, error)
	RunImageToTextFunc  func(ctx context.Context, handle engine.Handle, req engine.ImageToTextRequest) (modeltypes.ImageToTextResult, error)
	RunSpeechToTextFunc func(ctx context.Context, handle engine.Handle, req engine.SpeechToTextRequest) (modeltypes.TranscriptionResult, error)

	mu             sync.Mutex
	LoadCalls      []modelspec.ModelSpec
	DisposeCalls   []engine.Handle
	ChatCalls      []engine.ChatCompletionRequest
	TextCalls      []engine.CompletionRequest
	EmbeddingCalls []engine.EmbeddingRequest
}

func (m *MockEngine) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

func (m *MockEngine) Capabilities() engine.Capability {
	if m.Caps == 0 {
		return engine.CapChatCompletion | engine.CapTextCompletion | engine.CapEmbedding | engine.CapImageToText | engine.CapSpeechToText
	}
	return m.Caps
}

func (m *MockEngine) Load(ctx context.Context, spec modelspec.ModelSpec, artifactPath string) (engine.Handle, error) {
	m.mu.Lock()
	m.LoadCalls = append(m.LoadCalls, spec)
	m.mu.Unlock()

	if m.LoadFunc != nil {
		return m.LoadFunc(ctx, spec, artifactPath)
	}
	return "mock-handle:" + spec.ID, nil
}

func (m *MockEngine) Dispose(handle engine.Handle) error {
	m.mu.Lock()
	m.DisposeCalls = append(m.DisposeCalls, handle)
	m.mu.Unlock()

	if m.DisposeFunc != nil {
		return m.DisposeFunc(handle)
	}
	return nil
}

func (m *MockEngine) RunChatCompletion(ctx context.Context, handle engine.Handle, req engine.ChatCompletionRequest, onChunk engine.OnChunk) (modeltypes.GenerateResult, error) {
	m.mu.Lock()
	m.ChatCalls = append(m.ChatCalls, req)
	m.mu.Unlock()

	if m.RunChatFunc != nil {
		return m.RunChatFunc(ctx, handle, req, onChunk)
	}
	if onChunk != nil {
		onChunk(engine.Chunk{Text: "mock "})
		onChunk(engine.Chunk{Text: "response"})
	}
	return modeltypes.GenerateResult{
		Text:         "mock response",
		FinishReason: modeltypes.FinishReasonEogToken,
		Usage:        modeltypes.Usage{TotalTokens: intPtr(15)},
	}, nil
}

func (m *MockEngine) RunTextCompletion(ctx context.Context, handle engine.Handle, req engine.CompletionRequest, onChunk engine.OnChunk) (modeltypes.GenerateResult, error) {
	m.mu.Lock()
	m.TextCalls = append(m.TextCalls, req)
	m.mu.Unlock()

	if m.RunTextFunc != nil {
		return m.RunTextFunc(ctx, handle, req, onChunk)
	}
	if onChunk != nil {
		onChunk(engine.Chunk{Text: "mock completion"})
	}
	return modeltypes.GenerateResult{Text: "mock completion", FinishReason: modeltypes.FinishReasonEogToken}, nil
}

func (m *MockEngine) RunEmbedding(ctx context.Context, handle engine.Handle, req engine.EmbeddingRequest) (modeltypes.EmbeddingsResult, error) {
	m.mu.Lock()
	m.EmbeddingCalls = append(m.EmbeddingCalls, req)
	m.mu.Unlock()

	if m.RunEmbeddingFunc != nil {
		return m.RunEmbeddingFunc(ctx, handle, req)
	}
	out := make([][]float64, len(req.Input))
	for i := range req.Input {
		out[i] = []float64{0.1, 0.2, 0.3}
	}
	return modeltypes.EmbeddingsResult{Embeddings: out}, nil
}

func (m *MockEngine) RunImageToText(ctx context.Context, handle engine.Handle, req engine.ImageToTextRequest) (modeltypes.ImageToTextResult, error) {
	if m.RunImageToTextFunc != nil {
		return m.RunImageToTextFunc(ctx, handle, req)
	}
	return modeltypes.ImageToTextResult{Text: "a mock image description", FinishReason: modeltypes.FinishReasonEogToken}, nil
}

func (m *MockEngine) RunSpeechToText(ctx context.Context, handle engine.Handle, req engine.SpeechToTextRequest) (modeltypes.TranscriptionResult, error) {
	if m.RunSpeechToTextFunc != nil {
		return m.RunSpeechToTextFunc(ctx, handle, req)
	}
	return modeltypes.TranscriptionResult{Text: "mock transcription"}, nil
}

// CallCounts returns how many times each run method has been invoked, for
// assertions that don't care about request contents.
func (m *MockEngine) CallCounts() (chat, text, embedding int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ChatCalls), len(m.TextCalls), len(m.EmbeddingCalls)
}

func intPtr(v int64) *int64 { return &v }

var _ engine.Engine = (*MockEngine)(nil)

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hearthai/hearth/pkg/engine"
	"github.com/hearthai/hearth/pkg/hearth"
	"github.com/hearthai/hearth/pkg/modelspec"
	"github.com/hearthai/hearth/pkg/pool"
	"github.com/hearthai/hearth/pkg/store"
	"github.com/hearthai/hearth/pkg/testutil"
)

func newTestRouter(t *testing.T) (http.Handler, *testutil.MockEngine) {
	t.Helper()

	st, err := store.New(store.Options{ModelsRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	if err := st.Register(modelspec.ModelSpec{
		ID:           "chat-1",
		Task:         modelspec.TaskTextCompletion,
		Engine:       "mock",
		Source:       modelspec.Source{File: "weights.bin"},
		MaxInstances: 1,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := st.Register(modelspec.ModelSpec{
		ID:           "embed-1",
		Task:         modelspec.TaskEmbedding,
		Engine:       "mock",
		Source:       modelspec.Source{File: "embed.bin"},
		MaxInstances: 1,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	mock := &testutil.MockEngine{}
	p := pool.New(pool.Options{
		Store:       st,
		Concurrency: 4,
		EngineFactory: func(spec modelspec.ModelSpec) (engine.Engine, error) {
			return mock, nil
		},
	})
	t.Cleanup(func() { _ = p.Dispose(context.Background()) })

	srv := hearth.New(hearth.Options{Store: st, Pool: p})
	return NewRouter(srv, st), mock
}

func TestChatCompletions_NonStreaming(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t)

	body := `{"model":"chat-1","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/openai/v1/chat/completions", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Choices) != 1 || resp.Choices[0].Message.Content != "mock response" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Choices[0].FinishReason != "stop" {
		t.Errorf("finish_reason = %q, want stop", resp.Choices[0].FinishReason)
	}
}

func TestChatCompletions_Streaming(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t)

	body := `{"model":"chat-1","messages":[{"role":"user","content":"hi"}],"stream":true}`
	req := httptest.NewRequest(http.MethodPost, "/openai/v1/chat/completions", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	out := rec.Body.String()
	if !bytes.Contains([]byte(out), []byte("data: [DONE]")) {
		t.Errorf("stream did not terminate with [DONE]: %s", out)
	}
	if !bytes.Contains([]byte(out), []byte("mock")) {
		t.Errorf("stream did not carry any generated text: %s", out)
	}
}

func TestChatCompletions_UnknownModelReturns400(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t)

	body := `{"model":"missing","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/openai/v1/chat/completions", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChatCompletions_MissingModelFieldReturns400(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t)

	body := `{"messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/openai/v1/chat/completions", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCompletions_ReturnsText(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t)

	body := `{"model":"chat-1","prompt":"once upon a time"}`
	req := httptest.NewRequest(http.MethodPost, "/openai/v1/completions", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Choices []struct {
			Text string `json:"text"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Choices) != 1 || resp.Choices[0].Text != "mock completion" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestEmbeddings_ReturnsVectors(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t)

	body := `{"model":"embed-1","input":["a","b"]}`
	req := httptest.NewRequest(http.MethodPost, "/openai/v1/embeddings", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Errorf("len(Data) = %d, want 2", len(resp.Data))
	}
}

func TestEmbeddings_SingleStringInput(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t)

	body := `{"model":"embed-1","input":"a single string"}`
	req := httptest.NewRequest(http.MethodPost, "/openai/v1/embeddings", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestListModels_ReturnsRegisteredModels(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/openai/v1/models", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Errorf("len(Data) = %d, want 2", len(resp.Data))
	}
}

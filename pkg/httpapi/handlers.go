package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hearthai/hearth/pkg/engine"
	"github.com/hearthai/hearth/pkg/hearth"
	"github.com/hearthai/hearth/pkg/herrors"
	"github.com/hearthai/hearth/pkg/store"
	"github.com/hearthai/hearth/pkg/task"
)

type handlers struct {
	srv   *hearth.Server
	store *store.Store
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps an operation error to the status codes spec.md §6
// prescribes: 400 for bad requests/unknown models, 500 otherwise.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if herrors.IsValidationError(err) || errors.Is(err, herrors.ErrModelNotFound) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{"message": err.Error()},
	})
}

func (h *handlers) listModels(w http.ResponseWriter, r *http.Request) {
	specs := h.store.List()
	data := make([]map[string]interface{}, 0, len(specs))
	for _, s := range specs {
		data = append(data, map[string]interface{}{
			"id":     s.ID,
			"object": "model",
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"object": "list", "data": data})
}

func (h *handlers) completions(w http.ResponseWriter, r *http.Request) {
	var body completionRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, herrors.NewValidationError("body", "invalid request: "+err.Error(), err))
		return
	}
	if body.Model == "" {
		writeError(w, herrors.NewValidationError("model", "model is required", nil))
		return
	}

	req := toCompletionRequest(body)
	result, err := h.srv.ProcessCompletion(r.Context(), body.Model, req, task.Config{})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":      "cmpl-" + uuid.NewString(),
		"object":  "text_completion",
		"created": time.Now().Unix(),
		"model":   body.Model,
		"choices": []map[string]interface{}{{
			"index":         0,
			"text":          result.Text,
			"finish_reason": openAIFinishReason(result.FinishReason),
		}},
		"usage": toOpenAIUsage(result.Usage),
	})
}

func (h *handlers) chatCompletions(w http.ResponseWriter, r *http.Request) {
	var body chatCompletionRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, herrors.NewValidationError("body", "invalid request: "+err.Error(), err))
		return
	}
	if body.Model == "" {
		writeError(w, herrors.NewValidationError("model", "model is required", nil))
		return
	}

	req := toChatCompletionRequest(body)
	id := "chatcmpl-" + uuid.NewString()

	if body.Stream {
		h.streamChatCompletion(w, r, id, body.Model, req)
		return
	}

	result, err := h.srv.ProcessChatCompletion(r.Context(), body.Model, req, task.Config{})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":      id,
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   body.Model,
		"choices": []map[string]interface{}{{
			"index":         0,
			"message":       openAIMessage{Role: "assistant", Content: result.Text},
			"finish_reason": openAIFinishReason(result.FinishReason),
		}},
		"usage": toOpenAIUsage(result.Usage),
	})
}

// streamChatCompletion runs the chat task with an OnChunk callback that
// writes one SSE event per chunk, then a final event carrying the finish
// reason, terminated by "data: [DONE]".
func (h *handlers) streamChatCompletion(w http.ResponseWriter, r *http.Request, id, model string, req engine.ChatCompletionRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("streaming unsupported by this transport"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeChunk := func(delta string, finishReason *string) {
		choice := map[string]interface{}{
			"index": 0,
			"delta": map[string]string{},
		}
		if delta != "" {
			choice["delta"] = map[string]string{"content": delta}
		}
		if finishReason != nil {
			choice["finish_reason"] = *finishReason
		}
		payload, _ := json.Marshal(map[string]interface{}{
			"id":      id,
			"object":  "chat.completion.chunk",
			"created": time.Now().Unix(),
			"model":   model,
			"choices": []map[string]interface{}{choice},
		})
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	cfg := task.Config{OnChunk: func(c engine.Chunk) {
		if c.Text != "" {
			writeChunk(c.Text, nil)
		}
	}}

	result, err := h.srv.ProcessChatCompletion(r.Context(), model, req, cfg)
	if err != nil {
		payload, _ := json.Marshal(map[string]string{"message": err.Error()})
		fmt.Fprintf(w, "data: {\"error\":%s}\n\n", payload)
		flusher.Flush()
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
		return
	}

	reason := openAIFinishReason(result.FinishReason)
	writeChunk("", &reason)
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func (h *handlers) embeddings(w http.ResponseWriter, r *http.Request) {
	var body embeddingRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, herrors.NewValidationError("body", "invalid request: "+err.Error(), err))
		return
	}
	if body.Model == "" {
		writeError(w, herrors.NewValidationError("model", "model is required", nil))
		return
	}
	input, err := decodeEmbeddingInput(body.Input)
	if err != nil {
		writeError(w, herrors.NewValidationError("input", "invalid input: "+err.Error(), err))
		return
	}

	result, err := h.srv.ProcessEmbedding(r.Context(), body.Model, engine.EmbeddingRequest{Input: input})
	if err != nil {
		writeError(w, err)
		return
	}

	data := make([]map[string]interface{}, 0, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		data = append(data, map[string]interface{}{
			"index":     i,
			"object":    "embedding",
			"embedding": emb,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"object": "list",
		"data":   data,
		"model":  body.Model,
		"usage": map[string]interface{}{
			"prompt_tokens": result.Usage.InputTokens,
			"total_tokens":  result.Usage.TotalTokens,
		},
	})
}

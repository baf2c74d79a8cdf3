package httpapi

import (
	"encoding/json"

	"github.com/hearthai/hearth/pkg/engine"
	"github.com/hearthai/hearth/pkg/modeltypes"
)

// openAIMessage is one message in an OpenAI chat/completions request or response.
type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openAIStopSequences decodes OpenAI's "stop" field, which may be a bare
// string or a string array, always normalizing to a slice.
type openAIStopSequences []string

func (s *openAIStopSequences) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single != "" {
			*s = []string{single}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

type chatCompletionRequestBody struct {
	Model            string               `json:"model"`
	Messages         []openAIMessage      `json:"messages"`
	MaxTokens        *int                 `json:"max_tokens,omitempty"`
	Temperature      *float64             `json:"temperature,omitempty"`
	TopP             *float64             `json:"top_p,omitempty"`
	Stop             openAIStopSequences  `json:"stop,omitempty"`
	LogitBias        map[string]float64   `json:"logit_bias,omitempty"`
	FrequencyPenalty *float64             `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64             `json:"presence_penalty,omitempty"`
	Seed             *int64               `json:"seed,omitempty"`
	Stream           bool                 `json:"stream,omitempty"`
}

type completionRequestBody struct {
	Model       string              `json:"model"`
	Prompt      string              `json:"prompt"`
	MaxTokens   *int                `json:"max_tokens,omitempty"`
	Temperature *float64            `json:"temperature,omitempty"`
	TopP        *float64            `json:"top_p,omitempty"`
	Stop        openAIStopSequences `json:"stop,omitempty"`
	Stream      bool                `json:"stream,omitempty"`
}

type embeddingRequestBody struct {
	Model string          `json:"model"`
	Input json.RawMessage `json:"input"`
}

// decodeEmbeddingInput normalizes OpenAI's "input" field (a single string or
// an array of strings) to a slice.
func decodeEmbeddingInput(raw json.RawMessage) ([]string, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, err
	}
	return many, nil
}

func toChatCompletionRequest(body chatCompletionRequestBody) engine.ChatCompletionRequest {
	req := engine.ChatCompletionRequest{
		Temperature:      body.Temperature,
		TopP:             body.TopP,
		MaxTokens:        body.MaxTokens,
		Seed:             body.Seed,
		Stop:             []string(body.Stop),
		FrequencyPenalty: body.FrequencyPenalty,
		PresencePenalty:  body.PresencePenalty,
	}
	if len(body.LogitBias) > 0 {
		req.TokenBias = body.LogitBias
	}
	req.Messages = make([]modeltypes.Message, 0, len(body.Messages))
	for _, m := range body.Messages {
		req.Messages = append(req.Messages, modeltypes.Message{
			Role:    modeltypes.MessageRole(m.Role),
			Content: []modeltypes.ContentPart{modeltypes.TextContent{Text: m.Content}},
		})
	}
	return req
}

func toCompletionRequest(body completionRequestBody) engine.CompletionRequest {
	return engine.CompletionRequest{
		Prompt:      body.Prompt,
		Temperature: body.Temperature,
		TopP:        body.TopP,
		MaxTokens:   body.MaxTokens,
		Stop:        []string(body.Stop),
	}
}

// openAIFinishReason maps a core FinishReason to its OpenAI spelling, per
// spec.md §6's field mapping table. eogToken and stopTrigger both surface as
// "stop" (OpenAI has no notion of the stop-sequence-vs-natural-end
// distinction); cancel, timeout, and abort finishes also map to "stop",
// matching the partial output they carry being indistinguishable, from a
// client's perspective, from a natural stop.
func openAIFinishReason(fr modeltypes.FinishReason) string {
	switch fr {
	case modeltypes.FinishReasonMaxTokens:
		return "length"
	case modeltypes.FinishReasonFunctionCall:
		return "tool_calls"
	default:
		return "stop"
	}
}

type openAIUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

func toOpenAIUsage(u modeltypes.Usage) openAIUsage {
	return openAIUsage{
		PromptTokens:     u.GetInputTokens(),
		CompletionTokens: u.GetOutputTokens(),
		TotalTokens:      u.GetTotalTokens(),
	}
}

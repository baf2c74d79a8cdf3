package modeltypes

// GenerateResult is the outcome of a chat or text completion task.
type GenerateResult struct {
	Text         string       `json:"text"`
	ToolCalls    []ToolCall   `json:"toolCalls,omitempty"`
	FinishReason FinishReason `json:"finishReason"`
	Usage        Usage        `json:"usage"`
	Warnings     []Warning    `json:"warnings,omitempty"`
}

// EmbeddingResult is the outcome of a single-input embedding task.
type EmbeddingResult struct {
	Embedding []float64      `json:"embedding"`
	Usage     EmbeddingUsage `json:"usage"`
}

// EmbeddingsResult is the outcome of a batch embedding task.
type EmbeddingsResult struct {
	Embeddings [][]float64    `json:"embeddings"`
	Usage      EmbeddingUsage `json:"usage"`
}

// TranscriptionResult is the outcome of a speech-to-text task.
type TranscriptionResult struct {
	Text       string                   `json:"text"`
	Timestamps []TranscriptionTimestamp `json:"timestamps,omitempty"`
	Usage      TranscriptionUsage       `json:"usage"`
}

// TranscriptionTimestamp marks a transcribed segment's position in the audio.
type TranscriptionTimestamp struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// ImageToTextResult is the outcome of an image captioning / vision-to-text task.
type ImageToTextResult struct {
	Text         string       `json:"text"`
	FinishReason FinishReason `json:"finishReason"`
	Usage        Usage        `json:"usage"`
}

// StepResult captures one turn of a task's tool-call loop, used internally
// by the task executor to accumulate usage and assemble the final GenerateResult.
type StepResult struct {
	StepNumber   int          `json:"stepNumber"`
	Text         string       `json:"text"`
	ToolCalls    []ToolCall   `json:"toolCalls,omitempty"`
	ToolResults  []ToolResult `json:"toolResults,omitempty"`
	FinishReason FinishReason `json:"finishReason"`
	Usage        Usage        `json:"usage"`
	Warnings     []Warning    `json:"warnings,omitempty"`
}

package modeltypes

// MessageRole identifies who sent a message in a conversation.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Message is a single turn in a chat completion request.
type Message struct {
	Role    MessageRole   `json:"role"`
	Content []ContentPart `json:"content"`
	Name    string        `json:"name,omitempty"`
}

// ContentPart is one block of a Message's content.
type ContentPart interface {
	ContentType() string
}

// TextContent is plain text content.
type TextContent struct {
	Text string `json:"text"`
}

func (t TextContent) ContentType() string { return "text" }

// ImageContent is inline or referenced image content, used by vision-capable engines.
type ImageContent struct {
	Image    []byte `json:"image,omitempty"`
	MimeType string `json:"mimeType"`
	URL      string `json:"url,omitempty"`
}

func (i ImageContent) ContentType() string { return "image" }

// AudioContent is inline audio content, used by speech-to-text engines.
type AudioContent struct {
	Audio    []byte `json:"audio"`
	MimeType string `json:"mimeType"`
}

func (a AudioContent) ContentType() string { return "audio" }

// ToolResultContent carries the outcome of a previously requested tool call
// back into the conversation so the model can continue generation.
type ToolResultContent struct {
	ToolCallID string      `json:"toolCallId"`
	ToolName   string      `json:"toolName"`
	Result     interface{} `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
}

func (t ToolResultContent) ContentType() string { return "tool-result" }

// Flatten concatenates the text of every TextContent part, in order,
// ignoring non-text parts. Used to build the context fingerprint of a message.
func Flatten(parts []ContentPart) string {
	var out string
	for _, p := range parts {
		if t, ok := p.(TextContent); ok {
			out += t.Text
		}
	}
	return out
}

// SimpleTextResult builds a ToolResultContent carrying a plain string result.
func SimpleTextResult(toolCallID, toolName, result string) ToolResultContent {
	return ToolResultContent{ToolCallID: toolCallID, ToolName: toolName, Result: result}
}

// ErrorResult builds a ToolResultContent representing a failed tool execution.
func ErrorResult(toolCallID, toolName, errorMsg string) ToolResultContent {
	return ToolResultContent{ToolCallID: toolCallID, ToolName: toolName, Error: errorMsg}
}

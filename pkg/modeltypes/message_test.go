package modeltypes

import (
	"testing"
)

func TestTextContent_ContentType(t *testing.T) {
	t.Parallel()

	tc := TextContent{Text: "Hello"}
	if tc.ContentType() != "text" {
		t.Errorf("expected 'text', got %s", tc.ContentType())
	}
}

func TestImageContent_ContentType(t *testing.T) {
	t.Parallel()

	ic := ImageContent{Image: []byte("fake"), MimeType: "image/png"}
	if ic.ContentType() != "image" {
		t.Errorf("expected 'image', got %s", ic.ContentType())
	}
}

func TestAudioContent_ContentType(t *testing.T) {
	t.Parallel()

	ac := AudioContent{Audio: []byte("fake"), MimeType: "audio/wav"}
	if ac.ContentType() != "audio" {
		t.Errorf("expected 'audio', got %s", ac.ContentType())
	}
}

func TestToolResultContent_ContentType(t *testing.T) {
	t.Parallel()

	trc := ToolResultContent{ToolCallID: "1", ToolName: "test", Result: "ok"}
	if trc.ContentType() != "tool-result" {
		t.Errorf("expected 'tool-result', got %s", trc.ContentType())
	}
}

func TestMessageRoles(t *testing.T) {
	t.Parallel()

	if RoleSystem != "system" {
		t.Errorf("expected 'system', got %s", RoleSystem)
	}
	if RoleUser != "user" {
		t.Errorf("expected 'user', got %s", RoleUser)
	}
	if RoleAssistant != "assistant" {
		t.Errorf("expected 'assistant', got %s", RoleAssistant)
	}
	if RoleTool != "tool" {
		t.Errorf("expected 'tool', got %s", RoleTool)
	}
}

func TestMessage_Content(t *testing.T) {
	t.Parallel()

	msg := Message{
		Role: RoleUser,
		Content: []ContentPart{
			TextContent{Text: "Hello"},
			ImageContent{MimeType: "image/png"},
		},
		Name: "user1",
	}

	if msg.Role != RoleUser {
		t.Errorf("expected role 'user', got %s", msg.Role)
	}
	if len(msg.Content) != 2 {
		t.Errorf("expected 2 content parts, got %d", len(msg.Content))
	}
	if msg.Name != "user1" {
		t.Errorf("expected name 'user1', got %s", msg.Name)
	}
}

func TestFlatten_ConcatenatesTextPartsOnly(t *testing.T) {
	t.Parallel()

	parts := []ContentPart{
		TextContent{Text: "Hello, "},
		ImageContent{MimeType: "image/png"},
		TextContent{Text: "world"},
	}

	if got := Flatten(parts); got != "Hello, world" {
		t.Errorf("expected 'Hello, world', got %q", got)
	}
}

func TestFlatten_Empty(t *testing.T) {
	t.Parallel()

	if got := Flatten(nil); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestSimpleTextResult(t *testing.T) {
	t.Parallel()

	r := SimpleTextResult("call_1", "search", "found it")
	if r.ToolCallID != "call_1" || r.ToolName != "search" || r.Result != "found it" {
		t.Errorf("unexpected result: %+v", r)
	}
}

func TestErrorResult(t *testing.T) {
	t.Parallel()

	r := ErrorResult("call_1", "search", "timed out")
	if r.Error != "timed out" {
		t.Errorf("expected error 'timed out', got %q", r.Error)
	}
}

package engine

import (
	"testing"

	"github.com/hearthai/hearth/pkg/modelspec"
)

func TestCapability_Has(t *testing.T) {
	t.Parallel()

	c := CapChatCompletion | CapEmbedding
	if !c.Has(CapChatCompletion) {
		t.Fatal("expected CapChatCompletion to be set")
	}
	if !c.Has(CapEmbedding) {
		t.Fatal("expected CapEmbedding to be set")
	}
	if c.Has(CapSpeechToText) {
		t.Fatal("did not expect CapSpeechToText to be set")
	}
	if !c.Has(CapChatCompletion | CapEmbedding) {
		t.Fatal("expected combined mask to report both bits set")
	}
}

func TestCapabilityForTask(t *testing.T) {
	t.Parallel()

	cases := []struct {
		task modelspec.TaskKind
		want Capability
	}{
		{modelspec.TaskTextCompletion, CapChatCompletion | CapTextCompletion},
		{modelspec.TaskEmbedding, CapEmbedding},
		{modelspec.TaskImageToText, CapImageToText},
		{modelspec.TaskSpeechToText, CapSpeechToText},
	}
	for _, c := range cases {
		if got := CapabilityForTask(c.task); got != c.want {
			t.Fatalf("CapabilityForTask(%v) = %v, want %v", c.task, got, c.want)
		}
	}
}

func TestUnsupportedTaskError_Error(t *testing.T) {
	t.Parallel()

	err := &UnsupportedTaskError{EngineName: "llama-cpp", Task: modelspec.TaskEmbedding}
	want := `engine "llama-cpp" does not support task "embedding"`
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

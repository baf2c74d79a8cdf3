package instance

import (
	"testing"

	"github.com/hearthai/hearth/pkg/modeltypes"
)

func msg(role modeltypes.MessageRole, text string) modeltypes.Message {
	return modeltypes.Message{Role: role, Content: []modeltypes.ContentPart{modeltypes.TextContent{Text: text}}}
}

func TestFingerprint_DeterministicForSameMessages(t *testing.T) {
	t.Parallel()

	messages := []modeltypes.Message{
		msg(modeltypes.RoleSystem, "be helpful"),
		msg(modeltypes.RoleUser, "hello"),
	}
	a := Fingerprint(messages, false)
	b := Fingerprint(messages, false)
	if a != b || a == "" {
		t.Fatalf("expected deterministic non-empty fingerprint, got %q and %q", a, b)
	}
}

func TestFingerprint_DiffersOnContentChange(t *testing.T) {
	t.Parallel()

	a := Fingerprint([]modeltypes.Message{msg(modeltypes.RoleUser, "hello")}, false)
	b := Fingerprint([]modeltypes.Message{msg(modeltypes.RoleUser, "goodbye")}, false)
	if a == b {
		t.Fatal("expected different fingerprints for different content")
	}
}

func TestFingerprint_DropsToolMessages(t *testing.T) {
	t.Parallel()

	withTool := []modeltypes.Message{
		msg(modeltypes.RoleUser, "hello"),
		msg(modeltypes.RoleTool, "tool output that should be ignored"),
	}
	withoutTool := []modeltypes.Message{
		msg(modeltypes.RoleUser, "hello"),
	}
	if Fingerprint(withTool, false) != Fingerprint(withoutTool, false) {
		t.Fatal("expected tool messages to be dropped from the fingerprint")
	}
}

func TestFingerprint_DropsEmptyTextMessages(t *testing.T) {
	t.Parallel()

	withEmpty := []modeltypes.Message{
		msg(modeltypes.RoleUser, "hello"),
		{Role: modeltypes.RoleAssistant, Content: nil},
	}
	withoutEmpty := []modeltypes.Message{
		msg(modeltypes.RoleUser, "hello"),
	}
	if Fingerprint(withEmpty, false) != Fingerprint(withoutEmpty, false) {
		t.Fatal("expected empty-text messages to be dropped from the fingerprint")
	}
}

func TestFingerprint_OnlyLeadingSystemMessageQualifies(t *testing.T) {
	t.Parallel()

	oneSystem := []modeltypes.Message{
		msg(modeltypes.RoleSystem, "be helpful"),
		msg(modeltypes.RoleUser, "hello"),
	}
	twoSystem := []modeltypes.Message{
		msg(modeltypes.RoleSystem, "be helpful"),
		msg(modeltypes.RoleSystem, "a second system message that must be dropped"),
		msg(modeltypes.RoleUser, "hello"),
	}
	if Fingerprint(oneSystem, false) != Fingerprint(twoSystem, false) {
		t.Fatal("expected only the leading system message to contribute to the fingerprint")
	}
}

func TestFingerprint_DropLastRemovesFinalMessage(t *testing.T) {
	t.Parallel()

	messages := []modeltypes.Message{
		msg(modeltypes.RoleUser, "hello"),
		msg(modeltypes.RoleAssistant, "hi there"),
	}
	prefix := Fingerprint(messages[:1], false)
	dropped := Fingerprint(messages, true)
	if prefix != dropped {
		t.Fatalf("expected dropLast fingerprint to equal the prefix's fingerprint, got %q vs %q", dropped, prefix)
	}
}

func TestFingerprint_EmptyForNoQualifyingMessages(t *testing.T) {
	t.Parallel()

	messages := []modeltypes.Message{msg(modeltypes.RoleTool, "ignored")}
	if got := Fingerprint(messages, false); got != "" {
		t.Fatalf("expected empty fingerprint, got %q", got)
	}
}

func TestTextFingerprint_DeterministicAndDropLastIsEmpty(t *testing.T) {
	t.Parallel()

	a := TextFingerprint("complete this prompt", false)
	b := TextFingerprint("complete this prompt", false)
	if a != b || a == "" {
		t.Fatal("expected deterministic non-empty text fingerprint")
	}
	if got := TextFingerprint("complete this prompt", true); got != "" {
		t.Fatalf("expected empty fingerprint for dropLast on a text completion, got %q", got)
	}
}

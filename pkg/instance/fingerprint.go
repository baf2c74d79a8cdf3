package instance

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/hearthai/hearth/pkg/modeltypes"
)

// Fingerprint computes the context fingerprint for a chat request: a SHA-1
// of "role:flattened-text" for each qualifying message, newline-joined.
// Only the leading system message qualifies (later system messages are
// dropped, matching a single persistent system prompt); tool messages and
// messages with no text content are dropped entirely. If dropLast is true,
// the final qualifying message is removed before hashing — used to compute
// the prefix-match fingerprint a follow-up turn would produce.
func Fingerprint(messages []modeltypes.Message, dropLast bool) string {
	lines := qualifyingLines(messages)
	if dropLast && len(lines) > 0 {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return ""
	}
	return hashLines(lines)
}

// TextFingerprint computes the fingerprint for a text-completion request:
// the hash of the prompt text alone, treated as a single line.
func TextFingerprint(prompt string, dropLast bool) string {
	if dropLast || prompt == "" {
		// A bare prompt has no notion of "drop the last message"; a
		// dropLast request against a text completion degenerates to no
		// affinity, matching the scheduler's prefix-match being
		// meaningless for single-prompt requests.
		return ""
	}
	return hashLines([]string{prompt})
}

func qualifyingLines(messages []modeltypes.Message) []string {
	lines := make([]string, 0, len(messages))
	sawSystem := false
	for _, msg := range messages {
		if msg.Role == modeltypes.RoleTool {
			continue
		}
		if msg.Role == modeltypes.RoleSystem {
			if sawSystem {
				continue
			}
			sawSystem = true
		}
		text := modeltypes.Flatten(msg.Content)
		if text == "" {
			continue
		}
		lines = append(lines, string(msg.Role)+":"+text)
	}
	return lines
}

func hashLines(lines []string) string {
	h := sha1.New()
	h.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}

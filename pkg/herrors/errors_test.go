package herrors

import (
	"errors"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	err := &ValidationError{Field: "temperature", Message: "must be >= 0"}
	errStr := err.Error()
	if !contains(errStr, "temperature") {
		t.Error("expected error to contain field name")
	}
	if !contains(errStr, "must be >= 0") {
		t.Error("expected error to contain message")
	}
}

func TestValidationError_WithoutField(t *testing.T) {
	t.Parallel()

	err := &ValidationError{Message: "malformed request"}
	if !contains(err.Error(), "malformed request") {
		t.Error("expected error to contain message")
	}
}

func TestValidationError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("underlying error")
	err := &ValidationError{Cause: cause}
	if err.Unwrap() != cause {
		t.Error("expected Unwrap to return cause")
	}
}

func TestIsValidationError(t *testing.T) {
	t.Parallel()

	err := NewValidationError("field", "bad value", nil)
	if !IsValidationError(err) {
		t.Error("expected IsValidationError to return true")
	}
	if IsValidationError(errors.New("plain error")) {
		t.Error("expected IsValidationError to return false for unrelated error")
	}
}

func TestChecksumError_Error(t *testing.T) {
	t.Parallel()

	err := NewChecksumError("/models/llama.gguf", "abc123", "def456")
	errStr := err.Error()
	if !contains(errStr, "abc123") || !contains(errStr, "def456") {
		t.Error("expected error to contain both digests")
	}
}

func TestDownloadError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := NewDownloadError("https://example.com/model.bin", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to unwrap to cause")
	}
}

func TestPreparationError_WrapsDownloadFailure(t *testing.T) {
	t.Parallel()

	dlErr := NewDownloadError("https://example.com/model.bin", errors.New("timeout"))
	prepErr := NewPreparationError("llama-7b", dlErr)

	if !IsPreparationError(prepErr) {
		t.Error("expected IsPreparationError to return true")
	}
	var got *DownloadError
	if !errors.As(prepErr, &got) {
		t.Error("expected errors.As to find the wrapped DownloadError")
	}
}

func TestLoadError_Error(t *testing.T) {
	t.Parallel()

	err := NewLoadError("llama-7b", "out of memory", nil)
	if !IsLoadError(err) {
		t.Error("expected IsLoadError to return true")
	}
	if !contains(err.Error(), "llama-7b") {
		t.Error("expected error to contain model id")
	}
}

func TestEngineRuntimeError_Error(t *testing.T) {
	t.Parallel()

	cause := errors.New("cuda error")
	err := NewEngineRuntimeError("inst-1", "generation crashed", cause)
	if !IsEngineRuntimeError(err) {
		t.Error("expected IsEngineRuntimeError to return true")
	}
	if !contains(err.Error(), "cuda error") {
		t.Error("expected error to contain cause")
	}
}

func TestShutdownError_Error(t *testing.T) {
	t.Parallel()

	err := NewShutdownError("pool")
	if !contains(err.Error(), "pool") {
		t.Error("expected error to name the shutting-down component")
	}
}

func TestToolExecutionError_Error(t *testing.T) {
	t.Parallel()

	err := NewToolExecutionError("search", "call_123", "network timeout", nil)
	errStr := err.Error()
	if !contains(errStr, "search") || !contains(errStr, "call_123") {
		t.Error("expected error to contain tool name and call id")
	}
}

func TestToolExecutionError_WithoutCallID(t *testing.T) {
	t.Parallel()

	err := NewToolExecutionError("search", "", "failed", nil)
	if !contains(err.Error(), "search") {
		t.Error("expected error to contain tool name")
	}
}

func TestSentinelErrors(t *testing.T) {
	t.Parallel()

	sentinels := []error{
		ErrModelNotFound,
		ErrDuplicateModel,
		ErrToolNotFound,
		ErrUnsupportedCapability,
		ErrDoubleRelease,
		ErrPoolClosed,
		ErrQueueFull,
	}
	for _, s := range sentinels {
		if s == nil {
			t.Error("sentinel error should not be nil")
		}
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && containsHelper(s, substr)
}

func containsHelper(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

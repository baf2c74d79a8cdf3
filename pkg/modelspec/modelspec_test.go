package modelspec

import "testing"

func boolPtr(b bool) *bool { return &b }

func TestValidate_RejectsEmptyID(t *testing.T) {
	t.Parallel()

	m := ModelSpec{Task: TaskTextCompletion, Engine: "llama", Source: Source{File: "model.gguf"}}
	if err := m.Validate(); err == nil {
		t.Fatal("expected validation error for empty id")
	}
}

func TestValidate_RejectsBadIDCharacters(t *testing.T) {
	t.Parallel()

	m := ModelSpec{ID: "bad id!", Task: TaskTextCompletion, Engine: "llama", Source: Source{File: "m.gguf"}}
	if err := m.Validate(); err == nil {
		t.Fatal("expected validation error for invalid id characters")
	}
}

func TestValidate_RequiresSourceUnlessCustomEngine(t *testing.T) {
	t.Parallel()

	m := ModelSpec{ID: "m1", Task: TaskTextCompletion, Engine: "llama"}
	if err := m.Validate(); err == nil {
		t.Fatal("expected validation error for missing source")
	}

	custom := ModelSpec{ID: "m1", Task: TaskTextCompletion, Engine: "custom"}
	if err := custom.Validate(); err != nil {
		t.Fatalf("expected custom engine to skip source requirement, got %v", err)
	}
}

func TestValidate_RejectsUnknownTask(t *testing.T) {
	t.Parallel()

	m := ModelSpec{ID: "m1", Task: "bogus", Engine: "llama", Source: Source{File: "m.gguf"}}
	if err := m.Validate(); err == nil {
		t.Fatal("expected validation error for unknown task")
	}
}

func TestValidate_RejectsMaxLessThanMin(t *testing.T) {
	t.Parallel()

	m := ModelSpec{
		ID: "m1", Task: TaskTextCompletion, Engine: "llama", Source: Source{File: "m.gguf"},
		MinInstances: 3, MaxInstances: 1,
	}
	if err := m.Validate(); err == nil {
		t.Fatal("expected validation error for maxInstances < minInstances")
	}
}

func TestValidate_AcceptsWellFormedSpec(t *testing.T) {
	t.Parallel()

	m := ModelSpec{
		ID: "llama-7b", Task: TaskTextCompletion, Engine: "llama",
		Source: Source{URL: "https://example.com/model.gguf", SHA256: "abc"},
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestEffectivePreparationMode_MinInstancesForcesBlocking(t *testing.T) {
	t.Parallel()

	m := ModelSpec{MinInstances: 1, Source: Source{PreparationMode: PreparationAsync}}
	if got := m.EffectivePreparationMode(); got != PreparationBlocking {
		t.Fatalf("expected blocking mode, got %s", got)
	}
}

func TestEffectivePreparationMode_DefaultsToOnDemand(t *testing.T) {
	t.Parallel()

	m := ModelSpec{}
	if got := m.EffectivePreparationMode(); got != PreparationOnDemand {
		t.Fatalf("expected on-demand mode, got %s", got)
	}
}

func TestEffectivePreparationMode_HonorsSourceOverride(t *testing.T) {
	t.Parallel()

	m := ModelSpec{Source: Source{PreparationMode: PreparationAsync}}
	if got := m.EffectivePreparationMode(); got != PreparationAsync {
		t.Fatalf("expected async mode, got %s", got)
	}
}

func TestEffectiveTTLSeconds_DefaultsTo300(t *testing.T) {
	t.Parallel()

	m := ModelSpec{}
	if got := m.EffectiveTTLSeconds(); got != DefaultTTLSeconds {
		t.Fatalf("expected default TTL %d, got %d", DefaultTTLSeconds, got)
	}
}

func TestEffectiveTTLSeconds_ExplicitZeroDisablesCaching(t *testing.T) {
	t.Parallel()

	zero := 0
	m := ModelSpec{TTLSeconds: &zero}
	if got := m.EffectiveTTLSeconds(); got != 0 {
		t.Fatalf("expected 0 (caching disabled), got %d", got)
	}
}

func TestValidate_RejectsNegativeTTL(t *testing.T) {
	t.Parallel()

	negative := -1
	m := ModelSpec{ID: "m1", Task: TaskTextCompletion, Engine: "custom", TTLSeconds: &negative}
	verr := m.Validate()
	if verr == nil || verr.Field != "ttlSeconds" {
		t.Fatalf("expected ttlSeconds validation error, got %v", verr)
	}
}

func TestDevice_WantsGPU(t *testing.T) {
	t.Parallel()

	if (Device{}).WantsGPU() {
		t.Fatal("expected auto (nil) GPU to resolve to false")
	}
	if !(Device{GPU: boolPtr(true)}).WantsGPU() {
		t.Fatal("expected explicit true to resolve to true")
	}
	if (Device{GPU: boolPtr(false)}).WantsGPU() {
		t.Fatal("expected explicit false to resolve to false")
	}
}

func TestWithDefaults_SetsMaxInstances(t *testing.T) {
	t.Parallel()

	m := ModelSpec{ID: "m1"}.WithDefaults()
	if m.MaxInstances != 1 {
		t.Fatalf("expected default MaxInstances 1, got %d", m.MaxInstances)
	}
}

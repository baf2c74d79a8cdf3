// Package modelspec defines the declarative model catalog entries consumed
// by the store, pool, and scheduler.
package modelspec

import (
	"regexp"

	"github.com/hearthai/hearth/pkg/herrors"
)

// TaskKind identifies the kind of inference operation a model performs.
type TaskKind string

const (
	TaskTextCompletion TaskKind = "text-completion"
	TaskEmbedding      TaskKind = "embedding"
	TaskImageToText    TaskKind = "image-to-text"
	TaskSpeechToText   TaskKind = "speech-to-text"
)

// PreparationMode controls when the store materializes a model's artifact on disk.
type PreparationMode string

const (
	// PreparationOnDemand defers download until the pool first needs an instance.
	PreparationOnDemand PreparationMode = "on-demand"
	// PreparationBlocking makes server startup await preparation.
	PreparationBlocking PreparationMode = "blocking"
	// PreparationAsync starts preparation in the background at startup.
	PreparationAsync PreparationMode = "async"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_:\-.]+$`)

// Source describes where a model's weights come from and how to verify them.
type Source struct {
	URL    string `yaml:"url,omitempty" json:"url,omitempty"`
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
	SHA256 string `yaml:"sha256,omitempty" json:"sha256,omitempty"`
	MD5    string `yaml:"md5,omitempty" json:"md5,omitempty"`

	// PreparationMode overrides the spec-level default for this source.
	PreparationMode PreparationMode `yaml:"preparationMode,omitempty" json:"preparationMode,omitempty"`
}

// Device describes the hardware resources an instance of this model should use.
type Device struct {
	// GPU is nil for "auto" (resolves to false, see WantsGPU), or an explicit true/false.
	GPU        *bool `yaml:"gpu,omitempty" json:"gpu,omitempty"`
	CPUThreads int   `yaml:"cpuThreads,omitempty" json:"cpuThreads,omitempty"`
	MemLock    bool  `yaml:"memLock,omitempty" json:"memLock,omitempty"`
}

// Preload describes conversation state to ingest into an instance immediately
// after it loads, so the first real request hits a warm KV cache.
type Preload struct {
	Messages          []PreloadMessage `yaml:"messages,omitempty" json:"messages,omitempty"`
	ToolDocumentation string            `yaml:"toolDocumentation,omitempty" json:"toolDocumentation,omitempty"`
}

// PreloadMessage is one message replayed during Preload.
type PreloadMessage struct {
	Role    string `yaml:"role" json:"role"`
	Content string `yaml:"content" json:"content"`
}

// ModelSpec is a declared, immutable-after-registration catalog entry.
type ModelSpec struct {
	ID     string   `yaml:"id" json:"id"`
	Task   TaskKind `yaml:"task" json:"task"`
	Engine string   `yaml:"engine" json:"engine"`
	Source Source   `yaml:"source" json:"source"`

	ContextSize int `yaml:"contextSize,omitempty" json:"contextSize,omitempty"`

	MinInstances int `yaml:"minInstances" json:"minInstances"`
	MaxInstances int `yaml:"maxInstances" json:"maxInstances"`

	// TTLSeconds is the idle timeout before disposal, or nil if unset (in
	// which case WithDefaults resolves it to DefaultTTLSeconds). An explicit
	// 0 disables caching (eager disposal) — a pointer is required to tell
	// "not set in YAML" apart from "set to 0".
	TTLSeconds *int `yaml:"ttlSeconds" json:"ttlSeconds"`

	Device Device `yaml:"device,omitempty" json:"device,omitempty"`

	CompletionDefaults map[string]interface{} `yaml:"completionDefaults,omitempty" json:"completionDefaults,omitempty"`

	Preload *Preload `yaml:"preload,omitempty" json:"preload,omitempty"`

	Tools     []string          `yaml:"tools,omitempty" json:"tools,omitempty"`
	Grammars  map[string]string `yaml:"grammars,omitempty" json:"grammars,omitempty"`
}

// DefaultTTLSeconds is applied when a ModelSpec omits TTLSeconds.
const DefaultTTLSeconds = 300

// WithDefaults returns a copy of the spec with zero-valued optional fields
// filled to their documented defaults (MaxInstances=1, TTLSeconds=300).
func (m ModelSpec) WithDefaults() ModelSpec {
	if m.MaxInstances == 0 {
		m.MaxInstances = 1
	}
	if m.TTLSeconds == nil {
		ttl := DefaultTTLSeconds
		m.TTLSeconds = &ttl
	}
	return m
}

// Validate checks id format and required fields, returning the first
// violation found. A config author fixes one field, reruns, and sees the
// next, so there is no need to collect every violation at once.
func (m ModelSpec) Validate() *herrors.ValidationError {
	var firstField, firstMsg string
	fail := func(field, msg string) {
		if firstField == "" {
			firstField, firstMsg = field, msg
		}
	}

	if m.ID == "" || !idPattern.MatchString(m.ID) {
		fail("id", "must match [A-Za-z0-9_:\\-.]+ and be non-empty")
	}
	switch m.Task {
	case TaskTextCompletion, TaskEmbedding, TaskImageToText, TaskSpeechToText:
	default:
		fail("task", "must be one of text-completion, embedding, image-to-text, speech-to-text")
	}
	if m.Engine == "" {
		fail("engine", "must be set")
	}
	if m.Engine != "custom" && m.Source.URL == "" && m.Source.File == "" {
		fail("source", "at least one of url/file is required unless engine is the custom composite engine")
	}
	if m.MinInstances < 0 {
		fail("minInstances", "must be >= 0")
	}
	if m.MaxInstances != 0 && m.MaxInstances < m.MinInstances {
		fail("maxInstances", "must be >= minInstances")
	}
	if m.TTLSeconds != nil && *m.TTLSeconds < 0 {
		fail("ttlSeconds", "must be >= 0 (0 disables caching)")
	}

	if firstField != "" {
		return herrors.NewValidationError(firstField, firstMsg, nil)
	}
	return nil
}

// EffectivePreparationMode resolves the mode the store must honor for this
// spec: a Source.PreparationMode override, forced to "blocking" whenever
// MinInstances > 0 (a warm pool cannot exist without a prepared artifact),
// defaulting to "on-demand" otherwise.
func (m ModelSpec) EffectivePreparationMode() PreparationMode {
	if m.MinInstances > 0 {
		return PreparationBlocking
	}
	if m.Source.PreparationMode != "" {
		return m.Source.PreparationMode
	}
	return PreparationOnDemand
}

// EffectiveTTLSeconds returns TTLSeconds, defaulting to DefaultTTLSeconds
// when unset (nil). An explicit 0 means "0 disables caching" per spec.md
// §3 and is returned as-is, not defaulted away.
func (m ModelSpec) EffectiveTTLSeconds() int {
	if m.TTLSeconds == nil {
		return DefaultTTLSeconds
	}
	return *m.TTLSeconds
}

// WantsGPU reports whether this spec's Device configuration requests GPU
// residency. "auto" (GPU == nil) resolves to false: GPU use must be opted in.
func (d Device) WantsGPU() bool {
	return d.GPU != nil && *d.GPU
}

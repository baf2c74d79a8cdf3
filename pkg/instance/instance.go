// Package instance implements Instance, the pool's unit of a single loaded
// model resident in memory, and the context-fingerprint algorithm used by
// the scheduler for affinity matching.
package instance

import (
	"sync"
	"time"

	"github.com/hearthai/hearth/pkg/engine"
)

// State is an Instance's position in its lifecycle.
type State string

const (
	StateLoading   State = "loading"
	StateIdle      State = "idle"
	StateBusy      State = "busy"
	StatePreparing State = "preparing"
	StateDisposing State = "disposing"
	StateError     State = "error"
)

// Instance owns one loaded model in memory. Its state transitions are
// guarded by its own mutex; fingerprint is written only by the task
// executor while busy, and read only while idle (invariant 4).
type Instance struct {
	UID      string
	ModelID  string
	Engine   engine.Engine
	Handle   engine.Handle
	GPU      bool
	CreatedAt time.Time

	mu          sync.Mutex
	state       State
	fingerprint string
	lastUsedAt  time.Time
	useCount    uint64
}

// New constructs an Instance in state loading.
func New(uid, modelID string, eng engine.Engine, handle engine.Handle, gpu bool, now time.Time) *Instance {
	return &Instance{
		UID:       uid,
		ModelID:   modelID,
		Engine:    eng,
		Handle:    handle,
		GPU:       gpu,
		CreatedAt: now,
		state:     StateLoading,
		lastUsedAt: now,
	}
}

// State returns the instance's current lifecycle state.
func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// SetState transitions the instance to state.
func (i *Instance) SetState(state State) {
	i.mu.Lock()
	i.state = state
	i.mu.Unlock()
}

// Fingerprint returns the conversation fingerprint currently resident in
// this instance's KV cache, or empty if none.
func (i *Instance) Fingerprint() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.fingerprint
}

// SetFingerprint updates the resident fingerprint. Callers must only do
// this while the instance is busy (invariant 4); SetFingerprint itself does
// not enforce that, since the task executor is the sole caller and already
// owns the busy/idle transition around it.
func (i *Instance) SetFingerprint(fp string) {
	i.mu.Lock()
	i.fingerprint = fp
	i.mu.Unlock()
}

// ClearFingerprint resets the resident fingerprint, forcing a full context
// replay on next reuse. Used after cancel/timeout/failed completions.
func (i *Instance) ClearFingerprint() {
	i.SetFingerprint("")
}

// LastUsedAt returns the timestamp of the instance's most recent release.
func (i *Instance) LastUsedAt() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastUsedAt
}

// MarkReleased records a release: bumps lastUsedAt and useCount, and
// transitions the instance back to idle.
func (i *Instance) MarkReleased(now time.Time) {
	i.mu.Lock()
	i.state = StateIdle
	i.lastUsedAt = now
	i.useCount++
	i.mu.Unlock()
}

// UseCount returns how many times this instance has completed a task.
func (i *Instance) UseCount() uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.useCount
}

// IdleDuration reports how long the instance has been idle as of now. Only
// meaningful when State() == StateIdle.
func (i *Instance) IdleDuration(now time.Time) time.Duration {
	return now.Sub(i.LastUsedAt())
}

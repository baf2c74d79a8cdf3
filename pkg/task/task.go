// Package task implements the Task Executor: one inference call run against
// one leased Instance, carried through created -> queued -> running ->
// {completed | cancelled | timedout | failed}.
package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hearthai/hearth/pkg/engine"
	"github.com/hearthai/hearth/pkg/herrors"
	"github.com/hearthai/hearth/pkg/instance"
	"github.com/hearthai/hearth/pkg/modeltypes"
)

// State is a Task's position in its lifecycle.
type State string

const (
	StateCreated   State = "created"
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateTimedOut  State = "timedout"
	StateFailed    State = "failed"
)

// DefaultMaxToolSteps caps the tool invoke-and-continue loop as a safety
// ceiling against a model that never stops requesting tool calls.
const DefaultMaxToolSteps = 32

// Config configures a single Process call.
type Config struct {
	// OnChunk is invoked synchronously, in generation order, strictly before
	// the call returns. May be nil.
	OnChunk engine.OnChunk

	// Timeout bounds the whole call, including any tool-call round trips. A
	// zero value means no task-level deadline.
	Timeout time.Duration

	// Shutdown, if non-nil, is closed or signaled when the server is
	// shutting down; an in-flight task is cancelled the same as if its
	// caller signal fired.
	Shutdown <-chan struct{}

	// Grammars is the requesting model's configured grammar set, used to
	// resolve a request's named Grammar field. The built-in "json" grammar
	// is always available even when absent here.
	Grammars map[string]string

	// MaxToolSteps overrides DefaultMaxToolSteps.
	MaxToolSteps int
}

// Result is the outcome of a Process call.
type Result struct {
	modeltypes.GenerateResult
	State State
}

// Task wraps one call against one Instance.
type Task struct {
	ID       string
	Instance *instance.Instance

	mu    sync.Mutex
	state State
}

// New constructs a Task in state created, targeting inst.
func New(id string, inst *instance.Instance) *Task {
	return &Task{ID: id, Instance: inst, state: StateCreated}
}

// State returns the task's current lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// RunChatCompletion drives a chat-completion task to completion, applying
// the context-reset policy, the tool invoke-and-continue loop, and the
// fingerprint update-or-clear rule.
func (t *Task) RunChatCompletion(ctx context.Context, req engine.ChatCompletionRequest, cfg Config) (Result, error) {
	t.setState(StateQueued)

	resolved, err := ResolveGrammar(cfg.Grammars, req.Grammar)
	if err != nil {
		t.setState(StateFailed)
		return Result{State: StateFailed}, herrors.NewValidationError("grammar", err.Error(), err)
	}
	req.Grammar = resolved

	runCtx, cancel, shutdownFired := mergeAbort(ctx, cfg)
	defer cancel()

	originalMessages := req.Messages
	sendReq := t.applyContextResetPolicy(req)

	t.setState(StateRunning)
	result, err := t.runToolLoop(runCtx, sendReq, cfg)

	state, mappedErr := t.resolveChatOutcome(err, originalMessages, result.Text)
	if mappedErr != nil {
		return Result{State: state}, mappedErr
	}
	switch state {
	case StateTimedOut:
		result.FinishReason = modeltypes.FinishReasonTimeout
	case StateCancelled:
		result.FinishReason = cancelFinishReason(shutdownFired)
	}
	return Result{GenerateResult: result, State: state}, nil
}

// RunTextCompletion drives a text-completion task to completion.
func (t *Task) RunTextCompletion(ctx context.Context, req engine.CompletionRequest, cfg Config) (Result, error) {
	t.setState(StateQueued)

	resolved, err := ResolveGrammar(cfg.Grammars, req.Grammar)
	if err != nil {
		t.setState(StateFailed)
		return Result{State: StateFailed}, herrors.NewValidationError("grammar", err.Error(), err)
	}
	req.Grammar = resolved

	runCtx, cancel, shutdownFired := mergeAbort(ctx, cfg)
	defer cancel()

	t.setState(StateRunning)
	result, err := t.Instance.Engine.RunTextCompletion(runCtx, t.Instance.Handle, req, cfg.OnChunk)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		t.setState(StateTimedOut)
		t.Instance.ClearFingerprint()
		result.FinishReason = modeltypes.FinishReasonTimeout
		return Result{GenerateResult: result, State: StateTimedOut}, nil
	case errors.Is(err, context.Canceled):
		t.setState(StateCancelled)
		t.Instance.ClearFingerprint()
		result.FinishReason = cancelFinishReason(shutdownFired)
		return Result{GenerateResult: result, State: StateCancelled}, nil
	case err != nil:
		t.setState(StateFailed)
		t.Instance.ClearFingerprint()
		return Result{State: StateFailed}, herrors.NewEngineRuntimeError(t.Instance.UID, "text completion failed", err)
	default:
		t.setState(StateCompleted)
		t.Instance.SetFingerprint(instance.TextFingerprint(req.Prompt+result.Text, false))
		return Result{GenerateResult: result, State: StateCompleted}, nil
	}
}

// resolveChatOutcome maps a tool-loop error (if any) to a terminal task
// state, updating or clearing the instance's resident fingerprint.
func (t *Task) resolveChatOutcome(err error, originalMessages []modeltypes.Message, assistantText string) (State, error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		t.setState(StateTimedOut)
		t.Instance.ClearFingerprint()
		return StateTimedOut, nil
	case errors.Is(err, context.Canceled):
		t.setState(StateCancelled)
		t.Instance.ClearFingerprint()
		return StateCancelled, nil
	case err != nil:
		t.setState(StateFailed)
		t.Instance.ClearFingerprint()
		return StateFailed, herrors.NewEngineRuntimeError(t.Instance.UID, "chat completion failed", err)
	default:
		t.setState(StateCompleted)
		t.Instance.SetFingerprint(instance.Fingerprint(appendAssistantMessage(originalMessages, assistantText), false))
		return StateCompleted, nil
	}
}

// applyContextResetPolicy decides whether the instance's resident KV cache
// already holds a compatible prefix of req.Messages. When it does, only the
// trailing new message is sent and NewMessagesOnly is set; otherwise the
// full history is sent and the instance replays it from scratch.
func (t *Task) applyContextResetPolicy(req engine.ChatCompletionRequest) engine.ChatCompletionRequest {
	if len(req.Messages) == 0 {
		return req
	}
	prefixFP := instance.Fingerprint(req.Messages, true)
	if prefixFP != "" && t.Instance.Fingerprint() == prefixFP {
		req.Messages = req.Messages[len(req.Messages)-1:]
		req.NewMessagesOnly = true
	}
	return req
}

// mergeAbort composes the caller's ctx, cfg.Timeout, and cfg.Shutdown into a
// single cancellable context: whichever fires first cancels the run. The
// caller's own cancellation and a shutdown signal both resolve to
// context.Canceled (cfg.Timeout alone resolves to context.DeadlineExceeded),
// so the returned flag records whether it was specifically the shutdown
// signal that fired, letting the caller report FinishReasonAbort instead of
// FinishReasonCancel.
func mergeAbort(parent context.Context, cfg Config) (context.Context, context.CancelFunc, *int32) {
	var shutdownFired int32

	var ctx context.Context
	var cancel context.CancelFunc
	if cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, cfg.Timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}

	if cfg.Shutdown != nil {
		done := make(chan struct{})
		stop := cancel
		cancel = func() {
			close(done)
			stop()
		}
		go func() {
			select {
			case <-cfg.Shutdown:
				atomic.StoreInt32(&shutdownFired, 1)
				stop()
			case <-done:
			}
		}()
	}

	return ctx, cancel, &shutdownFired
}

// cancelFinishReason reports FinishReasonAbort when the server-shutdown
// signal caused the cancellation, FinishReasonCancel otherwise (the
// caller's own signal).
func cancelFinishReason(shutdownFired *int32) modeltypes.FinishReason {
	if atomic.LoadInt32(shutdownFired) == 1 {
		return modeltypes.FinishReasonAbort
	}
	return modeltypes.FinishReasonCancel
}

func appendAssistantMessage(messages []modeltypes.Message, text string) []modeltypes.Message {
	out := make([]modeltypes.Message, len(messages), len(messages)+1)
	copy(out, messages)
	return append(out, modeltypes.Message{
		Role:    modeltypes.RoleAssistant,
		Content: []modeltypes.ContentPart{modeltypes.TextContent{Text: text}},
	})
}

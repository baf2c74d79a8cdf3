// Package pool implements the Instance Pool: per-model instance lifecycle
// (creation, context-affinity leasing, TTL eviction, GPU exclusivity) atop
// the model store and engine adapters.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hearthai/hearth/pkg/engine"
	"github.com/hearthai/hearth/pkg/herrors"
	"github.com/hearthai/hearth/pkg/instance"
	"github.com/hearthai/hearth/pkg/modelspec"
	"github.com/hearthai/hearth/pkg/scheduler"
	"github.com/hearthai/hearth/pkg/store"
	"golang.org/x/sync/semaphore"
)

// EngineFactory resolves the engine.Engine implementation a ModelSpec's
// Engine field names. Supplied by the caller constructing the Pool so the
// pool itself carries no knowledge of concrete backends.
type EngineFactory func(spec modelspec.ModelSpec) (engine.Engine, error)

// Lifecycle notifies a Pool's caller of instance-level events, for the
// server façade's observability surface.
type Lifecycle struct {
	OnInstanceCreated  func(modelID, uid string)
	OnInstanceDisposed func(modelID, uid string)
}

// Options configures a Pool.
type Options struct {
	Store         *store.Store
	EngineFactory EngineFactory
	Concurrency   int // global in-flight cap; default 1
	Lifecycle     Lifecycle

	// JanitorInterval controls how often idle instances are scanned for
	// TTL expiry. Defaults to 30s.
	JanitorInterval time.Duration

	// Now, if set, overrides time.Now for deterministic tests.
	Now func() time.Time
}

// LeaseRequest describes what the scheduler needs to pick (or create) an
// instance for one call into the pool.
type LeaseRequest struct {
	ModelID           string
	ExactFingerprint  string
	PrefixFingerprint string
}

// modelState is the per-model slice of the pool: its instances, pending
// creations, and waiter queue. Guarded by Pool.mu, per spec's single
// Mutex-per-Pool policy for instance-set mutations.
type modelState struct {
	instances        []*instance.Instance
	pendingCreations int
	waiters          *scheduler.WaiterQueue
}

// Pool owns every Instance across every declared model.
type Pool struct {
	store     *store.Store
	factory   EngineFactory
	lifecycle Lifecycle
	now       func() time.Time

	concurrency *semaphore.Weighted
	gpuSem      *semaphore.Weighted

	mu               sync.Mutex
	models           map[string]*modelState
	closed           bool
	gpuResidentModel string
	gpuResidentUID   string
	uidSeq           uint64

	janitorStop chan struct{}
	janitorDone chan struct{}
}

// New constructs a Pool. Call Dispose to stop its janitor and release every
// instance on shutdown.
func New(opts Options) *Pool {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.JanitorInterval <= 0 {
		opts.JanitorInterval = 30 * time.Second
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	p := &Pool{
		store:       opts.Store,
		factory:     opts.EngineFactory,
		lifecycle:   opts.Lifecycle,
		now:         now,
		concurrency: semaphore.NewWeighted(int64(opts.Concurrency)),
		gpuSem:      semaphore.NewWeighted(1),
		models:      make(map[string]*modelState),
		janitorStop: make(chan struct{}),
		janitorDone: make(chan struct{}),
	}
	go p.runJanitor(opts.JanitorInterval)
	return p
}

func (p *Pool) modelStateLocked(modelID string) *modelState {
	ms, ok := p.models[modelID]
	if !ok {
		ms = &modelState{waiters: scheduler.NewWaiterQueue()}
		p.models[modelID] = ms
	}
	return ms
}

func (p *Pool) nextUID() string {
	n := atomic.AddUint64(&p.uidSeq, 1)
	return fmt.Sprintf("inst-%d", n)
}

// RequestInstance leases an instance of req.ModelID, selecting by context
// affinity, growing the model's pool, evicting another model's idle GPU
// instance, or queueing as a FIFO waiter, in that order. The caller MUST
// invoke the returned release function exactly once on every exit path.
func (p *Pool) RequestInstance(ctx context.Context, req LeaseRequest) (*instance.Instance, func(), error) {
	spec, err := p.store.Get(req.ModelID)
	if err != nil {
		return nil, nil, err
	}

	if err := p.concurrency.Acquire(ctx, 1); err != nil {
		return nil, nil, err
	}
	succeeded := false
	defer func() {
		if !succeeded {
			p.concurrency.Release(1)
		}
	}()

	if p.store.GetStatus(req.ModelID) != store.StatusReady {
		if err := p.store.PrepareModel(ctx, req.ModelID); err != nil {
			return nil, nil, err
		}
	}

	for {
		inst, waiter, err := p.attempt(ctx, spec, req)
		if err != nil {
			return nil, nil, err
		}
		if inst != nil {
			if err := p.finishGPUHandoff(ctx, inst); err != nil {
				p.returnToIdle(inst)
				return nil, nil, err
			}
			succeeded = true
			return inst, p.makeRelease(spec.ID, inst), nil
		}

		select {
		case <-ctx.Done():
			p.removeWaiter(spec.ID, waiter.ID)
			return nil, nil, ctx.Err()
		case woken := <-waiter.Notify:
			if woken == nil {
				return nil, nil, herrors.ErrPoolClosed
			}
			if err := p.finishGPUHandoff(ctx, woken); err != nil {
				p.returnToIdle(woken)
				return nil, nil, err
			}
			succeeded = true
			return woken, p.makeRelease(spec.ID, woken), nil
		}
	}
}

// attempt runs one pass of selection/grow/evict/enqueue. A non-nil instance
// means success; a non-nil waiter means the caller is now queued and must
// wait on its Notify channel.
func (p *Pool) attempt(ctx context.Context, spec modelspec.ModelSpec, req LeaseRequest) (*instance.Instance, *scheduler.Waiter, error) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil, nil, herrors.ErrPoolClosed
	}

	ms := p.modelStateLocked(spec.ID)

	if inst := scheduler.Select(ms.instances, req.ExactFingerprint, req.PrefixFingerprint); inst != nil {
		inst.SetState(instance.StateBusy)
		p.mu.Unlock()
		return inst, nil, nil
	}

	wantsGPU := spec.Device.WantsGPU()
	canGrow := len(ms.instances)+ms.pendingCreations < spec.MaxInstances
	gpuAvailable := !wantsGPU || p.gpuResidentUID == ""

	if canGrow && gpuAvailable {
		ms.pendingCreations++
		p.mu.Unlock()

		inst, err := p.createInstance(ctx, spec)

		p.mu.Lock()
		ms.pendingCreations--
		if err != nil {
			p.mu.Unlock()
			return nil, nil, err
		}
		ms.instances = append(ms.instances, inst)
		inst.SetState(instance.StateBusy)
		if wantsGPU {
			p.gpuResidentModel, p.gpuResidentUID = spec.ID, inst.UID
		}
		p.mu.Unlock()

		if p.lifecycle.OnInstanceCreated != nil {
			p.lifecycle.OnInstanceCreated(spec.ID, inst.UID)
		}
		return inst, nil, nil
	}

	if canGrow && wantsGPU && !gpuAvailable {
		if p.evictGPUResidentLocked() {
			p.mu.Unlock()
			return p.attempt(ctx, spec, req)
		}
	}

	waiter := &scheduler.Waiter{ID: p.nextUID(), Fingerprint: req.ExactFingerprint, Notify: make(chan *instance.Instance, 1)}
	ms.waiters.Push(waiter)
	p.mu.Unlock()
	return nil, waiter, nil
}

// removeWaiter drops a waiter that gave up (ctx cancelled while queued).
func (p *Pool) removeWaiter(modelID, waiterID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ms, ok := p.models[modelID]; ok {
		ms.waiters.Remove(waiterID)
	}
}

// finishGPUHandoff blocks until the GPU exclusivity semaphore is available
// for a GPU instance about to run a task; it is a no-op for non-GPU
// instances. The semaphore is released by the instance's release callback.
func (p *Pool) finishGPUHandoff(ctx context.Context, inst *instance.Instance) error {
	if !inst.GPU {
		return nil
	}
	return p.gpuSem.Acquire(ctx, 1)
}

func (p *Pool) returnToIdle(inst *instance.Instance) {
	inst.MarkReleased(p.now())
}

// createInstance loads a fresh engine instance for spec. Called with no lock
// held; the caller accounts for pendingCreations around this call.
func (p *Pool) createInstance(ctx context.Context, spec modelspec.ModelSpec) (*instance.Instance, error) {
	artifactPath, err := p.store.ArtifactPath(spec.ID)
	if err != nil {
		return nil, err
	}

	eng, err := p.factory(spec)
	if err != nil {
		return nil, herrors.NewLoadError(spec.ID, "resolving engine", err)
	}

	handle, err := eng.Load(ctx, spec, artifactPath)
	if err != nil {
		return nil, herrors.NewLoadError(spec.ID, "loading model", err)
	}

	return instance.New(p.nextUID(), spec.ID, eng, handle, spec.Device.WantsGPU(), p.now()), nil
}

// evictGPUResidentLocked disposes the current GPU-resident instance, if it
// is idle and evicting it would not drop its model below MinInstances. Must
// be called with p.mu held; reports whether an instance was evicted.
func (p *Pool) evictGPUResidentLocked() bool {
	if p.gpuResidentUID == "" {
		return false
	}
	ms, ok := p.models[p.gpuResidentModel]
	if !ok {
		p.gpuResidentModel, p.gpuResidentUID = "", ""
		return false
	}

	for i, inst := range ms.instances {
		if inst.UID != p.gpuResidentUID {
			continue
		}
		if inst.State() != instance.StateIdle {
			return false
		}
		spec, err := p.store.Get(inst.ModelID)
		if err == nil && len(ms.instances)-1 < spec.MinInstances {
			return false
		}

		ms.instances = append(ms.instances[:i:i], ms.instances[i+1:]...)
		p.gpuResidentModel, p.gpuResidentUID = "", ""
		p.disposeInstance(inst)
		return true
	}
	return false
}

// disposeInstance tears down an instance's engine handle and notifies the
// lifecycle callback. Safe to call with or without p.mu held, since it
// touches only the instance and its engine, not pool-level maps.
func (p *Pool) disposeInstance(inst *instance.Instance) {
	inst.SetState(instance.StateDisposing)
	if err := inst.Engine.Dispose(inst.Handle); err != nil {
		slog.Warn("engine dispose failed", "model", inst.ModelID, "uid", inst.UID, "error", err)
	}
	if p.lifecycle.OnInstanceDisposed != nil {
		p.lifecycle.OnInstanceDisposed(inst.ModelID, inst.UID)
	}
}

// makeRelease returns the lease-release callback for inst, guarding against
// being called more than once and waking the next eligible waiter for
// modelID, if any, directly with the just-released instance.
func (p *Pool) makeRelease(modelID string, inst *instance.Instance) func() {
	var released int32
	return func() {
		if !atomic.CompareAndSwapInt32(&released, 0, 1) {
			slog.Error("instance lease released more than once", "model", modelID, "uid", inst.UID)
			return
		}

		inst.MarkReleased(p.now())
		if inst.GPU {
			p.gpuSem.Release(1)
		}
		p.concurrency.Release(1)

		p.mu.Lock()
		ms, ok := p.models[modelID]
		if !ok {
			p.mu.Unlock()
			return
		}
		waiter := ms.waiters.Pop(inst.Fingerprint())
		if waiter == nil {
			p.mu.Unlock()
			return
		}
		inst.SetState(instance.StateBusy)
		p.mu.Unlock()

		waiter.Notify <- inst
	}
}

// runJanitor periodically disposes idle instances that have exceeded their
// model's TTL, down to each model's MinInstances floor.
func (p *Pool) runJanitor(interval time.Duration) {
	defer close(p.janitorDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.janitorStop:
			return
		case <-ticker.C:
			p.sweepIdleInstances()
		}
	}
}

func (p *Pool) sweepIdleInstances() {
	p.mu.Lock()
	var toDispose []*instance.Instance
	for modelID, ms := range p.models {
		spec, err := p.store.Get(modelID)
		if err != nil {
			continue
		}
		ttl := spec.EffectiveTTLSeconds()
		if ttl < 0 {
			continue
		}

		budget := len(ms.instances) - spec.MinInstances
		if budget <= 0 {
			continue
		}

		kept := ms.instances[:0:0]
		for _, inst := range ms.instances {
			expired := inst.State() == instance.StateIdle &&
				inst.IdleDuration(p.now()) > time.Duration(ttl)*time.Second
			if expired && budget > 0 {
				budget--
				toDispose = append(toDispose, inst)
				if inst.UID == p.gpuResidentUID {
					p.gpuResidentModel, p.gpuResidentUID = "", ""
				}
				continue
			}
			kept = append(kept, inst)
		}
		ms.instances = kept
	}
	p.mu.Unlock()

	for _, inst := range toDispose {
		p.disposeInstance(inst)
	}
}

// Dispose stops the janitor and disposes every instance across every model,
// waking queued waiters with a nil instance so blocked RequestInstance calls
// return ErrPoolClosed.
func (p *Pool) Dispose(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	var toDispose []*instance.Instance
	for _, ms := range p.models {
		for ms.waiters.Len() > 0 {
			w := ms.waiters.Pop("")
			close(w.Notify)
		}
		toDispose = append(toDispose, ms.instances...)
		ms.instances = nil
	}
	p.gpuResidentModel, p.gpuResidentUID = "", ""
	p.mu.Unlock()

	close(p.janitorStop)
	select {
	case <-p.janitorDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	for _, inst := range toDispose {
		p.disposeInstance(inst)
	}
	return nil
}

// Acquire implements engine.SubInstancePool, letting a Pool back a
// CompositeEngine's sub-model routes.
func (p *Pool) Acquire(ctx context.Context, modelID string) (engine.Engine, engine.Handle, func(), error) {
	inst, release, err := p.RequestInstance(ctx, LeaseRequest{ModelID: modelID})
	if err != nil {
		return nil, nil, nil, err
	}
	return inst.Engine, inst.Handle, release, nil
}

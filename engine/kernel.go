package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/simkernel/component"
	kerrors "github.com/c360/simkernel/errors"
	"github.com/c360/simkernel/metric"
	"github.com/c360/simkernel/registry"
	"github.com/c360/simkernel/signal"
	"github.com/c360/simkernel/wire"
)

// Kernel owns the component tree, the type registry handle, and the single
// process-wide lock every structural mutation serializes under. There are no
// package-level singletons; tests construct isolated kernels.
type Kernel struct {
	// mu is the process-wide mutual-exclusion domain: mutations take the
	// exclusive side, pure reads (resolution, snapshots, read-only
	// signals) share the read side.
	mu       sync.RWMutex
	root     component.Component
	registry *registry.Registry
	logger   *slog.Logger
	metrics  *kernelMetrics

	jmu      sync.Mutex
	journals []*Journal

	initialized atomic.Bool
	started     atomic.Bool
	stopped     atomic.Bool
	stopOnce    sync.Once
	inflight    sync.WaitGroup
}

// New creates a kernel with a fresh root component of the given name. The
// registry carries the constructable types; the metrics registry is
// optional and nil disables recording.
func New(rootName string, reg *registry.Registry, logger *slog.Logger, metricsRegistry *metric.MetricsRegistry) (*Kernel, error) {
	if reg == nil {
		return nil, kerrors.WrapInvalid(
			fmt.Errorf("nil registry: %w", kerrors.ErrInvalidConfig),
			"Kernel", "New", "dependency check")
	}
	if logger == nil {
		logger = slog.Default()
	}

	root, err := component.New(GroupType, rootName)
	if err != nil {
		return nil, kerrors.WrapInvalid(err, "Kernel", "New", "root construction")
	}

	metrics, err := newKernelMetrics(metricsRegistry)
	if err != nil {
		logger.Error("Failed to initialize kernel metrics", "error", err)
		metrics = nil // Continue without metrics
	}

	k := &Kernel{
		root:     root,
		registry: reg,
		logger:   logger,
		metrics:  metrics,
	}
	k.installCoreSignals(root)
	return k, nil
}

// Root returns the tree root.
func (k *Kernel) Root() component.Component { return k.root }

// Registry returns the type registry.
func (k *Kernel) Registry() *registry.Registry { return k.registry }

// Logger returns the kernel logger for components that extend the kernel.
func (k *Kernel) Logger() *slog.Logger { return k.logger }

// Initialize registers the builtin kernel library into the registry.
// Call once between New and Start.
func (k *Kernel) Initialize() error {
	if !k.initialized.CompareAndSwap(false, true) {
		return kerrors.WrapInvalid(kerrors.ErrAlreadyStarted, "Kernel", "Initialize", "already initialized")
	}
	if err := RegisterBuiltins(k.registry); err != nil {
		return kerrors.Wrap(err, "Kernel", "Initialize", "builtin registration")
	}
	k.logger.Info("Kernel initialized",
		"root", k.root.Name(),
		"types", k.registry.Len())
	return nil
}

// Start opens the kernel for remote dispatch. The Go-level tree API works
// before Start; only Dispatch is gated, so a daemon can build its initial
// tree unobserved.
func (k *Kernel) Start(_ context.Context) error {
	if k.stopped.Load() {
		return kerrors.WrapInvalid(kerrors.ErrShuttingDown, "Kernel", "Start", "kernel stopped")
	}
	if !k.started.CompareAndSwap(false, true) {
		return kerrors.WrapInvalid(kerrors.ErrAlreadyStarted, "Kernel", "Start", "already started")
	}
	k.logger.Info("Kernel started", "root", k.root.Name())
	return nil
}

// Stop closes dispatch and waits up to timeout for in-flight requests to
// finish. Requests past the gate still run to completion; there is no
// cancellation once a handler starts.
func (k *Kernel) Stop(timeout time.Duration) error {
	if !k.started.Load() && !k.stopped.Load() {
		return kerrors.WrapInvalid(kerrors.ErrNotStarted, "Kernel", "Stop", "not started")
	}

	var drainErr error
	k.stopOnce.Do(func() {
		k.stopped.Store(true)
		k.started.Store(false)

		done := make(chan struct{})
		go func() {
			k.inflight.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(timeout):
			drainErr = kerrors.WrapTransient(
				fmt.Errorf("in-flight dispatches did not drain within %s", timeout),
				"Kernel", "Stop", "drain")
		}
		k.logger.Info("Kernel stopped")
	})
	return drainErr
}

// Resolve finds the component at path, following links. Pure read.
func (k *Kernel) Resolve(path string) (component.Component, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return component.Resolve(k.root, path)
}

// Snapshot captures the subtree at path. Pure read.
func (k *Kernel) Snapshot(path string) (component.Snapshot, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	c, err := component.Resolve(k.root, path)
	if err != nil {
		return component.Snapshot{}, err
	}
	return component.TakeSnapshot(c), nil
}

// Create constructs a component of the named type and attaches it under the
// parent path. Preset options apply between construction and attachment, so
// a rejected preset discards the instance before any reader can resolve it.
func (k *Kernel) Create(parentPath, typeName, name string, preset ...signal.Field) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	parent, err := component.Resolve(k.root, parentPath)
	if err != nil {
		return "", err
	}
	child, err := k.createLocked(parent, typeName, name, preset)
	if err != nil {
		return "", err
	}
	return child.AsBase().FullPath(), nil
}

// Delete detaches the named child of the component at parentPath and
// recursively destroys its subtree. Links elsewhere that pointed into the
// subtree dangle and fail on their next resolution.
func (k *Kernel) Delete(parentPath, name string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	parent, err := component.Resolve(k.root, parentPath)
	if err != nil {
		return err
	}
	return k.deleteLocked(parent, name)
}

// Rename changes a component's name in place, keeping its position among
// its siblings.
func (k *Kernel) Rename(path, newName string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	c, err := component.Resolve(k.root, path)
	if err != nil {
		return err
	}
	if c == k.root {
		return kerrors.WrapInvalid(
			fmt.Errorf("cannot rename the root: %w", kerrors.ErrInvalidType),
			"Kernel", "Rename", "target check")
	}
	return c.AsBase().Rename(newName)
}

// Configure applies option values to the component at path, in field
// order. The first failing option aborts; already committed options stay
// committed, matching the no-rollback dispatch model.
func (k *Kernel) Configure(path string, fields []signal.Field) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	c, err := component.Resolve(k.root, path)
	if err != nil {
		return err
	}
	return configureLocked(c, fields)
}

// Invoke dispatches one signal by path. Read-only signals run under the
// shared lock; everything else serializes under the exclusive lock.
func (k *Kernel) Invoke(ctx context.Context, path, signalName string, fields []signal.Field) (signal.Result, error) {
	k.mu.RLock()
	c, err := component.Resolve(k.root, path)
	if err != nil {
		k.mu.RUnlock()
		return nil, err
	}
	sig, ok := c.Signals().Get(signalName)
	if !ok {
		k.mu.RUnlock()
		return nil, fmt.Errorf("signal %q on %s: %w", signalName, c.AsBase().FullPath(), kerrors.ErrUnknownSignal)
	}
	if sig.IsReadOnly() {
		defer k.mu.RUnlock()
		return c.Signals().Invoke(ctx, signalName, fields)
	}
	k.mu.RUnlock()

	// Mutating path: resolution redone under the exclusive lock since the
	// tree may have changed in the gap.
	k.mu.Lock()
	defer k.mu.Unlock()
	c, err = component.Resolve(k.root, path)
	if err != nil {
		return nil, err
	}
	return c.Signals().Invoke(ctx, signalName, fields)
}

// Dispatch executes one request frame and always returns a reply frame:
// every failure becomes a structured error reply, never a dropped request.
// The reply echoes the request's correlation id.
func (k *Kernel) Dispatch(ctx context.Context, req *wire.Frame) *wire.Frame {
	if req == nil {
		return wire.ErrorReply(nil, kerrors.ErrProtocolError)
	}
	if req.IsReply {
		return wire.ErrorReply(req, fmt.Errorf("reply frame sent to server: %w", kerrors.ErrProtocolError))
	}
	if !k.started.Load() {
		if k.stopped.Load() {
			return wire.ErrorReply(req, kerrors.ErrShuttingDown)
		}
		return wire.ErrorReply(req, kerrors.ErrNotStarted)
	}
	k.inflight.Add(1)
	defer k.inflight.Done()

	start := time.Now()
	result, err := k.Invoke(ctx, req.Target, req.Signal, req.Args)
	elapsed := time.Since(start)

	status := "ok"
	message := ""
	if err != nil {
		status = "error"
		message = err.Error()
	}
	k.metrics.recordDispatch(req.Signal, status, elapsed.Seconds())
	k.recordJournal(Entry{
		Time:     start,
		Target:   req.Target,
		Signal:   req.Signal,
		Status:   status,
		Message:  message,
		Duration: elapsed,
	})

	if err != nil {
		k.logger.Debug("Dispatch failed",
			"target", req.Target,
			"signal", req.Signal,
			"error", err)
		return wire.ErrorReply(req, err)
	}
	return wire.OkReply(req, result...)
}

// createLocked builds and attaches one component. Callers hold the write
// lock; core signal handlers reach it through their own dispatch lock.
func (k *Kernel) createLocked(parent component.Component, typeName, name string, preset []signal.Field) (component.Component, error) {
	child, err := k.registry.Create(typeName, name)
	if err != nil {
		return nil, err
	}
	for _, f := range preset {
		if err := child.Options().Set(f.Name, f.Value); err != nil {
			return nil, err
		}
	}
	k.installCoreSignals(child)
	if err := parent.AsBase().AddChild(child); err != nil {
		return nil, err
	}
	k.adoptJournals(child)
	k.metrics.setTreeSize(float64(treeSize(k.root)))
	k.logger.Debug("Component created",
		"path", child.AsBase().FullPath(),
		"type", typeName)
	return child, nil
}

func (k *Kernel) deleteLocked(parent component.Component, name string) error {
	child, ok := parent.Child(name)
	if !ok {
		return fmt.Errorf("child %q of %s: %w", name, parent.AsBase().FullPath(), kerrors.ErrComponentNotFound)
	}
	k.orphanJournals(child)
	path := child.AsBase().FullPath()
	if err := parent.AsBase().RemoveChild(name); err != nil {
		return err
	}
	k.metrics.setTreeSize(float64(treeSize(k.root)))
	k.logger.Debug("Component deleted", "path", path)
	return nil
}

func treeSize(root component.Component) int {
	n := 0
	root.AsBase().Walk(func(component.Component) bool {
		n++
		return component.Continue
	})
	return n
}

func configureLocked(c component.Component, fields []signal.Field) error {
	for _, f := range fields {
		if err := c.Options().Set(f.Name, f.Value); err != nil {
			return fmt.Errorf("%s: %w", c.AsBase().FullPath(), err)
		}
	}
	return nil
}

// adoptJournals registers every Journal in the newly attached subtree as a
// dispatch sink.
func (k *Kernel) adoptJournals(c component.Component) {
	c.AsBase().Walk(func(n component.Component) bool {
		if j, ok := n.(*Journal); ok {
			k.jmu.Lock()
			k.journals = append(k.journals, j)
			k.jmu.Unlock()
		}
		return component.Continue
	})
}

func (k *Kernel) orphanJournals(c component.Component) {
	c.AsBase().Walk(func(n component.Component) bool {
		j, ok := n.(*Journal)
		if !ok {
			return component.Continue
		}
		k.jmu.Lock()
		for i, known := range k.journals {
			if known == j {
				k.journals = append(k.journals[:i], k.journals[i+1:]...)
				break
			}
		}
		k.jmu.Unlock()
		return component.Continue
	})
}

func (k *Kernel) recordJournal(e Entry) {
	k.jmu.Lock()
	sinks := append(k.journals[:0:0], k.journals...)
	k.jmu.Unlock()
	for _, j := range sinks {
		j.record(e)
	}
}

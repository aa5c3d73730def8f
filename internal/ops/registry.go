// Package ops is the central lifecycle control for all long-running backend
// work: id allocation, cancellation tokens, per-class concurrency limits and
// the unified progress/lifecycle event stream.
package ops

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/events"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/logger"
)

// ErrCanceled is returned by Acquire when the token flips before a permit is
// granted.
var ErrCanceled = errors.New("operation canceled")

// progressMinInterval caps progress:update emission at 10 Hz per operation.
const progressMinInterval = 100 * time.Millisecond

// retireGrace keeps a terminal operation introspectable for a short period.
const retireGrace = 5 * time.Second

// Permits is the per-class concurrency configuration.
type Permits map[Class]int

// DefaultPermits mirrors the product defaults.
func DefaultPermits() Permits {
	return Permits{
		ClassScan:             1,
		ClassClean:            2,
		ClassEmptyTrash:       1,
		ClassMemOptimize:      1,
		ClassMemOptimizeAdmin: 1,
		ClassDashboardRefresh: 2,
	}
}

// Registry owns the operation table. The table is the only globally shared
// mutable state in the backend; entries synchronize individually.
type Registry struct {
	ops  sync.Map // id -> *Operation
	bus  *events.Bus
	sems map[Class]chan struct{}

	retireAfter time.Duration
}

func NewRegistry(bus *events.Bus, permits Permits) *Registry {
	if permits == nil {
		permits = DefaultPermits()
	}
	sems := make(map[Class]chan struct{}, len(permits))
	for class, n := range permits {
		if n < 1 {
			n = 1
		}
		sems[class] = make(chan struct{}, n)
	}
	return &Registry{bus: bus, sems: sems, retireAfter: retireGrace}
}

// Bus exposes the event bus for subscribers (web push, CLI rendering).
func (r *Registry) Bus() *events.Bus { return r.bus }

// Register allocates an id and token for a new operation. The operation is
// Pending until acquired and started.
func (r *Registry) Register(class Class, cancellable bool) *Operation {
	id := uuid.NewString()
	op := &Operation{
		id:    id,
		class: class,
		token: NewToken(),
		reg:   r,
		state: State{
			ID:          id,
			Class:       class,
			StartedAt:   time.Now(),
			Stage:       "pending",
			Status:      StatusPending,
			Cancellable: cancellable,
		},
		startMono: time.Now(),
	}
	r.ops.Store(id, op)
	logger.Debug().Str("op", id).Str("class", string(class)).Msg("operation registered")
	return op
}

// Acquire blocks until a class permit is granted or the token flips.
// Acquisition happens before any heavy work so a pending operation cancels
// without cost.
func (r *Registry) Acquire(op *Operation) error {
	sem, ok := r.sems[op.class]
	if !ok {
		return errors.New("unknown operation class: " + string(op.class))
	}
	select {
	case <-op.token.Done():
		return ErrCanceled
	case sem <- struct{}{}:
	}
	released := sync.OnceFunc(func() { <-sem })
	op.mu.Lock()
	op.permit = released
	op.mu.Unlock()
	return nil
}

// Cancel flips the operation's token and best-effort kills any supervised
// child. Returns whether the id was known.
func (r *Registry) Cancel(id string) bool {
	v, ok := r.ops.Load(id)
	if !ok {
		return false
	}
	op := v.(*Operation)
	op.token.Cancel()
	go op.killChild()
	logger.Info().Str("op", id).Msg("cancel requested")
	return true
}

// Get returns a copy of the operation state, if the id is still known.
func (r *Registry) Get(id string) (State, bool) {
	v, ok := r.ops.Load(id)
	if !ok {
		return State{}, false
	}
	return v.(*Operation).State(), true
}

// EmitStart transitions the operation to Running and publishes
// operation:start.
func (r *Registry) EmitStart(op *Operation, estimatedMS *int64) {
	op.mu.Lock()
	op.state.Status = StatusRunning
	op.state.Stage = "running"
	op.mu.Unlock()

	r.bus.Publish(events.ChannelOperationStart, events.StartPayload{
		ID:                  op.id,
		Class:               string(op.class),
		EstimatedDurationMS: estimatedMS,
	})
}

// EmitProgress updates state and publishes progress:update, rate-limited to
// 10 Hz per operation. The last update before a stage transition always
// flushes.
func (r *Registry) EmitProgress(op *Operation, progress float64, message, stage string, etaMS *int64, tput *events.Throughput) {
	op.mu.Lock()
	if op.terminal {
		op.mu.Unlock()
		return
	}
	now := time.Now()
	stageChanged := stage != op.lastStage
	if !stageChanged && now.Sub(op.lastEmit) < progressMinInterval {
		// Still record the state so get_operation_state stays fresh.
		op.state.Progress = progress
		op.state.Stage = stage
		op.state.EtaMS = etaMS
		op.state.Throughput = tput
		op.mu.Unlock()
		return
	}
	op.lastEmit = now
	op.lastStage = stage
	op.state.Progress = progress
	op.state.Stage = stage
	op.state.EtaMS = etaMS
	op.state.Throughput = tput
	canCancel := op.state.Cancellable
	op.mu.Unlock()

	r.bus.Publish(events.ChannelProgressUpdate, events.ProgressPayload{
		ID:         op.id,
		Progress:   progress,
		Message:    message,
		Stage:      stage,
		CanCancel:  canCancel,
		EtaMS:      etaMS,
		Throughput: tput,
	})
}

// EmitComplete publishes the single terminal event, releases the class
// permit, and retires the entry after a grace period. Repeated calls are
// no-ops so every operation terminates exactly once.
func (r *Registry) EmitComplete(op *Operation, success, canceled bool, message string) {
	op.mu.Lock()
	if op.terminal {
		op.mu.Unlock()
		return
	}
	op.terminal = true
	switch {
	case canceled:
		op.state.Status = StatusCanceled
	case success:
		op.state.Status = StatusCompleted
		op.state.Progress = 100
		op.state.Stage = "complete"
	default:
		op.state.Status = StatusFailed
	}
	duration := time.Since(op.startMono).Milliseconds()
	op.mu.Unlock()

	op.releasePermit()

	if !success && !canceled && message != "" {
		r.bus.Publish(events.ChannelOperationError, events.ErrorPayload{ID: op.id, Message: message})
	}
	r.bus.Publish(events.ChannelOperationComplete, events.CompletePayload{
		ID:         op.id,
		Success:    success,
		Canceled:   canceled,
		Message:    message,
		DurationMS: duration,
	})
	logger.Info().
		Str("op", op.id).
		Str("class", string(op.class)).
		Bool("success", success).
		Bool("canceled", canceled).
		Int64("duration_ms", duration).
		Msg("operation finished")

	retire := r.retireAfter
	go func() {
		time.Sleep(retire)
		r.ops.Delete(op.id)
	}()
}

// Fail is shorthand for a failing terminal event.
func (r *Registry) Fail(op *Operation, message string) {
	r.EmitComplete(op, false, false, message)
}

// CompleteCanceled is shorthand for a canceled terminal event.
func (r *Registry) CompleteCanceled(op *Operation, message string) {
	r.EmitComplete(op, false, true, message)
}

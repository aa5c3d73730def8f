package ops

import (
	"os/exec"
	"sync"
	"time"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/events"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/logger"
)

// Class determines which semaphore gates an operation.
type Class string

const (
	ClassScan             Class = "scan"
	ClassClean            Class = "clean"
	ClassEmptyTrash       Class = "empty_trash"
	ClassMemOptimize      Class = "mem_optimize"
	ClassMemOptimizeAdmin Class = "mem_optimize_admin"
	ClassDashboardRefresh Class = "dashboard_refresh"
)

// Status is an operation's lifecycle phase.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
	StatusFailed    Status = "failed"
)

// State is the externally visible view of an operation. Mutated only by the
// owning worker through the registry helpers.
type State struct {
	ID          string             `json:"id"`
	Class       Class              `json:"class"`
	StartedAt   time.Time          `json:"started_at"`
	Stage       string             `json:"stage"`
	Progress    float64            `json:"progress"`
	EtaMS       *int64             `json:"eta_ms,omitempty"`
	Throughput  *events.Throughput `json:"throughput,omitempty"`
	Status      Status             `json:"status"`
	Cancellable bool               `json:"cancellable"`
}

// Operation pairs an id with its cancellation token, supervised child handle
// and mutable state. Workers hold the *Operation; the GUI only ever sees
// State copies.
type Operation struct {
	id    string
	class Class
	token *Token

	reg *Registry

	mu        sync.Mutex
	state     State
	child     *exec.Cmd
	terminal  bool
	permit    func()
	startMono time.Time
	lastEmit  time.Time
	lastStage string
}

func (o *Operation) ID() string    { return o.id }
func (o *Operation) Class() Class  { return o.class }
func (o *Operation) Token() *Token { return o.token }

// Canceled reports the token state; workers check this at batch boundaries.
func (o *Operation) Canceled() bool { return o.token.Canceled() }

// State returns a copy of the current state.
func (o *Operation) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// AttachChild registers a supervised child process. Cancellation kills it
// best-effort. Call before waiting on the command.
func (o *Operation) AttachChild(cmd *exec.Cmd) {
	o.mu.Lock()
	o.child = cmd
	o.mu.Unlock()
}

// DetachChild clears the supervised child once it has exited.
func (o *Operation) DetachChild() {
	o.mu.Lock()
	o.child = nil
	o.mu.Unlock()
}

func (o *Operation) killChild() {
	o.mu.Lock()
	child := o.child
	o.mu.Unlock()
	if child == nil || child.Process == nil {
		return
	}
	if err := child.Process.Kill(); err != nil {
		logger.Debug().Str("op", o.id).Err(err).Msg("child kill failed")
	}
	// Collect the exit within a short grace window so no orphan lingers.
	done := make(chan struct{})
	go func() {
		_ = child.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		logger.Warn().Str("op", o.id).Msg("child did not exit within grace window")
	}
}

func (o *Operation) releasePermit() {
	o.mu.Lock()
	release := o.permit
	o.permit = nil
	o.mu.Unlock()
	if release != nil {
		release()
	}
}

package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"ai-letter/config"
)

// ErrRunInProgress is returned when a run is already active.
var ErrRunInProgress = errors.New("a pipeline run is already in progress")

// RunFunc executes one run. (*Pipeline).Run satisfies it.
type RunFunc func(ctx context.Context) (Report, error)

// Status is the last known state of the Runner.
type Status struct {
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at,omitempty"`
	LastRunID string    `json:"last_run_id,omitempty"`
	LastNoOp  bool      `json:"last_noop"`
	LastError string    `json:"last_error,omitempty"`
}

// Runner 는 한 번에 하나의 실행만 허용한다 (수동 트리거용).
type Runner struct {
	run     RunFunc
	timeout time.Duration

	mu     sync.Mutex
	status Status
	done   chan struct{}
}

func NewRunner(run RunFunc, timeout time.Duration) *Runner {
	return &Runner{run: run, timeout: timeout}
}

// Start launches a run in the background. The run is detached from ctx's
// cancellation so that an HTTP request ending does not abort it.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.status.Running {
		r.mu.Unlock()
		return ErrRunInProgress
	}
	r.status.Running = true
	r.status.StartedAt = time.Now()
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		if r.timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, r.timeout)
			defer cancel()
		}
		rep, err := r.run(runCtx)
		r.finish(rep, err)
	}()
	return nil
}

// RunNow runs synchronously, still refusing to overlap with a running Start.
func (r *Runner) RunNow(ctx context.Context) (Report, error) {
	r.mu.Lock()
	if r.status.Running {
		r.mu.Unlock()
		return Report{}, ErrRunInProgress
	}
	r.status.Running = true
	r.status.StartedAt = time.Now()
	r.mu.Unlock()

	rep, err := r.run(ctx)
	r.finish(rep, err)
	return rep, err
}

// Wait blocks until the current background run (if any) finishes.
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Runner) finish(rep Report, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Running = false
	r.status.LastRunID = rep.RunID
	r.status.LastNoOp = rep.NoOp
	r.status.LastError = ""
	if err != nil {
		r.status.LastError = err.Error()
		config.Logger.Errorf("pipeline run %s failed: %v", rep.RunID, err)
	}
}

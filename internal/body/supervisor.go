package body

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// RestartPolicy decides what happens when an organ's goroutine returns.
type RestartPolicy string

const (
	// RestartAlways restarts regardless of how the organ exited.
	RestartAlways RestartPolicy = "always"
	// RestartOnFailure restarts only on a non-nil error.
	RestartOnFailure RestartPolicy = "on_failure"
	// RestartNever lets the organ stay down.
	RestartNever RestartPolicy = "never"
)

// SupervisorPolicy bounds how aggressively crashed organs come back.
type SupervisorPolicy struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	MaxRestarts    int
}

func defaultPolicy() SupervisorPolicy {
	return SupervisorPolicy{
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
		MaxRestarts:    0,
	}
}

func normalizePolicy(policy SupervisorPolicy) SupervisorPolicy {
	def := defaultPolicy()
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = def.InitialBackoff
	}
	if policy.MaxBackoff <= 0 {
		policy.MaxBackoff = def.MaxBackoff
	}
	if policy.MaxBackoff < policy.InitialBackoff {
		policy.MaxBackoff = policy.InitialBackoff
	}
	if policy.BackoffFactor < 1 {
		policy.BackoffFactor = def.BackoffFactor
	}
	return policy
}

// Supervisor keeps the body's organ goroutines alive: cortex worker,
// hardware monitor, voice, telemetry. A crashing organ is restarted with
// backoff; the tick loop itself runs outside the supervisor because its
// death means the body is done.
type Supervisor struct {
	policy SupervisorPolicy
	logger *slog.Logger

	mu     sync.Mutex
	organs map[string]*organ
}

type organ struct {
	cancel context.CancelFunc
	done   chan struct{}

	restart      RestartPolicy
	restartCount int
	lastErr      error
	failed       bool
}

func NewSupervisor(policy SupervisorPolicy, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		policy: normalizePolicy(policy),
		logger: logger,
		organs: make(map[string]*organ),
	}
}

// Start launches the organ under supervision. Names must be unique while
// the organ runs.
func (s *Supervisor) Start(name string, restart RestartPolicy, run func(ctx context.Context) error) error {
	if name == "" {
		return errors.New("organ name is required")
	}
	if run == nil {
		return errors.New("organ runner is required")
	}
	switch restart {
	case RestartAlways, RestartOnFailure, RestartNever:
	default:
		restart = RestartOnFailure
	}

	s.mu.Lock()
	if _, exists := s.organs[name]; exists {
		s.mu.Unlock()
		return fmt.Errorf("organ already running: %s", name)
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := &organ{
		cancel:  cancel,
		done:    make(chan struct{}),
		restart: restart,
	}
	s.organs[name] = o
	s.mu.Unlock()

	go s.keepAlive(ctx, name, o, run)
	return nil
}

func (s *Supervisor) keepAlive(ctx context.Context, name string, o *organ, run func(ctx context.Context) error) {
	defer func() {
		s.mu.Lock()
		if current, ok := s.organs[name]; ok && current == o {
			delete(s.organs, name)
		}
		s.mu.Unlock()
		close(o.done)
	}()

	backoff := s.policy.InitialBackoff
	for {
		err := s.runOnce(ctx, name, run)
		if ctx.Err() != nil {
			return
		}

		shouldRestart := o.restart == RestartAlways || (o.restart == RestartOnFailure && err != nil)
		if !shouldRestart {
			if err != nil {
				s.logger.Warn("organ stopped and stays down", "organ", name, "error", err)
			}
			return
		}

		s.mu.Lock()
		o.lastErr = err
		o.restartCount++
		count := o.restartCount
		s.mu.Unlock()

		if s.policy.MaxRestarts > 0 && count > s.policy.MaxRestarts {
			s.mu.Lock()
			o.failed = true
			s.mu.Unlock()
			s.logger.Error("organ failed permanently", "organ", name, "restarts", count-1, "error", err)
			return
		}

		s.logger.Warn("restarting organ", "organ", name, "attempt", count, "backoff", backoff, "error", err)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff = time.Duration(float64(backoff) * s.policy.BackoffFactor)
		if backoff > s.policy.MaxBackoff {
			backoff = s.policy.MaxBackoff
		}
	}
}

// runOnce converts a panicking organ into an error so one bad organ
// cannot take the body down.
func (s *Supervisor) runOnce(ctx context.Context, name string, run func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("organ %s panicked: %v", name, r)
		}
	}()
	return run(ctx)
}

// Stop cancels one organ and waits for it to exit.
func (s *Supervisor) Stop(name string) {
	s.mu.Lock()
	o, ok := s.organs[name]
	s.mu.Unlock()
	if !ok {
		return
	}
	o.cancel()
	<-o.done
}

// StopAll cancels every organ and waits for all of them.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	organs := make([]*organ, 0, len(s.organs))
	for _, o := range s.organs {
		organs = append(organs, o)
	}
	s.mu.Unlock()

	for _, o := range organs {
		o.cancel()
	}
	for _, o := range organs {
		<-o.done
	}
}

// Running lists the live organ names, sorted.
func (s *Supervisor) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.organs))
	for name := range s.organs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

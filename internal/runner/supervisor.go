// Package runner runs one program at a time and pumps its output to a sink.
//
// A Supervisor moves through idle, running and stopping. Start is accepted
// only when idle. Every run gets a fresh output channel and pump; when the
// program returns the pump is stopped, drained one last time, and the
// supervisor goes back to idle.
package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/omniedit/internal/log"
	"github.com/zjrosen/omniedit/internal/output"
	"github.com/zjrosen/omniedit/internal/pubsub"
	"github.com/zjrosen/omniedit/internal/tracing"
)

// Program is the unit of work a Supervisor runs. It should return promptly
// once ctx is cancelled.
type Program func(ctx context.Context, source string, out *output.Channel) error

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithInterval sets the pump interval for every run.
func WithInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		s.interval = d
	}
}

// WithTracer records a span per run.
func WithTracer(t trace.Tracer) Option {
	return func(s *Supervisor) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithEventBroker publishes lifecycle events to b.
func WithEventBroker(b *pubsub.Broker[Event]) Option {
	return func(s *Supervisor) {
		s.events = b
	}
}

// Supervisor enforces a single active run.
type Supervisor struct {
	sink     output.Sink
	interval time.Duration
	tracer   trace.Tracer
	events   *pubsub.Broker[Event]

	mu    sync.Mutex
	state State
	run   *run
	last  *Outcome
}

// run is the bookkeeping for one Start.
type run struct {
	id      string
	source  string
	started time.Time
	cancel  context.CancelFunc
	channel *output.Channel
	span    trace.Span
	done    chan struct{}
	outcome Outcome // written before done is closed
}

// NewSupervisor creates an idle supervisor delivering output to sink.
func NewSupervisor(sink output.Sink, opts ...Option) *Supervisor {
	s := &Supervisor{
		sink:     sink,
		interval: output.DefaultInterval,
		tracer:   noop.NewTracerProvider().Tracer("noop"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.interval <= 0 {
		s.interval = output.DefaultInterval
	}
	return s
}

// Start launches program on source and returns the run ID. It fails with an
// *AlreadyRunningError unless the supervisor is idle.
func (s *Supervisor) Start(source string, program Program) (string, error) {
	if program == nil {
		return "", ErrNilProgram
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		log.Warn(log.CatRun, "start rejected", "state", s.state.String(), "run_id", s.run.id)
		return "", &AlreadyRunningError{State: s.state}
	}

	r := &run{
		id:      uuid.NewString(),
		source:  source,
		started: time.Now(),
		channel: output.NewChannel(),
		done:    make(chan struct{}),
	}

	var ctx context.Context
	ctx, r.cancel = context.WithCancel(context.Background())
	ctx, r.span = s.tracer.Start(ctx, tracing.SpanRun, trace.WithAttributes(
		attribute.String(tracing.AttrRunID, r.id),
		attribute.Int(tracing.AttrSourceBytes, len(source)),
		attribute.Int64(tracing.AttrPumpInterval, s.interval.Milliseconds()),
	))

	pump := output.NewPump(r.channel, s.sink, output.WithInterval(s.interval))
	pumpCtx, stopPump := context.WithCancel(context.Background())
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		pump.Run(pumpCtx)
	}()

	s.state = StateRunning
	s.run = r
	s.publish(EventRunStarted, Event{RunID: r.id, State: StateRunning})
	log.Info(log.CatRun, "run started", "run_id", r.id, "source_bytes", len(source))

	go s.execute(ctx, r, program, func() output.PumpStats {
		stopPump()
		<-pumpDone
		return pump.Stats()
	})

	return r.id, nil
}

// Stop asks the running program to stop. It is a no-op when idle.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle {
		return
	}
	if s.state == StateRunning {
		s.state = StateStopping
		s.run.span.AddEvent(tracing.EventStopRequested)
		s.publish(EventStopRequested, Event{RunID: s.run.id, State: StateStopping})
		log.Info(log.CatRun, "stop requested", "run_id", s.run.id)
	}
	s.run.cancel()
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RunID returns the ID of the current or most recent run, or "" before the
// first Start.
func (s *Supervisor) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		return ""
	}
	return s.run.id
}

// LastOutcome returns the outcome of the most recent finished run.
func (s *Supervisor) LastOutcome() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Outcome{}, false
	}
	return *s.last, true
}

// Wait blocks until the current or most recent run has finished.
func (s *Supervisor) Wait(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	r := s.run
	s.mu.Unlock()

	if r == nil {
		return Outcome{}, ErrNoRun
	}
	select {
	case <-r.done:
		return r.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (s *Supervisor) execute(ctx context.Context, r *run, program Program, drain func() output.PumpStats) {
	var err error
	returned := false
	defer func() {
		if !returned {
			err = ErrProgramExited
		}
		stopped := ctx.Err() != nil
		r.span.AddEvent(tracing.EventProgramReturned)

		stats := drain()
		r.span.AddEvent(tracing.EventPumpDrained)
		r.cancel()

		outcome := Outcome{
			RunID:       r.id,
			Status:      classify(err, stopped),
			StartedAt:   r.started,
			FinishedAt:  time.Now(),
			OutputBytes: stats.Bytes,
			Deliveries:  stats.Deliveries,
		}
		if outcome.Status == StatusFailed {
			outcome.Err = err
		}
		s.finish(r, outcome)
	}()

	var pc panics.Catcher
	pc.Try(func() {
		err = program(ctx, r.source, r.channel)
	})
	// Try only returns when the program did not call runtime.Goexit.
	returned = true
	if rec := pc.Recovered(); rec != nil {
		err = &PanicError{Value: rec.Value, Stack: rec.Stack}
	}
}

func (s *Supervisor) finish(r *run, outcome Outcome) {
	r.span.SetAttributes(
		attribute.String(tracing.AttrRunStatus, string(outcome.Status)),
		attribute.Int64(tracing.AttrOutputBytes, outcome.OutputBytes),
		attribute.Int64(tracing.AttrDeliveries, outcome.Deliveries),
	)
	if outcome.Err != nil {
		r.span.RecordError(outcome.Err)
		r.span.SetStatus(codes.Error, outcome.Err.Error())
		var perr *PanicError
		if errors.As(outcome.Err, &perr) {
			r.span.SetAttributes(attribute.String(tracing.AttrErrorType, "panic"))
		}
	} else {
		r.span.SetStatus(codes.Ok, "")
	}
	r.span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	r.outcome = outcome
	s.last = &outcome
	s.state = StateIdle
	s.publish(EventRunFinished, Event{RunID: r.id, State: StateIdle, Outcome: &outcome})
	close(r.done)

	if outcome.Err != nil {
		log.ErrorErr(log.CatRun, "run failed", outcome.Err, "run_id", r.id, "duration", outcome.Duration())
		return
	}
	log.Info(log.CatRun, "run finished",
		"run_id", r.id,
		"status", string(outcome.Status),
		"output_bytes", outcome.OutputBytes,
		"duration", outcome.Duration())
}

// classify maps a program's return to a status. A run the user stopped is
// cancelled when it returns nil or a context cancellation error.
func classify(err error, stopped bool) Status {
	var perr *PanicError
	switch {
	case errors.As(err, &perr):
		return StatusFailed
	case err == nil && stopped:
		return StatusCancelled
	case err == nil:
		return StatusCompleted
	case stopped && errors.Is(err, context.Canceled):
		return StatusCancelled
	default:
		return StatusFailed
	}
}

func (s *Supervisor) publish(t pubsub.EventType, ev Event) {
	if s.events == nil {
		return
	}
	s.events.Publish(t, ev)
}

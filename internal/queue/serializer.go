// Package queue runs model calls one at a time in submission order.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrClosed is returned for tasks submitted after Close.
var ErrClosed = errors.New("serializer is closed")

// Handler executes a single task. The serializer never calls it concurrently.
type Handler func(ctx context.Context, task *Task) (Result, error)

// Result is the content a task produced and the model that produced it.
type Result struct {
	Content  string
	Provider string
	Model    string
}

// Task is one unit of queued work: two prompts in, content or failure out.
type Task struct {
	ID              string
	System          string
	User            string
	MaxOutputTokens int32

	ctx        context.Context
	acceptedAt time.Time
	done       chan struct{}
	result     Result
	err        error
}

// Future resolves once its task has run.
type Future struct {
	task *Task
}

// Done is closed when the task has completed.
func (f *Future) Done() <-chan struct{} { return f.task.done }

// Wait blocks until the task completes or ctx ends. A caller that stops waiting does not
// cancel the task; it still runs in its turn.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.task.done:
		return f.task.result, f.task.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Stats is a snapshot of the serializer's accept/complete counters.
type Stats struct {
	Accepted    int
	Completed   int
	Pending     int
	InFlight    int
	MaxInFlight int
}

// Options tune the serializer.
type Options struct {
	// MinInterval paces consecutive task starts. Zero disables pacing.
	MinInterval time.Duration
	Logger      *zap.Logger
}

// Serializer owns a FIFO queue drained by a single worker goroutine.
type Serializer struct {
	handler Handler
	limiter *rate.Limiter
	logger  *zap.Logger

	mu          sync.Mutex
	cond        *sync.Cond
	pending     []*Task
	closed      bool
	accepted    int
	completed   int
	inFlight    int
	maxInFlight int

	stopped chan struct{}
}

// New starts the worker. Call Close to stop it.
func New(handler Handler, opts Options) *Serializer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Serializer{
		handler: handler,
		logger:  logger,
		stopped: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)

	if opts.MinInterval > 0 {
		s.limiter = rate.NewLimiter(rate.Every(opts.MinInterval), 1)
	}

	go s.loop()
	return s
}

// Submit appends a task to the queue. Its execution context keeps ctx values but not
// its cancellation.
func (s *Serializer) Submit(ctx context.Context, system, user string, maxOutputTokens int32) *Future {
	task := &Task{
		ID:              uuid.NewString(),
		System:          system,
		User:            user,
		MaxOutputTokens: maxOutputTokens,
		ctx:             context.WithoutCancel(ctx),
		acceptedAt:      time.Now(),
		done:            make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		task.err = ErrClosed
		close(task.done)
		return &Future{task: task}
	}
	s.pending = append(s.pending, task)
	s.accepted++
	position := len(s.pending)
	s.mu.Unlock()
	s.cond.Signal()

	s.logger.Debug("task accepted",
		zap.String("task_id", task.ID),
		zap.Int("queue_position", position),
	)

	return &Future{task: task}
}

// Stats returns the current counters.
func (s *Serializer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Accepted:    s.accepted,
		Completed:   s.completed,
		Pending:     len(s.pending),
		InFlight:    s.inFlight,
		MaxInFlight: s.maxInFlight,
	}
}

// Close stops accepting tasks and waits until every queued task has run or ctx ends.
func (s *Serializer) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()

	select {
	case <-s.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Serializer) loop() {
	defer close(s.stopped)

	for {
		s.mu.Lock()
		for len(s.pending) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.pending) == 0 {
			s.mu.Unlock()
			return
		}
		task := s.pending[0]
		s.pending[0] = nil
		s.pending = s.pending[1:]
		s.mu.Unlock()

		if s.limiter != nil {
			_ = s.limiter.Wait(context.Background())
		}

		s.mu.Lock()
		s.inFlight++
		if s.inFlight > s.maxInFlight {
			s.maxInFlight = s.inFlight
		}
		s.mu.Unlock()

		started := time.Now()
		task.result, task.err = s.run(task)

		s.mu.Lock()
		s.inFlight--
		s.completed++
		s.mu.Unlock()

		s.logger.Debug("task completed",
			zap.String("task_id", task.ID),
			zap.Duration("queued", started.Sub(task.acceptedAt)),
			zap.Duration("took", time.Since(started)),
			zap.Bool("failed", task.err != nil),
		)

		close(task.done)
	}
}

func (s *Serializer) run(task *Task) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", task.ID, r)
		}
	}()
	return s.handler(task.ctx, task)
}

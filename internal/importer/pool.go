package importer

// pool.go runs import jobs in the background.
//
// Submission flow:
//  1. Submit takes a limiter slot (waits up to MaxWait, then ErrTooManyImports)
//  2. The job is registered and handed to the worker pool; a Future is returned
//  3. The worker runs the Coordinator, fanning notifications out to
//     subscribers and to any extra listeners given at submission
//  4. On completion the outcome is written to the import history and the
//     slot is released; then the terminal event is broadcast and subscriber
//     channels are closed
//  5. The job stays queryable for ResultTTL, then it is evicted

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/geoimport/internal/store"
	"github.com/gammazero/workerpool"
)

// ErrPoolClosed is returned by Submit after Shutdown has begun.
var ErrPoolClosed = errors.New("import pool is shutting down")

const (
	// DefaultJobTimeout bounds the store calls of one job.
	DefaultJobTimeout = 10 * time.Minute
	// DefaultResultTTL is how long finished jobs remain queryable.
	DefaultResultTTL = 10 * time.Minute

	subscriberBuffer = 64
	historyTimeout   = 5 * time.Second
)

// History records finished imports.
type History interface {
	RecordImport(ctx context.Context, rec store.ImportRecord) error
}

// PoolConfig sizes the pool. Zero values select the defaults.
type PoolConfig struct {
	MaxConcurrent int
	MaxWait       time.Duration
	JobTimeout    time.Duration
	ResultTTL     time.Duration
}

// Pool runs jobs on a fixed set of workers.
type Pool struct {
	coord   *Coordinator
	history History
	cfg     PoolConfig
	limiter *Limiter
	workers *workerpool.WorkerPool

	mu     sync.RWMutex
	jobs   map[string]*activeJob
	closed bool
}

// NewPool creates a pool running jobs through coord. history may be nil.
func NewPool(coord *Coordinator, history History, cfg PoolConfig) *Pool {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrentImports
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultMaxWaitTime
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultJobTimeout
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = DefaultResultTTL
	}

	return &Pool{
		coord:   coord,
		history: history,
		cfg:     cfg,
		limiter: NewLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		workers: workerpool.New(cfg.MaxConcurrent),
		jobs:    make(map[string]*activeJob),
	}
}

// Future is the handle of a submitted job.
type Future struct {
	JobID string
	aj    *activeJob
}

// Done is closed once the job has finished.
func (f *Future) Done() <-chan struct{} {
	return f.aj.done
}

// Stage returns the job's current stage.
func (f *Future) Stage() Stage {
	return f.aj.job.Stage()
}

// Wait blocks until the job finishes or ctx is done.
func (f *Future) Wait(ctx context.Context) (Summary, error) {
	return f.aj.wait(ctx)
}

// Submit queues job and returns immediately. Extra listeners receive the
// job's notifications on the worker goroutine. The job keeps running when
// ctx is cancelled after Submit returns; ctx only bounds the wait for a
// free slot.
func (p *Pool) Submit(ctx context.Context, job *Job, extra ...Listener) (*Future, error) {
	if err := p.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	aj := newActiveJob(job)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.limiter.Release()
		return nil, ErrPoolClosed
	}
	p.jobs[job.ID] = aj
	runCtx := context.WithoutCancel(ctx)
	p.workers.Submit(func() {
		p.execute(runCtx, aj, extra)
	})
	p.mu.Unlock()

	slog.Debug("import submitted", "job_id", job.ID, "source", job.SourceName())
	return &Future{JobID: job.ID, aj: aj}, nil
}

// execute runs on a worker.
func (p *Pool) execute(ctx context.Context, aj *activeJob, extra []Listener) {
	started := time.Now()
	var (
		summary Summary
		err     error
	)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in import worker", "job_id", aj.job.ID, "panic", r)
			err = unexpectedError(fmt.Errorf("panic: %v", r))
		}
		p.recordHistory(ctx, aj.job, summary, err, started)
		p.limiter.Release()
		aj.complete(summary, err)
		p.scheduleEviction(aj.job.ID)
	}()

	runCtx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
	defer cancel()

	listeners := make(multiListener, 0, len(extra)+1)
	listeners = append(listeners, aj)
	listeners = append(listeners, extra...)

	summary, err = p.coord.Run(runCtx, aj.job, listeners)
}

func (p *Pool) recordHistory(ctx context.Context, job *Job, summary Summary, err error, started time.Time) {
	if p.history == nil {
		return
	}
	rec := store.ImportRecord{
		JobID:      job.ID,
		Source:     job.SourceName(),
		Kind:       job.Kind.String(),
		ListID:     job.ListID,
		Format:     summary.Format,
		Stored:     summary.Stored,
		Status:     store.StatusFinished,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if err != nil {
		ie := AsImportError(err)
		rec.Status = store.StatusFailed
		rec.ErrorCode = ie.User().Code
		rec.Message = ie.Message()
	}

	hctx, cancel := context.WithTimeout(ctx, historyTimeout)
	defer cancel()
	if herr := p.history.RecordImport(hctx, rec); herr != nil {
		slog.Warn("failed to record import history", "job_id", job.ID, "error", herr)
	}
}

func (p *Pool) scheduleEviction(jobID string) {
	time.AfterFunc(p.cfg.ResultTTL, func() {
		p.mu.Lock()
		delete(p.jobs, jobID)
		p.mu.Unlock()
	})
}

func (p *Pool) lookup(jobID string) (*activeJob, error) {
	p.mu.RLock()
	aj, ok := p.jobs[jobID]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return aj, nil
}

// Subscribe returns a channel of the job's events. The current state is
// delivered first; the channel is closed after the terminal event. Call
// the returned function to stop receiving before the job ends.
func (p *Pool) Subscribe(jobID string) (<-chan Event, func(), error) {
	aj, err := p.lookup(jobID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := aj.subscribe()
	return ch, cancel, nil
}

// Snapshot returns the latest event of a job without blocking.
func (p *Pool) Snapshot(jobID string) (Event, error) {
	aj, err := p.lookup(jobID)
	if err != nil {
		return Event{}, err
	}
	return aj.snapshot(), nil
}

// Result waits for a job and returns its outcome.
func (p *Pool) Result(ctx context.Context, jobID string) (Summary, error) {
	aj, err := p.lookup(jobID)
	if err != nil {
		return Summary{}, err
	}
	return aj.wait(ctx)
}

// PoolStatus reports pool occupancy.
type PoolStatus struct {
	Active        int `json:"active"`
	Queued        int `json:"queued"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
	Tracked       int `json:"tracked"`
}

// Status returns the current occupancy.
func (p *Pool) Status() PoolStatus {
	p.mu.RLock()
	tracked := len(p.jobs)
	p.mu.RUnlock()

	return PoolStatus{
		Active:        p.limiter.Active(),
		Queued:        p.workers.WaitingQueueSize(),
		Available:     p.limiter.Available(),
		MaxConcurrent: p.limiter.MaxConcurrent(),
		Tracked:       tracked,
	}
}

// Shutdown stops accepting jobs and waits for running ones to finish.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	// Every queued or running job holds a limiter slot until it completes.
	if err := p.limiter.WaitForDrain(ctx); err != nil {
		return err
	}
	p.workers.StopWait()
	return nil
}

// activeJob tracks one submitted job. It is the Listener the pool attaches
// to every run and broadcasts to subscribers without blocking the worker.
type activeJob struct {
	job  *Job
	done chan struct{}

	mu        sync.Mutex
	last      Event
	listeners []chan Event
	finished  bool
	summary   Summary
	err       error
}

func newActiveJob(job *Job) *activeJob {
	return &activeJob{
		job:  job,
		done: make(chan struct{}),
		last: Event{JobID: job.ID, Type: EventStage, Stage: StagePending, Label: StagePending.Label(), Total: -1},
	}
}

func (a *activeJob) StageStarted(stage Stage, label string, total int64) {
	a.publish(Event{JobID: a.job.ID, Type: EventStage, Stage: stage, Label: label, Total: total})
}

func (a *activeJob) Progress(count int64) {
	a.mu.Lock()
	e := a.last
	a.mu.Unlock()

	e.Type = EventProgress
	e.Count = count
	a.publish(e)
}

// Terminal events are published by complete, which knows the error code.
func (a *activeJob) Finished(int)             {}
func (a *activeJob) FinishedWithError(string) {}

func (a *activeJob) publish(e Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.last = e
	for _, ch := range a.listeners {
		select {
		case ch <- e:
		default:
			// Slow subscriber, skip this update
		}
	}
}

// complete stores the outcome, delivers the terminal event to every
// subscriber and closes their channels.
func (a *activeJob) complete(summary Summary, err error) {
	e := Event{JobID: a.job.ID, Type: EventFinished, Stage: StageFinished, Stored: summary.Stored}
	if err != nil {
		ie := AsImportError(err)
		e = Event{
			JobID:   a.job.ID,
			Type:    EventFailed,
			Stage:   StageFinishedWithError,
			Stored:  summary.Stored,
			Message: ie.Message(),
			Code:    ie.User().Code,
		}
	}

	a.mu.Lock()
	a.summary = summary
	a.err = err
	a.last = e
	a.finished = true
	for _, ch := range a.listeners {
		deliverLast(ch, e)
		close(ch)
	}
	a.listeners = nil
	a.mu.Unlock()

	close(a.done)
}

// deliverLast makes room for e by dropping the oldest buffered event if
// needed.
func deliverLast(ch chan Event, e Event) {
	select {
	case ch <- e:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- e:
	default:
	}
}

func (a *activeJob) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	a.mu.Lock()
	defer a.mu.Unlock()

	ch <- a.last
	if a.finished {
		close(ch)
		return ch, func() {}
	}
	a.listeners = append(a.listeners, ch)

	var once sync.Once
	return ch, func() {
		once.Do(func() { a.unsubscribe(ch) })
	}
}

func (a *activeJob) unsubscribe(ch chan Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, l := range a.listeners {
		if l == ch {
			a.listeners = append(a.listeners[:i], a.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

func (a *activeJob) snapshot() Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

func (a *activeJob) wait(ctx context.Context) (Summary, error) {
	select {
	case <-a.done:
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summary, a.err
}

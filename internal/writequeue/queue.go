package writequeue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/heatpump-sync/internal/parameter"
)

// Default timings.
const (
	DefaultDebounce    = 500 * time.Millisecond
	DefaultMinInterval = 5 * time.Second
	DefaultSendTimeout = 30 * time.Second
)

// Batch is the set of parameter values sent in one remote write.
type Batch map[parameter.ID]float64

// IDs returns the batch identifiers in ascending order.
func (b Batch) IDs() []parameter.ID {
	ids := make([]parameter.ID, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Sender delivers a batch to the remote device.
type Sender func(ctx context.Context, batch Batch) error

// Logger is the logging surface used by the queue.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures a Queue. Zero values select the defaults.
type Options struct {
	Debounce    time.Duration
	MinInterval time.Duration
	SendTimeout time.Duration

	// OnFlushed runs after a successful batch, before the next batch may start.
	// It receives the written identifiers.
	OnFlushed func(ctx context.Context, ids []parameter.ID)

	Logger Logger
	Now    func() time.Time
}

type pendingWrite struct {
	value   float64
	handles []*Handle
}

// Queue coalesces and rate-limits parameter writes for one device.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Queue struct {
	send Sender
	opts Options

	mu           sync.Mutex
	pending      map[parameter.ID]*pendingWrite
	timer        *time.Timer
	gen          uint64
	inFlight     bool
	lastFlushEnd time.Time
	closed       bool
}

// New creates a queue that delivers batches through send.
func New(send Sender, opts Options) *Queue {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = DefaultMinInterval
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Queue{
		send:    send,
		opts:    opts,
		pending: make(map[parameter.ID]*pendingWrite),
	}
}

// Submit queues a write and (re)starts the debounce window.
//
// A later Submit for the same parameter before the batch is sent replaces the
// value; every handle for that parameter settles with the batch outcome.
func (q *Queue) Submit(id parameter.ID, value float64) *Handle {
	h := newHandle(id, value)

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		h.settle(ErrQueueClosed)
		return h
	}

	pw, ok := q.pending[id]
	if !ok {
		pw = &pendingWrite{}
		q.pending[id] = pw
	}
	pw.value = value
	pw.handles = append(pw.handles, h)

	q.opts.Logger.Debug("write queued", "parameter", id, "value", value, "request_id", h.id, "pending", len(q.pending))
	q.scheduleLocked(q.opts.Debounce)
	return h
}

// Clear cancels the pending timer and rejects every write not yet sent with
// ErrQueueCleared. A batch already in flight is unaffected.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.stopTimerLocked()
	pending := q.pending
	q.pending = make(map[parameter.ID]*pendingWrite)
	q.mu.Unlock()

	rejected := 0
	for _, pw := range pending {
		for _, h := range pw.handles {
			if h.settle(ErrQueueCleared) {
				rejected++
			}
		}
	}
	if rejected > 0 {
		q.opts.Logger.Info("write queue cleared", "rejected", rejected)
	}
}

// Close clears the queue and rejects later submissions with ErrQueueClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.Clear()
}

// Pending returns the number of parameters waiting to be sent.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// InFlight reports whether a batch is currently being sent.
func (q *Queue) InFlight() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

// LastFlush returns when the previous batch finished (zero if none).
func (q *Queue) LastFlush() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastFlushEnd
}

// scheduleLocked replaces the live continuation with one firing after d.
func (q *Queue) scheduleLocked(d time.Duration) {
	q.stopTimerLocked()
	gen := q.gen
	q.timer = time.AfterFunc(d, func() { q.fire(gen) })
}

func (q *Queue) stopTimerLocked() {
	q.gen++
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}

// fire is the single timer continuation. It either waits out the rate window
// or starts a flush.
func (q *Queue) fire(gen uint64) {
	q.mu.Lock()
	if gen != q.gen || q.inFlight || len(q.pending) == 0 {
		// Stale timer, or the running flush reschedules on completion.
		q.mu.Unlock()
		return
	}
	q.timer = nil

	if !q.lastFlushEnd.IsZero() {
		if wait := q.opts.MinInterval - q.opts.Now().Sub(q.lastFlushEnd); wait > 0 {
			q.opts.Logger.Debug("rate limit wait", "wait", wait, "pending", len(q.pending))
			q.scheduleLocked(wait)
			q.mu.Unlock()
			return
		}
	}

	batch := make(Batch, len(q.pending))
	var handles []*Handle
	for id, pw := range q.pending {
		batch[id] = pw.value
		handles = append(handles, pw.handles...)
	}
	q.pending = make(map[parameter.ID]*pendingWrite)
	q.inFlight = true
	q.mu.Unlock()

	q.flush(batch, handles)
}

func (q *Queue) flush(batch Batch, handles []*Handle) {
	ids := batch.IDs()
	q.opts.Logger.Info("flushing write batch", "size", len(batch), "parameters", ids)

	err := q.sendBatch(batch)
	if err != nil {
		q.opts.Logger.Warn("write batch failed", "parameters", ids, "error", err)
	}
	for _, h := range handles {
		h.settle(err)
	}

	if err == nil && q.opts.OnFlushed != nil {
		ctx, cancel := context.WithTimeout(context.Background(), q.opts.SendTimeout)
		q.opts.OnFlushed(ctx, ids)
		cancel()
	}

	q.mu.Lock()
	q.inFlight = false
	q.lastFlushEnd = q.opts.Now()
	if len(q.pending) > 0 {
		q.scheduleLocked(q.opts.Debounce)
	}
	q.mu.Unlock()
}

func (q *Queue) sendBatch(batch Batch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("writequeue: sender panic: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), q.opts.SendTimeout)
	defer cancel()
	return q.send(ctx, batch)
}

// Package writequeue batches parameter writes to a slow, rate-limited remote
// device.
//
// Submitted writes are coalesced per parameter (last value wins) over a short
// debounce window and released as one batch, never sooner than MinInterval
// after the previous batch finished. At most one batch is in flight at a time.
// Each Submit returns a Handle that settles exactly once with the outcome of
// the batch that carried the write.
//
// State machine:
//
//	Idle -> Accumulating -> (RateWait) -> Flushing -> Idle
//
// Only one timer continuation is live at any time; rescheduling bumps a
// generation counter so stale firings are ignored.
//
// # Usage
//
//	q := writequeue.New(sender, writequeue.Options{OnFlushed: repoll})
//	h := q.Submit(47398, 21.5)
//	if err := h.Wait(ctx); err != nil { ... }
package writequeue

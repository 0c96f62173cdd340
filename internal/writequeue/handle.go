package writequeue

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/nerrad567/heatpump-sync/internal/parameter"
)

// Handle tracks one submitted write until its batch is processed.
type Handle struct {
	id    string
	param parameter.ID
	value float64

	once sync.Once
	done chan struct{}
	err  error
}

func newHandle(param parameter.ID, value float64) *Handle {
	return &Handle{
		id:    uuid.NewString(),
		param: param,
		value: value,
		done:  make(chan struct{}),
	}
}

// ID returns the request correlation identifier.
func (h *Handle) ID() string { return h.id }

// Parameter returns the written parameter.
func (h *Handle) Parameter() parameter.ID { return h.param }

// Value returns the submitted value.
func (h *Handle) Value() float64 { return h.value }

// Done is closed once the handle has settled.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the outcome. It is nil before the handle settles and after a
// successful write.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until the handle settles or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// settle records the outcome. Later calls are ignored.
func (h *Handle) settle(err error) bool {
	settled := false
	h.once.Do(func() {
		h.err = err
		close(h.done)
		settled = true
	})
	return settled
}

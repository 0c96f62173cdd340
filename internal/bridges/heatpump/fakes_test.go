package heatpump

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/heatpump-sync/internal/infrastructure/mqtt"
	"github.com/nerrad567/heatpump-sync/internal/myuplink"
	"github.com/nerrad567/heatpump-sync/internal/parameter"
	"github.com/nerrad567/heatpump-sync/internal/settings"
	"github.com/nerrad567/heatpump-sync/internal/writelog"
)

var errRemoteRejected = errors.New("remote rejected write")

// fakeRemote serves parameter values from memory and applies writes to them.
type fakeRemote struct {
	mu      sync.Mutex
	values  map[parameter.ID]any
	fetches [][]parameter.ID
	writes  []map[parameter.ID]float64
	reject  map[parameter.ID]bool
	info    *myuplink.DeviceInfo

	// writeDelay holds each write for this long unless ctx ends first.
	writeDelay time.Duration
}

func newFakeRemote(values map[parameter.ID]any) *fakeRemote {
	if values == nil {
		values = make(map[parameter.ID]any)
	}
	return &fakeRemote{values: values, reject: make(map[parameter.ID]bool)}
}

func (r *fakeRemote) FetchDataPoints(_ context.Context, _ string, ids []parameter.ID) ([]parameter.DataPoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches = append(r.fetches, append([]parameter.ID(nil), ids...))

	var out []parameter.DataPoint
	for _, id := range ids {
		if v, ok := r.values[id]; ok {
			out = append(out, parameter.DataPoint{ID: id, Value: v})
		}
	}
	return out, nil
}

func (r *fakeRemote) WriteParameters(ctx context.Context, _ string, values map[parameter.ID]float64) error {
	r.mu.Lock()
	delay := r.writeDelay
	r.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	batch := make(map[parameter.ID]float64, len(values))
	for id, v := range values {
		batch[id] = v
	}
	r.writes = append(r.writes, batch)

	for id := range values {
		if r.reject[id] {
			return errRemoteRejected
		}
	}
	for id, v := range values {
		r.values[id] = v
	}
	return nil
}

func (r *fakeRemote) DeviceInfo(context.Context, string) (*myuplink.DeviceInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.info == nil {
		return nil, myuplink.ErrNotFound
	}
	return r.info, nil
}

func (r *fakeRemote) set(id parameter.ID, v any) {
	r.mu.Lock()
	r.values[id] = v
	r.mu.Unlock()
}

func (r *fakeRemote) writeBatches() []map[parameter.ID]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]map[parameter.ID]float64(nil), r.writes...)
}

func (r *fakeRemote) fetched(id parameter.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ids := range r.fetches {
		for _, got := range ids {
			if got == id {
				return true
			}
		}
	}
	return false
}

// fakeRecorder collects write log entries.
type fakeRecorder struct {
	mu      sync.Mutex
	entries []writelog.Entry
}

func (f *fakeRecorder) Create(_ context.Context, e *writelog.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeRecorder) all() []writelog.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]writelog.Entry(nil), f.entries...)
}

type published struct {
	topic    string
	payload  []byte
	retained bool
}

// fakeMQTT records publishes and captures subscription handlers.
type fakeMQTT struct {
	mu        sync.Mutex
	messages  []published
	handlers  map[string]mqtt.MessageHandler
	connected bool
}

func newFakeMQTT() *fakeMQTT {
	return &fakeMQTT{handlers: make(map[string]mqtt.MessageHandler), connected: true}
}

func (m *fakeMQTT) Publish(topic string, payload []byte, _ byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, published{topic: topic, payload: payload, retained: retained})
	return nil
}

func (m *fakeMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *fakeMQTT) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *fakeMQTT) handler(topic string) mqtt.MessageHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handlers[topic]
}

func (m *fakeMQTT) on(topic string) []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []published
	for _, msg := range m.messages {
		if msg.topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

func openSettings(t *testing.T) *settings.Store {
	t.Helper()
	store, err := settings.Open(filepath.Join(t.TempDir(), "settings.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

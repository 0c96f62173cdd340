package attribute

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"
)

// ChangeKind classifies an attribute change.
type ChangeKind string

// Change kinds.
const (
	ChangeAdded   ChangeKind = "added"
	ChangeUpdated ChangeKind = "updated"
	ChangeRemoved ChangeKind = "removed"
)

// Change describes one effective attribute change.
type Change struct {
	DeviceID  string     `json:"device_id"`
	Attribute string     `json:"attribute"`
	Kind      ChangeKind `json:"kind"`
	Value     any        `json:"value,omitempty"`
	Previous  any        `json:"previous,omitempty"`
	At        time.Time  `json:"at"`
}

// Listener receives attribute changes. It is called without the store lock
// held and must not block.
type Listener func(Change)

// Store is the attribute set of one device.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Store struct {
	deviceID string

	mu     sync.RWMutex
	values map[string]any

	listenerMu sync.RWMutex
	listeners  []Listener

	now func() time.Time
}

// NewStore creates an empty attribute store for a device.
func NewStore(deviceID string) *Store {
	return &Store{
		deviceID: deviceID,
		values:   make(map[string]any),
		now:      time.Now,
	}
}

// DeviceID returns the owning device.
func (s *Store) DeviceID() string {
	return s.deviceID
}

// OnChange registers a listener for subsequent changes.
func (s *Store) OnChange(l Listener) {
	if l == nil {
		return
	}
	s.listenerMu.Lock()
	s.listeners = append(s.listeners, l)
	s.listenerMu.Unlock()
}

// Get returns the value of name. A present attribute may hold nil until its
// first Set.
func (s *Store) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Float returns the value of name as a float64 when it holds a number.
func (s *Store) Float(name string) (float64, bool) {
	v, ok := s.Get(name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// Exists reports whether name is present.
func (s *Store) Exists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[name]
	return ok
}

// Add creates name with no value. Adding an existing attribute is a no-op.
func (s *Store) Add(name string) error {
	if name == "" {
		return ErrInvalidName
	}
	s.mu.Lock()
	if _, ok := s.values[name]; ok {
		s.mu.Unlock()
		return nil
	}
	s.values[name] = nil
	s.mu.Unlock()

	s.emit(Change{Attribute: name, Kind: ChangeAdded})
	return nil
}

// Set updates an existing attribute. Listeners are only notified when the
// value changes.
func (s *Store) Set(name string, value any) error {
	s.mu.Lock()
	prev, ok := s.values[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if prev != nil && reflect.DeepEqual(prev, value) {
		s.mu.Unlock()
		return nil
	}
	s.values[name] = value
	s.mu.Unlock()

	s.emit(Change{Attribute: name, Kind: ChangeUpdated, Value: value, Previous: prev})
	return nil
}

// Upsert adds name if needed and sets its value.
func (s *Store) Upsert(name string, value any) error {
	if err := s.Add(name); err != nil {
		return err
	}
	return s.Set(name, value)
}

// Remove deletes name. Removing a missing attribute is a no-op.
func (s *Store) Remove(name string) {
	s.mu.Lock()
	prev, ok := s.values[name]
	if ok {
		delete(s.values, name)
	}
	s.mu.Unlock()

	if ok {
		s.emit(Change{Attribute: name, Kind: ChangeRemoved, Previous: prev})
	}
}

// Names returns the present attribute names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of all attributes.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func (s *Store) emit(c Change) {
	c.DeviceID = s.deviceID
	c.At = s.now().UTC()

	s.listenerMu.RLock()
	listeners := s.listeners
	s.listenerMu.RUnlock()

	for _, l := range listeners {
		l(c)
	}
}

package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

const (
	devicesBucket = "devices"
	stateBucket   = "state"
)

// ErrNotFound is returned when a state key has never been saved.
var ErrNotFound = errors.New("settings: key not found")

// Listener is called after a Put commits with the keys whose value changed.
type Listener func(deviceID string, changed []string, values Values)

// Store is a bbolt-backed settings store.
type Store struct {
	db *bbolt.DB

	mu        sync.RWMutex
	listeners []Listener
}

// Open opens or creates the settings file at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening settings file: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{devicesBucket, stateBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("creating %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying file.
func (s *Store) Close() error {
	return s.db.Close()
}

// OnChange registers a listener.
func (s *Store) OnChange(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Get returns all settings for a device. A device with no settings yields an
// empty map.
func (s *Store) Get(deviceID string) (Values, error) {
	values := Values{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(devicesBucket)).Bucket([]byte(deviceID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return fmt.Errorf("decoding %s: %w", k, err)
			}
			values[string(k)] = val
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// Put merges updates into a device's settings. A nil value deletes the key.
// Listeners are called with the sorted changed keys when anything changed.
func (s *Store) Put(deviceID string, updates Values) ([]string, error) {
	var changed []string
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket([]byte(devicesBucket)).CreateBucketIfNotExists([]byte(deviceID))
		if err != nil {
			return fmt.Errorf("creating device bucket: %w", err)
		}
		for k, v := range updates {
			key := []byte(k)
			if v == nil {
				if b.Get(key) != nil {
					if err := b.Delete(key); err != nil {
						return err
					}
					changed = append(changed, k)
				}
				continue
			}
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encoding %s: %w", k, err)
			}
			if bytes.Equal(b.Get(key), data) {
				continue
			}
			if err := b.Put(key, data); err != nil {
				return err
			}
			changed = append(changed, k)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return nil, nil
	}
	sort.Strings(changed)

	values, err := s.Get(deviceID)
	if err != nil {
		return changed, err
	}
	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, l := range listeners {
		l(deviceID, changed, values.Clone())
	}
	return changed, nil
}

// Seed stores defaults for keys the device does not have yet. It does not
// notify listeners.
func (s *Store) Seed(deviceID string, defaults Values) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket([]byte(devicesBucket)).CreateBucketIfNotExists([]byte(deviceID))
		if err != nil {
			return fmt.Errorf("creating device bucket: %w", err)
		}
		for k, v := range defaults {
			if v == nil || b.Get([]byte(k)) != nil {
				continue
			}
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encoding %s: %w", k, err)
			}
			if err := b.Put([]byte(k), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveState stores a numeric state value for a device.
func (s *Store) SaveState(deviceID, key string, value float64) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(stateBucket)).Put(stateKey(deviceID, key), data)
	})
}

// LoadState returns a numeric state value, or ErrNotFound.
func (s *Store) LoadState(deviceID, key string) (float64, error) {
	var value float64
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(stateBucket)).Get(stateKey(deviceID, key))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &value)
	})
	return value, err
}

func stateKey(deviceID, key string) []byte {
	return []byte(deviceID + "/" + key)
}

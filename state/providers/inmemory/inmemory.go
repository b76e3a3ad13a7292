// Package inmemory is the process-local state.Store provider: no network
// round trip, nothing survives a restart. Used in tests and in any
// single-process deployment that doesn't need durability across restarts.
package inmemory

import (
	"context"
	"errors"
	"sync"

	"github.com/callwave/callwave/state"
)

func init() {
	state.Register("inmemory", func(cfg state.Config) (state.Store, error) {
		return New(), nil
	})
}

var errClosed = errors.New("inmemory: store is closed")

// Store is a mutex-guarded map[string]any with fan-out Watch channels per
// key, matching the teacher's usual in-process registry shape (map +
// sync.Mutex + check-then-write).
type Store struct {
	mu       sync.Mutex
	data     map[string]any
	watchers map[string][]chan state.StateChange
	closed   bool
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		data:     make(map[string]any),
		watchers: make(map[string][]chan state.StateChange),
	}
}

func (s *Store) Get(ctx context.Context, key string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	return s.data[key], nil
}

func (s *Store) Set(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	old := s.data[key]
	s.data[key] = value
	s.notify(key, state.StateChange{Key: key, OldValue: old, Value: value, Op: state.OpSet})
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	old, existed := s.data[key]
	if !existed {
		return nil
	}
	delete(s.data, key)
	s.notify(key, state.StateChange{Key: key, OldValue: old, Value: nil, Op: state.OpDelete})
	return nil
}

// Watch returns a buffered channel fed every Set/Delete of key until ctx is
// cancelled or Close is called, at which point the channel is closed.
func (s *Store) Watch(ctx context.Context, key string) (<-chan state.StateChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errClosed
	}
	ch := make(chan state.StateChange, 16)
	s.watchers[key] = append(s.watchers[key], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.removeWatcher(key, ch)
	}()

	return ch, nil
}

func (s *Store) removeWatcher(key string, ch chan state.StateChange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	watchers := s.watchers[key]
	for i, w := range watchers {
		if w == ch {
			s.watchers[key] = append(watchers[:i], watchers[i+1:]...)
			close(ch)
			return
		}
	}
}

// notify delivers change to every watcher of key. Called with mu held.
func (s *Store) notify(key string, change state.StateChange) {
	for _, ch := range s.watchers[key] {
		ch <- change
	}
}

// Close releases every watcher channel and marks the store unusable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, channels := range s.watchers {
		for _, ch := range channels {
			close(ch)
		}
	}
	s.watchers = make(map[string][]chan state.StateChange)
	return nil
}

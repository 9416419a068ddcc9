package regime

import "sync/atomic"

// Store publishes trained models copy-on-publish: a retrain swaps the new
// model in atomically while in-flight classifications keep the pointer they
// already loaded. Models are never mutated after Fit, so readers need no
// locking.
type Store struct {
	current atomic.Pointer[Model]
}

func NewStore() *Store {
	return &Store{}
}

// Publish makes m the current model for subsequent Current calls.
func (s *Store) Publish(m *Model) {
	s.current.Store(m)
}

// Current returns the published model, or nil when none has been loaded.
func (s *Store) Current() *Model {
	return s.current.Load()
}

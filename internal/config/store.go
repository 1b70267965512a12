package config

import "sync/atomic"

// Store holds the active configuration. Reloads publish a whole new Config
// value, so concurrent readers always see a complete snapshot and never a
// half-written struct.
type Store struct {
	current atomic.Pointer[Config]
}

func NewStore(cfg *Config) *Store {
	s := &Store{}
	s.current.Store(cfg)
	return s
}

// Load returns the current snapshot. Callers read one snapshot per
// operation and must not mutate it.
func (s *Store) Load() *Config {
	return s.current.Load()
}

// Swap publishes a new configuration for subsequent Loads.
func (s *Store) Swap(cfg *Config) {
	s.current.Store(cfg)
}

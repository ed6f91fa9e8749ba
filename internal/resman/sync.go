package resman

import "sync"

// Sync serializes access to a Manager. Factories run while the lock is
// held, so a factory must not call back into the same Sync.
type Sync struct {
	mu sync.Mutex
	m  *Manager
}

// NewSync wraps m. m must not be used directly afterwards.
func NewSync(m *Manager) *Sync {
	return &Sync{m: m}
}

// Do runs fn with exclusive access to the manager, for the typed helpers.
func (s *Sync) Do(fn func(m *Manager)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.m)
}

func (s *Sync) RegisterFactory(typeName string, factory Factory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.RegisterFactory(typeName, factory)
}

func (s *Sync) Load(typeName, path string) (Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Load(typeName, path)
}

func (s *Sync) Get(typeName, path string) (Resource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Get(typeName, path)
}

func (s *Sync) Insert(typeName, path string, r Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Insert(typeName, path, r)
}

func (s *Sync) Unload(typeName string, res *Resource) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Unload(typeName, res)
}

func (s *Sync) Has(typeName, path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Has(typeName, path)
}

func (s *Sync) Stats(typeName string) (Stats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Stats(typeName)
}

func (s *Sync) BaseDir() string {
	return s.m.BaseDir()
}

func (s *Sync) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Close()
}

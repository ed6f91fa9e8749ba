// Package resman caches resources by type and path, constructing them on
// first use.
//
// A Manager holds one type cache per registered type name. Each type cache
// pairs a Factory with a table of path -> resource. Load returns the cached
// resource or calls the factory and caches its result; Unload and Close
// release resources. A released resource has its Close (io.Closer) or
// Release (Releaser) method called.
//
// Manager is single-threaded. Wrap it in Sync to share it across goroutines.
package resman

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"slices"

	"github.com/l1jgo/resman/internal/table"
	"go.uber.org/zap"
)

// Resource is a value produced by a Factory. Resources are matched by ==,
// so they should be pointers or other comparable handles.
type Resource = any

// Factory builds the resource stored at path. A nil resource with a nil
// error means the factory declined; nothing is cached and the next Load
// calls the factory again.
type Factory func(path string) (Resource, error)

// Releaser is implemented by resources that need cleanup but have no error
// to report.
type Releaser interface {
	Release()
}

// Stats counts activity on one resource type.
type Stats struct {
	Cached   int
	Hits     uint64
	Misses   uint64
	Loads    uint64 // factory calls
	Declined uint64
	Failures uint64
	Released uint64
}

type typeCache struct {
	name    string
	factory Factory
	data    *table.Table[Resource]
	stats   Stats
}

// Manager owns every type cache and every cached resource. A nil *Manager,
// such as the one Destroy leaves behind, behaves like a closed one.
type Manager struct {
	baseDir         string
	caches          *table.Table[*typeCache]
	refs            map[Resource]int // cache entries holding each resource
	log             *zap.Logger
	initialCapacity int

	closed    bool
	closing   bool
	closeErrs []error
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithInitialCapacity sets the starting slot count of every table the
// manager creates.
func WithInitialCapacity(n int) Option {
	return func(m *Manager) {
		m.initialCapacity = n
	}
}

// New creates an empty manager. baseDir is stored for Resolve; the manager
// itself never touches the filesystem.
func New(baseDir string, opts ...Option) *Manager {
	m := &Manager{
		baseDir: baseDir,
		refs:    make(map[Resource]int),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.caches = table.New(table.Options[*typeCache]{
		InitialCapacity: m.initialCapacity,
		Release: func(_ string, c *typeCache) {
			c.data.Clear()
		},
	})
	return m
}

// Destroy closes *pm and sets it to nil. It is a no-op for a nil manager.
func Destroy(pm **Manager) error {
	if pm == nil || *pm == nil {
		return nil
	}
	err := (*pm).Close()
	*pm = nil
	return err
}

// Close releases every cached resource and type cache. Later calls fail
// with ErrClosed. Errors from resource Close methods are joined.
func (m *Manager) Close() error {
	if m == nil || m.closed {
		return nil
	}
	m.closed = true
	m.closing = true
	m.caches.Clear()
	m.closing = false

	err := errors.Join(m.closeErrs...)
	m.closeErrs = nil
	m.log.Debug("resource manager closed", zap.String("base_dir", m.baseDir))
	return err
}

// BaseDir returns the directory the manager was created with.
func (m *Manager) BaseDir() string {
	if m == nil {
		return ""
	}
	return m.baseDir
}

// Resolve joins a slash-separated resource path onto the base directory.
func (m *Manager) Resolve(path string) string {
	return filepath.Join(m.BaseDir(), filepath.FromSlash(path))
}

// RegisterFactory sets the factory for typeName, creating its cache on
// first use. Re-registering replaces only the factory; resources already
// cached stay. A nil factory leaves the type for manual population via
// Insert.
func (m *Manager) RegisterFactory(typeName string, factory Factory) error {
	if m == nil || m.closed {
		return ErrClosed
	}
	if c, ok := m.caches.Get(typeName); ok {
		c.factory = factory
		return nil
	}

	c := m.newTypeCache(typeName, factory)
	if err := m.caches.Set(typeName, c); err != nil {
		return fmt.Errorf("register %s: %w", typeName, err)
	}
	m.log.Debug("resource type registered", zap.String("type", typeName))
	return nil
}

func (m *Manager) newTypeCache(name string, factory Factory) *typeCache {
	c := &typeCache{name: name, factory: factory}
	c.data = table.New(table.Options[Resource]{
		InitialCapacity: m.initialCapacity,
		Release: func(path string, r Resource) {
			// A resource cached under several keys is released with the last.
			if m.unref(r) > 0 {
				return
			}
			c.stats.Released++
			m.release(c.name, path, r)
		},
	})
	return c
}

func (m *Manager) release(typeName, path string, r Resource) {
	var err error
	switch v := r.(type) {
	case io.Closer:
		err = v.Close()
	case Releaser:
		v.Release()
	}
	if err != nil {
		m.log.Warn("release resource",
			zap.String("type", typeName),
			zap.String("path", path),
			zap.Error(err),
		)
		if m.closing {
			m.closeErrs = append(m.closeErrs, fmt.Errorf("release %s %q: %w", typeName, path, err))
		}
		return
	}
	m.log.Debug("resource released", zap.String("type", typeName), zap.String("path", path))
}

func (m *Manager) cache(typeName string) (*typeCache, error) {
	if m == nil || m.closed {
		return nil, ErrClosed
	}
	c, ok := m.caches.Get(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, typeName)
	}
	return c, nil
}

// Load returns the resource cached for (typeName, path), calling the
// type's factory on a miss. The returned resource is borrowed: it stays
// owned by the manager until Unload or Close.
func (m *Manager) Load(typeName, path string) (Resource, error) {
	c, err := m.cache(typeName)
	if err != nil {
		return nil, err
	}
	if r, ok := c.data.Get(path); ok {
		c.stats.Hits++
		return r, nil
	}
	c.stats.Misses++

	if c.factory == nil {
		return nil, fmt.Errorf("load %s %q: %w", typeName, path, ErrNoFactory)
	}

	c.stats.Loads++
	r, err := c.factory(path)
	if err != nil {
		c.stats.Failures++
		m.log.Warn("resource factory failed",
			zap.String("type", typeName),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, fmt.Errorf("load %s %q: %w: %w", typeName, path, ErrFactory, err)
	}
	if isNil(r) {
		c.stats.Declined++
		return nil, fmt.Errorf("load %s %q: %w", typeName, path, ErrDeclined)
	}

	if err := m.store(c, path, r); err != nil {
		if !m.cached(r) {
			m.release(typeName, path, r)
		}
		return nil, fmt.Errorf("load %s %q: %w", typeName, path, err)
	}
	m.log.Debug("resource loaded", zap.String("type", typeName), zap.String("path", path))
	return r, nil
}

// Get returns the cached resource without calling the factory.
func (m *Manager) Get(typeName, path string) (Resource, bool) {
	c, err := m.cache(typeName)
	if err != nil {
		return nil, false
	}
	return c.data.Get(path)
}

// Insert caches r under (typeName, path) directly. The type must be
// registered. A different resource already cached at path is released.
func (m *Manager) Insert(typeName, path string, r Resource) error {
	c, err := m.cache(typeName)
	if err != nil {
		return err
	}
	if isNil(r) {
		return fmt.Errorf("insert %s %q: %w: nil", typeName, path, ErrInvalidResource)
	}
	if err := m.store(c, path, r); err != nil {
		return fmt.Errorf("insert %s %q: %w", typeName, path, err)
	}
	return nil
}

// store caches r at path. r must be comparable all the way down, since
// the table and refs compare it with ==.
func (m *Manager) store(c *typeCache, path string, r Resource) error {
	if !reflect.ValueOf(r).Comparable() {
		return fmt.Errorf("%w: %T is not comparable", ErrInvalidResource, r)
	}
	if old, ok := c.data.Get(path); ok && old == r {
		return nil
	}
	m.refs[r]++
	if err := c.data.Set(path, r); err != nil {
		m.unref(r)
		return err
	}
	return nil
}

// unref drops one cache entry's hold on r and returns the holds left.
func (m *Manager) unref(r Resource) int {
	n := m.refs[r] - 1
	if n <= 0 {
		delete(m.refs, r)
		return 0
	}
	m.refs[r] = n
	return n
}

func (m *Manager) cached(r Resource) bool {
	if isNil(r) || !reflect.ValueOf(r).Comparable() {
		return false
	}
	return m.refs[r] > 0
}

// Unload removes the entry holding *res in typeName and sets *res to nil.
// Unknown types, unknown resources and nil references are no-ops. It
// reports whether an entry was removed; a resource cached under several
// paths is released when its last entry goes.
func (m *Manager) Unload(typeName string, res *Resource) bool {
	if res == nil {
		return false
	}
	r := *res
	*res = nil
	if isNil(r) || !reflect.ValueOf(r).Comparable() {
		return false
	}

	c, err := m.cache(typeName)
	if err != nil {
		return false
	}
	removed, _ := c.data.EraseValue(r)
	return removed
}

// Evict releases the resource cached at path, if any.
func (m *Manager) Evict(typeName, path string) bool {
	c, err := m.cache(typeName)
	if err != nil {
		return false
	}
	return c.data.Erase(path)
}

// Has reports whether a resource is cached for (typeName, path).
func (m *Manager) Has(typeName, path string) bool {
	c, err := m.cache(typeName)
	if err != nil {
		return false
	}
	return c.data.Has(path)
}

// Registered reports whether typeName has a type cache.
func (m *Manager) Registered(typeName string) bool {
	_, err := m.cache(typeName)
	return err == nil
}

// Types returns the registered type names, sorted.
func (m *Manager) Types() []string {
	if m == nil || m.closed {
		return nil
	}
	names := m.caches.Keys()
	slices.Sort(names)
	return names
}

// Paths returns the cached paths of typeName, sorted.
func (m *Manager) Paths(typeName string) []string {
	c, err := m.cache(typeName)
	if err != nil {
		return nil
	}
	paths := c.data.Keys()
	slices.Sort(paths)
	return paths
}

// Len returns the number of resources cached for typeName.
func (m *Manager) Len(typeName string) int {
	c, err := m.cache(typeName)
	if err != nil {
		return 0
	}
	return c.data.Len()
}

// Stats returns the counters of typeName.
func (m *Manager) Stats(typeName string) (Stats, bool) {
	c, err := m.cache(typeName)
	if err != nil {
		return Stats{}, false
	}
	s := c.stats
	s.Cached = c.data.Len()
	return s, true
}

func isNil(r Resource) bool {
	if r == nil {
		return true
	}
	v := reflect.ValueOf(r)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

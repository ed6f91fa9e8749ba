package resman

import (
	"fmt"
	"reflect"
)

// TypeKey returns the type name under which the typed helpers register T.
// Named types are qualified by their package path so two packages with the
// same short name do not share a cache.
func TypeKey[T any]() string {
	return typeKey(reflect.TypeOf((*T)(nil)).Elem())
}

func typeKey(t reflect.Type) string {
	switch {
	case t.Kind() == reflect.Pointer:
		return "*" + typeKey(t.Elem())
	case t.Name() != "" && t.PkgPath() != "":
		return t.PkgPath() + "." + t.Name()
	default:
		return t.String()
	}
}

// Register sets a typed factory for T. A factory returning the zero value
// of T declines, as a nil Resource does for an untyped Factory.
func Register[T comparable](m *Manager, factory func(path string) (T, error)) error {
	if factory == nil {
		return m.RegisterFactory(TypeKey[T](), nil)
	}
	return m.RegisterFactory(TypeKey[T](), func(path string) (Resource, error) {
		v, err := factory(path)
		if err != nil {
			return nil, err
		}
		var zero T
		if v == zero {
			return nil, nil
		}
		return v, nil
	})
}

// Load returns the T cached at path, building it on a miss.
func Load[T comparable](m *Manager, path string) (T, error) {
	var zero T
	key := TypeKey[T]()
	r, err := m.Load(key, path)
	if err != nil {
		return zero, err
	}
	v, ok := r.(T)
	if !ok {
		return zero, fmt.Errorf("load %s %q: %w: %T", key, path, ErrTypeMismatch, r)
	}
	return v, nil
}

// Insert caches v at path under T's type key.
func Insert[T comparable](m *Manager, path string, v T) error {
	return m.Insert(TypeKey[T](), path, v)
}

// Unload releases *res and sets it to the zero value of T.
func Unload[T comparable](m *Manager, res *T) bool {
	if res == nil {
		return false
	}
	var zero T
	v := *res
	*res = zero
	if v == zero {
		return false
	}
	r := Resource(v)
	return m.Unload(TypeKey[T](), &r)
}

// Has reports whether a T is cached at path.
func Has[T any](m *Manager, path string) bool {
	return m.Has(TypeKey[T](), path)
}

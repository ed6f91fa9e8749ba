// Package table implements a string-keyed open-addressing hash table.
//
// Slots are probed linearly from the FNV-1a hash of the key masked by
// capacity-1, so capacity is always a power of two. The table doubles before
// an insert would take it past half full. Deletion shifts the following
// cluster back into the freed slot, so empty is the only non-live slot state.
//
// The zero value of V means "absent" and is never stored.
package table

import (
	"errors"
	"math/bits"
)

// DefaultCapacity is the slot count of a table created without options.
const DefaultCapacity = 16

// maxCapacity is the largest slot count the table grows to.
const maxCapacity = 1 << (bits.UintSize - 2)

var (
	ErrZeroValue        = errors.New("table: zero value is reserved for absence")
	ErrCapacityOverflow = errors.New("table: capacity overflow")
)

// Options configures a Table.
type Options[V comparable] struct {
	// InitialCapacity is rounded up to a power of two. <= 0 means DefaultCapacity.
	InitialCapacity int

	// Release is called with every value that leaves the table: erased,
	// replaced by a different value, or dropped by Clear.
	Release func(key string, value V)
}

type entry[V comparable] struct {
	key   string
	hash  uint64
	value V
	used  bool
}

// Table maps strings to values of V. Not safe for concurrent use.
type Table[V comparable] struct {
	entries []entry[V]
	length  int
	initCap int
	release func(key string, value V)
}

// New returns an empty table.
func New[V comparable](opts Options[V]) *Table[V] {
	capacity := roundCapacity(opts.InitialCapacity)
	return &Table[V]{
		entries: make([]entry[V], capacity),
		initCap: capacity,
		release: opts.Release,
	}
}

func roundCapacity(n int) int {
	if n <= 0 {
		return DefaultCapacity
	}
	if n >= maxCapacity {
		return maxCapacity
	}
	if n < 2 {
		return 2
	}
	return 1 << bits.Len(uint(n-1))
}

// FNV-1a 64.
const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

func hashKey(key string) uint64 {
	h := uint64(fnvOffset64)
	for i := 0; i < len(key); i++ {
		h ^= uint64(key[i])
		h *= fnvPrime64
	}
	return h
}

// Len returns the number of live entries.
func (t *Table[V]) Len() int {
	return t.length
}

// Cap returns the current slot count.
func (t *Table[V]) Cap() int {
	return len(t.entries)
}

func (t *Table[V]) mask() uint64 {
	return uint64(len(t.entries) - 1)
}

// find returns the slot holding key, or the empty slot ending its probe
// sequence together with found=false.
func (t *Table[V]) find(key string, hash uint64) (int, bool) {
	mask := t.mask()
	i := int(hash & mask)
	for t.entries[i].used {
		if t.entries[i].hash == hash && t.entries[i].key == key {
			return i, true
		}
		i = int(uint64(i+1) & mask)
	}
	return i, false
}

// Get returns the value stored under key.
func (t *Table[V]) Get(key string) (V, bool) {
	i, ok := t.find(key, hashKey(key))
	if !ok {
		var zero V
		return zero, false
	}
	return t.entries[i].value, true
}

// Has reports whether key is present.
func (t *Table[V]) Has(key string) bool {
	_, ok := t.find(key, hashKey(key))
	return ok
}

// Set inserts or overwrites the entry for key.
//
// The table grows before the insert once it is half full. If the previous
// value differs from value it is handed to the release hook.
func (t *Table[V]) Set(key string, value V) error {
	var zero V
	if value == zero {
		return ErrZeroValue
	}

	if t.length >= len(t.entries)/2 {
		if err := t.grow(); err != nil {
			return err
		}
	}

	hash := hashKey(key)
	i, ok := t.find(key, hash)
	if ok {
		old := t.entries[i].value
		t.entries[i].value = value
		if old != value && t.release != nil {
			t.release(key, old)
		}
		return nil
	}

	t.entries[i] = entry[V]{key: key, hash: hash, value: value, used: true}
	t.length++
	return nil
}

func (t *Table[V]) grow() error {
	if len(t.entries) >= maxCapacity {
		return ErrCapacityOverflow
	}
	old := t.entries
	t.entries = make([]entry[V], len(old)*2)

	mask := t.mask()
	for _, e := range old {
		if !e.used {
			continue
		}
		i := int(e.hash & mask)
		for t.entries[i].used {
			i = int(uint64(i+1) & mask)
		}
		t.entries[i] = e
	}
	return nil
}

// Erase removes key. It reports whether an entry was removed.
func (t *Table[V]) Erase(key string) bool {
	i, ok := t.find(key, hashKey(key))
	if !ok {
		return false
	}
	t.removeAt(i)
	return true
}

// EraseValue removes the entry whose value equals value. For pointer values
// this is identity. The zero value is rejected with ErrZeroValue.
func (t *Table[V]) EraseValue(value V) (bool, error) {
	var zero V
	if value == zero {
		return false, ErrZeroValue
	}
	for i := range t.entries {
		if t.entries[i].used && t.entries[i].value == value {
			t.removeAt(i)
			return true, nil
		}
	}
	return false, nil
}

// removeAt empties slot i and pulls later members of the cluster back so
// every remaining key stays reachable from its home slot.
func (t *Table[V]) removeAt(i int) {
	removed := t.entries[i]
	mask := t.mask()

	hole := i
	j := i
	for {
		j = int(uint64(j+1) & mask)
		if !t.entries[j].used {
			break
		}
		home := int(t.entries[j].hash & mask)
		// Move j into the hole unless its home lies cyclically in (hole, j].
		if cyclicBetween(hole, home, j) {
			continue
		}
		t.entries[hole] = t.entries[j]
		hole = j
	}
	t.entries[hole] = entry[V]{}
	t.length--

	if t.release != nil {
		t.release(removed.key, removed.value)
	}
}

// cyclicBetween reports whether x is in the half-open ring interval (lo, hi].
func cyclicBetween(lo, x, hi int) bool {
	if lo <= hi {
		return lo < x && x <= hi
	}
	return lo < x || x <= hi
}

// Range calls fn for each live entry in slot order until fn returns false.
// fn must not modify the table.
func (t *Table[V]) Range(fn func(key string, value V) bool) {
	for i := range t.entries {
		if t.entries[i].used && !fn(t.entries[i].key, t.entries[i].value) {
			return
		}
	}
}

// Keys returns the live keys in slot order.
func (t *Table[V]) Keys() []string {
	keys := make([]string, 0, t.length)
	t.Range(func(key string, _ V) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// Clear releases every live entry and shrinks the table back to its
// initial capacity.
func (t *Table[V]) Clear() {
	old := t.entries
	t.entries = make([]entry[V], t.initCap)
	t.length = 0
	if t.release == nil {
		return
	}
	for _, e := range old {
		if e.used {
			t.release(e.key, e.value)
		}
	}
}

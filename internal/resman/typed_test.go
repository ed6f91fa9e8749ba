package resman

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type texture struct {
	path string
}

type sound struct {
	path string
}

func TestTypeKey(t *testing.T) {
	assert.Equal(t, "*github.com/l1jgo/resman/internal/resman.texture", TypeKey[*texture]())
	assert.Equal(t, "github.com/l1jgo/resman/internal/resman.sound", TypeKey[sound]())
	assert.Equal(t, "string", TypeKey[string]())
	assert.Equal(t, "[]uint8", TypeKey[[]byte]())
	assert.NotEqual(t, TypeKey[*texture](), TypeKey[*sound]())
}

func TestTypedRoundTrip(t *testing.T) {
	m := New("assets")
	calls := 0
	require.NoError(t, Register(m, func(path string) (*texture, error) {
		calls++
		return &texture{path: path}, nil
	}))

	a, err := Load[*texture](m, "ui/button.png")
	require.NoError(t, err)
	b, err := Load[*texture](m, "ui/button.png")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, calls)
	assert.True(t, Has[*texture](m, "ui/button.png"))
	assert.False(t, Has[*sound](m, "ui/button.png"))

	assert.True(t, Unload(m, &a))
	assert.Nil(t, a)
	assert.False(t, Has[*texture](m, "ui/button.png"))
	assert.False(t, Unload(m, &a))
	assert.False(t, Unload[*texture](m, nil))
}

func TestTypedDecline(t *testing.T) {
	m := New("assets")
	require.NoError(t, Register(m, func(string) (*texture, error) { return nil, nil }))
	v, err := Load[*texture](m, "x")
	assert.ErrorIs(t, err, ErrDeclined)
	assert.Nil(t, v)
}

func TestTypedNotRegistered(t *testing.T) {
	m := New("assets")
	_, err := Load[*sound](m, "x")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestTypedManualInsert(t *testing.T) {
	m := New("assets")
	require.NoError(t, Register[*sound](m, nil))

	s := &sound{path: "bgm.ogg"}
	require.NoError(t, Insert(m, "bgm.ogg", s))
	got, err := Load[*sound](m, "bgm.ogg")
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = Load[*sound](m, "other.ogg")
	assert.ErrorIs(t, err, ErrNoFactory)
}

func TestTypedMismatch(t *testing.T) {
	m := New("assets")
	key := TypeKey[*texture]()
	require.NoError(t, m.RegisterFactory(key, nil))
	require.NoError(t, m.Insert(key, "odd", &sound{path: "odd"}))

	_, err := Load[*texture](m, "odd")
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestSyncConcurrentLoads(t *testing.T) {
	var mu sync.Mutex
	calls := map[string]int{}
	s := NewSync(New("assets"))
	require.NoError(t, s.RegisterFactory("texture", func(path string) (Resource, error) {
		mu.Lock()
		calls[path]++
		mu.Unlock()
		return &texture{path: path}, nil
	}))

	paths := []string{"a.png", "b.png", "c.png", "d.png"}
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for _, p := range paths {
				r, err := s.Load("texture", p)
				if assert.NoError(t, err) {
					assert.Equal(t, p, r.(*texture).path)
				}
			}
		}(i)
	}
	wg.Wait()

	for _, p := range paths {
		assert.Equal(t, 1, calls[p], p)
		assert.True(t, s.Has("texture", p))
	}
	stats, ok := s.Stats("texture")
	require.True(t, ok)
	assert.Equal(t, 4, stats.Cached)
	assert.Equal(t, uint64(4), stats.Loads)

	s.Do(func(m *Manager) {
		assert.Equal(t, paths, m.Paths("texture"))
	})

	r, ok := s.Get("texture", "a.png")
	require.True(t, ok)
	assert.True(t, s.Unload("texture", &r))
	assert.False(t, s.Has("texture", "a.png"))

	require.NoError(t, s.Insert("texture", "manual.png", &texture{path: "manual.png"}))
	assert.Equal(t, "assets", s.BaseDir())
	require.NoError(t, s.Close())
	_, err := s.Load("texture", "a.png")
	assert.ErrorIs(t, err, ErrClosed)
}

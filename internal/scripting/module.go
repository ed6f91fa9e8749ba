package scripting

import (
	"errors"
	"fmt"

	"github.com/l1jgo/resman/internal/resman"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// APIVersion is exposed to every module as the API_VERSION global.
const APIVersion = 1

var (
	ErrNoFunction   = errors.New("lua function not found")
	ErrModuleClosed = errors.New("lua module closed")
)

// Module is a Lua VM with one chunk executed in it. Single-goroutine access
// only.
type Module struct {
	Path string
	vm   *lua.LState
	log  *zap.Logger
}

// NewModule creates a VM and runs s in it. The VM is closed if the chunk
// fails.
func NewModule(s *Script, log *zap.Logger) (*Module, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(APIVersion))

	if err := s.Exec(vm); err != nil {
		vm.Close()
		return nil, err
	}
	vm.SetTop(0)
	return &Module{Path: s.Path, vm: vm, log: log}, nil
}

// ModuleFactory compiles and executes .lua files under root, one VM each.
func ModuleFactory(root string, log *zap.Logger) resman.Factory {
	if log == nil {
		log = zap.NewNop()
	}
	scripts := ScriptFactory(root, log)
	return func(path string) (resman.Resource, error) {
		r, err := scripts(path)
		if err != nil {
			return nil, err
		}
		mod, err := NewModule(r.(*Script), log)
		if err != nil {
			return nil, err
		}
		log.Debug("loaded lua module", zap.String("file", path))
		return mod, nil
	}
}

// Global returns a global of the module's VM, LNil when unset or closed.
func (m *Module) Global(name string) lua.LValue {
	if m.vm == nil {
		return lua.LNil
	}
	return m.vm.GetGlobal(name)
}

// Call invokes the global function fn and returns all of its results.
func (m *Module) Call(fn string, args ...lua.LValue) ([]lua.LValue, error) {
	if m.vm == nil {
		return nil, fmt.Errorf("call %s in %s: %w", fn, m.Path, ErrModuleClosed)
	}
	f, ok := m.vm.GetGlobal(fn).(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrNoFunction, fn, m.Path)
	}

	top := m.vm.GetTop()
	if err := m.vm.CallByParam(lua.P{
		Fn:      f,
		NRet:    lua.MultRet,
		Protect: true,
	}, args...); err != nil {
		m.vm.SetTop(top)
		m.log.Error("lua call error",
			zap.String("file", m.Path),
			zap.String("fn", fn),
			zap.Error(err),
		)
		return nil, fmt.Errorf("call %s in %s: %w", fn, m.Path, err)
	}

	n := m.vm.GetTop() - top
	results := make([]lua.LValue, n)
	for i := range results {
		results[i] = m.vm.Get(top + 1 + i)
	}
	m.vm.Pop(n)
	return results, nil
}

// Closed reports whether Close has run.
func (m *Module) Closed() bool {
	return m.vm == nil
}

// Close shuts the VM down. The resource cache calls it on unload.
func (m *Module) Close() error {
	if m.vm == nil {
		return nil
	}
	m.vm.Close()
	m.vm = nil
	m.log.Debug("lua module closed", zap.String("file", m.Path))
	return nil
}

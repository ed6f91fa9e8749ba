// Package scripting provides Lua resource factories on top of gopher-lua.
//
// A Script is compiled bytecode that callers run on their own LState.
// A Module owns a VM with its chunk already executed; the cache closes the
// VM when the module is unloaded.
package scripting

import (
	"bytes"
	"fmt"

	"github.com/l1jgo/resman/internal/data"
	"github.com/l1jgo/resman/internal/resman"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
	"go.uber.org/zap"
)

// Script is a parsed and compiled Lua chunk. It holds no VM and is safe to
// execute on any number of states.
type Script struct {
	Path  string
	Proto *lua.FunctionProto
}

// Compile parses and compiles src under the given chunk name.
func Compile(name string, src []byte) (*Script, error) {
	chunk, err := parse.Parse(bytes.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return &Script{Path: name, Proto: proto}, nil
}

// Exec runs the chunk on L and leaves its return values on the stack.
func (s *Script) Exec(L *lua.LState) error {
	L.Push(L.NewFunctionFromProto(s.Proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		return fmt.Errorf("exec %s: %w", s.Path, err)
	}
	return nil
}

// ScriptFactory compiles .lua files under root.
func ScriptFactory(root string, log *zap.Logger) resman.Factory {
	if log == nil {
		log = zap.NewNop()
	}
	return func(path string) (resman.Resource, error) {
		src, err := data.ReadFile(root, path)
		if err != nil {
			return nil, err
		}
		s, err := Compile(path, src)
		if err != nil {
			return nil, err
		}
		log.Debug("compiled lua script", zap.String("file", path))
		return s, nil
	}
}

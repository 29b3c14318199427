package memory

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/ffi-runtime/errors"
)

type wazeroStore struct {
	runtime wazero.Runtime
	module  api.Module
	mem     api.Memory
	owned   bool
}

func (s *wazeroStore) view(offset, length uint32) ([]byte, bool) {
	return s.mem.Read(offset, length)
}

func (s *wazeroStore) size() uint32 { return s.mem.Size() }

func (s *wazeroStore) grow(pages uint32) bool {
	_, ok := s.mem.Grow(pages)
	return ok
}

func (s *wazeroStore) close(ctx context.Context) error {
	if err := s.module.Close(ctx); err != nil {
		return err
	}
	if s.owned {
		return s.runtime.Close(ctx)
	}
	return nil
}

// NewWazero creates a heap backed by the linear memory of a module
// instantiated in a dedicated wazero runtime.
func NewWazero(ctx context.Context, cfg *Config) (*Heap, error) {
	c := cfg.withDefaults()
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithMemoryLimitPages(c.MaxPages))
	h, err := newWazeroHeap(ctx, rt, c, "ffi-heap")
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	h.store.(*wazeroStore).owned = true
	return h, nil
}

// NewWazeroIn creates a heap in an existing wazero runtime. The module is
// instantiated under name; closing the heap closes the module only.
func NewWazeroIn(ctx context.Context, rt wazero.Runtime, name string, cfg *Config) (*Heap, error) {
	return newWazeroHeap(ctx, rt, cfg.withDefaults(), name)
}

func newWazeroHeap(ctx context.Context, rt wazero.Runtime, c Config, name string) (*Heap, error) {
	compiled, err := rt.CompileModule(ctx, memoryModule(c.InitialPages))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseMemory, errors.KindAllocation, err, "compile heap module")
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseMemory, errors.KindAllocation, err, "instantiate heap module")
	}
	mem := mod.ExportedMemory("memory")
	if mem == nil {
		_ = mod.Close(ctx)
		return nil, errors.NotFound(errors.PhaseMemory, "export", "memory")
	}
	return newHeap(&wazeroStore{runtime: rt, module: mod, mem: mem}, c), nil
}

// memoryModule encodes a module with no code that exports one memory of
// the given initial size.
func memoryModule(pages uint32) []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	var limits []byte
	limits = append(limits, 0x01, 0x00) // one memory, no maximum
	limits = appendULEB(limits, pages)
	out = append(out, 0x05)
	out = appendULEB(out, uint32(len(limits)))
	out = append(out, limits...)

	name := "memory"
	var exp []byte
	exp = append(exp, 0x01) // one export
	exp = appendULEB(exp, uint32(len(name)))
	exp = append(exp, name...)
	exp = append(exp, 0x02, 0x00) // memory index 0
	out = append(out, 0x07)
	out = appendULEB(out, uint32(len(exp)))
	out = append(out, exp...)
	return out
}

func appendULEB(b []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b = append(b, c)
		if v == 0 {
			return b
		}
	}
}

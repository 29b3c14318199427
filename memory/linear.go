package memory

import "context"

type sliceStore struct {
	buf []byte
}

func (s *sliceStore) view(offset, length uint32) ([]byte, bool) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(s.buf)) {
		return nil, false
	}
	return s.buf[offset:end], true
}

func (s *sliceStore) size() uint32 { return uint32(len(s.buf)) }

func (s *sliceStore) grow(pages uint32) bool {
	s.buf = append(s.buf, make([]byte, int(pages)*PageSize)...)
	return true
}

func (s *sliceStore) close(context.Context) error {
	s.buf = nil
	return nil
}

// NewLinear creates a heap backed by a Go byte slice.
func NewLinear(cfg *Config) *Heap {
	c := cfg.withDefaults()
	store := &sliceStore{buf: make([]byte, int(c.InitialPages)*PageSize)}
	return newHeap(store, c)
}

package collection

import (
	"iter"

	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/foreign"
	"github.com/wippyai/ffi-runtime/ownership"
)

// HashMap adapts a foreign hash table keyed by handle identity. Iteration
// order is unspecified. An entry whose key and value are the same handle
// is a set entry and holds a single reference.
type HashMap[K, V Element] struct {
	rt       *foreign.Runtime
	retained [][2]Handle
	table    Handle
	owned    bool
}

// NewHashMap returns an empty owning map. The foreign table is created on
// first insert, with free functions from K and V.
func NewHashMap[K, V Element](rt *foreign.Runtime) *HashMap[K, V] {
	return &HashMap[K, V]{rt: rt, owned: true}
}

// HashMapFromHandle adopts or borrows a foreign table according to tag.
func HashMapFromHandle[K, V Element](rt *foreign.Runtime, table Handle, tag ownership.Tag) (*HashMap[K, V], error) {
	checkAdoptTag(tag)
	m := &HashMap[K, V]{rt: rt, table: table, owned: tag != ownership.None}
	if tag == ownership.Container && table != 0 {
		pairs := m.pairs()
		dups, err := m.dupPairs(pairs)
		if err != nil {
			rt.HashTableStealAll(table)
			rt.HashTableUnref(table)
			return nil, err
		}
		rt.HashTableStealAll(table)
		for _, p := range dups {
			rt.HashTableInsert(table, p[0], p[1])
		}
	}
	return m, nil
}

func (m *HashMap[K, V]) elem() V {
	var v V
	return v
}

// Owned reports whether the map owns its table and entries.
func (m *HashMap[K, V]) Owned() bool { return m.owned }

// Handle returns the table handle.
func (m *HashMap[K, V]) Handle() Handle { return m.table }

func (m *HashMap[K, V]) mustOwn(op string) {
	if !m.owned {
		errors.Violation(errors.PhaseCollection, "%s on a borrowed map", op)
	}
}

func (m *HashMap[K, V]) release(k, v Handle) {
	var kt K
	kt.Free(k)
	if k != v {
		var vt V
		vt.Free(v)
	}
}

func (m *HashMap[K, V]) dupPair(k, v Handle) ([2]Handle, error) {
	var kt K
	var vt V
	dk, err := kt.Dup(k)
	if err != nil {
		return [2]Handle{}, err
	}
	if k == v {
		return [2]Handle{dk, dk}, nil
	}
	dv, err := vt.Dup(v)
	if err != nil {
		kt.Free(dk)
		return [2]Handle{}, err
	}
	return [2]Handle{dk, dv}, nil
}

func (m *HashMap[K, V]) dupPairs(pairs [][2]Handle) ([][2]Handle, error) {
	out := make([][2]Handle, 0, len(pairs))
	for _, p := range pairs {
		d, err := m.dupPair(p[0], p[1])
		if err != nil {
			for _, x := range out {
				m.release(x[0], x[1])
			}
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// leave drops this map's reference to a table that other holders still
// reference. The entries stay in the table and are freed with K and V by
// its last holder. It reports false and does nothing when the reference
// is the only one.
func (m *HashMap[K, V]) leave() bool {
	if m.table == 0 || m.rt.HashTableRefCount(m.table) < 2 {
		return false
	}
	var kt K
	var vt V
	m.rt.HashTableSetFreeFuncs(m.table, kt.Free, vt.Free)
	m.rt.HashTableUnref(m.table)
	m.table = 0
	return true
}

func (m *HashMap[K, V]) pairs() [][2]Handle {
	var out [][2]Handle
	for k, v := range m.All() {
		out = append(out, [2]Handle{k, v})
	}
	return out
}

func (m *HashMap[K, V]) ensure() error {
	if m.table != 0 {
		return nil
	}
	var kt K
	var vt V
	table, err := m.rt.HashTableNew(kt.Free, vt.Free)
	if err != nil {
		return err
	}
	m.table = table
	return nil
}

// Insert maps k to v, replacing and releasing any previous entry for k.
// Full adopts both handles, None duplicates them.
func (m *HashMap[K, V]) Insert(k, v Handle, tag ownership.Tag) error {
	m.mustOwn("insert")
	switch tag {
	case ownership.Full:
	case ownership.None:
		p, err := m.dupPair(k, v)
		if err != nil {
			return err
		}
		k, v = p[0], p[1]
	default:
		errors.Violation(errors.PhaseCollection, "map insert with tag %s", tag)
	}
	if err := m.ensure(); err != nil {
		m.release(k, v)
		return err
	}
	m.put(k, v)
	return nil
}

func (m *HashMap[K, V]) put(k, v Handle) {
	if old, ok := m.rt.HashTableLookup(m.table, k); ok {
		m.rt.HashTableSteal(m.table, k)
		m.release(k, old)
	}
	m.rt.HashTableInsert(m.table, k, v)
}

// Add inserts h as a set entry.
func (m *HashMap[K, V]) Add(h Handle, tag ownership.Tag) error {
	return m.Insert(h, h, tag)
}

func (m *HashMap[K, V]) adopt(h Handle) error {
	m.mustOwn("insert")
	var kt K
	var vt V
	if any(kt) != any(vt) {
		errors.Violation(errors.PhaseCollection, "set conversion into a map with distinct key and value traits")
	}
	if err := m.ensure(); err != nil {
		return err
	}
	m.put(h, h)
	return nil
}

// Lookup returns the value mapped to k.
func (m *HashMap[K, V]) Lookup(k Handle) (Handle, bool) {
	if m.table == 0 {
		return 0, false
	}
	return m.rt.HashTableLookup(m.table, k)
}

// Remove deletes the entry for k, releasing it if owned.
func (m *HashMap[K, V]) Remove(k Handle) bool {
	m.mustOwn("remove")
	v, ok := m.Lookup(k)
	if !ok {
		return false
	}
	m.rt.HashTableSteal(m.table, k)
	m.release(k, v)
	return true
}

// Len returns the number of entries.
func (m *HashMap[K, V]) Len() int {
	if m.table == 0 {
		return 0
	}
	return m.rt.HashTableSize(m.table)
}

// All yields the entries in unspecified order.
func (m *HashMap[K, V]) All() iter.Seq2[Handle, Handle] {
	return func(yield func(Handle, Handle) bool) {
		if m.table == 0 {
			return
		}
		m.rt.HashTableForeach(m.table, yield)
	}
}

// Keys yields the keys in unspecified order.
func (m *HashMap[K, V]) Keys() iter.Seq[Handle] {
	return func(yield func(Handle) bool) {
		for k := range m.All() {
			if !yield(k) {
				return
			}
		}
	}
}

// Values yields the values in unspecified order.
func (m *HashMap[K, V]) Values() iter.Seq[Handle] {
	return func(yield func(Handle) bool) {
		for _, v := range m.All() {
			if !yield(v) {
				return
			}
		}
	}
}

// Clear removes every entry, releasing them if owned. A table shared with
// other holders is left to them and the map starts over empty.
func (m *HashMap[K, V]) Clear() {
	if !m.owned {
		m.table = 0
		return
	}
	if m.table == 0 || m.leave() {
		return
	}
	pairs := m.pairs()
	m.rt.HashTableStealAll(m.table)
	for _, p := range pairs {
		m.release(p[0], p[1])
	}
}

// Unwrap hands the table to foreign code. Full gives away the table and
// its entries; Container gives away a table whose entries stay referenced
// here until Close.
func (m *HashMap[K, V]) Unwrap(tag ownership.Tag) (Handle, error) {
	switch tag {
	case ownership.None:
		return m.table, nil
	case ownership.Full:
		if m.owned {
			return m.Release(), nil
		}
		dups, err := m.dupPairs(m.pairs())
		if err != nil {
			return 0, err
		}
		var kt K
		var vt V
		return m.rebuild(dups, kt.Free, vt.Free)
	case ownership.Container:
		pairs := m.pairs()
		if !m.owned {
			return m.rebuild(pairs, nil, nil)
		}
		shared := m.table != 0 && m.rt.HashTableRefCount(m.table) > 1
		if shared {
			dups, err := m.dupPairs(pairs)
			if err != nil {
				return 0, err
			}
			pairs = dups
		}
		table, err := m.rebuild(pairs, nil, nil)
		if err != nil {
			if shared {
				for _, p := range pairs {
					m.release(p[0], p[1])
				}
			}
			return 0, err
		}
		m.retained = append(m.retained, pairs...)
		if !m.leave() && m.table != 0 {
			m.rt.HashTableStealAll(m.table)
			m.rt.HashTableUnref(m.table)
			m.table = 0
		}
		return table, nil
	}
	errors.Violation(errors.PhaseUnwrap, "map unwrap with tag %s", tag)
	return 0, nil
}

func (m *HashMap[K, V]) rebuild(pairs [][2]Handle, keyFree, valueFree func(Handle)) (Handle, error) {
	table, err := m.rt.HashTableNew(keyFree, valueFree)
	if err != nil {
		if keyFree != nil {
			for _, p := range pairs {
				m.release(p[0], p[1])
			}
		}
		return 0, err
	}
	for _, p := range pairs {
		m.rt.HashTableInsert(table, p[0], p[1])
	}
	return table, nil
}

// Release detaches the table without dropping it.
func (m *HashMap[K, V]) Release() Handle {
	h := m.table
	m.table = 0
	return h
}

// Close drops an owned table reference and releases any retained entries.
// The table's entries are freed with K and V once its last reference drops.
func (m *HashMap[K, V]) Close() {
	if m.owned && m.table != 0 {
		var kt K
		var vt V
		m.rt.HashTableSetFreeFuncs(m.table, kt.Free, vt.Free)
		m.rt.HashTableUnref(m.table)
	}
	m.table = 0
	for _, p := range m.retained {
		m.release(p[0], p[1])
	}
	m.retained = nil
}

// drain yields the values. Keys of owned non-set entries are released.
// Entries of a table shared with other holders stay with them.
func (m *HashMap[K, V]) drain() ([]Handle, bool) {
	pairs := m.pairs()
	vals := make([]Handle, 0, len(pairs))
	for _, p := range pairs {
		vals = append(vals, p[1])
	}
	if !m.owned || m.leave() {
		return vals, false
	}
	if m.table != 0 {
		m.rt.HashTableStealAll(m.table)
		m.rt.HashTableUnref(m.table)
		m.table = 0
	}
	var kt K
	for _, p := range pairs {
		if p[0] != p[1] {
			kt.Free(p[0])
		}
	}
	return vals, true
}

package foreign

type hashTable struct {
	entries   map[Handle]Handle
	keyFree   func(Handle)
	valueFree func(Handle)
	refs      int32
}

// release frees a removed entry. A set entry (key == value) is freed once.
func (t *hashTable) release(k, v Handle) {
	if k == v {
		if t.keyFree != nil {
			t.keyFree(k)
		} else if t.valueFree != nil {
			t.valueFree(v)
		}
		return
	}
	if t.keyFree != nil {
		t.keyFree(k)
	}
	if t.valueFree != nil {
		t.valueFree(v)
	}
}

// HashTableNew creates a hash table keyed by handle identity. Iteration
// order is unspecified.
func (r *Runtime) HashTableNew(keyFree, valueFree func(Handle)) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, err := r.allocLocked(8)
	if err != nil {
		return 0, err
	}
	r.tables[h] = &hashTable{
		entries:   make(map[Handle]Handle),
		keyFree:   keyFree,
		valueFree: valueFree,
		refs:      1,
	}
	return h, nil
}

func (r *Runtime) hashTable(h Handle) *hashTable {
	r.mu.Lock()
	t := r.tables[h]
	r.mu.Unlock()
	if t == nil {
		r.violation("%#x is not a live hash table", uintptr(h))
	}
	return t
}

// HashTableInsert maps key to value. When key is already present the
// stored key is kept, and the passed key and the old value are freed.
func (r *Runtime) HashTableInsert(table, key, value Handle) {
	t := r.hashTable(table)
	if t == nil {
		return
	}
	r.mu.Lock()
	old, exists := t.entries[key]
	t.entries[key] = value
	r.mu.Unlock()

	if !exists {
		return
	}
	if t.keyFree != nil {
		t.keyFree(key)
	}
	if old != value && t.valueFree != nil {
		t.valueFree(old)
	}
}

// HashTableAdd inserts key as both key and value, the set idiom.
func (r *Runtime) HashTableAdd(table, key Handle) {
	r.HashTableInsert(table, key, key)
}

// HashTableLookup returns the value mapped to key.
func (r *Runtime) HashTableLookup(table, key Handle) (Handle, bool) {
	t := r.hashTable(table)
	if t == nil {
		return 0, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := t.entries[key]
	return v, ok
}

// HashTableSize returns the number of entries.
func (r *Runtime) HashTableSize(table Handle) int {
	t := r.hashTable(table)
	if t == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(t.entries)
}

// HashTableRemove removes key, freeing key and value.
func (r *Runtime) HashTableRemove(table, key Handle) bool {
	t := r.hashTable(table)
	if t == nil {
		return false
	}
	r.mu.Lock()
	v, ok := t.entries[key]
	delete(t.entries, key)
	r.mu.Unlock()
	if ok {
		t.release(key, v)
	}
	return ok
}

// HashTableSteal removes key without freeing anything.
func (r *Runtime) HashTableSteal(table, key Handle) bool {
	t := r.hashTable(table)
	if t == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := t.entries[key]
	delete(t.entries, key)
	return ok
}

// HashTableForeach calls fn for each entry until it returns false. The
// table must not be modified from fn.
func (r *Runtime) HashTableForeach(table Handle, fn func(k, v Handle) bool) {
	t := r.hashTable(table)
	if t == nil {
		return
	}
	r.mu.Lock()
	snapshot := make([][2]Handle, 0, len(t.entries))
	for k, v := range t.entries {
		snapshot = append(snapshot, [2]Handle{k, v})
	}
	r.mu.Unlock()
	for _, kv := range snapshot {
		if !fn(kv[0], kv[1]) {
			return
		}
	}
}

// HashTableRemoveAll removes and frees every entry.
func (r *Runtime) HashTableRemoveAll(table Handle) {
	t := r.hashTable(table)
	if t == nil {
		return
	}
	r.mu.Lock()
	entries := t.entries
	t.entries = make(map[Handle]Handle)
	r.mu.Unlock()
	for k, v := range entries {
		t.release(k, v)
	}
}

// HashTableStealAll removes every entry without freeing.
func (r *Runtime) HashTableStealAll(table Handle) {
	t := r.hashTable(table)
	if t == nil {
		return
	}
	r.mu.Lock()
	t.entries = make(map[Handle]Handle)
	r.mu.Unlock()
}

// HashTableRef adds a reference to the table.
func (r *Runtime) HashTableRef(table Handle) Handle {
	if t := r.hashTable(table); t != nil {
		r.mu.Lock()
		t.refs++
		r.mu.Unlock()
	}
	return table
}

// HashTableUnref drops a reference; the last one frees all entries and
// the table.
func (r *Runtime) HashTableUnref(table Handle) {
	t := r.hashTable(table)
	if t == nil {
		return
	}
	r.mu.Lock()
	t.refs--
	last := t.refs == 0
	r.mu.Unlock()
	if !last {
		return
	}
	r.HashTableRemoveAll(table)
	r.mu.Lock()
	delete(r.tables, table)
	r.mu.Unlock()
	r.Free(table)
}

// HashTableSetFreeFuncs replaces the functions that free entries removed
// from the table, including those freed when its last reference drops.
func (r *Runtime) HashTableSetFreeFuncs(table Handle, keyFree, valueFree func(Handle)) {
	t := r.hashTable(table)
	if t == nil {
		return
	}
	r.mu.Lock()
	t.keyFree, t.valueFree = keyFree, valueFree
	r.mu.Unlock()
}

// HashTableRefCount returns the table's reference count, 0 if not live.
func (r *Runtime) HashTableRefCount(table Handle) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tables[table]; ok {
		return t.refs
	}
	return 0
}

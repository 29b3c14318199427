package foreign

// Slot indices of list nodes in heap memory.
const (
	slotData = 0
	slotNext = 1
	slotPrev = 2
)

// SListPrepend adds data at the head of a singly linked list and returns
// the new head. A zero list is the empty list.
func (r *Runtime) SListPrepend(list, data Handle) (Handle, error) {
	node, err := r.Malloc(16)
	if err != nil {
		return list, err
	}
	r.WriteHandle(node, slotData, data)
	r.WriteHandle(node, slotNext, list)
	return node, nil
}

// SListAppend adds data at the tail, walking the list, and returns the head.
func (r *Runtime) SListAppend(list, data Handle) (Handle, error) {
	node, err := r.Malloc(16)
	if err != nil {
		return list, err
	}
	r.WriteHandle(node, slotData, data)
	if list == 0 {
		return node, nil
	}
	last := list
	for next := r.SListNext(last); next != 0; next = r.SListNext(last) {
		last = next
	}
	r.WriteHandle(last, slotNext, node)
	return list, nil
}

// SListNext returns the node after node, 0 at the end.
func (r *Runtime) SListNext(node Handle) Handle { return r.ReadHandle(node, slotNext) }

// SListData returns the element stored in node.
func (r *Runtime) SListData(node Handle) Handle { return r.ReadHandle(node, slotData) }

// SListSetData replaces the element stored in node.
func (r *Runtime) SListSetData(node, data Handle) { r.WriteHandle(node, slotData, data) }

// SListLength walks the list.
func (r *Runtime) SListLength(list Handle) int {
	n := 0
	for node := list; node != 0; node = r.SListNext(node) {
		n++
	}
	return n
}

// SListDeleteLink unlinks and frees link, returning the new head. The
// element is not freed.
func (r *Runtime) SListDeleteLink(list, link Handle) Handle {
	if list == link {
		next := r.SListNext(link)
		r.Free(link)
		return next
	}
	for prev := list; prev != 0; prev = r.SListNext(prev) {
		if r.SListNext(prev) == link {
			r.WriteHandle(prev, slotNext, r.SListNext(link))
			r.Free(link)
			return list
		}
	}
	return list
}

// SListFree frees the nodes but not the elements.
func (r *Runtime) SListFree(list Handle) {
	r.SListFreeFull(list, nil)
}

// SListFreeFull frees every element with free, then the nodes.
func (r *Runtime) SListFreeFull(list Handle, free func(Handle)) {
	for node := list; node != 0; {
		next := r.SListNext(node)
		if free != nil {
			free(r.SListData(node))
		}
		r.Free(node)
		node = next
	}
}

// ListAppend adds data at the tail of a doubly linked list and returns the head.
func (r *Runtime) ListAppend(list, data Handle) (Handle, error) {
	node, err := r.Malloc(24)
	if err != nil {
		return list, err
	}
	r.WriteHandle(node, slotData, data)
	if list == 0 {
		return node, nil
	}
	last := r.ListLast(list)
	r.WriteHandle(last, slotNext, node)
	r.WriteHandle(node, slotPrev, last)
	return list, nil
}

// ListPrepend adds data at the head and returns the new head.
func (r *Runtime) ListPrepend(list, data Handle) (Handle, error) {
	node, err := r.Malloc(24)
	if err != nil {
		return list, err
	}
	r.WriteHandle(node, slotData, data)
	r.WriteHandle(node, slotNext, list)
	if list != 0 {
		r.WriteHandle(list, slotPrev, node)
	}
	return node, nil
}

// ListNext returns the node after node.
func (r *Runtime) ListNext(node Handle) Handle { return r.ReadHandle(node, slotNext) }

// ListPrev returns the node before node.
func (r *Runtime) ListPrev(node Handle) Handle { return r.ReadHandle(node, slotPrev) }

// ListData returns the element stored in node.
func (r *Runtime) ListData(node Handle) Handle { return r.ReadHandle(node, slotData) }

// ListSetData replaces the element stored in node.
func (r *Runtime) ListSetData(node, data Handle) { r.WriteHandle(node, slotData, data) }

// ListLast returns the tail node.
func (r *Runtime) ListLast(list Handle) Handle {
	if list == 0 {
		return 0
	}
	last := list
	for next := r.ListNext(last); next != 0; next = r.ListNext(last) {
		last = next
	}
	return last
}

// ListLength walks the list.
func (r *Runtime) ListLength(list Handle) int {
	n := 0
	for node := list; node != 0; node = r.ListNext(node) {
		n++
	}
	return n
}

// ListDeleteLink unlinks and frees link, returning the new head.
func (r *Runtime) ListDeleteLink(list, link Handle) Handle {
	prev, next := r.ListPrev(link), r.ListNext(link)
	if prev != 0 {
		r.WriteHandle(prev, slotNext, next)
	}
	if next != 0 {
		r.WriteHandle(next, slotPrev, prev)
	}
	r.Free(link)
	if list == link {
		return next
	}
	return list
}

// ListFree frees the nodes but not the elements.
func (r *Runtime) ListFree(list Handle) {
	r.ListFreeFull(list, nil)
}

// ListFreeFull frees every element with free, then the nodes.
func (r *Runtime) ListFreeFull(list Handle, free func(Handle)) {
	for node := list; node != 0; {
		next := r.ListNext(node)
		if free != nil {
			free(r.ListData(node))
		}
		r.Free(node)
		node = next
	}
}

package wrap

// ObjectElem is the element trait of collections holding instances of C:
// duplicating adds a reference, freeing drops one.
type ObjectElem[C RefClass] struct{}

func (ObjectElem[C]) Dup(h Handle) (Handle, error) {
	var c C
	return c.Ref(h), nil
}

func (ObjectElem[C]) Free(h Handle) {
	var c C
	c.Unref(h)
}

// BoxedElem is the element trait of collections holding boxed values of C.
type BoxedElem[C BoxedClass] struct{}

func (BoxedElem[C]) Dup(h Handle) (Handle, error) {
	var c C
	return c.Copy(h)
}

func (BoxedElem[C]) Free(h Handle) {
	var c C
	c.Free(h)
}

// PlainElem is the element trait of collections holding plain words, such
// as integers stored in pointer slots. Nothing is duplicated or freed.
type PlainElem struct{}

func (PlainElem) Dup(h Handle) (Handle, error) { return h, nil }

func (PlainElem) Free(Handle) {}

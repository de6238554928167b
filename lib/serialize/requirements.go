package serialize

// --------------------------------------------------------------------------
// Requirement Descriptor
// --------------------------------------------------------------------------

// Requirements describes what a serialization still needs from its source
// message to satisfy outstanding readers: the document body and/or a set of
// shared-buffer handles (by id). The owning message aggregates the
// descriptors of both strategies to decide whether a strategy is still
// needed at all.
//
// The zero value is the empty descriptor (nothing needed).
type Requirements struct {
	document bool
	handles  map[uint64]struct{}
}

// NeedDocument marks the document body as required.
func (r *Requirements) NeedDocument() {
	r.document = true
}

// NeedHandle marks one shared-buffer handle as required.
func (r *Requirements) NeedHandle(id uint64) {
	if r.handles == nil {
		r.handles = make(map[uint64]struct{})
	}
	r.handles[id] = struct{}{}
}

// Document reports whether the document body is required.
func (r Requirements) Document() bool { return r.document }

// HasHandle reports whether the given handle is required.
func (r Requirements) HasHandle(id uint64) bool {
	_, ok := r.handles[id]
	return ok
}

// Empty reports whether nothing is required.
func (r Requirements) Empty() bool {
	return !r.document && len(r.handles) == 0
}

// Merge adds every requirement of o into r.
func (r *Requirements) Merge(o Requirements) {
	if o.document {
		r.document = true
	}
	for id := range o.handles {
		r.NeedHandle(id)
	}
}

// Equal reports whether two descriptors require exactly the same things.
func (r Requirements) Equal(o Requirements) bool {
	if r.document != o.document || len(r.handles) != len(o.handles) {
		return false
	}
	for id := range r.handles {
		if _, ok := o.handles[id]; !ok {
			return false
		}
	}
	return true
}

// clone returns an independent copy, so a descriptor handed across the lock
// boundary cannot alias internal state.
func (r Requirements) clone() Requirements {
	c := Requirements{document: r.document}
	for id := range r.handles {
		c.NeedHandle(id)
	}
	return c
}

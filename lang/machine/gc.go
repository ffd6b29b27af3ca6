package machine

import "fmt"

// after a collection the next one triggers when the live size doubles
const gcGrowthFactor = 2

// Collect runs a full mark-and-sweep collection: mark every registered
// root source, trace the grey worklist to blackening completion, remove
// unreached strings from the intern table (its references are weak), then
// sweep the object list, freeing everything unmarked.
//
// Collect is called from alloc before the new object exists, so a
// collection never observes a half-initialized object.
func (h *Heap) Collect() {
	var before int
	if h.log {
		before = h.bytesAllocated
		fmt.Fprintln(h.stderr, "-- gc begin")
	}

	for _, r := range h.rooters {
		r.MarkRoots(h)
	}
	h.trace()
	h.removeWhiteStrings()
	h.sweep()

	h.nextGC = h.bytesAllocated * gcGrowthFactor
	if h.log {
		fmt.Fprintf(h.stderr, "-- gc end: collected %d bytes (from %d to %d), next at %d\n",
			before-h.bytesAllocated, before, h.bytesAllocated, h.nextGC)
	}
}

// MarkValue marks the object referenced by v, if any. Nil, booleans and
// numbers are not heap values.
func (h *Heap) MarkValue(v Value) {
	if o, ok := v.(Obj); ok {
		h.MarkObject(o)
	}
}

// MarkObject marks o reachable and queues it for blackening. Marking is
// idempotent, cycles terminate on the mark bit.
func (h *Heap) MarkObject(o Obj) {
	switch o := o.(type) {
	case nil:
		return
	case *Str:
		// the script function's name, and "init" while New interns it
		if o == nil {
			return
		}
	case *Upvalue:
		// closure slots not yet filled by CLOSURE
		if o == nil {
			return
		}
	}
	hdr := o.header()
	if hdr.marked {
		return
	}
	hdr.marked = true
	h.grey = append(h.grey, o)
}

func (h *Heap) markTable(t *Table) {
	t.Range(func(k *Str, v Value) bool {
		h.MarkObject(k)
		h.MarkValue(v)
		return true
	})
}

// trace drains the grey worklist, blackening each object by marking its
// outgoing references.
func (h *Heap) trace() {
	for len(h.grey) > 0 {
		o := h.grey[len(h.grey)-1]
		h.grey = h.grey[:len(h.grey)-1]
		h.blacken(o)
	}
}

func (h *Heap) blacken(o Obj) {
	switch o := o.(type) {
	case *Str, *Native:
		// no outgoing references

	case *Function:
		h.MarkObject(o.Name)
		for _, c := range o.Chunk.Constants {
			h.MarkValue(c)
		}

	case *Closure:
		h.MarkObject(o.Fn)
		for _, uv := range o.Upvalues {
			h.MarkObject(uv)
		}

	case *Upvalue:
		// while open the captured slot is marked through the stack roots
		h.MarkValue(o.closed)

	case *Class:
		h.MarkObject(o.Name)
		h.markTable(&o.Methods)

	case *Instance:
		h.MarkObject(o.Class)
		h.markTable(&o.Fields)

	case *BoundMethod:
		h.MarkValue(o.Receiver)
		h.MarkObject(o.Method)
	}
}

// removeWhiteStrings deletes interned strings that the mark phase did not
// reach. This must run before sweep so the table never holds a freed key.
func (h *Heap) removeWhiteStrings() {
	for i := range h.strings.entries {
		if e := &h.strings.entries[i]; e.key != nil && !e.key.marked {
			h.strings.Delete(e.key)
		}
	}
}

// sweep walks the intrusive object list, freeing unmarked objects and
// clearing the mark bit on survivors.
func (h *Heap) sweep() {
	var prev Obj
	o := h.objects
	for o != nil {
		hdr := o.header()
		if hdr.marked {
			hdr.marked = false
			prev = o
			o = hdr.next
			continue
		}

		unreached := o
		o = hdr.next
		if prev == nil {
			h.objects = o
		} else {
			prev.header().next = o
		}
		h.free(unreached)
	}
}

// free releases the object's auxiliary buffers and subtracts its size. The
// object bytes themselves are reclaimed by the Go runtime once unlinked.
func (h *Heap) free(o Obj) {
	h.bytesAllocated -= objSize(o)
	switch o := o.(type) {
	case *Function:
		o.Chunk = Chunk{}
	case *Closure:
		o.Upvalues = nil
	case *Class:
		o.Methods.reset()
	case *Instance:
		o.Fields.reset()
	}
	o.header().next = nil
}

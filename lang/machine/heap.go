package machine

import "io"

// A Rooter exposes the live references of a machine component to the
// collector. The Interp is a Rooter for its stack, frames, globals and open
// upvalues; the compiler registers one for its chain of in-progress
// functions.
type Rooter interface {
	// MarkRoots must call h.MarkValue or h.MarkObject for every reference the
	// component holds.
	MarkRoots(h *Heap)
}

// A Heap owns every object allocated by the compiler and the machine. All
// objects are linked on a single intrusive list, which is the collector's
// sole enumeration path. The heap also owns the string intern table: the
// table's references are weak, sweep removes dead strings from it before
// freeing them.
//
// The heap is not safe for concurrent use; execution is strictly
// single-threaded.
type Heap struct {
	objects        Obj // intrusive list of all objects, newest first
	bytesAllocated int
	nextGC         int

	strings Table // interned strings, weak
	rooters []Rooter
	grey    []Obj // mark-phase worklist

	stress bool
	log    bool
	stderr io.Writer
}

// NewHeap creates an empty heap. Collection diagnostics, when enabled, are
// written to stderr.
func NewHeap(cfg Config, stderr io.Writer) *Heap {
	next := cfg.GCNext
	if next <= 0 {
		next = DefaultConfig().GCNext
	}
	return &Heap{
		nextGC: next,
		stress: cfg.GCStress,
		log:    cfg.GCLog,
		stderr: stderr,
	}
}

// AddRoot registers a root source with the collector.
func (h *Heap) AddRoot(r Rooter) {
	h.rooters = append(h.rooters, r)
}

// RemoveRoot unregisters a root source previously added with AddRoot.
func (h *Heap) RemoveRoot(r Rooter) {
	for i, rr := range h.rooters {
		if rr == r {
			h.rooters = append(h.rooters[:i], h.rooters[i+1:]...)
			return
		}
	}
}

// BytesAllocated returns the current allocation counter.
func (h *Heap) BytesAllocated() int { return h.bytesAllocated }

// alloc accounts for an allocation of the given size, possibly running a
// collection first. It must be called before the object is created, so that
// a triggered collection never sees the half-born object; callers must
// ensure every value the new object will reference is reachable from a root
// at this point.
func (h *Heap) alloc(size int) {
	if h.stress || h.bytesAllocated+size > h.nextGC {
		h.Collect()
	}
	h.bytesAllocated += size
}

// link adds the object to the intrusive all-objects list.
func (h *Heap) link(o Obj) {
	o.header().next = h.objects
	h.objects = o
}

// Object sizes are flat per-kind estimates (plus byte length for strings and
// 8 bytes per upvalue slot for closures);
// the collection trigger only needs the counter to grow with the live set,
// not to match Go's allocator exactly.
const (
	sizeStr     = 48
	sizeFunc    = 96
	sizeNative  = 48
	sizeClosure = 40
	sizeUpvalue = 40
	sizeClass   = 72
	sizeInst    = 64
	sizeBound   = 48
)

func objSize(o Obj) int {
	switch o := o.(type) {
	case *Str:
		return sizeStr + len(o.s)
	case *Function:
		return sizeFunc
	case *Native:
		return sizeNative
	case *Closure:
		return sizeClosure + 8*len(o.Upvalues)
	case *Upvalue:
		return sizeUpvalue
	case *Class:
		return sizeClass
	case *Instance:
		return sizeInst
	case *BoundMethod:
		return sizeBound
	default:
		return 0
	}
}

// NewString returns the interned string object for s, creating and
// publishing it if this is the first time these bytes are seen.
func (h *Heap) NewString(s string) *Str {
	hash := hashString(s)
	if o := h.strings.FindString(s, hash); o != nil {
		return o
	}
	h.alloc(sizeStr + len(s))
	o := &Str{s: s, hash: hash}
	h.link(o)
	h.strings.Set(o, Nil)
	return o
}

// NewFunction returns a new empty function; the compiler fills its chunk.
func (h *Heap) NewFunction() *Function {
	h.alloc(sizeFunc)
	o := &Function{}
	h.link(o)
	return o
}

// NewNative wraps a Go function for calling from scripts. An arity of -1
// accepts any number of arguments.
func (h *Heap) NewNative(name string, arity int, fn NativeFn) *Native {
	h.alloc(sizeNative)
	o := &Native{name: name, Arity: arity, Fn: fn}
	h.link(o)
	return o
}

// NewClosure wraps fn with room for its upvalues; the slots are filled by the
// CLOSURE instruction.
func (h *Heap) NewClosure(fn *Function) *Closure {
	h.alloc(sizeClosure + 8*fn.UpvalueCount)
	o := &Closure{Fn: fn, Upvalues: make([]*Upvalue, fn.UpvalueCount)}
	h.link(o)
	return o
}

// NewUpvalue returns a new open upvalue capturing the given stack slot.
func (h *Heap) NewUpvalue(slot int) *Upvalue {
	h.alloc(sizeUpvalue)
	o := &Upvalue{slot: slot}
	h.link(o)
	return o
}

// NewClass returns a new class with an empty method table.
func (h *Heap) NewClass(name *Str) *Class {
	h.alloc(sizeClass)
	o := &Class{Name: name}
	h.link(o)
	return o
}

// NewInstance returns a new instance of class with no fields.
func (h *Heap) NewInstance(class *Class) *Instance {
	h.alloc(sizeInst)
	o := &Instance{Class: class}
	h.link(o)
	return o
}

// NewBoundMethod pairs receiver and method.
func (h *Heap) NewBoundMethod(receiver Value, method *Closure) *BoundMethod {
	h.alloc(sizeBound)
	o := &BoundMethod{Receiver: receiver, Method: method}
	h.link(o)
	return o
}

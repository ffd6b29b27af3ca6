package machine

// An Obj is a heap-allocated value. Every heap object embeds an objHeader as
// its first field, which links it on the heap's intrusive object list and
// carries the collector's mark bit. Objects are created through the Heap's
// constructors only, never directly, so that every allocation is accounted
// for and may trigger a collection.
type Obj interface {
	Value
	header() *objHeader
}

type objHeader struct {
	marked bool
	next   Obj // intrusive list of all heap objects
}

func (h *objHeader) header() *objHeader { return h }

// A Str is an interned, immutable string. Two Str objects never hold the same
// bytes, so string equality is pointer identity.
type Str struct {
	objHeader
	s    string
	hash uint32 // precomputed FNV-1a hash of s
}

var _ Obj = (*Str)(nil)

func (o *Str) String() string { return o.s }
func (o *Str) Type() string   { return "string" }

// Len returns the length in bytes of the string.
func (o *Str) Len() int { return len(o.s) }

// hashString computes the FNV-1a hash of s.
func hashString(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// A Function is the compiled form of a function declaration, or of the
// top-level script. It is inert at runtime: only a Closure wrapping it can be
// called.
type Function struct {
	objHeader
	Arity        int
	UpvalueCount int
	Chunk        Chunk
	Name         *Str // nil for the top-level script
}

var _ Obj = (*Function)(nil)

func (fn *Function) String() string {
	if fn.Name == nil {
		return "<script>"
	}
	return "<fn " + fn.Name.s + ">"
}
func (fn *Function) Type() string { return "function" }

// A NativeFn is the Go implementation of a native function exposed to
// scripts.
type NativeFn func(args []Value) (Value, error)

// A Native is a function implemented in Go. An Arity of -1 accepts any number
// of arguments.
type Native struct {
	objHeader
	Arity int
	Fn    NativeFn
	name  string
}

var _ Obj = (*Native)(nil)

func (n *Native) String() string { return "<native fn>" }
func (n *Native) Type() string   { return "function" }

// A Closure pairs a Function with the upvalues it captured. It is the only
// callable function value produced by executing code.
type Closure struct {
	objHeader
	Fn *Function
	// Upvalues has exactly Fn.UpvalueCount elements.
	Upvalues []*Upvalue
}

var _ Obj = (*Closure)(nil)

func (c *Closure) String() string { return c.Fn.String() }
func (c *Closure) Type() string   { return "function" }

// An Upvalue is a box for a variable captured by a closure. While the
// enclosing frame is alive the upvalue is "open" and slot indexes the VM
// value stack; once closed it owns the value. Open upvalues form a
// singly-linked list ordered by descending slot, with at most one node per
// slot.
type Upvalue struct {
	objHeader
	slot   int // stack slot while open, -1 once closed
	closed Value
	next   *Upvalue
}

var _ Obj = (*Upvalue)(nil)

func (u *Upvalue) String() string { return "upvalue" }
func (u *Upvalue) Type() string   { return "upvalue" }

// A Class holds the methods shared by its instances. Methods maps interned
// name to *Closure.
type Class struct {
	objHeader
	Name    *Str
	Methods Table
}

var _ Obj = (*Class)(nil)

func (c *Class) String() string { return c.Name.s }
func (c *Class) Type() string   { return "class" }

// An Instance is a bag of fields attached to a class. Fields maps interned
// name to any value.
type Instance struct {
	objHeader
	Class  *Class
	Fields Table
}

var _ Obj = (*Instance)(nil)

func (i *Instance) String() string { return i.Class.Name.s + " instance" }
func (i *Instance) Type() string   { return "instance" }

// A BoundMethod pairs a receiver with a method closure so that the method can
// be passed around as a value and called later.
type BoundMethod struct {
	objHeader
	Receiver Value
	Method   *Closure
}

var _ Obj = (*BoundMethod)(nil)

func (b *BoundMethod) String() string { return b.Method.String() }
func (b *BoundMethod) Type() string   { return "function" }

package machine_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/loxlang/golox/lang/compiler"
	"github.com/loxlang/golox/lang/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runSource compiles and executes src on a fresh machine and returns its
// stdout, stderr and the execution error, if any. Compile errors fail the
// test, runtime errors do not.
func runSource(t *testing.T, cfg machine.Config, src string) (string, string, error) {
	t.Helper()

	var out, errb bytes.Buffer
	interp := machine.New(cfg, &out, &errb)
	fn, err := compiler.Compile([]byte(src), interp.Heap(), &errb)
	require.NoError(t, err, "compile errors:\n%s", errb.String())
	err = interp.Run(fn)
	return out.String(), errb.String(), err
}

func TestExec(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"precedence", `print 1 + 2 * 3;`, "7\n"},
		{"grouping", `print (1 + 2) * 3;`, "9\n"},
		{"unary", `print -(1 + 2) == 0 - 3;`, "true\n"},
		{"division", `print 10 / 4;`, "2.5\n"},
		{"concat", `var a = "st"; var b = "r"; print a + b + "ing";`, "string\n"},
		{"comparisons", `print 1 < 2; print 2 <= 2; print 3 > 4; print 4 >= 4;`,
			"true\ntrue\nfalse\ntrue\n"},
		{"equality", `print 1 == 1; print 1 == "1"; print nil == nil; print nil == false;`,
			"true\nfalse\ntrue\nfalse\n"},
		{"string identity", `print "ab" == "a" + "b";`, "true\n"},
		{"truthiness", `print !nil; print !false; print !0; print !"";`,
			"true\ntrue\nfalse\nfalse\n"},

		{"if else", `if (1 < 2) print "then"; else print "else";`, "then\n"},
		{"if else taken", `if (nil) print "then"; else print "else";`, "else\n"},
		{"while", `var i = 0; var s = 0; while (i < 5) { s = s + i; i = i + 1; } print s;`, "10\n"},
		{"for", `var x = 0; for (var i = 0; i < 3; i = i + 1) x = x + i; print x;`, "3\n"},
		{"for no increment", `for (var i = 0; i < 2;) { print i; i = i + 1; }`, "0\n1\n"},
		{"for no initializer", `var i = 0; for (; i < 2; i = i + 1) print i;`, "0\n1\n"},

		{"and or results", `print nil and 1; print 1 and 2; print nil or "x"; print 2 or 3;`,
			"nil\n2\nx\n2\n"},

		{"function", `fun add(a, b) { return a + b; } print add(1, 2);`, "3\n"},
		{"recursion", `fun fib(n) { if (n < 2) return n; return fib(n - 2) + fib(n - 1); } print fib(10);`, "55\n"},
		{"implicit return", `fun noop() {} print noop();`, "nil\n"},
		{"print function", `fun f() {} print f; print clock == clock;`, "<fn f>\ntrue\n"},

		{"closure escape", `fun make(x) { fun g() { return x; } return g; } var f = make(42); print f();`, "42\n"},
		{"closure shared cell", `
fun counter() {
  var n = 0;
  fun inc() { n = n + 1; return n; }
  fun get() { return n; }
  inc(); inc();
  print get();
  return inc;
}
var c = counter();
print c();`, "2\n3\n"},
		{"loop variable capture", `
fun make() {
  var xs = nil;
  for (var i = 0; i < 3; i = i + 1) {
    fun c() { return i; }
    xs = c;
  }
  return xs;
}
print make()();`, "3\n"},

		{"class and fields", `class P {} var p = P(); p.x = 1; p.x = p.x + 2; print p.x;`, "3\n"},
		{"methods and this", `
class Person {
  init(name) { this.name = name; }
  greet() { return "hi " + this.name; }
}
print Person("bob").greet();`, "hi bob\n"},
		{"bound method value", `
class Person {
  greet() { return "hi " + this.name; }
}
var p = Person();
p.name = "bob";
var g = p.greet;
print g();`, "hi bob\n"},
		{"init returns instance", `
class K { init() { this.v = 1; return; } }
var k = K();
print k.v;
print k.init() == k;`, "1\ntrue\n"},
		{"superclass init", `
class A { init(n) { this.n = n; } }
class B < A { init(n) { super.init(n); this.n = this.n + 1; } }
print B(10).n;`, "11\n"},
		{"super method", `
class Animal {
  speak() { return "sound"; }
}
class Dog < Animal {
  speak() { return super.speak() + ": woof"; }
}
print Dog().speak();`, "sound: woof\n"},
		{"inherited method", `
class A { m() { return "from A"; } }
class B < A {}
print B().m();`, "from A\n"},
		{"field shadows method", `
class C { m() { return "method"; } }
var c = C();
print c.m();
fun shadow() { return "field"; }
c.m = shadow;
print c.m();`, "method\nfield\n"},
		{"print class and instance", `class C {} print C; print C();`, "C\nC instance\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, errOut, err := runSource(t, machine.DefaultConfig(), tc.src)
			require.NoError(t, err, "stderr: %s", errOut)
			assert.Equal(t, tc.want, out)
		})
	}
}

func TestShortCircuitSideEffects(t *testing.T) {
	const src = `
var log = "";
fun t(x) { log = log + x; return true; }
fun f(x) { log = log + x; return false; }
t("a") and t("b");
f("c") and t("d");
t("e") or t("f");
f("g") or t("h");
print log;`
	out, _, err := runSource(t, machine.DefaultConfig(), src)
	require.NoError(t, err)
	assert.Equal(t, "abcegh\n", out)
}

func TestRuntimeErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		msg  string
	}{
		{"undefined read", `print x;`, "Undefined variable 'x'."},
		{"undefined assign", `x = 1;`, "Undefined variable 'x'."},
		{"add mismatch", `var a = 1 + "s";`, "Operands must be two numbers or two strings."},
		{"negate string", `-"s";`, "Operand must be a number."},
		{"compare strings", `print "a" < "b";`, "Operands must be numbers."},
		{"call nil", `nil();`, "Can only call functions and classes."},
		{"bad arity", `fun f(a) {} f();`, "Expected 1 arguments but got 0."},
		{"class arity", `class C {} C(1);`, "Expected 0 arguments but got 1."},
		{"init arity", `class C { init(a) {} } C();`, "Expected 1 arguments but got 0."},
		{"property on number", `var x = 1; x.y;`, "Only instances have properties."},
		{"field on number", `var x = 1; x.y = 2;`, "Only instances have fields."},
		{"method on number", `var x = 1; x.y();`, "Only instances have methods."},
		{"undefined property", `class C {} C().nope;`, "Undefined property 'nope'."},
		{"undefined method", `class C {} C().nope();`, "Undefined property 'nope'."},
		{"inherit non-class", `var x = 3; class D < x {}`, "Superclass must be a class."},
		{"stack overflow", `fun f() { f(); } f();`, "Stack overflow."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, errOut, err := runSource(t, machine.DefaultConfig(), tc.src)
			var rerr *machine.RuntimeError
			require.ErrorAs(t, err, &rerr)
			assert.Contains(t, errOut, tc.msg)
			assert.Empty(t, out)
		})
	}
}

func TestRuntimeErrorStackTrace(t *testing.T) {
	const src = `fun a() { b(); }
fun b() { nil(); }
a();`
	_, errOut, err := runSource(t, machine.DefaultConfig(), src)
	require.Error(t, err)
	assert.Equal(t, `Can only call functions and classes.
[line 2] in b()
[line 1] in a()
[line 3] in script
`, errOut)
}

func TestMachineUsableAfterRuntimeError(t *testing.T) {
	var out, errb bytes.Buffer
	interp := machine.New(machine.DefaultConfig(), &out, &errb)

	fn, err := compiler.Compile([]byte(`var ok = "still here"; bogus();`), interp.Heap(), &errb)
	require.NoError(t, err)
	require.Error(t, interp.Run(fn))

	// globals defined before the error persist, stacks were reset
	fn, err = compiler.Compile([]byte(`print ok;`), interp.Heap(), &errb)
	require.NoError(t, err)
	require.NoError(t, interp.Run(fn))
	assert.Equal(t, "still here\n", out.String())
}

func TestNatives(t *testing.T) {
	var out, errb bytes.Buffer
	interp := machine.New(machine.DefaultConfig(), &out, &errb)

	src := `var t0 = clock();
var x = 0;
for (var i = 0; i < 100; i = i + 1) x = x + i;
print clock() >= t0;`
	fn, err := compiler.Compile([]byte(src), interp.Heap(), &errb)
	require.NoError(t, err)
	require.NoError(t, interp.Run(fn))
	assert.Equal(t, "true\n", out.String())
}

func TestDefineNative(t *testing.T) {
	var out, errb bytes.Buffer
	interp := machine.New(machine.DefaultConfig(), &out, &errb)
	interp.DefineNative("double", 1, func(args []machine.Value) (machine.Value, error) {
		n, ok := args[0].(machine.Number)
		if !ok {
			return nil, fmt.Errorf("Operand must be a number.")
		}
		return n * 2, nil
	})

	fn, err := compiler.Compile([]byte(`print double(21);`), interp.Heap(), &errb)
	require.NoError(t, err)
	require.NoError(t, interp.Run(fn))
	assert.Equal(t, "42\n", out.String())

	// a native error unwinds like any runtime error
	fn, err = compiler.Compile([]byte(`double("x");`), interp.Heap(), &errb)
	require.NoError(t, err)
	rerr := interp.Run(fn)
	var re *machine.RuntimeError
	require.ErrorAs(t, rerr, &re)
	assert.Contains(t, errb.String(), "Operand must be a number.")
}

// TestGCStressIdentical runs a heap-churning program under the stress
// collector (collect before every allocation) and checks the observable
// output is identical to a normal run.
func TestGCStressIdentical(t *testing.T) {
	const src = `
class Node {
  init(v) { this.v = v; }
  label() { return "n" + this.v; }
}
fun build(n) {
  var acc = "";
  for (var i = 0; i < n; i = i + 1) {
    acc = acc + Node(acc).label();
  }
  return acc;
}
fun fib(n) { if (n < 2) return n; return fib(n - 2) + fib(n - 1); }
print build(5);
print fib(12);`

	normal, _, err := runSource(t, machine.DefaultConfig(), src)
	require.NoError(t, err)

	cfg := machine.DefaultConfig()
	cfg.GCStress = true
	stressed, _, err := runSource(t, cfg, src)
	require.NoError(t, err)
	assert.Equal(t, normal, stressed)
}

package machine_test

import (
	"io"
	"testing"

	"github.com/loxlang/golox/lang/machine"
	"github.com/stretchr/testify/assert"
)

func TestTruth(t *testing.T) {
	h := machine.NewHeap(machine.DefaultConfig(), io.Discard)

	assert.Equal(t, machine.False, machine.Truth(machine.Nil))
	assert.Equal(t, machine.False, machine.Truth(machine.False))
	assert.Equal(t, machine.True, machine.Truth(machine.True))
	assert.Equal(t, machine.True, machine.Truth(machine.Number(0)), "0 is truthy")
	assert.Equal(t, machine.True, machine.Truth(h.NewString("")), "empty string is truthy")
}

func TestEqual(t *testing.T) {
	h := machine.NewHeap(machine.DefaultConfig(), io.Discard)

	assert.True(t, machine.Equal(machine.Nil, machine.Nil))
	assert.True(t, machine.Equal(machine.Number(1), machine.Number(1)))
	assert.True(t, machine.Equal(machine.True, machine.True))
	assert.False(t, machine.Equal(machine.Number(0), machine.False), "different types are unequal")
	assert.False(t, machine.Equal(machine.Nil, machine.False))
	assert.True(t, machine.Equal(h.NewString("a"), h.NewString("a")), "interning makes identity equality correct")
	assert.False(t, machine.Equal(h.NewString("a"), h.NewString("b")))
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "nil", machine.Nil.String())
	assert.Equal(t, "true", machine.True.String())
	assert.Equal(t, "7", machine.Number(7).String())
	assert.Equal(t, "2.5", machine.Number(2.5).String())
	assert.Equal(t, "-0.25", machine.Number(-0.25).String())
}

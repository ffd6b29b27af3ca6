package machine

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureUpvalueIdempotentAndSorted(t *testing.T) {
	i := New(DefaultConfig(), io.Discard, io.Discard)
	i.push(Number(10))
	i.push(Number(20))
	i.push(Number(30))

	u2 := i.captureUpvalue(2)
	u0 := i.captureUpvalue(0)
	u1 := i.captureUpvalue(1)

	// capturing a slot again yields the same box
	assert.Same(t, u2, i.captureUpvalue(2))
	assert.Same(t, u0, i.captureUpvalue(0))

	// list is ordered by descending slot regardless of capture order
	require.Same(t, u2, i.openUpvalues)
	require.Same(t, u1, u2.next)
	require.Same(t, u0, u1.next)
	assert.Nil(t, u0.next)
}

func TestCloseUpvaluesRange(t *testing.T) {
	i := New(DefaultConfig(), io.Discard, io.Discard)
	i.push(Number(10))
	i.push(Number(20))
	i.push(Number(30))

	u0 := i.captureUpvalue(0)
	u1 := i.captureUpvalue(1)
	u2 := i.captureUpvalue(2)

	// closes slots >= 1, leaving slot 0 open
	i.closeUpvalues(1)
	assert.Equal(t, -1, u2.slot)
	assert.Equal(t, Number(30), u2.closed)
	assert.Equal(t, -1, u1.slot)
	assert.Equal(t, Number(20), u1.closed)
	require.Same(t, u0, i.openUpvalues)
	assert.Equal(t, 0, u0.slot)

	// writes through the stack no longer affect closed cells
	i.stack[2] = Number(99)
	assert.Equal(t, Number(30), u2.closed)

	i.closeUpvalues(0)
	assert.Equal(t, Number(10), u0.closed)
	assert.Nil(t, i.openUpvalues)

	// closing is idempotent
	i.closeUpvalues(0)
	assert.Nil(t, i.openUpvalues)
}

package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestList_EmitInOrder(t *testing.T) {
	var l List[int]
	var got []string
	l.Add(func(v int) { got = append(got, "a") })
	l.Add(func(v int) { got = append(got, "b") })

	l.Emit(1)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 2, l.Count())
}

func TestList_RemoveIsIdempotent(t *testing.T) {
	var l List[string]
	calls := 0
	remove := l.Add(func(string) { calls++ })
	keep := 0
	l.Add(func(string) { keep++ })

	remove()
	remove()
	l.Emit("x")

	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, keep)
	assert.Equal(t, 1, l.Count())
}

func TestList_PanicDoesNotStopOthers(t *testing.T) {
	var l List[int]
	reached := false
	l.Add(func(int) { panic("boom") })
	l.Add(func(int) { reached = true })

	assert.NotPanics(t, func() { l.Emit(0) })
	assert.True(t, reached)
}

func TestList_NilHandlerIgnored(t *testing.T) {
	var l List[int]
	remove := l.Add(nil)
	remove()
	assert.Equal(t, 0, l.Count())
}

package sigchan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChan_Coalesces(t *testing.T) {
	c := New(0)
	c.Emit()
	c.Emit()
	c.Emit()

	select {
	case <-c.C():
	default:
		t.Fatal("expected a pending signal")
	}
	select {
	case <-c.C():
		t.Fatal("signals should coalesce")
	default:
	}
	assert.Equal(t, 1, cap(c.c))
}

package syncgroup

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncGroup_RunsAll(t *testing.T) {
	sg := NewSyncGroup()
	var n int32
	for i := 0; i < 4; i++ {
		sg.Add("inc", func(context.Context) { atomic.AddInt32(&n, 1) })
	}
	assert.Empty(t, sg.RunAndWait(context.Background()))
	assert.Equal(t, int32(4), atomic.LoadInt32(&n))

	// 列表已清空，再次运行不会重复执行
	assert.Empty(t, sg.RunAndWait(context.Background()))
	assert.Equal(t, int32(4), atomic.LoadInt32(&n))
}

func TestSyncGroup_PanicIsolated(t *testing.T) {
	sg := NewSyncGroup()
	var ok int32
	sg.Add("boom", func(context.Context) { panic("x") })
	sg.Add("fine", func(context.Context) { atomic.StoreInt32(&ok, 1) })

	panics := sg.RunAndWait(context.Background())
	assert.Len(t, panics, 1)
	assert.Contains(t, panics[0].Error(), "boom")
	assert.Equal(t, int32(1), atomic.LoadInt32(&ok))
}

func TestSyncGroup_PassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	sg := NewSyncGroup()
	var got atomic.Value
	sg.Add("ctx", func(ctx context.Context) { got.Store(ctx.Value(key{})) })
	sg.RunAndWait(ctx)
	assert.Equal(t, "v", got.Load())
}

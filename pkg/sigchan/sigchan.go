package sigchan

// Chan 合并通知的信号 channel：Emit 从不阻塞，连续多次 Emit 在被消费前只保留一次
//
// 用于把 store 变化（在任意 goroutine 上触发）转成 UI 的一次重绘。
type Chan struct {
	c chan struct{}
}

// New 创建信号 channel；bufferSize 小于 1 时按 1 处理
func New(bufferSize int) *Chan {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Chan{c: make(chan struct{}, bufferSize)}
}

// Emit 发送信号（非阻塞，满了就丢弃）
func (c *Chan) Emit() {
	select {
	case c.c <- struct{}{}:
	default:
	}
}

// C 返回内部的 channel（用于 select）
func (c *Chan) C() <-chan struct{} {
	return c.c
}

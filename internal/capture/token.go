package capture

import (
	"sync"
	"time"
)

// Token is a one-way stop signal shared between a sink and its worker.
type Token struct {
	once sync.Once
	ch   chan struct{}
}

func NewToken() *Token {
	return &Token{ch: make(chan struct{})}
}

func (t *Token) Signal() {
	t.once.Do(func() { close(t.ch) })
}

func (t *Token) IsSignaled() bool {
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

// Wait reports whether the token was signaled within timeout. A negative
// timeout waits forever.
func (t *Token) Wait(timeout time.Duration) bool {
	if timeout < 0 {
		<-t.ch
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-t.ch:
		return true
	case <-timer.C:
		return false
	}
}

func (t *Token) Done() <-chan struct{} {
	return t.ch
}

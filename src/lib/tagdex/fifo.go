package tagdex

import (
	"errors"
	"sync"
)

const maxSize = 100_000

var ErrFull = errors.New("fifo full")

// Fifo is a bounded ring queue. The embedded mutex is not taken by the
// methods, callers lock around a batch of operations.
type Fifo[T any] struct {
	r      []*T
	start  int
	length int
	sync.RWMutex
}

func NewFifo[T any]() *Fifo[T] {
	return NewFifoSize[T](maxSize)
}

func NewFifoSize[T any](size int) *Fifo[T] {
	return &Fifo[T]{
		r: make([]*T, size),
	}
}

func (f *Fifo[T]) Put(r *T) error {
	if f.length >= len(f.r) {
		return ErrFull
	}

	f.r[(f.start+f.length)%len(f.r)] = r
	f.length++
	return nil
}

func (f *Fifo[T]) Length() int {
	return f.length
}

func (f *Fifo[T]) Capacity() int {
	return len(f.r)
}

// Pop returns nil, false when the queue is empty.
func (f *Fifo[T]) Pop() (*T, bool) {
	if f.length <= 0 {
		return nil, false
	}
	r := f.r[f.start]
	f.r[f.start] = nil
	f.start = (f.start + 1) % len(f.r)
	f.length--

	return r, true
}

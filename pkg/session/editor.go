package session

import (
	"bytes"
	"sync"

	"github.com/aretw0/contractflow/pkg/core"
)

// Editor is the boundary to whatever edits the contract content.
type Editor interface {
	SetReadOnly(readOnly bool)
	Content() []byte
	OnChange(fn func(content []byte)) (unsubscribe func())
}

// Buffer is an in-memory Editor.
type Buffer struct {
	mu        sync.Mutex
	content   []byte
	readOnly  bool
	nextID    int
	listeners map[int]func([]byte)
}

// NewBuffer creates a buffer holding content.
func NewBuffer(content []byte) *Buffer {
	return &Buffer{content: bytes.Clone(content), listeners: make(map[int]func([]byte))}
}

// SetReadOnly implements Editor.
func (b *Buffer) SetReadOnly(readOnly bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readOnly = readOnly
}

// ReadOnly reports whether writes are currently refused.
func (b *Buffer) ReadOnly() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readOnly
}

// Content implements Editor.
func (b *Buffer) Content() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.content)
}

// Write replaces the content and notifies listeners. It fails with
// core.ErrReadOnly while the buffer is locked.
func (b *Buffer) Write(content []byte) error {
	b.mu.Lock()
	if b.readOnly {
		b.mu.Unlock()
		return core.ErrReadOnly
	}
	b.content = bytes.Clone(content)
	listeners := make([]func([]byte), 0, len(b.listeners))
	for id := 0; id < b.nextID; id++ {
		if fn, ok := b.listeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(bytes.Clone(content))
	}
	return nil
}

// OnChange implements Editor.
func (b *Buffer) OnChange(fn func([]byte)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

var _ Editor = (*Buffer)(nil)

package session

import "sync"

// Buffer is a thread-safe circular buffer for adapter console output. Old
// output is overwritten once the capacity is exceeded.
type Buffer struct {
	data []byte
	size int
	head int
	tail int
	full bool
	mu   sync.RWMutex
}

// NewBuffer creates a new circular buffer
func NewBuffer(size int) *Buffer {
	return &Buffer{
		data: make([]byte, size),
		size: size,
	}
}

// Write appends data to the buffer
func (b *Buffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range p {
		b.data[b.tail] = c
		b.tail = (b.tail + 1) % b.size

		if b.full {
			b.head = b.tail
		}
		if b.tail == b.head {
			b.full = true
		}
	}

	return len(p), nil
}

// Snapshot returns a copy of the buffered output without consuming it.
// Console views and the adapter-arguments API read through this.
func (b *Buffer) Snapshot() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.head == b.tail && !b.full {
		return []byte{}
	}

	var result []byte
	if b.tail > b.head {
		result = make([]byte, b.tail-b.head)
		copy(result, b.data[b.head:b.tail])
	} else {
		// Buffer wrapped around
		firstPart := b.data[b.head:]
		secondPart := b.data[:b.tail]
		result = make([]byte, len(firstPart)+len(secondPart))
		copy(result, firstPart)
		copy(result[len(firstPart):], secondPart)
	}

	return result
}

// Len returns the number of buffered bytes
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.full {
		return b.size
	}
	if b.tail >= b.head {
		return b.tail - b.head
	}
	return b.size - b.head + b.tail
}

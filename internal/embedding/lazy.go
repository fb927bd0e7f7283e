package embedding

import (
	"context"
	"fmt"
	"sync"
)

// Lazy defers construction of an expensive backend until the first
// Embed call, then reuses it. The constructed backend is owned by the
// Lazy value, not a process-wide singleton; Reset discards it so tests
// can force reconstruction.
type Lazy struct {
	mu        sync.Mutex
	construct func() (Embedder, error)
	backend   Embedder
}

// NewLazy wraps a constructor that will run at most once per backend
// lifetime (again after Reset).
func NewLazy(construct func() (Embedder, error)) *Lazy {
	return &Lazy{construct: construct}
}

// Embed constructs the backend on first use and delegates to it.
// A failed construction is retried on the next call.
func (l *Lazy) Embed(ctx context.Context, text string) ([]float32, error) {
	backend, err := l.get()
	if err != nil {
		return nil, err
	}
	return backend.Embed(ctx, text)
}

// Reset discards the constructed backend. The next Embed call rebuilds it.
func (l *Lazy) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backend = nil
}

func (l *Lazy) get() (Embedder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.backend != nil {
		return l.backend, nil
	}
	backend, err := l.construct()
	if err != nil {
		return nil, fmt.Errorf("failed to construct embedding backend: %w", err)
	}
	if backend == nil {
		return nil, fmt.Errorf("embedding constructor returned nil backend")
	}
	l.backend = backend
	return l.backend, nil
}

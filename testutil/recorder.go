package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	DefaultWaitTimeout = 5 * time.Second
	DefaultTick        = 5 * time.Millisecond
)

// Recorder is an event handler that keeps every event it receives.
type Recorder[K, E any] struct {
	mu     sync.Mutex
	keys   []K
	events []E
}

func NewRecorder[K, E any]() *Recorder[K, E] {
	return &Recorder[K, E]{}
}

func (r *Recorder[K, E]) OnEvent(key K, e E) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.keys = append(r.keys, key)
	r.events = append(r.events, e)
}

func (r *Recorder[K, E]) Events() []E {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]E(nil), r.events...)
}

func (r *Recorder[K, E]) Keys() []K {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]K(nil), r.keys...)
}

func (r *Recorder[K, E]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.events)
}

// WaitFor blocks until at least n events were recorded and returns them.
func (r *Recorder[K, E]) WaitFor(t *testing.T, n int) []E {
	require.Eventually(t, func() bool {
		return r.Len() >= n
	}, DefaultWaitTimeout, DefaultTick, "expected at least %d events", n)
	return r.Events()
}

// Never asserts that no more than n events are recorded within d.
func (r *Recorder[K, E]) Never(t *testing.T, n int, d time.Duration) {
	require.Never(t, func() bool {
		return r.Len() > n
	}, d, DefaultTick, "expected no more than %d events", n)
}

// Package history implements the conversation-state store: ordered message
// histories keyed by an opaque thread identifier.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/jaaabir/tim-ai/pkg/chat"
)

// Store persists per-thread conversation histories. Two calls with the same
// thread id always observe the same history; there is no silent forking.
//
// Lock hands out a per-thread mutual-exclusion scope so concurrent turns on
// one thread queue instead of interleaving their pipeline stages. Threads
// with distinct ids share nothing and never block each other.
type Store interface {
	// GetOrCreate returns the history for threadID, creating an empty one
	// on first use. The returned slice is a copy; mutate through Append
	// and Replace.
	GetOrCreate(ctx context.Context, threadID string) ([]chat.Message, error)

	// Append adds messages to the end of the thread's history.
	Append(ctx context.Context, threadID string, msgs ...chat.Message) error

	// Replace swaps the thread's entire history for msgs.
	Replace(ctx context.Context, threadID string, msgs []chat.Message) error

	// Lock acquires the thread's turn lock and returns its release func.
	Lock(threadID string) (unlock func())

	// Close releases any resources held by the store.
	Close() error
}

// Options configure optional store behavior.
type Options struct {
	// TTL evicts a thread's history after it has been idle this long.
	// Zero disables eviction, matching the deployed behavior of keeping
	// sessions for the process lifetime.
	TTL time.Duration
}

// Option mutates Options.
type Option func(*Options)

// WithTTL enables idle-session eviction.
func WithTTL(d time.Duration) Option {
	return func(o *Options) { o.TTL = d }
}

// keyedMutex hands out one mutex per key, created on demand. Keys are never
// removed; a live deployment has a bounded set of threads per process.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

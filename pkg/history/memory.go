package history

import (
	"context"
	"sync"
	"time"

	"github.com/jaaabir/tim-ai/pkg/chat"
)

// MemoryStore keeps histories in a process-wide map. It is the default
// backend for single-operator deployments where losing conversations on
// restart is acceptable.
type MemoryStore struct {
	mu       sync.RWMutex
	threads  map[string][]chat.Message
	touched  map[string]time.Time
	turnLock *keyedMutex

	done chan struct{}
	once sync.Once
}

// NewMemoryStore creates an in-memory store. With WithTTL a janitor
// goroutine evicts threads idle longer than the TTL.
func NewMemoryStore(opts ...Option) *MemoryStore {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	s := &MemoryStore{
		threads:  make(map[string][]chat.Message),
		touched:  make(map[string]time.Time),
		turnLock: newKeyedMutex(),
		done:     make(chan struct{}),
	}

	if o.TTL > 0 {
		go s.janitor(o.TTL)
	}

	return s
}

func (s *MemoryStore) GetOrCreate(_ context.Context, threadID string) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[threadID]; !ok {
		s.threads[threadID] = nil
	}
	s.touched[threadID] = time.Now()

	out := make([]chat.Message, len(s.threads[threadID]))
	copy(out, s.threads[threadID])
	return out, nil
}

func (s *MemoryStore) Append(_ context.Context, threadID string, msgs ...chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.threads[threadID] = append(s.threads[threadID], msgs...)
	s.touched[threadID] = time.Now()
	return nil
}

func (s *MemoryStore) Replace(_ context.Context, threadID string, msgs []chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := make([]chat.Message, len(msgs))
	copy(replaced, msgs)
	s.threads[threadID] = replaced
	s.touched[threadID] = time.Now()
	return nil
}

func (s *MemoryStore) Lock(threadID string) func() {
	return s.turnLock.lock(threadID)
}

func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// janitor periodically drops threads that have been idle longer than ttl.
func (s *MemoryStore) janitor(ttl time.Duration) {
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for id, last := range s.touched {
				if now.Sub(last) > ttl {
					delete(s.threads, id)
					delete(s.touched, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

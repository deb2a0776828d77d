package history_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jaaabir/tim-ai/pkg/chat"
	"github.com/jaaabir/tim-ai/pkg/history"
)

var _ = Describe("MemoryStore", func() {
	var (
		store *history.MemoryStore
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = history.NewMemoryStore()
	})

	AfterEach(func() {
		store.Close()
	})

	Describe("GetOrCreate", func() {
		It("returns an empty history for a new thread", func() {
			msgs, err := store.GetOrCreate(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(BeEmpty())
		})

		It("observes the same history for the same thread id", func() {
			Expect(store.Append(ctx, "t1", chat.User("hello"))).To(Succeed())

			first, err := store.GetOrCreate(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			second, err := store.GetOrCreate(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())

			Expect(first).To(Equal(second))
		})

		It("keeps distinct threads independent", func() {
			Expect(store.Append(ctx, "t1", chat.User("a"))).To(Succeed())

			msgs, err := store.GetOrCreate(ctx, "t2")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(BeEmpty())
		})

		It("returns a copy that does not alias store state", func() {
			Expect(store.Append(ctx, "t1", chat.User("a"))).To(Succeed())

			msgs, _ := store.GetOrCreate(ctx, "t1")
			msgs[0].Content = "mutated"

			again, _ := store.GetOrCreate(ctx, "t1")
			Expect(again[0].Content).To(Equal("a"))
		})
	})

	Describe("Append and Replace", func() {
		It("preserves insertion order", func() {
			Expect(store.Append(ctx, "t1", chat.System("s"))).To(Succeed())
			Expect(store.Append(ctx, "t1", chat.User("u"), chat.Assistant("a"))).To(Succeed())

			msgs, err := store.GetOrCreate(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(Equal([]chat.Message{
				chat.System("s"), chat.User("u"), chat.Assistant("a"),
			}))
		})

		It("replaces the full history", func() {
			Expect(store.Append(ctx, "t1", chat.User("old"))).To(Succeed())
			Expect(store.Replace(ctx, "t1", []chat.Message{chat.User("new")})).To(Succeed())

			msgs, _ := store.GetOrCreate(ctx, "t1")
			Expect(msgs).To(Equal([]chat.Message{chat.User("new")}))
		})
	})

	Describe("Lock", func() {
		It("serializes turns on the same thread", func() {
			var order []int
			var mu sync.Mutex
			var wg sync.WaitGroup

			unlock := store.Lock("t1")

			wg.Add(1)
			go func() {
				defer wg.Done()
				u := store.Lock("t1")
				mu.Lock()
				order = append(order, 2)
				mu.Unlock()
				u()
			}()

			time.Sleep(20 * time.Millisecond)
			mu.Lock()
			order = append(order, 1)
			mu.Unlock()
			unlock()

			wg.Wait()
			Expect(order).To(Equal([]int{1, 2}))
		})

		It("does not block distinct threads", func() {
			unlock := store.Lock("t1")
			defer unlock()

			done := make(chan struct{})
			go func() {
				u := store.Lock("t2")
				u()
				close(done)
			}()

			Eventually(done).Should(BeClosed())
		})
	})

	Describe("TTL eviction", func() {
		It("drops idle threads after the TTL", func() {
			ttlStore := history.NewMemoryStore(history.WithTTL(40 * time.Millisecond))
			defer ttlStore.Close()

			Expect(ttlStore.Append(ctx, "t1", chat.User("hello"))).To(Succeed())

			// Reading refreshes the idle timestamp, so wait out several
			// janitor ticks before the single check.
			time.Sleep(250 * time.Millisecond)

			msgs, err := ttlStore.GetOrCreate(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(BeEmpty())
		})
	})
})

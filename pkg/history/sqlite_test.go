package history_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jaaabir/tim-ai/pkg/chat"
	"github.com/jaaabir/tim-ai/pkg/history"
)

var _ = Describe("SQLiteStore", func() {
	var (
		store *history.SQLiteStore
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		store, err = history.NewSQLiteStore(":memory:")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if store != nil {
			store.Close()
		}
	})

	Describe("NewSQLiteStore", func() {
		It("creates a file database on first open", func() {
			tmpDir := GinkgoT().TempDir()
			dbPath := filepath.Join(tmpDir, "history.db")

			s, err := history.NewSQLiteStore(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	It("round-trips messages in insertion order", func() {
		Expect(store.Append(ctx, "t1", chat.System("seed"))).To(Succeed())
		Expect(store.Append(ctx, "t1", chat.User("q"), chat.Assistant("a"))).To(Succeed())

		msgs, err := store.GetOrCreate(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(Equal([]chat.Message{
			chat.System("seed"), chat.User("q"), chat.Assistant("a"),
		}))
	})

	It("scopes histories by thread id", func() {
		Expect(store.Append(ctx, "t1", chat.User("one"))).To(Succeed())
		Expect(store.Append(ctx, "t2", chat.User("two"))).To(Succeed())

		msgs, err := store.GetOrCreate(ctx, "t2")
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(Equal([]chat.Message{chat.User("two")}))
	})

	It("replaces a history atomically", func() {
		Expect(store.Append(ctx, "t1", chat.User("old"), chat.Assistant("stale"))).To(Succeed())
		Expect(store.Replace(ctx, "t1", []chat.Message{
			chat.System("seed"), chat.User("new"),
		})).To(Succeed())

		msgs, err := store.GetOrCreate(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(Equal([]chat.Message{chat.System("seed"), chat.User("new")}))
	})

	It("returns an empty history for unknown threads", func() {
		msgs, err := store.GetOrCreate(ctx, "nope")
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(BeEmpty())
	})
})

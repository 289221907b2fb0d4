package store_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubev2v/guest-extension-agent/internal/models"
	"github.com/kubev2v/guest-extension-agent/internal/store"
	"github.com/kubev2v/guest-extension-agent/internal/store/migrations"
)

func TestStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Store Suite")
}

var _ = Describe("PassHistoryStore", func() {
	It("records and lists passes newest first", func() {
		ctx := context.Background()
		db, err := store.NewDB(":memory:")
		Expect(err).NotTo(HaveOccurred())
		defer db.Close()
		Expect(migrations.Run(ctx, db)).To(Succeed())

		s := store.NewStore(db)
		first := time.Now().Add(-time.Minute)
		second := time.Now()

		Expect(s.PassHistory().Record(ctx, models.PassRecord{StartedAt: first, Etag: "a", HandlerCount: 1, Outcome: "ok"})).To(Succeed())
		Expect(s.PassHistory().Record(ctx, models.PassRecord{StartedAt: second, Etag: "b", HandlerCount: 2, Outcome: "error", Message: "boom"})).To(Succeed())

		recs, err := s.PassHistory().List(ctx, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(recs).To(HaveLen(2))
		Expect(recs[0].Etag).To(Equal("b"))
		Expect(recs[1].Etag).To(Equal("a"))
	})
})

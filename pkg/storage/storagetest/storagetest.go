// Package storagetest holds behavior shared by every storage.Driver test suite.
package storagetest

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/trickle/pkg/conversation"
	"github.com/papercomputeco/trickle/pkg/storage"
)

// Turns returns a small finished conversation.
func Turns() []conversation.Turn {
	base := time.Date(2026, 3, 4, 5, 6, 7, 8000, time.UTC)

	q := conversation.NewTurn(conversation.RoleUser, "what is SSE?")
	q.CreatedAt = base

	a := conversation.NewTurn(conversation.RoleAssistant, "Server-sent events:\n a text stream")
	a.CreatedAt = base.Add(time.Second)

	stopped := conversation.NewTurn(conversation.RoleAssistant, "partial")
	stopped.Status = conversation.StatusIncomplete
	stopped.CreatedAt = base.Add(2 * time.Second)

	return []conversation.Turn{q, a, stopped}
}

// DescribeDriver registers the common driver specs. newDriver is called
// before each spec and the driver is closed after it.
func DescribeDriver(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
		DeferCleanup(func() {
			Expect(driver.Close()).To(Succeed())
		})
	})

	It("loads nothing from an empty store", func() {
		turns, err := driver.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(turns).To(BeEmpty())
	})

	It("round trips a history in order", func() {
		want := Turns()
		Expect(driver.Save(ctx, want)).To(Succeed())

		got, err := driver.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(len(want)))
		for i := range want {
			Expect(got[i].ID).To(Equal(want[i].ID))
			Expect(got[i].Role).To(Equal(want[i].Role))
			Expect(got[i].Content).To(Equal(want[i].Content))
			Expect(got[i].IsSelf).To(Equal(want[i].IsSelf))
			Expect(got[i].Status).To(Equal(want[i].Status))
			Expect(got[i].CreatedAt.Equal(want[i].CreatedAt)).To(BeTrue())
		}
	})

	It("replaces the history on every save", func() {
		turns := Turns()
		Expect(driver.Save(ctx, turns)).To(Succeed())
		Expect(driver.Save(ctx, turns[:1])).To(Succeed())

		got, err := driver.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(1))
		Expect(got[0].ID).To(Equal(turns[0].ID))
	})

	It("stores an empty history", func() {
		Expect(driver.Save(ctx, Turns())).To(Succeed())
		Expect(driver.Save(ctx, []conversation.Turn{})).To(Succeed())

		got, err := driver.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeEmpty())
	})

	It("rejects a nil history", func() {
		Expect(driver.Save(ctx, nil)).To(MatchError(storage.ErrNilHistory))
	})

	It("clears the history", func() {
		Expect(driver.Save(ctx, Turns())).To(Succeed())
		Expect(driver.Clear(ctx)).To(Succeed())

		got, err := driver.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeEmpty())

		Expect(driver.Clear(ctx)).To(Succeed())
	})
}

package transport_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/trickle/pkg/transport"
)

var _ = Describe("BackoffPolicy", func() {
	It("grows delays within the configured bounds", func() {
		p := transport.NewBackoffPolicy(transport.BackoffConfig{
			MaxAttempts:     10,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     400 * time.Millisecond,
		})

		for attempt := 1; attempt <= 10; attempt++ {
			d, ok := p.Next(attempt, 0)
			Expect(ok).To(BeTrue())
			Expect(d).To(BeNumerically(">", 0))
			// Jitter is at most 50% around the capped interval.
			Expect(d).To(BeNumerically("<=", 600*time.Millisecond))
		}
	})

	It("gives up after MaxAttempts", func() {
		p := transport.NewBackoffPolicy(transport.BackoffConfig{
			MaxAttempts:     2,
			InitialInterval: time.Millisecond,
		})

		_, ok := p.Next(1, 0)
		Expect(ok).To(BeTrue())
		_, ok = p.Next(2, 0)
		Expect(ok).To(BeTrue())
		_, ok = p.Next(3, 0)
		Expect(ok).To(BeFalse())
	})

	It("never gives up when MaxAttempts is zero", func() {
		p := transport.NewBackoffPolicy(transport.BackoffConfig{InitialInterval: time.Millisecond})
		for attempt := 1; attempt <= 100; attempt++ {
			_, ok := p.Next(attempt, 0)
			Expect(ok).To(BeTrue())
		}
	})

	It("prefers a server hint", func() {
		p := transport.NewBackoffPolicy(transport.DefaultBackoffConfig())
		d, ok := p.Next(1, 1500*time.Millisecond)
		Expect(ok).To(BeTrue())
		Expect(d).To(Equal(1500 * time.Millisecond))
	})

	It("restarts from the initial interval after Reset", func() {
		p := transport.NewBackoffPolicy(transport.BackoffConfig{
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     10 * time.Second,
		})
		for attempt := 1; attempt <= 6; attempt++ {
			p.Next(attempt, 0)
		}

		p.Reset()
		d, ok := p.Next(1, 0)
		Expect(ok).To(BeTrue())
		Expect(d).To(BeNumerically("<=", 150*time.Millisecond))
	})
})

var _ = Describe("ConstantPolicy", func() {
	It("returns the fixed delay until exhausted", func() {
		p := transport.ConstantPolicy{Delay: 5 * time.Millisecond, MaxAttempts: 1}

		d, ok := p.Next(1, 0)
		Expect(ok).To(BeTrue())
		Expect(d).To(Equal(5 * time.Millisecond))

		_, ok = p.Next(2, 0)
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("NoRetry", func() {
	It("never retries", func() {
		_, ok := transport.NoRetry{}.Next(1, time.Second)
		Expect(ok).To(BeFalse())
	})
})

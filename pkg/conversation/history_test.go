package conversation_test

import (
	"net/http"
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/trickle/pkg/conversation"
)

var _ = Describe("History", func() {
	It("returns snapshots that callers may modify", func() {
		h := conversation.NewHistory(conversation.NewTurn(conversation.RoleUser, "hi"))

		snap := h.Turns()
		snap[0].Content = "changed"

		t, ok := h.At(0)
		Expect(ok).To(BeTrue())
		Expect(t.Content).To(Equal("hi"))
	})

	It("marks restored pending turns incomplete", func() {
		pending := conversation.NewTurn(conversation.RoleAssistant, "cut")
		pending.Status = conversation.StatusPending

		h := conversation.NewHistory(pending)
		t, _ := h.At(0)
		Expect(t.Status).To(Equal(conversation.StatusIncomplete))
		Expect(pending.Status).To(Equal(conversation.StatusPending))
	})

	It("tolerates an empty history", func() {
		h := conversation.NewHistory()
		Expect(h.Len()).To(Equal(0))
		Expect(h.Turns()).To(BeEmpty())
		_, ok := h.At(0)
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Turn", func() {
	It("assigns distinct IDs", func() {
		a := conversation.NewTurn(conversation.RoleUser, "a")
		b := conversation.NewTurn(conversation.RoleUser, "a")
		Expect(a.ID).NotTo(Equal(b.ID))
		Expect(a.IsSelf).To(BeTrue())
		Expect(a.Final()).To(BeTrue())
	})
})

var _ = Describe("NewRequestBuilder", func() {
	It("puts the query in the URL for GET", func() {
		build := conversation.NewRequestBuilder("http://producer.test/ai/chat/stream?v=2", "get")
		req, err := build("a b&c", []conversation.Turn{conversation.NewTurn(conversation.RoleUser, "old")})
		Expect(err).NotTo(HaveOccurred())
		Expect(req.Method).To(Equal(http.MethodGet))
		Expect(req.Body).To(BeEmpty())

		u, err := url.Parse(req.URL)
		Expect(err).NotTo(HaveOccurred())
		Expect(u.Query().Get("query")).To(Equal("a b&c"))
		Expect(u.Query().Get("v")).To(Equal("2"))
	})

	It("defaults to a JSON POST", func() {
		build := conversation.NewRequestBuilder("http://producer.test/chat", "")
		req, err := build("hi", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(req.Method).To(Equal(http.MethodPost))
		Expect(req.Header.Get("Content-Type")).To(Equal("application/json"))
		Expect(string(req.Body)).To(MatchJSON(`{"query":"hi"}`))
	})

	It("skips empty turns in the history", func() {
		build := conversation.NewRequestBuilder("http://producer.test/chat", http.MethodPost)
		req, err := build("q", []conversation.Turn{
			conversation.NewTurn(conversation.RoleUser, "a"),
			conversation.NewTurn(conversation.RoleAssistant, ""),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(req.Body)).To(MatchJSON(`{"query":"q","history":[{"role":"user","content":"a"}]}`))
	})

	It("rejects an unparseable GET endpoint", func() {
		build := conversation.NewRequestBuilder("://nope", http.MethodGet)
		_, err := build("q", nil)
		Expect(err).To(HaveOccurred())
	})
})

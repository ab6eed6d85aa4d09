package cliui_test

import (
	"bytes"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/trickle/pkg/cliui"
)

var _ = Describe("FormatDuration", func() {
	It("uses milliseconds below a second", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
	})

	It("uses tenths of seconds above a second", func() {
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})

var _ = Describe("Step", func() {
	It("returns the function's error and prints the message", func() {
		var buf bytes.Buffer
		boom := errors.New("boom")

		err := cliui.Step(&buf, "loading history", func() error { return boom })
		Expect(err).To(MatchError(boom))
		Expect(buf.String()).To(ContainSubstring("loading history"))
		Expect(buf.String()).To(HaveSuffix("\n"))
	})
})

var _ = Describe("KeyValue", func() {
	It("pads short keys to the key column", func() {
		line := cliui.KeyValue("Endpoint:", "http://localhost")
		Expect(line).To(ContainSubstring("Endpoint:"))
		Expect(strings.Index(line, "http://localhost")).To(BeNumerically(">=", 18))
	})

	It("keeps a key longer than the column on one line", func() {
		line := cliui.KeyValue("history.postgres_dsn", "postgres://db")
		Expect(line).NotTo(ContainSubstring("\n"))
		Expect(line).To(ContainSubstring("history.postgres_dsn"))
		Expect(strings.Fields(line)).To(Equal([]string{"history.postgres_dsn", "postgres://db"}))
	})

	It("aligns values at the requested width", func() {
		short := cliui.KeyValueWidth("a", "x", 24)
		long := cliui.KeyValueWidth("eventstream.provider", "x", 24)
		Expect(strings.Index(short, "x")).To(Equal(strings.Index(long, "x")))
	})
})

var _ = Describe("Mark", func() {
	It("differs for success and failure", func() {
		Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
		Expect(cliui.Mark(errors.New("x"))).To(Equal(cliui.FailMark))
	})
})

var _ = Describe("RenderHTML", func() {
	It("renders markdown with hard line breaks", func() {
		out, err := cliui.RenderHTML("## Title\n\nline one\nline two")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("<h2>Title</h2>"))
		Expect(out).To(ContainSubstring("line one<br>"))
	})

	It("escapes raw HTML", func() {
		out, err := cliui.RenderHTML("<script>alert(1)</script>")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).NotTo(ContainSubstring("<script>"))
	})
})

var _ = Describe("RenderMarkdown", func() {
	It("keeps the text content", func() {
		out, err := cliui.RenderMarkdown("**bold** words")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("bold"))
		Expect(out).To(ContainSubstring("words"))
	})
})

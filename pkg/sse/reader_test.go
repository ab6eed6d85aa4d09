package sse

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing/iotest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Reader", func() {
	var dst *bytes.Buffer

	BeforeEach(func() {
		dst = &bytes.Buffer{}
	})

	Describe("Next", func() {
		Context("with standard SSE events", func() {
			It("parses a single event", func() {
				r := NewTeeReader(strings.NewReader("data: hello world\n\n"), dst)

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("hello world"))
				Expect(ev.Name).To(Equal(DefaultEventName))
				Expect(ev.ID).To(BeEmpty())

				ev, err = r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev).To(BeNil())
			})

			It("parses multiple events", func() {
				r := NewTeeReader(strings.NewReader("data: first\n\ndata: second\n\n"), dst)

				ev1, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev1.Data).To(Equal("first"))

				ev2, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev2.Data).To(Equal("second"))

				ev3, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev3).To(BeNil())
			})

			It("parses the end event", func() {
				r := NewReader(strings.NewReader("data: Hel\n\nevent: end\ndata: done\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.IsMessage()).To(BeTrue())

				ev, err = r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.IsEnd()).To(BeTrue())
				Expect(ev.Data).To(Equal("done"))
			})

			It("parses event ID and keeps it for later events", func() {
				r := NewReader(strings.NewReader("id: 42\ndata: hello\n\ndata: again\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.ID).To(Equal("42"))

				ev, err = r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.ID).To(Equal("42"))
				Expect(r.LastID()).To(Equal("42"))
			})

			It("joins multiple data lines with newline", func() {
				r := NewReader(strings.NewReader("data: line one\ndata: line two\ndata: line three\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("line one\nline two\nline three"))
			})

			It("records the retry hint", func() {
				r := NewReader(strings.NewReader("retry: 3000\ndata: hello\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Retry).To(Equal(3 * time.Second))
				Expect(r.Retry()).To(Equal(3 * time.Second))
			})
		})

		Context("with SSE comments", func() {
			It("ignores comment lines in parsed events", func() {
				r := NewReader(strings.NewReader(": this is a comment\ndata: hello\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("hello"))
			})

			It("forwards comment lines to the tee", func() {
				r := NewTeeReader(strings.NewReader(": keep-alive\ndata: hello\n\n"), dst)

				_, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(dst.String()).To(ContainSubstring(": keep-alive\n"))
			})
		})

		Context("verbatim byte forwarding", func() {
			It("forwards all bytes including delimiters to the tee", func() {
				input := "event: message\ndata: first\n\n: ping\r\ndata: second\r\n\r\n"
				r := NewTeeReader(strings.NewReader(input), dst)

				for {
					ev, err := r.Next()
					Expect(err).NotTo(HaveOccurred())
					if ev == nil {
						break
					}
				}

				Expect(dst.String()).To(Equal(input))
			})
		})

		Context("with a slow source", func() {
			It("decodes events delivered one byte at a time", func() {
				src := iotest.OneByteReader(strings.NewReader("event: message\ndata: a\n\nevent: end\ndata:\n\n"))
				r := NewReader(src)

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("a"))

				ev, err = r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.IsEnd()).To(BeTrue())
				Expect(ev.Data).To(BeEmpty())
			})
		})

		Context("edge cases", func() {
			It("returns nil on empty input", func() {
				r := NewReader(strings.NewReader(""))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev).To(BeNil())
			})

			It("returns nil on input with only blank lines", func() {
				r := NewReader(strings.NewReader("\n\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev).To(BeNil())
			})

			It("yields event when stream ends without trailing blank line", func() {
				r := NewReader(strings.NewReader("data: unterminated"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("unterminated"))

				ev, err = r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev).To(BeNil())
			})

			It("returns source errors", func() {
				boom := errors.New("connection reset")
				src := io.MultiReader(strings.NewReader("data: partial\n"), iotest.ErrReader(boom))
				r := NewReader(src)

				ev, err := r.Next()
				Expect(err).To(MatchError(boom))
				Expect(ev).To(BeNil())
			})

			It("yields events read alongside an error before the error", func() {
				boom := errors.New("boom")
				r := NewReader(&dataErrReader{data: "data: last\n\n", err: boom})

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("last"))

				ev, err = r.Next()
				Expect(err).To(MatchError(boom))
				Expect(ev).To(BeNil())

				_, err = r.Next()
				Expect(err).To(MatchError(boom))
			})

			It("ignores unknown fields", func() {
				r := NewReader(strings.NewReader("foo: bar\ndata: hello\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("hello"))
			})

			It("handles field with no colon", func() {
				r := NewReader(strings.NewReader("data\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev).NotTo(BeNil())
				Expect(ev.Data).To(BeEmpty())
			})
		})
	})
})

// dataErrReader returns all of its data and err from a single Read.
type dataErrReader struct {
	data string
	err  error
}

func (r *dataErrReader) Read(p []byte) (int, error) {
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, r.err
}

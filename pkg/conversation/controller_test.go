package conversation_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/trickle/pkg/classify"
	"github.com/papercomputeco/trickle/pkg/conversation"
	"github.com/papercomputeco/trickle/pkg/stream"
	"github.com/papercomputeco/trickle/pkg/transport"
)

const helloWorld = "data: Hel\n\ndata: lo\\n\n\ndata: World\n\nevent: end\ndata:\n\n"

func reply(n int) string {
	return "data: reply " + string(rune('0'+n)) + "\n\nevent: end\ndata:\n\n"
}

var _ = Describe("Controller", func() {
	var (
		ctx   context.Context
		build conversation.RequestBuilder
		fast  conversation.Option
	)

	BeforeEach(func() {
		ctx = context.Background()
		build = conversation.NewRequestBuilder("http://producer.test/chat", http.MethodPost)
		fast = conversation.WithSessionOptions(stream.WithRetryPolicy(
			transport.ConstantPolicy{Delay: time.Millisecond, MaxAttempts: 3},
		))
	})

	It("finalizes the reply when the end event arrives", func() {
		var (
			mu       sync.Mutex
			contents []string
			finished []error
		)
		c := conversation.NewController(newScriptedTransport(sseString(helloWorld)), build,
			conversation.WithObserver(conversation.Observer{
				OnTurn: func(t conversation.Turn) {
					mu.Lock()
					defer mu.Unlock()
					if t.Role == conversation.RoleAssistant {
						contents = append(contents, t.Content)
					}
				},
				OnFinish: func(_ conversation.Turn, err error) {
					mu.Lock()
					defer mu.Unlock()
					finished = append(finished, err)
				},
			}),
		)

		Expect(c.Send(ctx, "hi")).To(Succeed())
		Expect(c.Wait(ctx)).To(Succeed())
		Expect(c.Busy()).To(BeFalse())

		turns := c.History().Turns()
		Expect(turns).To(HaveLen(2))
		Expect(turns[0].Role).To(Equal(conversation.RoleUser))
		Expect(turns[0].Content).To(Equal("hi"))
		Expect(turns[0].IsSelf).To(BeTrue())
		Expect(turns[1].Role).To(Equal(conversation.RoleAssistant))
		Expect(turns[1].Content).To(Equal("Hello\nWorld"))
		Expect(turns[1].IsSelf).To(BeFalse())
		Expect(turns[1].Status).To(Equal(conversation.StatusComplete))

		mu.Lock()
		defer mu.Unlock()
		Expect(contents).To(Equal([]string{"", "Hel", "Hello\n", "Hello\nWorld", "Hello\nWorld"}))
		Expect(finished).To(Equal([]error{nil}))
	})

	It("rejects an empty query", func() {
		c := conversation.NewController(newScriptedTransport(), build)
		Expect(c.Send(ctx, "  \n")).To(MatchError(conversation.ErrEmptyQuery))
		Expect(c.History().Len()).To(Equal(0))
	})

	It("reports a request that cannot be built", func() {
		c := conversation.NewController(newScriptedTransport(),
			conversation.NewRequestBuilder("http://producer.test", "PATCH"))
		Expect(c.Send(ctx, "hi")).To(MatchError(ContainSubstring("unsupported method")))
		Expect(c.Busy()).To(BeFalse())
		Expect(c.History().Len()).To(Equal(0))
	})

	Describe("while streaming", func() {
		var (
			pw *io.PipeWriter
			st *scriptedTransport
			c  *conversation.Controller
		)

		BeforeEach(func() {
			var pr *io.PipeReader
			pr, pw = io.Pipe()
			st = newScriptedTransport(sseBody(stubbornBody{pr}), sseString(reply(2)))
			c = conversation.NewController(st, build)
			DeferCleanup(func() { _ = pw.Close() })

			Expect(c.Send(ctx, "first")).To(Succeed())
		})

		It("rejects a second Send as busy", func() {
			Expect(c.Busy()).To(BeTrue())
			Expect(c.Send(ctx, "second")).To(MatchError(conversation.ErrBusy))
			Expect(c.History().Len()).To(Equal(2))
		})

		It("stops, keeps partial output and ignores later chunks", func() {
			_, err := pw.Write([]byte("data: a\n\n"))
			Expect(err).NotTo(HaveOccurred())
			_, err = pw.Write([]byte("data: b\n\n"))
			Expect(err).NotTo(HaveOccurred())
			Eventually(func() string {
				t, _ := c.History().At(1)
				return t.Content
			}).Should(Equal("ab"))

			c.Stop()
			Expect(c.Busy()).To(BeFalse())

			reply, _ := c.History().At(1)
			Expect(reply.Status).To(Equal(conversation.StatusIncomplete))
			Expect(reply.Content).To(Equal("ab"))

			// The body ignores Close, so this chunk still reaches the session.
			_, _ = pw.Write([]byte("data: c\n\n"))
			_ = pw.Close()

			Expect(c.Wait(ctx)).To(MatchError(stream.ErrAborted))
			reply, _ = c.History().At(1)
			Expect(reply.Content).To(Equal("ab"))
			Expect(reply.Status).To(Equal(conversation.StatusIncomplete))
		})

		It("accepts a new Send right after Stop", func() {
			c.Stop()
			Expect(c.Send(ctx, "second")).To(Succeed())
			_ = pw.Close()
			Expect(c.Wait(ctx)).To(Succeed())

			turns := c.History().Turns()
			Expect(turns).To(HaveLen(4))
			Expect(turns[2].Content).To(Equal("second"))
			Expect(turns[3].Content).To(Equal("reply 2"))
			Expect(turns[3].Status).To(Equal(conversation.StatusComplete))
			Expect(turns[1].Status).To(Equal(conversation.StatusIncomplete))
		})

		It("treats a second Stop as a no-op", func() {
			c.Stop()
			Expect(func() { c.Stop() }).NotTo(Panic())
			Expect(c.Busy()).To(BeFalse())
		})
	})

	It("retries a 500 into the same reply", func() {
		st := newScriptedTransport(statusResponse(http.StatusInternalServerError), sseString(helloWorld))
		var failures []error
		c := conversation.NewController(st, build, fast,
			conversation.WithObserver(conversation.Observer{
				OnFinish: func(_ conversation.Turn, err error) {
					if err != nil {
						failures = append(failures, err)
					}
				},
			}),
		)

		Expect(c.Send(ctx, "hi")).To(Succeed())
		Expect(c.Wait(ctx)).To(Succeed())

		Expect(st.Requests()).To(HaveLen(2))
		turns := c.History().Turns()
		Expect(turns).To(HaveLen(2))
		Expect(turns[1].Content).To(Equal("Hello\nWorld"))
		Expect(failures).To(BeEmpty())
	})

	It("marks the reply incomplete on a fatal response", func() {
		st := newScriptedTransport(statusResponse(http.StatusNotFound), sseString(reply(2)))
		var finishErr error
		c := conversation.NewController(st, build, fast,
			conversation.WithObserver(conversation.Observer{
				OnFinish: func(_ conversation.Turn, err error) { finishErr = err },
			}),
		)

		Expect(c.Send(ctx, "hi")).To(Succeed())
		err := c.Wait(ctx)
		Expect(classify.Error(err)).To(Equal(classify.Fatal))
		Expect(finishErr).To(Equal(err))

		reply, _ := c.History().At(1)
		Expect(reply.Status).To(Equal(conversation.StatusIncomplete))
		Expect(c.Busy()).To(BeFalse())

		Expect(c.Send(ctx, "again")).To(Succeed())
		Expect(c.Wait(ctx)).To(Succeed())
	})

	It("marks a truncated reply incomplete", func() {
		c := conversation.NewController(newScriptedTransport(sseString("data: half\n\n")), build, fast)

		Expect(c.Send(ctx, "hi")).To(Succeed())
		Expect(c.Wait(ctx)).To(MatchError(stream.ErrClosed))

		reply, _ := c.History().At(1)
		Expect(reply.Content).To(Equal("half"))
		Expect(reply.Status).To(Equal(conversation.StatusIncomplete))
	})

	It("aborts when the Send context is cancelled", func() {
		pr, pw := io.Pipe()
		defer pw.Close()
		c := conversation.NewController(newScriptedTransport(sseBody(pr)), build)

		sctx, cancel := context.WithCancel(ctx)
		Expect(c.Send(sctx, "hi")).To(Succeed())
		cancel()
		_ = pr.Close()

		Expect(c.Wait(ctx)).To(MatchError(stream.ErrAborted))
		reply, _ := c.History().At(1)
		Expect(reply.Status).To(Equal(conversation.StatusIncomplete))
	})

	It("keeps turns in send order", func() {
		st := newScriptedTransport(sseString(reply(1)), sseString(reply(2)), sseString(reply(3)))
		c := conversation.NewController(st, build)

		for _, q := range []string{"q1", "q2", "q3"} {
			Expect(c.Send(ctx, q)).To(Succeed())
			Expect(c.Wait(ctx)).To(Succeed())
		}

		turns := c.History().Turns()
		var contents []string
		for i, t := range turns {
			contents = append(contents, t.Content)
			if i > 0 {
				Expect(t.CreatedAt).NotTo(BeTemporally("<", turns[i-1].CreatedAt))
			}
		}
		Expect(contents).To(Equal([]string{"q1", "reply 1", "q2", "reply 2", "q3", "reply 3"}))
	})

	It("sends prior turns as history", func() {
		st := newScriptedTransport(sseString(reply(1)), sseString(reply(2)))
		c := conversation.NewController(st, build)

		Expect(c.Send(ctx, "q1")).To(Succeed())
		Expect(c.Wait(ctx)).To(Succeed())
		Expect(c.Send(ctx, "q2")).To(Succeed())
		Expect(c.Wait(ctx)).To(Succeed())

		var payload conversation.ChatPayload
		Expect(json.Unmarshal(st.Requests()[1].Body, &payload)).To(Succeed())
		Expect(payload.Query).To(Equal("q2"))
		Expect(payload.History).To(Equal([]conversation.Message{
			{Role: conversation.RoleUser, Content: "q1"},
			{Role: conversation.RoleAssistant, Content: "reply 1"},
		}))
	})

	It("hands finalized exchanges to sinks in order", func() {
		var (
			mu  sync.Mutex
			got []*conversation.Finalized
		)
		sink := conversation.SinkFunc(func(_ context.Context, f *conversation.Finalized) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, f)
			return errors.New("ignored")
		})
		st := newScriptedTransport(sseString(reply(1)), sseString(reply(2)))
		c := conversation.NewController(st, build, conversation.WithSink(sink))

		Expect(c.Send(ctx, "q1")).To(Succeed())
		Expect(c.Wait(ctx)).To(Succeed())
		Expect(c.Send(ctx, "q2")).To(Succeed())
		Expect(c.Wait(ctx)).To(Succeed())

		mu.Lock()
		defer mu.Unlock()
		Expect(got).To(HaveLen(2))
		Expect(got[0].Query.Content).To(Equal("q1"))
		Expect(got[0].Reply.Content).To(Equal("reply 1"))
		Expect(got[0].Reply.Status).To(Equal(conversation.StatusComplete))
		Expect(got[0].History).To(HaveLen(2))
		Expect(got[0].Err).NotTo(HaveOccurred())
		Expect(got[0].CompletedAt).NotTo(BeTemporally("<", got[0].StartedAt))
		Expect(got[1].History).To(HaveLen(4))
	})

	It("returns a closed Done channel before any Send", func() {
		c := conversation.NewController(newScriptedTransport(), build)
		Expect(c.Done()).To(BeClosed())
		Expect(c.Wait(ctx)).To(Succeed())
	})

	It("closes Done once the reply is finalized", func() {
		c := conversation.NewController(newScriptedTransport(sseString(helloWorld)), build)
		Expect(c.Send(ctx, "hi")).To(Succeed())
		Eventually(c.Done()).Should(BeClosed())
	})
})

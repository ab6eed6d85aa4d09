package historycmder

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/trickle/pkg/conversation"
	"github.com/papercomputeco/trickle/pkg/storage/jsonfile"
)

func sampleTurns() []conversation.Turn {
	reply := conversation.NewTurn(conversation.RoleAssistant, "## You said\n\n> hi")
	cut := conversation.NewTurn(conversation.RoleAssistant, "partial")
	cut.Status = conversation.StatusIncomplete
	return []conversation.Turn{
		conversation.NewTurn(conversation.RoleUser, "hi"),
		reply,
		conversation.NewTurn(conversation.RoleUser, "again"),
		cut,
	}
}

var _ = Describe("History command", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
	})

	seed := func(turns []conversation.Turn) {
		d := jsonfile.NewDriver(filepath.Join(tmpDir, "history.json"))
		Expect(d.Save(context.Background(), turns)).To(Succeed())
	}

	run := func(args ...string) error {
		cmd := NewHistoryCmd()
		cmd.PersistentFlags().String("config-dir", "", "")
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(append(args, "--config-dir", tmpDir))
		return cmd.Execute()
	}

	It("has list, clear, and tail subcommands", func() {
		names := []string{}
		for _, sub := range NewHistoryCmd().Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("list", "clear", "tail"))
	})

	Describe("list", func() {
		It("reports an empty history", func() {
			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("No history yet."))
		})

		It("prints one line per turn", func() {
			seed(sampleTurns())
			Expect(run("list")).To(Succeed())

			Expect(out.String()).To(ContainSubstring("## You said > hi"))
			Expect(out.String()).To(ContainSubstring("[incomplete]"))
			Expect(out.String()).To(ContainSubstring("4 turns"))
		})

		It("prints JSON", func() {
			seed(sampleTurns())
			Expect(run("list", "--json")).To(Succeed())

			var turns []conversation.Turn
			Expect(json.Unmarshal(out.Bytes(), &turns)).To(Succeed())
			Expect(turns).To(HaveLen(4))
			Expect(turns[3].Status).To(Equal(conversation.StatusIncomplete))
		})

		It("prints an empty JSON array for no history", func() {
			Expect(run("list", "--json")).To(Succeed())
			Expect(strings.TrimSpace(out.String())).To(Equal("[]"))
		})

		It("fails when history is disabled", func() {
			err := run("list", "--history-driver", "none")
			Expect(err).To(MatchError(ContainSubstring("history is disabled")))
		})
	})

	Describe("clear", func() {
		It("deletes the stored turns", func() {
			seed(sampleTurns())
			Expect(run("clear")).To(Succeed())

			turns, err := jsonfile.NewDriver(filepath.Join(tmpDir, "history.json")).Load(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(BeEmpty())
		})
	})

	Describe("tail", func() {
		It("prints the last n turns", func() {
			seed(sampleTurns())
			Expect(run("tail", "-n", "1")).To(Succeed())

			Expect(out.String()).To(ContainSubstring("partial"))
			Expect(out.String()).NotTo(ContainSubstring("again"))
		})

		It("refuses to follow a non-file driver", func() {
			err := run("tail", "--follow", "--history-driver", "memory")
			Expect(err).To(MatchError(ContainSubstring("--follow requires")))
		})
	})
})

var _ = Describe("follower", func() {
	It("prints only new turns after the first update", func() {
		out := &bytes.Buffer{}
		f := &follower{w: out, lines: 1}
		turns := sampleTurns()

		f.update(turns[:2])
		Expect(out.String()).To(ContainSubstring("You said"))

		out.Reset()
		f.update(turns)
		Expect(out.String()).To(ContainSubstring("again"))
		Expect(out.String()).To(ContainSubstring("partial"))
		Expect(out.String()).NotTo(ContainSubstring("You said"))
	})

	It("starts over when the history shrinks", func() {
		out := &bytes.Buffer{}
		f := &follower{w: out, lines: 10}
		turns := sampleTurns()

		f.update(turns)
		out.Reset()
		f.update(turns[:1])
		Expect(out.String()).To(ContainSubstring("history cleared"))
		Expect(out.String()).To(ContainSubstring("hi"))
	})
})

var _ = Describe("lastN", func() {
	It("returns everything when n exceeds the length", func() {
		Expect(lastN(sampleTurns(), 10)).To(HaveLen(4))
	})

	It("returns the tail", func() {
		Expect(lastN(sampleTurns(), 2)[0].Content).To(Equal("again"))
	})
})

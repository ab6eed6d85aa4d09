package servecmder

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/trickle/pkg/config"
)

var _ = Describe("NewServeCmd", func() {
	It("registers the producer flags with config defaults", func() {
		cmd := NewServeCmd()
		Expect(cmd.Use).To(Equal("serve"))

		f := cmd.Flags().Lookup("listen")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(":3015"))
		Expect(cmd.Flags().Lookup("fail-first")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("drop-after")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("reply-file")).NotTo(BeNil())
	})
})

var _ = Describe("serveCommander", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("prefers flags over the config file", func() {
		data := `[server]
listen = ":7000"
chunk_size = 4
fail_first = 2
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

		cmd := NewServeCmd()
		Expect(cmd.Flags().Set("chunk-size", "12")).To(Succeed())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)

		c := &serveCommander{}
		c.load(v)
		Expect(c.listen).To(Equal(":7000"))
		Expect(c.chunkSize).To(Equal(12))
		Expect(c.failFirst).To(Equal(2))
		Expect(c.chunkDelay).To(Equal(40 * time.Millisecond))
	})

	It("answers with the reply file", func() {
		path := filepath.Join(tmpDir, "reply.md")
		Expect(os.WriteFile(path, []byte("# Fixed\n"), 0o600)).To(Succeed())

		r, err := (&serveCommander{replyFile: path}).responder()
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Respond("anything", nil)).To(Equal("# Fixed\n"))
	})

	It("uses the echo responder by default", func() {
		r, err := (&serveCommander{}).responder()
		Expect(err).NotTo(HaveOccurred())
		Expect(r).To(BeNil())
	})

	It("fails on a missing reply file", func() {
		_, err := (&serveCommander{replyFile: filepath.Join(tmpDir, "nope")}).responder()
		Expect(err).To(MatchError(ContainSubstring("reading reply file")))
	})
})

package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	configcmder "github.com/papercomputeco/trickle/cmd/trickle/config"
	"github.com/papercomputeco/trickle/pkg/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has init, set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		subcommands := []string{}
		for _, sub := range cmd.Commands() {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("init", "set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
	})

	run := func(args ...string) error {
		cmd := configcmder.NewConfigCmd()
		cmd.PersistentFlags().String("config-dir", "", "")
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(append(args, "--config-dir", tmpDir))
		return cmd.Execute()
	}

	load := func() *config.Config {
		cfger, err := config.NewConfiger(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		cfg, err := cfger.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		return cfg
	}

	Describe("init subcommand", func() {
		It("writes the defaults", func() {
			Expect(run("init")).To(Succeed())
			Expect(filepath.Join(tmpDir, "config.toml")).To(BeARegularFile())
			Expect(load()).To(Equal(config.NewDefaultConfig()))
		})

		It("writes a preset", func() {
			Expect(run("init", "--preset", "legacy")).To(Succeed())
			Expect(load().Client.Method).To(Equal("GET"))
		})

		It("refuses to overwrite without --force", func() {
			Expect(run("init")).To(Succeed())
			Expect(run("init", "--preset", "flaky")).To(MatchError(ContainSubstring("already exists")))
			Expect(run("init", "--preset", "flaky", "--force")).To(Succeed())
			Expect(load().Server.FailFirst).To(Equal(1))
		})

		It("rejects an unknown preset", func() {
			Expect(run("init", "--preset", "cloud")).To(HaveOccurred())
			_, err := os.Stat(filepath.Join(tmpDir, "config.toml"))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})
	})

	Describe("set subcommand", func() {
		It("sets a config value successfully", func() {
			Expect(run("set", "client.endpoint", "http://remote/chat")).To(Succeed())
			Expect(load().Client.Endpoint).To(Equal("http://remote/chat"))
			Expect(out.String()).To(ContainSubstring("client.endpoint"))
		})

		It("rejects unknown keys", func() {
			Expect(run("set", "invalid_key", "value")).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("rejects invalid values", func() {
			Expect(run("set", "client.timeout", "forever")).To(HaveOccurred())
		})

		It("requires exactly two arguments", func() {
			Expect(run("set", "client.endpoint")).To(HaveOccurred())
		})
	})

	Describe("get subcommand", func() {
		It("prints a previously set value", func() {
			Expect(run("set", "history.driver", "sqlite")).To(Succeed())
			out.Reset()

			Expect(run("get", "history.driver")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("sqlite"))
		})

		It("prints the default for an unset key", func() {
			Expect(run("get", "server.listen")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(":3015"))
		})

		It("rejects unknown keys", func() {
			Expect(run("get", "invalid_key")).To(HaveOccurred())
		})
	})

	Describe("list subcommand", func() {
		It("lists every key grouped by section", func() {
			Expect(run("list")).To(Succeed())
			for _, key := range config.ValidConfigKeys() {
				Expect(out.String()).To(ContainSubstring(key))
			}
			Expect(out.String()).To(ContainSubstring("[eventstream]"))
		})

		It("prints each key on a single line", func() {
			Expect(run("list")).To(Succeed())
			lines := strings.Split(out.String(), "\n")
			for _, key := range config.ValidConfigKeys() {
				Expect(lines).To(ContainElement(HavePrefix("  "+key+" ")), key)
			}
		})

		It("rejects any arguments", func() {
			Expect(run("list", "extra")).To(HaveOccurred())
		})
	})
})


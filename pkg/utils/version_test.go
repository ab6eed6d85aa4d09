package utils

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("build info", func() {
	var saved string

	BeforeEach(func() {
		saved = Version
		Version = "v1.2.3"
	})

	AfterEach(func() {
		Version = saved
	})

	It("prefixes the client name with trickle", func() {
		Expect(ClientName()).To(Equal("trickle/v1.2.3"))
	})

	It("includes the sha and build time", func() {
		Expect(BuildInfo()).To(Equal("trickle v1.2.3 (" + Sha + ", built " + Buildtime + ")"))
	})
})

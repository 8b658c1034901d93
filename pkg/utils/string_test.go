package utils

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Truncate", func() {
	It("keeps strings within the limit", func() {
		Expect(Truncate("labelid=0", 9)).To(Equal("labelid=0"))
		Expect(Truncate("short", 10)).To(Equal("short"))
	})

	It("cuts the tail and counts the ellipsis", func() {
		Expect(Truncate("labelid=0;label_count=2", 10)).To(Equal("labelid..."))
	})

	It("counts runes rather than bytes", func() {
		Expect(Truncate("ééééé", 5)).To(Equal("ééééé"))
		Expect(Truncate("éééééé", 5)).To(Equal("éé..."))
	})

	It("never exceeds tiny limits", func() {
		Expect(Truncate("abcdef", 2)).To(Equal("ab"))
		Expect(Truncate("abcdef", 0)).To(BeEmpty())
	})
})

var _ = Describe("TruncateLeft", func() {
	It("keeps the end of long paths", func() {
		Expect(TruncateLeft("/data/runs/vocab/words.bin", 12)).To(Equal("...words.bin"))
	})

	It("keeps strings within the limit", func() {
		Expect(TruncateLeft("out/part-r-00000", 40)).To(Equal("out/part-r-00000"))
	})

	It("never exceeds tiny limits", func() {
		Expect(TruncateLeft("abcdef", 3)).To(Equal("def"))
	})
})

var _ = Describe("BuildInfo", func() {
	It("lists version, commit and build time", func() {
		Expect(BuildInfo()).To(Equal("Version: dev\nSha: HEAD\nBuilt at: dev\n"))
	})
})

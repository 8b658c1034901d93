package dotdir_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hvision/pkg/dotdir"
)

var _ = Describe("dotdir.Manager runs", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-test-*")
		Expect(err).NotTo(HaveOccurred())
		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("LoadRuns", func() {
		It("returns empty runs when no history exists", func() {
			runs, err := m.LoadRuns(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(runs).To(BeEmpty())
		})

		It("loads a valid history file", func() {
			data := `{"vocab":{"run_id":"r1","artifact":"s3://b/vocab.bin","completed_at":"2025-01-01T00:00:00Z"}}`
			Expect(os.WriteFile(filepath.Join(tmpDir, "runs.json"), []byte(data), 0o600)).To(Succeed())

			runs, err := m.LoadRuns(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(runs).To(HaveKey("vocab"))
			Expect(runs["vocab"].RunID).To(Equal("r1"))
			Expect(runs["vocab"].Artifact).To(Equal("s3://b/vocab.bin"))
		})

		It("returns error for invalid JSON", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "runs.json"), []byte("not json"), 0o600)).To(Succeed())

			runs, err := m.LoadRuns(tmpDir)
			Expect(err).To(HaveOccurred())
			Expect(runs).To(BeNil())
		})
	})

	Describe("RecordRun", func() {
		It("keeps the latest run per job", func() {
			at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			Expect(m.RecordRun("train", dotdir.RunState{RunID: "a", CompletedAt: at}, tmpDir)).To(Succeed())
			Expect(m.RecordRun("vocab", dotdir.RunState{RunID: "v", Artifact: "vocab.bin", CompletedAt: at}, tmpDir)).To(Succeed())
			Expect(m.RecordRun("train", dotdir.RunState{RunID: "b", Output: "out", CompletedAt: at}, tmpDir)).To(Succeed())

			state, ok, err := m.LastRun("train", tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(state.RunID).To(Equal("b"))
			Expect(state.Output).To(Equal("out"))
			Expect(state.CompletedAt.Equal(at)).To(BeTrue())

			state, ok, err = m.LastRun("vocab", tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(state.Artifact).To(Equal("vocab.bin"))
		})

		It("rejects an empty job name", func() {
			Expect(m.RecordRun("", dotdir.RunState{}, tmpDir)).NotTo(Succeed())
		})
	})

	Describe("LastRun", func() {
		It("reports missing jobs", func() {
			_, ok, err := m.LastRun("detect", tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
	})

	Describe("ClearRuns", func() {
		It("removes the history and tolerates a missing file", func() {
			Expect(m.RecordRun("search", dotdir.RunState{RunID: "s"}, tmpDir)).To(Succeed())
			Expect(m.ClearRuns(tmpDir)).To(Succeed())
			Expect(m.ClearRuns(tmpDir)).To(Succeed())

			runs, err := m.LoadRuns(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(runs).To(BeEmpty())
		})
	})
})

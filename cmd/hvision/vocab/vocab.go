// Package vocabcmder provides the vocab command, which clusters local image
// descriptors into a visual vocabulary.
package vocabcmder

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/hvision/cmd/hvision/jobenv"
	"github.com/papercomputeco/hvision/pkg/cliui"
	"github.com/papercomputeco/hvision/pkg/config"
	"github.com/papercomputeco/hvision/pkg/dotdir"
	"github.com/papercomputeco/hvision/pkg/eventstream"
	"github.com/papercomputeco/hvision/pkg/features"
	"github.com/papercomputeco/hvision/pkg/kmeans"
	"github.com/papercomputeco/hvision/pkg/vocabulary"
)

const vocabLongDesc string = `Build a visual vocabulary from a dataset.

Extracts dense local descriptors from every image record in parallel and
clusters them with k-means into K visual words. The vocabulary is written to
an artifact location: a local path, s3://bucket/key or minio://bucket/key.

Undecodable records are skipped and counted.

Examples:
  hvision vocab -i data/train -o vocab.bin -k 200
  hvision vocab -i data/train -o s3://models/vocab.bin --workers 16`

const vocabShortDesc string = "Build a visual vocabulary"

type vocabCommander struct {
	input  string
	output string
	keys   []string
}

func NewVocabCmd() *cobra.Command {
	cmder := &vocabCommander{}

	cmd := &cobra.Command{
		Use:   "vocab",
		Short: vocabShortDesc,
		Long:  vocabLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := jobenv.RequireFlags(cmd, "input", "output"); err != nil {
				return err
			}
			env, err := jobenv.Load(cmd, cmder.keys)
			if err != nil {
				return err
			}
			defer env.Close()
			return cmder.run(cmd, env)
		},
	}

	cmd.Flags().StringVarP(&cmder.input, "input", "i", "", "Dataset file or directory")
	cmd.Flags().StringVarP(&cmder.output, "output", "o", "", "Artifact location of the vocabulary")
	cmder.keys = jobenv.AddFlags(cmd,
		[]string{config.FlagK, config.FlagMaxIterations},
		jobenv.SchedulerFlags,
		jobenv.EventFlags,
	)

	return cmd
}

func (c *vocabCommander) run(cmd *cobra.Command, env *jobenv.Env) error {
	ctx := cmd.Context()
	started := time.Now()

	sched, err := env.Scheduler()
	if err != nil {
		return err
	}

	records, err := env.ReadInput(c.input)
	if err != nil {
		return err
	}

	var outcome *vocabulary.JobOutcome
	err = cliui.Step(cmd.ErrOrStderr(), "Clustering descriptors", func() error {
		var err error
		outcome, err = vocabulary.BuildFromRecords(ctx, vocabulary.JobConfig{
			K: int(env.Config.Vocabulary.K),
			Clustering: kmeans.Options{
				MaxIterations: int(env.Config.Vocabulary.MaxIterations),
			},
			NewExtractor: func() features.Extractor {
				return features.NewDense(features.DenseOptions{})
			},
			Scheduler: sched,
			Logger:    env.Logger,
		}, records)
		return err
	})
	if err != nil {
		return err
	}

	if err := env.PersistVocabulary(ctx, c.output, outcome.Vocabulary); err != nil {
		return err
	}

	env.Logger.Info("vocabulary built",
		"run_id", outcome.RunID,
		"k", outcome.Vocabulary.K,
		"dim", outcome.Vocabulary.D,
		"descriptors", outcome.Descriptors,
		"output", c.output,
	)

	event := eventstream.NewJobEvent(eventstream.EventTypeVocabularyBuilt, outcome.RunID, env.JobMeta("vocab", c.input, started))
	event.Counters = outcome.Counters
	event.Outputs = []string{c.output}
	env.Completed(ctx, event, dotdir.RunState{Artifact: c.output})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n  %s Vocabulary of %d words written to %s %s\n\n",
		cliui.SuccessMark,
		outcome.Vocabulary.K,
		cliui.ValueStyle.Render(c.output),
		cliui.DimStyle.Render("("+cliui.FormatDuration(time.Since(started))+")"),
	)
	cliui.Counters(out, outcome.Counters)
	return nil
}

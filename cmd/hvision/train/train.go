// Package traincmder provides the train command, which fits one-vs-rest
// classifiers over BOW descriptors.
package traincmder

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/hvision/cmd/hvision/jobenv"
	"github.com/papercomputeco/hvision/pkg/classifier"
	"github.com/papercomputeco/hvision/pkg/cliui"
	"github.com/papercomputeco/hvision/pkg/config"
	"github.com/papercomputeco/hvision/pkg/dataset"
	"github.com/papercomputeco/hvision/pkg/dotdir"
	"github.com/papercomputeco/hvision/pkg/eventstream"
	"github.com/papercomputeco/hvision/pkg/storage"
	"github.com/papercomputeco/hvision/pkg/training"
)

const trainLongDesc string = `Train one-vs-rest classifiers for every label.

Each image record must carry labelid=<id> and label_count=<n> in its key.
Every image is encoded once against the vocabulary and fanned out to all n
classes; each reduce partition fits the linear SVMs of its classes.

Models are written as records keyed labelid=<id> to <output>/part-r-00000 and,
unless --storage-driver=none, stored in the model registry under the run id.

When --vocabulary is omitted, the vocabulary of the last vocab run is used.

Examples:
  hvision train -i data/train -o models -c vocab.bin
  hvision train -i data/train -o models --reducers 4 --storage-driver postgres`

const trainShortDesc string = "Train one-vs-rest classifiers"

type trainCommander struct {
	input      string
	output     string
	vocabulary string
	keys       []string
}

func NewTrainCmd() *cobra.Command {
	cmder := &trainCommander{}

	cmd := &cobra.Command{
		Use:   "train",
		Short: trainShortDesc,
		Long:  trainLongDesc,
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

	cmd.Flags().StringVarP(&cmder.input, "input", "i", "", "Labelled dataset file or directory")
	cmd.Flags().StringVarP(&cmder.output, "output", "o", "", "Output directory for model records")
	cmd.Flags().StringVarP(&cmder.vocabulary, "vocabulary", "c", "", "Artifact location of the vocabulary (default: last vocab run)")
	cmder.keys = jobenv.AddFlags(cmd,
		[]string{config.FlagReducers},
		jobenv.SchedulerFlags,
		jobenv.RegistryFlags,
		jobenv.EventFlags,
	)

	return cmd
}

func (c *trainCommander) run(cmd *cobra.Command, env *jobenv.Env) error {
	ctx := cmd.Context()
	started := time.Now()

	sched, err := env.Scheduler()
	if err != nil {
		return err
	}
	vocabLoc, err := env.VocabularyLocation(c.vocabulary)
	if err != nil {
		return err
	}

	// Resources are checked before any input is read.
	vocab, err := env.LoadVocabulary(ctx, vocabLoc)
	if err != nil {
		return err
	}

	registry, err := env.OpenRegistry(ctx)
	if err != nil {
		return err
	}
	if registry != nil {
		defer registry.Close()
	}

	records, err := env.ReadInput(c.input)
	if err != nil {
		return err
	}

	var outputPath string
	coord := training.NewCoordinator(training.Config{
		Scheduler: sched,
		Reducers:  env.Reducers(),
		Logger:    env.Logger,
		Persister: training.PersisterFunc(func(ctx context.Context, runID string, models []training.ClassifierModel) error {
			path, err := persist(ctx, env, registry, c.output, runID, models)
			outputPath = path
			return err
		}),
	})
	if err := coord.SetVocabulary(vocab); err != nil {
		return err
	}

	var result *training.Result
	err = cliui.Step(cmd.ErrOrStderr(), fmt.Sprintf("Training classifiers over %d records", len(records)), func() error {
		var err error
		result, err = coord.Run(ctx, records)
		return err
	})
	if err != nil {
		return err
	}

	event := eventstream.NewJobEvent(eventstream.EventTypeTrainingCompleted, result.RunID, env.JobMeta("train", c.input, started))
	event.Counters = result.Counters
	event.Outputs = []string{outputPath}
	env.Completed(ctx, event, dotdir.RunState{Output: outputPath, Artifact: vocabLoc})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n  %s %d classifiers written to %s %s\n",
		cliui.SuccessMark,
		len(result.Models),
		cliui.ValueStyle.Render(outputPath),
		cliui.DimStyle.Render("("+cliui.FormatDuration(time.Since(started))+")"),
	)
	fmt.Fprintf(out, "  %s %s\n\n", cliui.KeyStyle.Render("Run:"), cliui.ValueStyle.Render(result.RunID))
	cliui.Counters(out, result.Counters)
	return nil
}

// persist writes the model records and registers them under runID.
func persist(ctx context.Context, env *jobenv.Env, registry storage.Driver, dir, runID string, models []training.ClassifierModel) (string, error) {
	records := make([]dataset.Record, 0, len(models))
	for _, m := range models {
		records = append(records, m.Record())
	}
	path, err := env.WriteOutput(dir, records)
	if err != nil {
		return "", err
	}

	if registry == nil {
		return path, nil
	}

	rows := make([]storage.Model, 0, len(models))
	for _, m := range models {
		kind := ""
		if decoded, err := classifier.Unmarshal(m.Blob); err == nil {
			kind = decoded.Kind()
		}
		rows = append(rows, storage.Model{
			RunID:   runID,
			LabelID: m.LabelID,
			Kind:    kind,
			Blob:    m.Blob,
		})
	}
	if err := registry.PutModels(ctx, runID, rows); err != nil {
		return "", fmt.Errorf("registering models: %w", err)
	}
	env.Logger.Debug("models registered", "run_id", runID, "models", len(rows))
	return path, nil
}

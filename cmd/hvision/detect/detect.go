// Package detectcmder provides the detect command, which finds faces in a
// dataset and writes annotated copies of the matching records.
package detectcmder

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/hvision/cmd/hvision/jobenv"
	"github.com/papercomputeco/hvision/pkg/cliui"
	"github.com/papercomputeco/hvision/pkg/config"
	"github.com/papercomputeco/hvision/pkg/detection"
	"github.com/papercomputeco/hvision/pkg/dotdir"
	"github.com/papercomputeco/hvision/pkg/eventstream"
	"github.com/papercomputeco/hvision/pkg/faces"
)

const detectLongDesc string = `Detect faces in every image of a dataset.

Records with at least one face are re-emitted with the faces outlined and
facecount=<n> appended to their key; records without faces are dropped. The
cascade model is a pigo face cascade fetched from an artifact location.

Examples:
  hvision detect -i data/photos -o faces --model facefinder
  hvision detect -i data/photos -o faces --model s3://models/facefinder --min-size 40`

const detectShortDesc string = "Detect faces in a dataset"

type detectCommander struct {
	input  string
	output string
	model  string
	keys   []string
}

func NewDetectCmd() *cobra.Command {
	cmder := &detectCommander{}

	cmd := &cobra.Command{
		Use:   "detect",
		Short: detectShortDesc,
		Long:  detectLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := jobenv.RequireFlags(cmd, "input", "output", "model"); err != nil {
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
	cmd.Flags().StringVarP(&cmder.output, "output", "o", "", "Output directory for annotated records")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Artifact location of the face cascade model")
	cmder.keys = jobenv.AddFlags(cmd,
		[]string{config.FlagMinSize, config.FlagMaxSize},
		jobenv.SchedulerFlags,
		jobenv.EventFlags,
	)

	return cmd
}

func (c *detectCommander) run(cmd *cobra.Command, env *jobenv.Env) error {
	ctx := cmd.Context()
	started := time.Now()

	sched, err := env.Scheduler()
	if err != nil {
		return err
	}

	model, err := env.ReadArtifact(ctx, c.model)
	if err != nil {
		return err
	}
	opts := detection.Options{
		MinSize: int(env.Config.Detection.MinSize),
		MaxSize: int(env.Config.Detection.MaxSize),
	}
	// Fail before reading input if the model is unusable.
	if _, err := detection.NewCascade(model, opts); err != nil {
		return err
	}

	records, err := env.ReadInput(c.input)
	if err != nil {
		return err
	}

	var outcome *faces.Outcome
	err = cliui.Step(cmd.ErrOrStderr(), fmt.Sprintf("Detecting faces in %d records", len(records)), func() error {
		var err error
		outcome, err = faces.Run(ctx, faces.Config{
			NewDetector: func() (detection.Detector, error) {
				return detection.NewCascade(model, opts)
			},
			Scheduler: sched,
			Logger:    env.Logger,
		}, records)
		return err
	})
	if err != nil {
		return err
	}

	path, err := env.WriteOutput(c.output, outcome.Records)
	if err != nil {
		return err
	}

	env.Logger.Info("face detection complete",
		"run_id", outcome.RunID,
		"records", len(outcome.Records),
		"faces", outcome.Faces,
	)

	event := eventstream.NewJobEvent(eventstream.EventTypeDetectCompleted, outcome.RunID, env.JobMeta("detect", c.input, started))
	event.Counters = outcome.Counters
	event.Outputs = []string{path}
	env.Completed(ctx, event, dotdir.RunState{Output: path, Artifact: c.model})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n  %s %d faces in %d records written to %s %s\n\n",
		cliui.SuccessMark,
		outcome.Faces,
		len(outcome.Records),
		cliui.ValueStyle.Render(path),
		cliui.DimStyle.Render("("+cliui.FormatDuration(time.Since(started))+")"),
	)
	cliui.Counters(out, outcome.Counters)
	return nil
}

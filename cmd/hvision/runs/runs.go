// Package runscmder provides the runs command for inspecting the classifier
// model registry and the local run history.
package runscmder

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/hvision/cmd/hvision/jobenv"
	"github.com/papercomputeco/hvision/pkg/cliui"
	"github.com/papercomputeco/hvision/pkg/dotdir"
	"github.com/papercomputeco/hvision/pkg/errs"
	"github.com/papercomputeco/hvision/pkg/utils"
)

const runsLongDesc string = `List training runs in the model registry.

Without arguments, lists every registered run newest first, followed by the
latest run of each job recorded in the .hvision/ directory. With a run id,
lists the classifiers of that run.

Examples:
  hvision runs
  hvision runs 5c0f6d1e-2f7b-4c55-a1e6-8d3f0b8e4d11
  hvision runs --storage-driver postgres`

const runsShortDesc string = "List training runs and their models"

type runsCommander struct {
	keys []string
}

func NewRunsCmd() *cobra.Command {
	cmder := &runsCommander{}

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: runsShortDesc,
		Long:  runsLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := jobenv.Load(cmd, cmder.keys)
			if err != nil {
				return err
			}
			defer env.Close()
			if len(args) == 1 {
				return cmder.runModels(cmd, env, args[0])
			}
			return cmder.runList(cmd, env)
		},
	}

	cmder.keys = jobenv.AddFlags(cmd, jobenv.RegistryFlags)

	return cmd
}

func (c *runsCommander) runList(cmd *cobra.Command, env *jobenv.Env) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	registry, err := env.OpenRegistry(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	if registry == nil {
		fmt.Fprintf(out, "  %s\n", cliui.DimStyle.Render("Model registry disabled."))
	} else {
		defer registry.Close()

		runs, err := registry.Runs(ctx)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintf(out, "  %s\n", cliui.DimStyle.Render("No training runs registered."))
		}
		for _, r := range runs {
			fmt.Fprintf(out, "  %s  %s  %s\n",
				cliui.ValueStyle.Render(r.ID),
				cliui.KeyStyle.Render(fmt.Sprintf("%d models", r.Models)),
				cliui.DimStyle.Render(r.CreatedAt.Local().Format("2006-01-02 15:04:05")),
			)
		}
	}

	return printHistory(out, env)
}

func (c *runsCommander) runModels(cmd *cobra.Command, env *jobenv.Env, runID string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	registry, err := env.OpenRegistry(ctx)
	if err != nil {
		return err
	}
	if registry == nil {
		return fmt.Errorf("%w: the model registry is disabled", errs.ErrConfiguration)
	}
	defer registry.Close()

	models, err := registry.ListModels(ctx, runID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s %s\n\n", cliui.KeyStyle.Render("Run:"), cliui.ValueStyle.Render(runID))
	for _, m := range models {
		fmt.Fprintf(out, "  %s  %s  %s\n",
			cliui.KeyStyle.Render(fmt.Sprintf("labelid=%d", m.LabelID)),
			cliui.ValueStyle.Render(m.Kind),
			cliui.DimStyle.Render(fmt.Sprintf("%d bytes", len(m.Blob))),
		)
	}
	fmt.Fprintln(out)
	return nil
}

func printHistory(out io.Writer, env *jobenv.Env) error {
	history, err := dotdir.NewManager().LoadRuns(env.ConfigDir)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Fprintln(out)
		return nil
	}

	jobs := make([]string, 0, len(history))
	for job := range history {
		jobs = append(jobs, job)
	}
	slices.Sort(jobs)

	fmt.Fprintf(out, "\n  %s\n", cliui.StepStyle.Render("Latest runs"))
	for _, job := range jobs {
		state := history[job]
		target := state.Output
		if target == "" {
			target = state.Artifact
		}
		fmt.Fprintf(out, "  %s  %s  %s\n",
			cliui.KeyStyle.Render(fmt.Sprintf("%-6s", job)),
			cliui.ValueStyle.Render(state.RunID),
			cliui.DimStyle.Render(utils.TruncateLeft(target, 60)),
		)
	}
	fmt.Fprintln(out)
	return nil
}

// Package hvisioncmder provides the root hvision command.
package hvisioncmder

import (
	"fmt"

	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/hvision/cmd/hvision/config"
	detectcmder "github.com/papercomputeco/hvision/cmd/hvision/detect"
	initcmder "github.com/papercomputeco/hvision/cmd/hvision/init"
	packcmder "github.com/papercomputeco/hvision/cmd/hvision/pack"
	runscmder "github.com/papercomputeco/hvision/cmd/hvision/runs"
	searchcmder "github.com/papercomputeco/hvision/cmd/hvision/search"
	traincmder "github.com/papercomputeco/hvision/cmd/hvision/train"
	vocabcmder "github.com/papercomputeco/hvision/cmd/hvision/vocab"
	versioncmder "github.com/papercomputeco/hvision/cmd/version"
	"github.com/papercomputeco/hvision/pkg/errs"
)

const hvisionLongDesc string = `hvision runs image processing jobs over record datasets in parallel.

Prepare data and models:
  hvision pack      Pack a directory of images into a record file
  hvision vocab     Build a visual vocabulary
  hvision train     Train one-vs-rest classifiers

Query datasets:
  hvision search    Rank a dataset by similarity to a query image
  hvision detect    Detect faces in a dataset

Inspect and configure:
  hvision runs      List training runs and their models
  hvision init      Initialize a local .hvision/ directory
  hvision config    Manage persistent configuration`

const hvisionShortDesc string = "hvision - parallel image processing jobs"

func NewHVisionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hvision",
		Short:         hvisionShortDesc,
		Long:          hvisionLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .hvision/ directory")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", errs.ErrConfiguration, err)
	})

	cmd.AddCommand(packcmder.NewPackCmd())
	cmd.AddCommand(vocabcmder.NewVocabCmd())
	cmd.AddCommand(traincmder.NewTrainCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(detectcmder.NewDetectCmd())
	cmd.AddCommand(runscmder.NewRunsCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}

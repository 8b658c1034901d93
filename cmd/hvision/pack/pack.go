// Package packcmder provides the pack command, which turns a directory of
// image files into an hvision record file.
package packcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/hvision/cmd/hvision/jobenv"
	"github.com/papercomputeco/hvision/pkg/cliui"
	"github.com/papercomputeco/hvision/pkg/config"
	"github.com/papercomputeco/hvision/pkg/dataset"
	"github.com/papercomputeco/hvision/pkg/errs"
)

const packLongDesc string = `Pack a directory of images into a record file.

Images directly under the directory are keyed with their extension only.
When the directory holds one sub-directory per label, each image in it is
keyed with labelid (the sub-directory's index in name order) and label_count,
ready for hvision train.

Examples:
  hvision pack -i photos -o data/photos
  hvision pack -i labelled -o data/train --compression lz4`

const packShortDesc string = "Pack images into a record file"

type packCommander struct {
	input  string
	output string
	keys   []string
}

func NewPackCmd() *cobra.Command {
	cmder := &packCommander{}

	cmd := &cobra.Command{
		Use:   "pack",
		Short: packShortDesc,
		Long:  packLongDesc,
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

	cmd.Flags().StringVarP(&cmder.input, "input", "i", "", "Directory of image files")
	cmd.Flags().StringVarP(&cmder.output, "output", "o", "", "Output directory for the record file")
	cmder.keys = jobenv.AddFlags(cmd, []string{config.FlagCompression})

	return cmd
}

func (c *packCommander) run(cmd *cobra.Command, env *jobenv.Env) error {
	records, err := dataset.PackDirectory(c.input)
	if err != nil {
		return fmt.Errorf("%w: packing %s: %w", errs.ErrResourceUnavailable, c.input, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: no images found under %s", errs.ErrConfiguration, c.input)
	}

	path, err := env.WriteOutput(c.output, records)
	if err != nil {
		return err
	}
	env.Logger.Debug("packed images", "input", c.input, "records", len(records), "output", path)

	fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Packed %d images into %s\n\n",
		cliui.SuccessMark,
		len(records),
		cliui.ValueStyle.Render(path),
	)
	return nil
}

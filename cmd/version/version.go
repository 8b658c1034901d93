// Package versioncmder provides the version command.
package versioncmder

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/hvision/pkg/utils"
)

type versionCommander struct{}

func NewVersionCmd() *cobra.Command {
	cmder := &versionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "displays version",
		Long:  "displays the version, commit and build time of hvision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.OutOrStdout())
		},
	}

	return cmd
}

func (c *versionCommander) run(out io.Writer) error {
	_, err := io.WriteString(out, utils.BuildInfo())
	return err
}

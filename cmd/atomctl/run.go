package main

import (
	"github.com/spf13/cobra"
)

func runCmd(g *globals) *cobra.Command {
	var restore string

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run a scenario and print every change",
		Long: `Run binds the scenario's watched atoms, performs its steps in order and
prints each change to a watched atom as it happens.

Examples:
  atomctl run counter.yaml
  atomctl run counter.yaml --restore nightly`,
		Args: scenarioArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.setup(cmd.Context(), args[0], restore, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return e.world.Run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&restore, "restore", "", "Start from the snapshot with this reference")
	return cmd
}

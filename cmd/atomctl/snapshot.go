package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/atom/internal/errors"
	"github.com/vango-dev/atom/internal/snapshot"
	"github.com/vango-dev/atom/pkg/atom"
)

func snapshotCmd(g *globals) *cobra.Command {
	var (
		name    string
		restore string
	)

	cmd := &cobra.Command{
		Use:   "snapshot <scenario>",
		Short: "Run a scenario and save its keyed state",
		Long: `Snapshot runs the scenario, then saves every keyed state atom to the
backend configured under snapshot in atomctl.yaml. The reference it
prints can be passed to --restore.

Examples:
  atomctl snapshot counter.yaml
  atomctl snapshot counter.yaml --name nightly`,
		Args: scenarioArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.setup(cmd.Context(), args[0], restore, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			store, err := snapshot.Open(e.cfg)
			if err != nil {
				return err
			}

			if err := e.world.Run(cmd.Context(), cmd.OutOrStdout()); err != nil {
				return err
			}

			state, err := atom.Dehydrate(e.world.Registry())
			if err != nil {
				return errors.New("A200").Wrap(err)
			}
			ref, err := store.Save(cmd.Context(), name, state)
			if err != nil {
				return err
			}
			e.logger.Info("snapshot saved", "ref", ref, "atoms", len(state))
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s\n", ref)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Snapshot name (default: a generated id)")
	cmd.Flags().StringVar(&restore, "restore", "", "Start from the snapshot with this reference")
	return cmd
}

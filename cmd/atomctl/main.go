// Command atomctl runs atom scenarios, serves them for inspection and
// snapshots their state.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/atom/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		errors.Print(os.Stderr, err)
		os.Exit(1)
	}
}

// globals are the persistent flags shared by every command.
type globals struct {
	configPath string
	logLevel   string
	noColor    bool
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "atomctl",
		Short: "Run and inspect atom scenarios",
		Long: `atomctl loads a scenario file that declares atoms and scripted
writes, runs it against an atom registry and prints every change to the
watched atoms.

Examples:
  atomctl run counter.yaml
  atomctl run counter.yaml --restore nightly
  atomctl serve counter.yaml --addr :7070
  atomctl snapshot counter.yaml --name nightly`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.noColor {
				errors.DisableColors()
			}
		},
	}

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to atomctl.yaml (default ./atomctl.yaml)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides the config)")
	root.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "Disable colored error output")

	root.AddCommand(
		runCmd(g),
		serveCmd(g),
		snapshotCmd(g),
		versionCmd(),
	)
	return root
}

// scenarioArg accepts exactly one scenario path.
func scenarioArg(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("A400").
			WithDetailf("%s takes one scenario file, got %d arguments", cmd.Name(), len(args)).
			WithSuggestion("Run: " + cmd.UseLine())
	}
	return nil
}

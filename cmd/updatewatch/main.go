package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/updatewatch/internal/simulator"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command and its subcommands
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	root := createRootCommand(globalFlags)
	root.AddCommand(
		createRunCommand(globalFlags),
		createInitCommand(globalFlags),
		createSimulateCommand(globalFlags),
		createShowCommand(globalFlags),
		createStatusCommand(),
		createIntervalCommand(),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "updatewatch",
		Short: "Mirror an update agent's status file",
		Long: `updatewatch polls the status file written by an update agent and
publishes every change to a terminal display, history sinks and an HTTP
control surface.

Examples:
  updatewatch run --config=updatewatch.toml
  updatewatch run --simulate --terminal       # demo without an agent
  updatewatch status --api-url=http://host:8080/api
  updatewatch interval --ms=500`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&flags.Path, "path", "", "status file path (overrides config)")
	return root
}

func createRunCommand(globalFlags *GlobalFlags) *cobra.Command {
	flags := &RunFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Watch the status file until interrupted",
		Long: `Run the watcher. With --config the file is watched and a changed
watch.interval is applied without a restart.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdRun(cmd.Context(), *globalFlags, *flags, cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&flags.Interval, "interval", 0, "polling interval (overrides config)")
	cmd.Flags().BoolVar(&flags.Simulate, "simulate", false, "also run the status simulator")
	cmd.Flags().StringVar(&flags.Listen, "listen", "", "HTTP control surface address (overrides config)")
	cmd.Flags().BoolVar(&flags.Terminal, "terminal", false, "render the status screen on stdout")
	return cmd
}

func createInitCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the status file with default content if it is missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdInit(*globalFlags, cmd.OutOrStdout())
		},
	}
}

func createSimulateCommand(globalFlags *GlobalFlags) *cobra.Command {
	flags := &SimulateFlags{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Write simulated update phases to the status file",
		Long: `Act as a fake update agent. Without --count it writes a phase every
interval until interrupted.

Examples:
  updatewatch simulate --path=/tmp/status.json --interval=1s
  updatewatch simulate --count=8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdSimulate(cmd.Context(), *globalFlags, *flags, cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&flags.Interval, "interval", simulator.DefaultInterval, "time between phases")
	cmd.Flags().IntVar(&flags.Count, "count", 0, "write this many phases and exit (0 = run until interrupted)")
	return cmd
}

func createShowCommand(globalFlags *GlobalFlags) *cobra.Command {
	flags := &ShowFlags{}
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Parse the status file once and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdShow(*globalFlags, *flags, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&flags.Terminal, "terminal", false, "render with the progress bar")
	cmd.Flags().IntVar(&flags.Width, "width", 0, "progress bar width")
	return cmd
}

func addAPIFlags(cmd *cobra.Command, flags *APIFlags) {
	cmd.Flags().StringVar(&flags.APIUrl, "api-url", "", "control surface URL (e.g. http://host:8080/api)")
	cmd.Flags().DurationVar(&flags.APITimeout, "api-timeout", 10*time.Second, "request timeout")
}

func createStatusCommand() *cobra.Command {
	flags := &APIFlags{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status held by a running watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdStatus(cmd.Context(), *flags, cmd.OutOrStdout())
		},
	}
	addAPIFlags(cmd, flags)
	return cmd
}

func createIntervalCommand() *cobra.Command {
	flags := &IntervalFlags{}
	cmd := &cobra.Command{
		Use:   "interval",
		Short: "Show or change a running watcher's polling interval",
		Long: `Without --ms the current interval is printed.

Examples:
  updatewatch interval
  updatewatch interval --ms=500 --api-url=http://host:8080/api`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdInterval(cmd.Context(), *flags, cmd.OutOrStdout())
		},
	}
	addAPIFlags(cmd, &flags.APIFlags)
	cmd.Flags().Int64Var(&flags.MS, "ms", 0, "new polling interval in milliseconds")
	return cmd
}

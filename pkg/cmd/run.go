package cmd

import (
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Populate fixtures, then run every gate",
		Long: `Ensures every declared fixture source is cached, regenerates the synthetic
calendar, then runs the gates in order. The first failure ends the run; a
failing gate's exit status becomes icalgate's.`,
		Args: cobra.NoArgs,
		RunE: runRun,
	}
}

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download missing real-world fixtures",
		Long:  "Fetches each declared source whose file is not cached yet. Sources with policy always-refetch are downloaded every time.",
		Args:  cobra.NoArgs,
		RunE:  runFetch,
	}
}

func newGatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gates",
		Short: "Run the gates against the current fixture directory",
		Long:  "Runs the gates in order without touching fixtures. Use after \"icalgate fetch\" or when the fixtures are already in place.",
		Args:  cobra.NoArgs,
		RunE:  runGates,
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	h, err := newHarness(cmd)
	if err != nil {
		return err
	}
	return h.Run(cmd.Context())
}

func runFetch(cmd *cobra.Command, args []string) error {
	h, err := newHarness(cmd)
	if err != nil {
		return err
	}
	return h.EnsureCorpus(cmd.Context())
}

func runGates(cmd *cobra.Command, args []string) error {
	h, err := newHarness(cmd)
	if err != nil {
		return err
	}
	return h.RunGates(cmd.Context())
}

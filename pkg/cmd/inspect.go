package cmd

import (
	"fmt"

	"github.com/icalgate/icalgate/pkg/corpus"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarize the cached fixtures",
		Long: `Parses every file in the fixture directory with a reference iCalendar parser
and prints its size, digest, component and event counts. Files the parser
rejects are listed with the parse error; inspect never fails because of them.`,
		Args: cobra.NoArgs,
		RunE: runInspect,
	}

	cmd.Flags().String("output", "table", "output format (table or yaml)")

	return cmd
}

func runInspect(cmd *cobra.Command, args []string) error {
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	if output != "table" && output != "yaml" {
		return fmt.Errorf("invalid --output %q: must be table or yaml", output)
	}

	h, err := newHarness(cmd)
	if err != nil {
		return err
	}

	summaries, err := corpus.Inspect(h.Store)
	if err != nil {
		return err
	}

	if output == "yaml" {
		data, err := yaml.Marshal(summaries)
		if err != nil {
			return fmt.Errorf("marshaling summary: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	return corpus.Print(cmd.OutOrStdout(), summaries)
}

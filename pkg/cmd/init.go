package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/icalgate/icalgate/pkg/config"
	"github.com/icalgate/icalgate/pkg/project"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize icalgate in a library project",
		Long:  "Creates an icalgate.toml manifest with the reference pipeline and adds the fixture directory to .gitignore.",
		Args:  cobra.NoArgs,
		RunE:  runInit,
		// init does not need settings resolution; skip the root PersistentPreRunE.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	}

	cmd.Flags().BoolP("force", "f", false, "overwrite an existing manifest without asking")

	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	dir, err := resolveProjectDir()
	if err != nil {
		return err
	}

	exists, err := project.ManifestExists(dir)
	if err != nil {
		return err
	}

	overwrite := force
	if exists && !force {
		if overwrite, err = confirmOverwrite(); err != nil {
			return err
		}
	}

	var cfg *config.Config
	if exists && !overwrite {
		fmt.Fprintf(cmd.OutOrStdout(), "Kept existing %s\n", project.ManifestFile)
		if cfg, err = config.LoadFile(filepath.Join(dir, project.ManifestFile)); err != nil {
			return err
		}
	} else {
		if cfg, err = project.Init(dir, overwrite); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", project.ManifestFile)
	}

	added, err := project.EnsureGitignore(dir, project.GitignoreEntries(cfg))
	if err != nil {
		return err
	}
	for _, entry := range added {
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s to .gitignore\n", entry)
	}

	return nil
}

// confirmOverwrite asks before replacing a manifest the user may have edited.
func confirmOverwrite() (bool, error) {
	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(project.ManifestFile + " already exists. Replace it with the reference pipeline?").
				Affirmative("Replace").
				Negative("Keep").
				Value(&ok),
		),
	).Run()
	if err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return ok, nil
}

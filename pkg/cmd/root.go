package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/icalgate/icalgate/pkg/config"
	"github.com/icalgate/icalgate/pkg/fetch"
	"github.com/icalgate/icalgate/pkg/gate"
	"github.com/icalgate/icalgate/pkg/logging"
	"github.com/icalgate/icalgate/pkg/pipeline"
	"github.com/icalgate/icalgate/pkg/project"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagDir      string
	flagManifest string

	// Settings and Log are resolved by PersistentPreRunE and available to
	// all subcommands afterwards.
	Settings *config.Settings
	Log      *zap.Logger
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "icalgate",
		Short: "Pre-release gate for an iCalendar library",
		Long: `icalgate gates a release of an iCalendar library on three kinds of evidence:
a cached corpus of real-world calendars, one freshly generated random calendar,
and the library's test, lint and format checks, run in that order.

Without a subcommand it runs the whole gate, like "icalgate run".`,
		Args: cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.LoadSettings(cmd.Flags())
			if err != nil {
				return err
			}
			log, err := logging.New(s.Logging(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			Settings = s
			Log = log.With(zap.String("run_id", uuid.NewString()))
			return nil
		},
		RunE:         runRun,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flagDir, "dir", "C", "", "library project directory (default: working directory)")
	pf.StringVar(&flagManifest, "manifest", "", "manifest path (default: <dir>/"+project.ManifestFile+")")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", logging.FormatConsole, "log format (console or json)")
	pf.Uint("retries", 0, "extra attempts per fixture download after a transient failure")
	pf.String("user-agent", fetch.DefaultUserAgent, "User-Agent sent to calendar providers")

	root.AddCommand(newRunCmd())
	root.AddCommand(newFetchCmd())
	root.AddCommand(newGatesCmd())
	root.AddCommand(newGenerateCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newPlanCmd())
	root.AddCommand(newInitCmd())

	return root
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	os.Exit(ExitCode(err))
}

// ExitCode maps a command error to the process exit status. A failing gate
// passes its own status through so CI sees what the tool reported.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var f *gate.Failure
	if errors.As(err, &f) && f.ExitStatus > 0 {
		return f.ExitStatus
	}
	return 1
}

// resolveProjectDir returns --dir as an absolute path, defaulting to the
// working directory.
func resolveProjectDir() (string, error) {
	dir := flagDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting working directory: %w", err)
		}
		return wd, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}
	return abs, nil
}

// loadManifest reads the manifest for dir. An explicit --manifest must exist;
// the implicit one falls back to the reference pipeline.
func loadManifest(dir string) (*config.Config, string, error) {
	if flagManifest != "" {
		cfg, err := config.LoadFile(flagManifest)
		return cfg, flagManifest, err
	}
	path := filepath.Join(dir, project.ManifestFile)
	cfg, err := config.Load(path)
	return cfg, path, err
}

// loadProject resolves the project directory and its manifest.
func loadProject() (string, *config.Config, error) {
	dir, err := resolveProjectDir()
	if err != nil {
		return "", nil, err
	}
	cfg, path, err := loadManifest(dir)
	if err != nil {
		return "", nil, err
	}
	Log.Debug("manifest loaded", zap.String("manifest", path), zap.String("dir", dir))
	return dir, cfg, nil
}

func newHarness(cmd *cobra.Command) (*pipeline.Harness, error) {
	dir, cfg, err := loadProject()
	if err != nil {
		return nil, err
	}
	return harnessFor(cmd, dir, cfg)
}

func harnessFor(cmd *cobra.Command, dir string, cfg *config.Config) (*pipeline.Harness, error) {
	return pipeline.New(cfg, Settings, pipeline.Options{
		ProjectDir: dir,
		Output:     cmd.OutOrStdout(),
		Log:        Log,
	})
}

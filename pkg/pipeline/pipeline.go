// Package pipeline composes the release gate: populate the real-world
// corpus, regenerate the synthetic fixture, then run the gates. Each stage
// starts only after the previous one completed, and the first error ends
// the run.
package pipeline

import (
	"context"
	"io"
	"path/filepath"

	"github.com/icalgate/icalgate/pkg/config"
	"github.com/icalgate/icalgate/pkg/fetch"
	"github.com/icalgate/icalgate/pkg/fixture"
	"github.com/icalgate/icalgate/pkg/gate"
	"github.com/icalgate/icalgate/pkg/store"
	"github.com/icalgate/icalgate/pkg/synth"
	"go.uber.org/zap"
)

// FixturesEnv tells gate commands where the corpus lives.
const FixturesEnv = "ICALGATE_FIXTURES"

type Harness struct {
	Store         store.Store
	Cache         *fixture.Cache
	Sources       []fixture.Source
	Generator     synth.Generator
	SyntheticPath string
	Runner        *gate.Runner
	Steps         []gate.Step
	Log           *zap.Logger
}

// Options carries what the manifest does not: where commands run, where their
// output goes and how the harness logs.
type Options struct {
	// ProjectDir is the working directory of the library under test.
	ProjectDir string
	// Output receives gate tool output as it is produced.
	Output io.Writer
	Log    *zap.Logger
	// Fetcher overrides the http/https/file fetcher built from settings.
	Fetcher fetch.Fetcher
}

// New builds a harness from a validated manifest.
func New(cfg *config.Config, settings *config.Settings, opts Options) (*Harness, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	cacheDir := cfg.Cache.Dir
	if !filepath.IsAbs(cacheDir) && opts.ProjectDir != "" {
		cacheDir = filepath.Join(opts.ProjectDir, cacheDir)
	}
	st := store.New(cacheDir)

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = fetch.Default(&fetch.HTTP{Retries: settings.Retries, UserAgent: settings.UserAgent})
	}

	var gen synth.Generator
	if cfg.Synthetic.Builtin {
		shape, err := synth.ShapeByName(cfg.Synthetic.Shape)
		if err != nil {
			return nil, err
		}
		gen = &synth.Builtin{Seed: cfg.Synthetic.Seed, Shape: &shape, Log: log}
	} else {
		gen = &synth.Command{Argv: cfg.Synthetic.Command, Dir: opts.ProjectDir, Seed: cfg.Synthetic.Seed, Log: log}
	}

	fixturesEnv := FixturesEnv + "=" + absOrSelf(cacheDir)
	steps := make([]gate.Step, len(cfg.Gates))
	for i, g := range cfg.Gates {
		steps[i] = gate.Step{
			Name: g.Name,
			Check: &gate.Command{
				Argv:   g.Command,
				Dir:    opts.ProjectDir,
				Env:    []string{fixturesEnv},
				Output: opts.Output,
			},
			Required: g.IsRequired(),
		}
	}

	return &Harness{
		Store:         st,
		Cache:         &fixture.Cache{Store: st, Fetcher: fetcher, Log: log},
		Sources:       cfg.FixtureSources(),
		Generator:     gen,
		SyntheticPath: cfg.Synthetic.Path,
		Runner:        &gate.Runner{Log: log},
		Steps:         steps,
		Log:           log,
	}, nil
}

// Run executes the whole release gate.
func (h *Harness) Run(ctx context.Context) error {
	if err := h.PopulateFixtures(ctx); err != nil {
		return err
	}
	if err := h.RunGates(ctx); err != nil {
		return err
	}
	h.logger().Info("release gate passed")
	return nil
}

// PopulateFixtures ensures the real-world corpus and writes a fresh
// synthetic document.
func (h *Harness) PopulateFixtures(ctx context.Context) error {
	if err := h.EnsureCorpus(ctx); err != nil {
		return err
	}
	return h.Generator.Generate(ctx, h.Store, h.SyntheticPath)
}

// EnsureCorpus resolves the declared sources only.
func (h *Harness) EnsureCorpus(ctx context.Context) error {
	return h.Cache.Ensure(ctx, h.Sources)
}

// RunGates runs the gates against whatever is in the cache directory.
func (h *Harness) RunGates(ctx context.Context) error {
	return h.Runner.Run(ctx, h.Steps)
}

func (h *Harness) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

func absOrSelf(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

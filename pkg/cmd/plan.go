package cmd

import (
	"fmt"
	"path"
	"strings"

	"github.com/icalgate/icalgate/pkg/config"
	"github.com/icalgate/icalgate/pkg/fixture"
	"github.com/icalgate/icalgate/pkg/pipeline"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

// plan is the resolved pipeline as "icalgate run" would execute it.
type plan struct {
	ProjectDir string     `json:"projectDir" toml:"project_dir"`
	CacheDir   string     `json:"cacheDir" toml:"cache_dir"`
	Steps      []planStep `json:"steps" toml:"steps"`
}

type planStep struct {
	Stage    string   `json:"stage" toml:"stage"`
	Name     string   `json:"name" toml:"name"`
	URL      string   `json:"url,omitempty" toml:"url,omitempty"`
	Path     string   `json:"path,omitempty" toml:"path,omitempty"`
	Action   string   `json:"action,omitempty" toml:"action,omitempty"`
	Command  []string `json:"command,omitempty" toml:"command,omitempty"`
	Required *bool    `json:"required,omitempty" toml:"required,omitempty"`
}

const (
	stageFetch    = "fetch"
	stageGenerate = "generate"
	stageGate     = "gate"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what a run would do",
		Long: `Prints the resolved pipeline without running it: which sources would be
fetched or reused from the cache, how the synthetic fixture is generated, and
the gates in order.`,
		Args: cobra.NoArgs,
		RunE: runPlan,
	}

	cmd.Flags().StringP("output", "o", "yaml", "output format (yaml or toml)")

	return cmd
}

func runPlan(cmd *cobra.Command, args []string) error {
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	dir, cfg, err := loadProject()
	if err != nil {
		return err
	}
	h, err := harnessFor(cmd, dir, cfg)
	if err != nil {
		return err
	}

	p, err := buildPlan(dir, cfg, h)
	if err != nil {
		return err
	}

	var data []byte
	switch output {
	case "yaml":
		data, err = yaml.Marshal(p)
	case "toml":
		data, err = toml.Marshal(p)
	default:
		return fmt.Errorf("invalid --output %q: must be yaml or toml", output)
	}
	if err != nil {
		return fmt.Errorf("marshaling plan: %w", err)
	}

	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func buildPlan(dir string, cfg *config.Config, h *pipeline.Harness) (*plan, error) {
	p := &plan{ProjectDir: dir, CacheDir: h.Store.Root()}

	for _, src := range h.Sources {
		action := "fetch"
		if src.Policy != fixture.AlwaysRefetch {
			cached, err := h.Store.FileExists(strings.Split(path.Clean(src.Path), "/")...)
			if err != nil {
				return nil, fmt.Errorf("checking %s: %w", src.Path, err)
			}
			if cached {
				action = "reuse"
			}
		}
		p.Steps = append(p.Steps, planStep{
			Stage:  stageFetch,
			Name:   src.Name,
			URL:    src.URL,
			Path:   src.Path,
			Action: action,
		})
	}

	gen := planStep{Stage: stageGenerate, Name: "synthetic", Path: cfg.Synthetic.Path, Action: "overwrite"}
	if cfg.Synthetic.Builtin {
		gen.Command = []string{"builtin"}
	} else {
		gen.Command = cfg.Synthetic.Command
	}
	p.Steps = append(p.Steps, gen)

	for _, g := range cfg.Gates {
		required := g.IsRequired()
		p.Steps = append(p.Steps, planStep{
			Stage:    stageGate,
			Name:     g.Name,
			Command:  g.Command,
			Required: &required,
		})
	}

	return p, nil
}

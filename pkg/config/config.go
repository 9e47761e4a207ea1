package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"

	"github.com/icalgate/icalgate/pkg/fixture"
	"github.com/icalgate/icalgate/pkg/store"
	"github.com/icalgate/icalgate/pkg/synth"
	"github.com/pelletier/go-toml/v2"
)

// ManifestFileName is the committed harness manifest.
const ManifestFileName = "icalgate.toml"

// Reference provider locators for the real-world corpus.
const (
	AmericanHistoryURL = "https://calendar.google.com/calendar/ical/en.usa%23holiday%40group.v.calendar.google.com/public/basic.ics"
	GermanHolidaysURL  = "https://calendar.google.com/calendar/ical/de.german%23holiday%40group.v.calendar.google.com/public/basic.ics"
)

// Config is the release pipeline: where fixtures live, which documents make
// up the corpus, how the synthetic document is produced and which gates run.
type Config struct {
	Cache     CacheConfig     `toml:"cache"`
	Sources   []SourceConfig  `toml:"sources"`
	Synthetic SyntheticConfig `toml:"synthetic"`
	Gates     []GateConfig    `toml:"gates"`
}

type CacheConfig struct {
	Dir string `toml:"dir"`
}

type SourceConfig struct {
	Name   string `toml:"name"`
	URL    string `toml:"url"`
	Path   string `toml:"path"`
	Policy string `toml:"policy,omitempty"`
}

type SyntheticConfig struct {
	Path string `toml:"path"`
	// Command is the external generator; its stdout becomes the fixture.
	Command []string `toml:"command,omitempty"`
	// Builtin selects the in-process random generator instead of Command.
	Builtin bool `toml:"builtin,omitempty"`
	// Shape sizes builtin documents: "default" or "small".
	Shape string  `toml:"shape,omitempty"`
	Seed  *uint64 `toml:"seed,omitempty"`
}

type GateConfig struct {
	Name    string   `toml:"name"`
	Command []string `toml:"command"`
	// Required defaults to true.
	Required *bool `toml:"required,omitempty"`
}

func (g GateConfig) IsRequired() bool {
	return g.Required == nil || *g.Required
}

// Default returns the reference pipeline: two provider calendars, the
// library's random generator example, then test, lint and format-check.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{Dir: store.DefaultRoot},
		Sources: []SourceConfig{
			{Name: "american-history", URL: AmericanHistoryURL, Path: "american-history.ics", Policy: string(fixture.FetchIfAbsent)},
			{Name: "german-holidays", URL: GermanHolidaysURL, Path: "german-holidays.ics", Policy: string(fixture.FetchIfAbsent)},
		},
		Synthetic: SyntheticConfig{
			Path:    synth.DefaultPath,
			Command: []string{"cargo", "run", "--quiet", "--example", "generate_random"},
		},
		Gates: []GateConfig{
			{Name: "test", Command: []string{"cargo", "test"}},
			{Name: "lint", Command: []string{"cargo", "clippy", "--all-targets", "--", "-D", "warnings"}},
			{Name: "format", Command: []string{"cargo", "fmt", "--", "--check"}},
		},
	}
}

// UnmarshalConfig parses a manifest. Sections left out fall back to Default.
func UnmarshalConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Cache.Dir == "" {
		c.Cache.Dir = def.Cache.Dir
	}
	if c.Sources == nil {
		c.Sources = def.Sources
	}
	if c.Synthetic.Path == "" {
		c.Synthetic.Path = def.Synthetic.Path
	}
	if len(c.Synthetic.Command) == 0 && !c.Synthetic.Builtin {
		c.Synthetic.Command = def.Synthetic.Command
	}
	if c.Gates == nil {
		c.Gates = def.Gates
	}
}

func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

// Validate checks the manifest before anything touches the network or the
// cache directory.
func (c *Config) Validate() error {
	if c.Cache.Dir == "" {
		return errors.New("cache.dir is empty")
	}

	sources := c.FixtureSources()
	if err := fixture.Validate(sources); err != nil {
		return err
	}

	if err := fixture.ValidatePath(c.Synthetic.Path); err != nil {
		return fmt.Errorf("synthetic: %w", err)
	}
	for _, s := range sources {
		if path.Clean(s.Path) == path.Clean(c.Synthetic.Path) {
			return fmt.Errorf("synthetic fixture and source %q both write %s", s.Name, s.Path)
		}
	}
	if !c.Synthetic.Builtin && len(c.Synthetic.Command) == 0 {
		return errors.New("synthetic: no generator command and builtin is off")
	}
	if _, err := synth.ShapeByName(c.Synthetic.Shape); err != nil {
		return fmt.Errorf("synthetic: %w", err)
	}

	names := make(map[string]bool, len(c.Gates))
	for i, g := range c.Gates {
		if g.Name == "" {
			return fmt.Errorf("gate %d has no name", i+1)
		}
		if names[g.Name] {
			return fmt.Errorf("duplicate gate name %q", g.Name)
		}
		names[g.Name] = true
		if len(g.Command) == 0 {
			return fmt.Errorf("gate %q has no command", g.Name)
		}
	}

	return nil
}

// FixtureSources converts the declared sources, preserving their order.
func (c *Config) FixtureSources() []fixture.Source {
	out := make([]fixture.Source, len(c.Sources))
	for i, s := range c.Sources {
		out[i] = fixture.Source{
			Name:   s.Name,
			URL:    s.URL,
			Path:   s.Path,
			Policy: fixture.Policy(s.Policy),
		}
	}
	return out
}

// LoadFile reads and validates the manifest at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	cfg, err := UnmarshalConfig(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Load is LoadFile, except that a missing manifest yields Default.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func SaveFile(path string, cfg *Config) error {
	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

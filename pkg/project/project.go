package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/icalgate/icalgate/pkg/config"
)

const ManifestFile = config.ManifestFileName

// ManifestExists reports whether dir already has a manifest.
func ManifestExists(dir string) (bool, error) {
	_, err := os.Stat(filepath.Join(dir, ManifestFile))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Init writes an icalgate.toml manifest with the reference sources,
// generator and gates into dir. An existing manifest is replaced only when
// overwrite is set.
func Init(dir string, overwrite bool) (*config.Config, error) {
	path := filepath.Join(dir, ManifestFile)

	exists, err := ManifestExists(dir)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", path, err)
	}
	if exists && !overwrite {
		return nil, fmt.Errorf("%s already exists", ManifestFile)
	}

	cfg := config.Default()
	if err := config.SaveFile(path, cfg); err != nil {
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}

	return cfg, nil
}

// GitignoreEntries returns the paths that must stay out of version control
// for cfg: the fixture cache (captured third-party data) and the local
// settings file.
func GitignoreEntries(cfg *config.Config) []string {
	dir := filepath.ToSlash(filepath.Clean(cfg.Cache.Dir))
	return []string{
		strings.TrimSuffix(dir, "/") + "/",
		config.LocalSettingsFile,
	}
}

// EnsureGitignore ensures that each entry appears somewhere in the .gitignore
// file within dir. Only entries not already present are appended. Returns the
// list of entries that were actually added.
func EnsureGitignore(dir string, entries []string) ([]string, error) {
	path := filepath.Join(dir, ".gitignore")

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	present := make(map[string]bool)
	for _, line := range strings.Split(string(existing), "\n") {
		line = strings.TrimSpace(line)
		present[line] = true
		// "private-test-icals" and "private-test-icals/" ignore the same dir
		present[strings.TrimSuffix(line, "/")+"/"] = true
	}

	var toAdd []string
	for _, entry := range entries {
		if !present[entry] {
			toAdd = append(toAdd, entry)
		}
	}

	if len(toAdd) == 0 {
		return nil, nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	// Ensure we start on a new line if file doesn't end with one.
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		if _, err := f.WriteString("\n"); err != nil {
			return nil, err
		}
	}

	for _, entry := range toAdd {
		if _, err := f.WriteString(entry + "\n"); err != nil {
			return nil, err
		}
	}

	return toAdd, nil
}

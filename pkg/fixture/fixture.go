// Package fixture keeps the real-world calendar corpus present in the fixture
// cache directory. Presence of the file is the only success signal: a cached
// document is never re-validated or re-fetched unless its source asks for it.
package fixture

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/icalgate/icalgate/pkg/fetch"
	"github.com/icalgate/icalgate/pkg/store"
	"go.uber.org/zap"
)

const fixtureFilePerms = 0o644

// Policy decides whether a cached fixture is reused.
type Policy string

const (
	FetchIfAbsent Policy = "fetch-if-absent"
	AlwaysRefetch Policy = "always-refetch"
)

// Source is one externally hosted calendar document.
type Source struct {
	Name string
	URL  string
	// Path is slash-separated and relative to the cache root.
	Path   string
	Policy Policy
}

func (s Source) policy() Policy {
	if s.Policy == "" {
		return FetchIfAbsent
	}
	return s.Policy
}

func (s Source) segments() []string {
	return strings.Split(path.Clean(s.Path), "/")
}

// FetchError reports a source that could not be retrieved.
type FetchError struct {
	Source string
	URL    string
	Cause  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching fixture %q from %s: %v", e.Source, e.URL, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Validate checks that sources are well formed and that no two of them share
// a name or a cache entry.
func Validate(sources []Source) error {
	names := make(map[string]bool, len(sources))
	paths := make(map[string]string, len(sources))

	for _, s := range sources {
		if s.Name == "" {
			return fmt.Errorf("fixture source with url %q has no name", s.URL)
		}
		if names[s.Name] {
			return fmt.Errorf("duplicate fixture source name %q", s.Name)
		}
		names[s.Name] = true

		if s.URL == "" {
			return fmt.Errorf("fixture source %q has no url", s.Name)
		}

		switch s.policy() {
		case FetchIfAbsent, AlwaysRefetch:
		default:
			return fmt.Errorf("fixture source %q: unknown policy %q", s.Name, s.Policy)
		}

		if err := ValidatePath(s.Path); err != nil {
			return fmt.Errorf("fixture source %q: %w", s.Name, err)
		}
		clean := path.Clean(s.Path)
		if other, ok := paths[clean]; ok {
			return fmt.Errorf("fixture sources %q and %q both write %s", other, s.Name, clean)
		}
		paths[clean] = s.Name
	}

	return nil
}

// ValidatePath rejects cache paths that are empty, absolute or that would
// leave the cache root.
func ValidatePath(p string) error {
	if p == "" {
		return fmt.Errorf("empty path")
	}
	if path.IsAbs(p) || strings.Contains(p, `\`) {
		return fmt.Errorf("path %q must be relative and slash-separated", p)
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("path %q escapes the cache directory", p)
	}
	return nil
}

// Cache materialises sources into Store.
type Cache struct {
	Store   store.Store
	Fetcher fetch.Fetcher
	Log     *zap.Logger
}

// Ensure guarantees every source is present under the cache root. Sources are
// resolved in order and the first failure aborts the batch, so no source
// after a failing one is fetched.
func (c *Cache) Ensure(ctx context.Context, sources []Source) error {
	if err := Validate(sources); err != nil {
		return err
	}

	if err := c.Store.EnsureDir(); err != nil {
		return fmt.Errorf("preparing fixture cache: %w", err)
	}

	for _, src := range sources {
		if err := c.ensureOne(ctx, src); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) ensureOne(ctx context.Context, src Source) error {
	segs := src.segments()
	log := c.logger().With(zap.String("source", src.Name), zap.String("path", c.Store.Path(segs...)))

	if src.policy() == FetchIfAbsent {
		cached, err := c.Store.FileExists(segs...)
		if err != nil {
			return fmt.Errorf("checking cached fixture %q: %w", src.Name, err)
		}
		if cached {
			log.Info("fixture cached")
			return nil
		}
	}

	log.Info("fetching fixture", zap.String("url", src.URL), zap.String("policy", string(src.policy())))

	body, err := c.Fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return &FetchError{Source: src.Name, URL: src.URL, Cause: err}
	}

	if err := c.Store.WriteFile(body, fixtureFilePerms, segs...); err != nil {
		return fmt.Errorf("writing fixture %q: %w", src.Name, err)
	}

	log.Info("fixture fetched", zap.Int("bytes", len(body)))
	return nil
}

func (c *Cache) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

package fetch

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// File reads file:// locators from the local filesystem, so a source can point
// at a vendored snapshot instead of a live provider.
type File struct{}

var _ Fetcher = File{}

func (File) Fetch(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u, err := url.Parse(locator)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", locator, err)
	}
	if u.Scheme != "file" {
		return nil, fmt.Errorf("not a file locator: %s", locator)
	}
	if u.Host != "" && u.Host != "localhost" {
		return nil, fmt.Errorf("file locator %s names remote host %q", locator, u.Host)
	}

	path := filepath.FromSlash(u.Path)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("local fixture does not exist: %s", path)
		}
		return nil, fmt.Errorf("checking local fixture %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("local fixture is a directory: %s", path)
	}

	return os.ReadFile(path)
}

// Schemes dispatches on the locator's URL scheme.
type Schemes map[string]Fetcher

var _ Fetcher = Schemes{}

// Default serves http, https and file locators.
func Default(h *HTTP) Schemes {
	return Schemes{
		"http":  h,
		"https": h,
		"file":  File{},
	}
}

func (s Schemes) Fetch(ctx context.Context, locator string) ([]byte, error) {
	scheme, _, ok := strings.Cut(locator, "://")
	if !ok {
		return nil, fmt.Errorf("locator %q has no scheme", locator)
	}
	f, ok := s[strings.ToLower(scheme)]
	if !ok {
		return nil, fmt.Errorf("unsupported scheme %q in %s", scheme, locator)
	}
	return f.Fetch(ctx, locator)
}

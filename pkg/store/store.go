package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	dirPerm     = 0o755
	hashPrefix  = "sha256:"
	tempPattern = ".icalgate-*.tmp"

	// DefaultRoot is the fixture directory the library's test suite reads.
	DefaultRoot = "private-test-icals"
)

// Store is the fixture cache directory. It is a presence-checked side table
// keyed by file name: nothing is versioned or content-addressed, and the
// filesystem is the only index.
type Store interface {
	// Root returns the directory all segments are joined under.
	Root() string
	// Path returns the filesystem path for the given segments joined under
	// the store root. Does not create or verify the path.
	Path(segments ...string) string
	// Exists reports whether the path at the given segments exists.
	Exists(segments ...string) (bool, error)
	// FileExists is Exists for an entry that must be a regular file. Any
	// other kind of entry at segments is an error.
	FileExists(segments ...string) (bool, error)
	// EnsureDir creates the directory at segments (starting at store root),
	// including parents. An existing directory is not an error.
	EnsureDir(segments ...string) error
	// WriteFile atomically replaces the file at segments with data. The
	// content is staged in a temp file next to the target and renamed into
	// place, so readers never observe a partial file.
	WriteFile(data []byte, perm os.FileMode, segments ...string) error
	// WriteWith is WriteFile for content produced incrementally by write.
	// If write returns an error the previous file, if any, is left intact.
	WriteWith(perm os.FileMode, write func(io.Writer) error, segments ...string) error
	// ReadFile reads the file at segments.
	ReadFile(segments ...string) ([]byte, error)
	// List returns every regular file under the root as slash-separated
	// relative paths, sorted. Staged temp files are skipped.
	List() ([]string, error)
	// Digest returns "sha256:<hex>" over the file at segments.
	Digest(segments ...string) (string, error)
}

func New(root string) Store {
	return &store{root: root}
}

type store struct {
	root string
}

var _ Store = &store{}

func (s *store) Root() string {
	return s.root
}

func (s *store) Path(segments ...string) string {
	return filepath.Join(append([]string{s.root}, segments...)...)
}

func (s *store) Exists(segments ...string) (bool, error) {
	_, err := os.Stat(s.Path(segments...))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *store) FileExists(segments ...string) (bool, error) {
	p := s.Path(segments...)
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !info.Mode().IsRegular() {
		return false, fmt.Errorf("%s exists but is not a regular file", p)
	}
	return true, nil
}

func (s *store) EnsureDir(segments ...string) error {
	dir := s.Path(segments...)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}

func (s *store) WriteFile(data []byte, perm os.FileMode, segments ...string) error {
	return s.WriteWith(perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}, segments...)
}

func (s *store) WriteWith(perm os.FileMode, write func(io.Writer) error, segments ...string) error {
	target := s.Path(segments...)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return fmt.Errorf("staging %s: %w", target, err)
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", target, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting mode on %s: %w", target, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", target, err)
	}
	return nil
}

func (s *store) ReadFile(segments ...string) ([]byte, error) {
	return os.ReadFile(s.Path(segments...))
}

func (s *store) List() ([]string, error) {
	var files []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || isStaged(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func (s *store) Digest(segments ...string) (string, error) {
	f, err := os.Open(s.Path(segments...))
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hashPrefix + hex.EncodeToString(h.Sum(nil)), nil
}

func isStaged(name string) bool {
	return strings.HasPrefix(name, ".icalgate-") && strings.HasSuffix(name, ".tmp")
}

package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestPath(t *testing.T) {
	root := "/tmp/store-root"

	tests := map[string]struct {
		segments []string
		want     string
	}{
		"no segments": {
			segments: nil,
			want:     root,
		},
		"single segment": {
			segments: []string{"german-holidays.ics"},
			want:     filepath.Join(root, "german-holidays.ics"),
		},
		"multiple segments": {
			segments: []string{"foo", "bar", "baz.ics"},
			want:     filepath.Join(root, "foo", "bar", "baz.ics"),
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			s := New(root)
			got := s.Path(tc.segments...)
			if got != tc.want {
				t.Errorf("Path(%v) = %q, want %q", tc.segments, got, tc.want)
			}
		})
	}
}

func TestExists(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	existingDir := "existing-dir"
	os.MkdirAll(filepath.Join(root, existingDir), 0o755)

	existingFile := "existing.ics"
	os.WriteFile(filepath.Join(root, existingFile), []byte("BEGIN:VCALENDAR"), 0o644)

	tests := map[string]struct {
		segments []string
		want     bool
	}{
		"existing directory": {
			segments: []string{existingDir},
			want:     true,
		},
		"existing file": {
			segments: []string{existingFile},
			want:     true,
		},
		"non-existent path": {
			segments: []string{"does-not-exist.ics"},
			want:     false,
		},
		"nested non-existent path": {
			segments: []string{"a", "b", "c.ics"},
			want:     false,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := s.Exists(tc.segments...)
			if err != nil {
				t.Fatalf("Exists(%v) returned unexpected error: %v", tc.segments, err)
			}
			if got != tc.want {
				t.Errorf("Exists(%v) = %v, want %v", tc.segments, got, tc.want)
			}
		})
	}
}

func TestFileExists(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	os.MkdirAll(filepath.Join(root, "german-holidays.ics"), 0o755)
	os.WriteFile(filepath.Join(root, "american-history.ics"), []byte("BEGIN:VCALENDAR"), 0o644)

	tests := map[string]struct {
		segments []string
		want     bool
		wantErr  bool
	}{
		"regular file": {
			segments: []string{"american-history.ics"},
			want:     true,
		},
		"missing": {
			segments: []string{"generated.ics"},
			want:     false,
		},
		"directory in place of a file": {
			segments: []string{"german-holidays.ics"},
			wantErr:  true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := s.FileExists(tc.segments...)
			if (err != nil) != tc.wantErr {
				t.Fatalf("FileExists(%v) error = %v, wantErr = %v", tc.segments, err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("FileExists(%v) = %v, want %v", tc.segments, got, tc.want)
			}
		})
	}
}

func TestEnsureDir(t *testing.T) {
	tests := map[string]struct {
		segments []string
	}{
		"root only": {
			segments: nil,
		},
		"single level": {
			segments: []string{"alpha"},
		},
		"nested levels": {
			segments: []string{"alpha", "beta", "gamma"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			root := filepath.Join(t.TempDir(), "cache")
			s := New(root)

			if err := s.EnsureDir(tc.segments...); err != nil {
				t.Fatalf("EnsureDir() error: %v", err)
			}

			dir := filepath.Join(append([]string{root}, tc.segments...)...)
			info, err := os.Stat(dir)
			if err != nil {
				t.Fatalf("directory was not created: %v", err)
			}
			if !info.IsDir() {
				t.Error("path exists but is not a directory")
			}
		})
	}
}

func TestEnsureDirExistingLeavesContentsAlone(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	unrelated := filepath.Join(root, "notes.txt")
	os.WriteFile(unrelated, []byte("keep me"), 0o644)

	for i := 0; i < 2; i++ {
		if err := s.EnsureDir(); err != nil {
			t.Fatalf("EnsureDir() call %d error: %v", i+1, err)
		}
	}

	got, err := os.ReadFile(unrelated)
	if err != nil {
		t.Fatalf("reading unrelated file: %v", err)
	}
	if string(got) != "keep me" {
		t.Errorf("unrelated file = %q, want %q", got, "keep me")
	}
}

func TestEnsureDirOverFile(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "blocker"), []byte("x"), 0o644)

	s := New(filepath.Join(root, "blocker"))
	if err := s.EnsureDir(); err == nil {
		t.Fatal("expected error creating a directory over a file, got nil")
	}
}

func TestWriteFileReadFile(t *testing.T) {
	tests := map[string]struct {
		segments []string
		data     []byte
		perm     os.FileMode
	}{
		"simple file at root": {
			segments: []string{"generated.ics"},
			data:     []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"),
			perm:     0o644,
		},
		"nested file creates parents": {
			segments: []string{"sub", "dir", "data.ics"},
			data:     []byte{0x00, 0xFF, 0xAB},
			perm:     0o600,
		},
		"empty file": {
			segments: []string{"empty.ics"},
			data:     []byte{},
			perm:     0o644,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			s := New(root)

			if err := s.WriteFile(tc.data, tc.perm, tc.segments...); err != nil {
				t.Fatalf("WriteFile() error: %v", err)
			}

			got, err := s.ReadFile(tc.segments...)
			if err != nil {
				t.Fatalf("ReadFile() error: %v", err)
			}

			if string(got) != string(tc.data) {
				t.Errorf("ReadFile() = %q, want %q", got, tc.data)
			}

			info, err := os.Stat(s.Path(tc.segments...))
			if err != nil {
				t.Fatalf("Stat() error: %v", err)
			}
			if info.Mode().Perm() != tc.perm {
				t.Errorf("mode = %v, want %v", info.Mode().Perm(), tc.perm)
			}
		})
	}
}

func TestWriteFileOverwrites(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	for _, content := range []string{"first run", "second run"} {
		if err := s.WriteFile([]byte(content), 0o644, "generated.ics"); err != nil {
			t.Fatalf("WriteFile(%q) error: %v", content, err)
		}
	}

	got, err := s.ReadFile("generated.ics")
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(got) != "second run" {
		t.Errorf("ReadFile() = %q, want %q", got, "second run")
	}

	files, err := s.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if !reflect.DeepEqual(files, []string{"generated.ics"}) {
		t.Errorf("List() = %v, want only generated.ics (no staged leftovers)", files)
	}
}

func TestReadFileNotFound(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	_, err := s.ReadFile("nonexistent.ics")
	if err == nil {
		t.Fatal("expected error reading nonexistent file, got nil")
	}
}

func TestList(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	os.MkdirAll(filepath.Join(root, "nested"), 0o755)
	os.WriteFile(filepath.Join(root, "b.ics"), []byte("b"), 0o644)
	os.WriteFile(filepath.Join(root, "a.ics"), []byte("a"), 0o644)
	os.WriteFile(filepath.Join(root, "nested", "c.ics"), []byte("c"), 0o644)
	os.WriteFile(filepath.Join(root, ".icalgate-123.tmp"), []byte("partial"), 0o644)

	got, err := s.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}

	want := []string{"a.ics", "b.ics", "nested/c.ics"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestDigest(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	content := []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")
	os.WriteFile(filepath.Join(root, "cal.ics"), content, 0o644)

	sum := sha256.Sum256(content)
	want := hashPrefix + hex.EncodeToString(sum[:])

	got, err := s.Digest("cal.ics")
	if err != nil {
		t.Fatalf("Digest() error: %v", err)
	}
	if got != want {
		t.Errorf("Digest() = %q, want %q", got, want)
	}

	if _, err := s.Digest("missing.ics"); err == nil {
		t.Error("expected error digesting missing file, got nil")
	}
}

func TestWriteWithErrorKeepsPrevious(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	if err := s.WriteFile([]byte("previous"), 0o644, "generated.ics"); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	boom := errors.New("generator crashed")
	err := s.WriteWith(0o644, func(w io.Writer) error {
		w.Write([]byte("BEGIN:VCAL"))
		return boom
	}, "generated.ics")
	if !errors.Is(err, boom) {
		t.Fatalf("WriteWith() error = %v, want %v", err, boom)
	}

	got, _ := s.ReadFile("generated.ics")
	if string(got) != "previous" {
		t.Errorf("file = %q, want previous content", got)
	}
	files, _ := s.List()
	if !reflect.DeepEqual(files, []string{"generated.ics"}) {
		t.Errorf("List() = %v, want no staged leftovers", files)
	}
}

// Package synth produces the synthetic calendar fixture. It is regenerated on
// every run and never treated as cached: each run overwrites the previous
// document, so the test gate always sees fresh fuzz input.
package synth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"

	"github.com/icalgate/icalgate/pkg/store"
	"go.uber.org/zap"
)

const (
	// DefaultPath is the fixed file name of the synthetic fixture.
	DefaultPath = "generated.ics"

	// SeedEnv carries the seed to external generators that read it from the
	// environment instead of a flag.
	SeedEnv = "ICALGATE_SEED"

	fixtureFilePerms = 0o644
)

// Generator writes one synthetic calendar document to path inside st,
// replacing any previous content.
type Generator interface {
	Generate(ctx context.Context, st store.Store, path string) error
}

// GeneratorError reports a generator that failed or produced nothing.
type GeneratorError struct {
	Cause error
}

func (e *GeneratorError) Error() string {
	return fmt.Sprintf("generating synthetic fixture: %v", e.Cause)
}

func (e *GeneratorError) Unwrap() error {
	return e.Cause
}

// Command runs an external generator and stores its standard output
// verbatim. With a seed set, SeedEnv is exported and "--seed <n>" is appended
// to Argv after a "--" separator, added unless Argv already has one, so
// wrappers such as "cargo run" forward it to the generator.
type Command struct {
	Argv []string
	Dir  string
	Seed *uint64
	Log  *zap.Logger
}

var _ Generator = &Command{}

func (c *Command) Generate(ctx context.Context, st store.Store, path string) error {
	if len(c.Argv) == 0 {
		return &GeneratorError{Cause: errors.New("no generator command configured")}
	}

	argv := c.Argv
	var env []string
	if c.Seed != nil {
		seed := strconv.FormatUint(*c.Seed, 10)
		argv = seedArgs(argv, seed)
		env = append(os.Environ(), SeedEnv+"="+seed)
	}

	log := logger(c.Log).With(zap.String("generator", strings.Join(argv, " ")))
	log.Info("generating synthetic fixture")

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = env

	out, err := cmd.Output()
	if err != nil {
		return &GeneratorError{Cause: execError(err)}
	}
	if len(out) == 0 {
		return &GeneratorError{Cause: errors.New("generator produced no output")}
	}

	if err := st.WriteFile(out, fixtureFilePerms, splitPath(path)...); err != nil {
		return fmt.Errorf("writing synthetic fixture: %w", err)
	}

	log.Info("synthetic fixture written", zap.String("path", st.Path(splitPath(path)...)), zap.Int("bytes", len(out)))
	return nil
}

// Builtin generates the document in process with Random. Without a seed a
// fresh one is drawn; it is always logged so a failing document can be
// reproduced with "icalgate generate --seed".
type Builtin struct {
	Seed *uint64
	// Shape defaults to DefaultShape.
	Shape *Shape
	Log   *zap.Logger
}

var _ Generator = &Builtin{}

func (b *Builtin) Generate(ctx context.Context, st store.Store, path string) error {
	seed := rand.Uint64()
	if b.Seed != nil {
		seed = *b.Seed
	}

	shape := DefaultShape()
	if b.Shape != nil {
		shape = *b.Shape
	}

	log := logger(b.Log).With(zap.Uint64("seed", seed))
	log.Info("generating synthetic fixture", zap.String("generator", "builtin"))

	var size int64
	err := st.WriteWith(fixtureFilePerms, func(w io.Writer) error {
		n, err := NewRandom(seed, shape).WriteTo(&ctxWriter{ctx: ctx, w: w})
		size = n
		return err
	}, splitPath(path)...)
	if err != nil {
		return &GeneratorError{Cause: err}
	}

	log.Info("synthetic fixture written", zap.String("path", st.Path(splitPath(path)...)), zap.Int64("bytes", size))
	return nil
}

// ctxWriter fails every write once ctx is done, which ends a long
// generation at the next buffer flush.
type ctxWriter struct {
	ctx context.Context
	w   io.Writer
}

func (c *ctxWriter) Write(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.w.Write(p)
}

func seedArgs(argv []string, seed string) []string {
	out := append([]string{}, argv...)
	if !slices.Contains(argv[1:], "--") {
		out = append(out, "--")
	}
	return append(out, "--seed", seed)
}

func splitPath(p string) []string {
	return strings.Split(p, "/")
}

func logger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// execError enriches an exec error with the command's stderr, if captured.
func execError(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
	}
	return err
}

package gate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Command runs an external program as a check. Its combined stdout and
// stderr is streamed to Output as it is produced and kept verbatim as the
// result's diagnostic.
type Command struct {
	Argv []string
	Dir  string
	// Env is appended to the harness environment.
	Env    []string
	Output io.Writer
}

var _ Check = &Command{}

func (c *Command) Invoke(ctx context.Context) (Result, error) {
	if len(c.Argv) == 0 {
		return Result{}, errors.New("empty command")
	}

	var diag bytes.Buffer
	w := io.Writer(&diag)
	if c.Output != nil {
		w = io.MultiWriter(c.Output, &diag)
	}

	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdout = w
	cmd.Stderr = w

	err := cmd.Run()
	res := Result{Output: diag.String()}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitStatus = exitErr.ExitCode()
		return res, nil
	}
	if err != nil {
		res.ExitStatus = -1
		return res, fmt.Errorf("running %s: %w", c.Argv[0], err)
	}
	return res, nil
}

package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotx/internal/shared"
	"golang.org/x/sync/errgroup"
)

const maxLineSize = 1024 * 1024

// LineFunc receives each stdout line before it is captured.
type LineFunc func(line string)

// Command is a process to run.
type Command struct {
	Path   string
	Args   []string
	Env    map[string]string // overlaid on the inherited environment
	Dir    string
	Strict bool // report non-zero exits even when stderr is blank
}

// Argv returns path followed by args.
func (c Command) Argv() []string {
	return append([]string{c.Path}, c.Args...)
}

// Environ returns the inherited environment with Env overlaid on it.
func (c Command) Environ() []string {
	return mergeEnv(os.Environ(), c.Env)
}

// Result is the outcome of a finished process.
type Result struct {
	Command  []string
	ExitCode int
	Signaled bool
	Stdout   string
	Stderr   string
	Elapsed  time.Duration
}

// Runner starts processes and tracks them in a [Registry].
type Runner struct {
	registry *Registry
	logger   *log.Logger
}

// NewRunner creates a runner that registers every process in registry.
func NewRunner(registry *Registry, logger *log.Logger) *Runner {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Runner{registry: registry, logger: shared.WithLogger(logger, "component", "runner")}
}

// Registry returns the registry processes are tracked in.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// Run starts c under id, drains both output streams concurrently and waits for exit.
//
// An empty id gets a generated one. The id is deregistered once the process exits.
// The returned Result is non-nil whenever the process started, including when an error is returned.
func (r *Runner) Run(ctx context.Context, id string, c Command, onLine LineFunc) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrCanceled, err)
	}
	if id == "" {
		id = shared.GenerateID()
	}

	h := newProcHandle()
	if err := r.registry.Register(id, h); err != nil {
		return nil, err
	}
	defer r.registry.Remove(id, h)
	defer h.exited()

	cmd := exec.Command(c.Path, c.Args...)
	cmd.Env = c.Environ()
	cmd.Dir = c.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %w", shared.ErrProcessStart, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr pipe: %w", shared.ErrProcessStart, err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrProcessStart, err)
	}
	h.attach(cmd.Process)
	r.logger.Debug("process started", "id", id, "pid", cmd.Process.Pid, "cmd", c.Path)

	var outBuf, errBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error { return drain(stdout, &outBuf, onLine) })
	g.Go(func() error { return drain(stderr, &errBuf, nil) })
	drainErr := g.Wait()

	waitErr := cmd.Wait()
	res := &Result{
		Command: c.Argv(),
		Stdout:  outBuf.String(),
		Stderr:  errBuf.String(),
		Elapsed: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
		res.Signaled = res.ExitCode < 0
	}

	if drainErr != nil {
		r.logger.Warn("output drain failed", "id", id, "err", drainErr)
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return res, fmt.Errorf("%w: %w", shared.ErrProcessExecution, waitErr)
	}

	r.logger.Debug("process exited", "id", id, "code", res.ExitCode, "signaled", res.Signaled, "elapsed", res.Elapsed)
	return res, checkExit(res, c.Strict)
}

// drain copies r into buf line by line, calling onLine for each line first.
//
// When the scanner gives up (e.g. an oversized line) the rest of the stream is still consumed so the
// child never blocks on a full pipe.
func drain(r io.Reader, buf *bytes.Buffer, onLine LineFunc) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	sc.Split(scanLines)
	for sc.Scan() {
		line := sc.Text()
		if onLine != nil {
			onLine(line)
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		_, _ = io.Copy(io.Discard, r)
		return err
	}
	return nil
}

// scanLines splits on "\n", "\r\n" and bare "\r", which progress bars use to redraw in place.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if !atEOF {
				// need one more byte to tell "\r" from "\r\n"
				return 0, nil, nil
			}
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// mergeEnv overlays values on base ("KEY=value" entries). Overlay keys replace base keys.
func mergeEnv(base []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return base
	}
	env := make([]string, 0, len(base)+len(overlay))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := overlay[key]; ok {
			continue
		}
		env = append(env, kv)
	}
	keys := make([]string, 0, len(overlay))
	for k := range overlay {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overlay[k])
	}
	return env
}

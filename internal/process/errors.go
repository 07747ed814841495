package process

import (
	"fmt"
	"strings"

	"github.com/desertthunder/spotx/internal/shared"
)

// ExecutionError is returned for a process that exited unsuccessfully.
type ExecutionError struct {
	Command  []string
	ExitCode int
	Signaled bool // terminated by a signal (including Registry.Destroy)
	Stdout   string
	Stderr   string
}

// Message is stderr, or stdout when stderr is blank.
func (e *ExecutionError) Message() string {
	if strings.TrimSpace(e.Stderr) != "" {
		return e.Stderr
	}
	return e.Stdout
}

func (e *ExecutionError) Error() string {
	msg := strings.TrimSpace(e.Message())
	if e.Signaled {
		if msg == "" {
			return "process terminated by signal"
		}
		return fmt.Sprintf("process terminated by signal: %s", msg)
	}
	if msg == "" {
		return fmt.Sprintf("process exited with code %d", e.ExitCode)
	}
	return msg
}

func (e *ExecutionError) Unwrap() error {
	return shared.ErrProcessExecution
}

// checkExit applies the exit policy: success on 0; a positive exit code with blank stderr is also
// success unless strict is set; anything else, including signal termination, is an [ExecutionError].
func checkExit(res *Result, strict bool) error {
	if res.Signaled {
		return res.executionError()
	}
	if res.ExitCode == 0 {
		return nil
	}
	if !strict && strings.TrimSpace(res.Stderr) == "" {
		return nil
	}
	return res.executionError()
}

func (r *Result) executionError() *ExecutionError {
	return &ExecutionError{
		Command:  r.Command,
		ExitCode: r.ExitCode,
		Signaled: r.Signaled,
		Stdout:   r.Stdout,
		Stderr:   r.Stderr,
	}
}

package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Process errors
	ErrDuplicateProcess = fmt.Errorf("process ID already exists")
	ErrProcessExecution = fmt.Errorf("process execution failed")
	ErrProcessStart     = fmt.Errorf("failed to start process")
	ErrTimeout          = fmt.Errorf("operation timed out")
	ErrCanceled         = fmt.Errorf("operation canceled")

	// Metadata errors
	ErrDecode        = fmt.Errorf("failed to decode metadata")
	ErrEmptyMetadata = fmt.Errorf("spotdl returned empty metadata")

	// Orchestration errors
	ErrDownloaderBusy = fmt.Errorf("a task is already running")
	ErrTaskNotFound   = fmt.Errorf("task not found")
	ErrClosed         = fmt.Errorf("downloader closed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrUnsupportedURL  = fmt.Errorf("unsupported URL")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)

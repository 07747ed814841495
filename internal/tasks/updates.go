package tasks

import (
	"fmt"
	"time"
)

// ProgressUpdate represents a progress event during a batch operation.
//
// Used to send real-time updates to the CLI or server layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	SubmitDownloads Phase = iota
	DownloadItems
	WriteManifest
)

func (p Phase) String() string {
	switch p {
	case SubmitDownloads:
		return "submit_downloads"
	case DownloadItems:
		return "download_items"
	case WriteManifest:
		return "write_manifest"
	default:
		return ""
	}
}

func submittingUpdate(step, total int, url string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SubmitDownloads,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Queued: %s", step, total, url),
	}
}

func rejectedUpdate(step, total int, url string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SubmitDownloads,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, url, err),
	}
}

func itemCompletedUpdate(step, total int, res BatchItemResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadItems,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%s)", step, total, res.Name, res.Elapsed.Round(time.Second)),
		Data:    res,
	}
}

func itemFailedUpdate(step, total int, res BatchItemResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadItems,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.Name, res.Error),
		Data:    res,
	}
}

func manifestUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteManifest,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Manifest written to %s", path),
	}
}

// sendProgress sends update without blocking; updates are dropped when nobody is reading.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

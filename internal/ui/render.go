package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/desertthunder/spotx/internal/shared"
	"github.com/desertthunder/spotx/internal/tasks"
)

const barWidth = 20

// ProgressBar draws p (0..1) as a fixed-width bar followed by the percentage.
func ProgressBar(p float64) string {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	filled := int(p * barWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	return fmt.Sprintf("%s %4s", bar, shared.FormatPercent(p))
}

// StateLabel styles the orchestrator state name.
func StateLabel(s tasks.State) string {
	if tasks.IsIdle(s) {
		return styles.Help("idle")
	}
	return styles.Warn(s.String())
}

// TaskStateLabel styles a background task state.
func TaskStateLabel(s tasks.TaskState) string {
	switch s.(type) {
	case tasks.Completed:
		return styles.OK("completed")
	case tasks.Failed:
		return styles.Err("failed")
	case tasks.Canceled:
		return styles.Help("canceled")
	default:
		return styles.Warn("running")
	}
}

// RenderStatus renders the foreground operation: state, current item and the last error.
func RenderStatus(st tasks.Status) string {
	var b strings.Builder
	b.WriteString(styles.Title("spotx") + "\n")
	fmt.Fprintf(&b, "State:     %s\n", StateLabel(st.State))

	if cur := st.Current; cur.URL != "" || cur.Name != "" {
		name := cur.Name
		if cur.Artist != "" {
			name = cur.Artist + " - " + cur.Name
		}
		if name == "" || name == " - " {
			name = cur.URL
		}
		fmt.Fprintf(&b, "Current:   %s\n", name)
		if cur.Duration > 0 {
			fmt.Fprintf(&b, "Duration:  %s\n", shared.FormatDuration(cur.Duration))
		}
		fmt.Fprintf(&b, "Progress:  %s\n", ProgressBar(cur.Progress))
		if cur.ProgressText != "" {
			fmt.Fprintf(&b, "           %s\n", styles.Help(cur.ProgressText))
		}
	}
	if n := len(st.Songs); n > 1 {
		fmt.Fprintf(&b, "Songs:     %d\n", n)
	}
	fmt.Fprintf(&b, "Processes: %d background, %d quick\n", st.Processes, st.QuickDownloads)
	if st.Error.Occurred() {
		fmt.Fprintf(&b, "Error:     %s\n", styles.Err(string(st.Error.Code)))
		b.WriteString(indent(st.Error.Report, "           ") + "\n")
	}
	return b.String()
}

// RenderTasks renders background tasks one per line.
func RenderTasks(ts []tasks.Task) string {
	if len(ts) == 0 {
		return styles.Help("No background tasks") + "\n"
	}
	var b strings.Builder
	for _, t := range ts {
		fmt.Fprintf(&b, "%s %s %s\n", TaskStateLabel(t.State), t.Name, styles.Help(t.Key))
		switch t.State.(type) {
		case tasks.Running:
			fmt.Fprintf(&b, "  %s %s\n", ProgressBar(t.Progress()), t.CurrentLine)
		case tasks.Failed:
			b.WriteString(indent(t.Report(), "  ") + "\n")
		}
	}
	return b.String()
}

// Watch writes a line to w for every state or progress change until job ends or ctx is done.
func Watch(ctx context.Context, w io.Writer, d *tasks.Downloader, job *tasks.Job) error {
	updates, stop := d.Subscribe()
	defer stop()

	last := ""
	emit := func(st tasks.Status) {
		line := fmt.Sprintf("%s %s", StateLabel(st.State), ProgressBar(st.Current.Progress))
		if st.Current.Name != "" {
			line += " " + st.Current.Name
		}
		if line != last {
			fmt.Fprintln(w, line)
			last = line
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-job.Done():
			emit(d.Status())
			return job.Err()
		case st, ok := <-updates:
			if !ok {
				<-job.Done()
				return job.Err()
			}
			emit(st)
		}
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

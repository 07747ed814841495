package tasks

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

var totalProgressRe = regexp.MustCompile(`(\d+)%`)

const ellipsis = "…"

// MakeKey joins token and url as "<token>_<url>".
func MakeKey(url, token string) string {
	return token + "_" + url
}

// TaskKey is the store key of the background task for url: the url keyed by its own reverse.
func TaskKey(url string) string {
	return MakeKey(url, reverse(url))
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// Store tracks background download tasks keyed by [TaskKey].
//
// Terminal tasks ([Completed], [Canceled], [Failed]) are never modified again; only
// [Store.OnTaskStarted] may replace them. Operations on unknown keys are no-ops.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]Task
	now   func() time.Time
	pubMu sync.Mutex
	bus   *broadcaster[[]Task]
}

// NewStore creates an empty task store.
func NewStore() *Store {
	return &Store{
		tasks: make(map[string]Task),
		now:   time.Now,
		bus:   newBroadcaster[[]Task](),
	}
}

// OnTaskStarted records a new running task for url, replacing any previous record under the same key.
func (s *Store) OnTaskStarted(url, name string) Task {
	now := s.now()
	task := Task{
		Key:       TaskKey(url),
		URL:       url,
		Name:      name,
		State:     Running{Progress: 0},
		StartedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.tasks[task.Key] = task
	s.mu.Unlock()

	s.changed()
	return task
}

// UpdateTaskOutput appends line to the task log and updates its progress.
//
// Lines equal to the current line, lines containing an ellipsis and lines already present in the
// log are ignored. In playlist mode only lines mentioning "Total" move progress (parsed from "N%");
// otherwise progress is the caller's value, and it never moves backwards.
func (s *Store) UpdateTaskOutput(url, line string, progress float64, isPlaylist bool) bool {
	key := TaskKey(url)

	s.mu.Lock()
	task, ok := s.tasks[key]
	if !ok {
		s.mu.Unlock()
		return false
	}
	running, ok := task.State.(Running)
	if !ok || task.CurrentLine == line || strings.Contains(line, ellipsis) || strings.Contains(task.Output, line) {
		s.mu.Unlock()
		return false
	}

	if isPlaylist {
		if strings.Contains(line, "Total") {
			running.Progress = totalProgress(line, running.Progress)
		}
	} else if progress > running.Progress {
		running.Progress = progress
	}

	task.Output += line + "\n"
	task.CurrentLine = line
	task.State = running
	task.UpdatedAt = s.now()
	s.tasks[key] = task
	s.mu.Unlock()

	s.changed()
	return true
}

// totalProgress parses "N%" from a playlist "Total" line; prev is kept when no percentage is present.
func totalProgress(line string, prev float64) float64 {
	m := totalProgressRe.FindStringSubmatch(line)
	if m == nil {
		return prev
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return prev
	}
	return float64(n) / 100
}

// OnTaskEnded marks the task for url completed. A non-empty response replaces the accumulated output.
func (s *Store) OnTaskEnded(url, response string) bool {
	return s.finish(TaskKey(url), func(t *Task) {
		t.State = Completed{}
		if response != "" {
			t.Output = response
		}
	})
}

// OnTaskError marks the task for url failed with report.
func (s *Store) OnTaskError(url, report string) bool {
	return s.finish(TaskKey(url), func(t *Task) {
		t.State = Failed{Report: report}
		t.CurrentLine = report
		t.Output += "\n" + report
	})
}

// OnProcessCanceled marks the task stored under key canceled.
func (s *Store) OnProcessCanceled(key string) bool {
	return s.finish(key, func(t *Task) {
		t.State = Canceled{}
	})
}

func (s *Store) finish(key string, apply func(*Task)) bool {
	s.mu.Lock()
	task, ok := s.tasks[key]
	if !ok || task.State == nil || task.State.Terminal() {
		s.mu.Unlock()
		return false
	}
	apply(&task)
	task.UpdatedAt = s.now()
	s.tasks[key] = task
	s.mu.Unlock()

	s.changed()
	return true
}

// Get returns a copy of the task stored under key.
func (s *Store) Get(key string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[key]
	return t, ok
}

// Len returns the number of tracked tasks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Snapshot returns copies of every task, oldest first.
func (s *Store) Snapshot() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() []Task {
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].Key < out[j].Key
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Remove deletes the task stored under key.
func (s *Store) Remove(key string) bool {
	s.mu.Lock()
	_, ok := s.tasks[key]
	delete(s.tasks, key)
	s.mu.Unlock()
	if ok {
		s.changed()
	}
	return ok
}

// ClearFinished drops every terminal task and returns how many were removed.
func (s *Store) ClearFinished() int {
	s.mu.Lock()
	n := 0
	for k, t := range s.tasks {
		if t.State != nil && t.State.Terminal() {
			delete(s.tasks, k)
			n++
		}
	}
	s.mu.Unlock()
	if n > 0 {
		s.changed()
	}
	return n
}

// Subscribe returns a channel receiving a fresh snapshot after every change, and a function to stop.
func (s *Store) Subscribe() (<-chan []Task, func()) {
	return s.bus.subscribe()
}

// changed publishes under pubMu so the last snapshot delivered is never older than the store.
func (s *Store) changed() {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.bus.publish(s.Snapshot())
}

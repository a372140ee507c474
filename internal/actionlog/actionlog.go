// Package actionlog records action execution outcomes as newline-
// delimited JSON, one line per completed action, adapted from the
// teacher's session-log recorder (pkg/logger) to the shape an action
// outcome needs rather than a chat session.
package actionlog

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/acfabro/git-actions/pkg/utils"
)

// Outcome is one action's recorded result — the only artifact the
// dispatcher's background action tasks leave behind once the HTTP
// response has already been sent (spec.md §4.7).
type Outcome struct {
	Timestamp   time.Time `json:"timestamp"`
	DeliveryID  string    `json:"delivery_id,omitempty"`
	WebhookName string    `json:"webhook_name"`
	RuleName    string    `json:"rule_name"`
	ActionKind  string    `json:"action_kind"`
	Success     bool      `json:"success"`
	DurationMS  int64     `json:"duration_ms"`
	StatusCode  int       `json:"status_code,omitempty"`
	ExitCode    *int      `json:"exit_code,omitempty"`
	Output      string    `json:"output,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Recorder appends Outcomes to a single log file. It is safe for
// concurrent use by the one-goroutine-per-matched-rule action tasks
// the dispatcher spawns.
type Recorder struct {
	path string
	mu   sync.Mutex
}

// NewRecorder opens (creating if absent) the log file at path,
// ensuring its parent directory exists via pkg/utils's EnsureDir.
func NewRecorder(path string) (*Recorder, error) {
	if err := utils.EnsureDir(dirOf(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("actionlog: open %s: %w", path, err)
	}
	utils.SafeClose(f, path)
	return &Recorder{path: path}, nil
}

// Record appends one outcome as a JSON line. A failure to write the
// log is itself only logged by the caller — it must never fail or
// retry the action it describes.
func (r *Recorder) Record(o Outcome) error {
	line, err := utils.MarshalJSONString(o)
	if err != nil {
		return fmt.Errorf("actionlog: marshal outcome: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("actionlog: open %s: %w", r.path, err)
	}
	defer utils.SafeClose(f, r.path)

	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("actionlog: write %s: %w", r.path, err)
	}
	return nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

package runlog

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"sheetpress-cli/internal/model"
)

// Log is the append-only per-row outcome record consumed by the external
// status surface. Entries are pipe-delimited lines:
//
//	timestamp|action|status|detail
//
// The file is capped at the most recent maxEntries lines; rotation trims
// oldest-first.
type Log struct {
	mu         sync.Mutex
	path       string
	maxEntries int
}

const timeLayout = "2006-01-02T15:04:05"

func New(path string, maxEntries int) *Log {
	if maxEntries <= 0 {
		maxEntries = 500
	}
	return &Log{path: path, maxEntries: maxEntries}
}

// Append writes one outcome entry, trimming the file when it exceeds the cap.
func (l *Log) Append(outcome model.RunOutcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := outcome.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	line := fmt.Sprintf("%s|%s|%s|%s\n",
		ts.Format(timeLayout),
		sanitizeField(outcome.Action),
		sanitizeField(string(outcome.Status)),
		sanitizeField(outcome.Detail))

	lines, err := l.readLines()
	if err != nil {
		return err
	}

	lines = append(lines, strings.TrimSuffix(line, "\n"))
	if len(lines) > l.maxEntries {
		lines = lines[len(lines)-l.maxEntries:]
	}

	return l.writeLines(lines)
}

// Record appends an entry stamped with the current time. Write failures are
// returned to the caller; most call sites treat them as best-effort.
func (l *Log) Record(action string, status model.OutcomeStatus, detail string) error {
	return l.Append(model.RunOutcome{
		Timestamp: time.Now(),
		Action:    action,
		Status:    status,
		Detail:    detail,
	})
}

// Tail returns the most recent n entries, oldest first. The status surface
// reads 10 for the dashboard and 50 for the log view.
func (l *Log) Tail(n int) ([]model.RunOutcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lines, err := l.readLines()
	if err != nil {
		return nil, err
	}

	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	outcomes := make([]model.RunOutcome, 0, len(lines))
	for _, line := range lines {
		outcome, ok := parseLine(line)
		if !ok {
			continue
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

func (l *Log) readLines() ([]string, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading run log: %w", err)
	}

	raw := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	var lines []string
	for _, line := range raw {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func (l *Log) writeLines(lines []string) error {
	content := strings.Join(lines, "\n")
	if content != "" {
		content += "\n"
	}
	if err := os.WriteFile(l.path, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing run log: %w", err)
	}
	return nil
}

func parseLine(line string) (model.RunOutcome, bool) {
	parts := strings.SplitN(line, "|", 4)
	if len(parts) != 4 {
		return model.RunOutcome{}, false
	}

	ts, err := time.Parse(timeLayout, parts[0])
	if err != nil {
		return model.RunOutcome{}, false
	}

	return model.RunOutcome{
		Timestamp: ts,
		Action:    parts[1],
		Status:    model.OutcomeStatus(parts[2]),
		Detail:    parts[3],
	}, true
}

// sanitizeField keeps the line format parseable: the detail text is free-form
// and may contain pipes or newlines from remote error messages.
func sanitizeField(s string) string {
	s = strings.ReplaceAll(s, "|", "/")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

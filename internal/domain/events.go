package domain

import (
	"fmt"
	"sync"
)

// EventLog accumulates human-readable progress lines for one scrape run,
// included in success/failure notifications.
type EventLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *EventLog) Recordf(format string, args ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *EventLog) Lines() []string {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window is the time-of-day interval during which a crawl may start.
// Inclusive on both ends, minute resolution. Start after End spans midnight
// (22:00-06:00).
type Window struct {
	startMin int // minutes from midnight
	endMin   int
}

func ParseWindow(start, end string) (Window, error) {
	s, err := parseHHMM(start)
	if err != nil {
		return Window{}, fmt.Errorf("window start: %w", err)
	}
	e, err := parseHHMM(end)
	if err != nil {
		return Window{}, fmt.Errorf("window end: %w", err)
	}
	return Window{startMin: s, endMin: e}, nil
}

func parseHHMM(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("%q is not HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%q is not HH:MM", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%q is not HH:MM", s)
	}
	return h*60 + m, nil
}

func (w Window) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	if w.startMin <= w.endMin {
		return w.startMin <= m && m <= w.endMin
	}
	return m >= w.startMin || m <= w.endMin
}

// NextOpen returns t itself when t is inside the window, otherwise the next
// moment the window opens.
func (w Window) NextOpen(t time.Time) time.Time {
	if w.Contains(t) {
		return t
	}
	open := time.Date(t.Year(), t.Month(), t.Day(), w.startMin/60, w.startMin%60, 0, 0, t.Location())
	if !open.After(t) {
		open = open.AddDate(0, 0, 1)
	}
	return open
}

func (w Window) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.startMin/60, w.startMin%60, w.endMin/60, w.endMin%60)
}

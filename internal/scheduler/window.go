package scheduler

import (
	"time"

	"jobsift/internal/config"
)

// Window is a daily active period in a fixed location. Start == End means
// always active; Start > End wraps past midnight.
type Window struct {
	Start    time.Duration
	End      time.Duration
	Location *time.Location
}

// WindowFromConfig parses the scheduler's active window.
func WindowFromConfig(cfg *config.Config) (Window, error) {
	start, end, loc, err := cfg.ActiveWindow()
	if err != nil {
		return Window{}, err
	}
	return Window{Start: start, End: end, Location: loc}, nil
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.Start == w.End {
		return true
	}
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	offset := time.Duration(local.Hour())*time.Hour + time.Duration(local.Minute())*time.Minute + time.Duration(local.Second())*time.Second
	if w.Start < w.End {
		return offset >= w.Start && offset < w.End
	}
	return offset >= w.Start || offset < w.End
}

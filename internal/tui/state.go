package tui

import "time"

type Snapshot struct {
	Timestamp        time.Time
	Courses          []CourseState
	PollerCount      int
	LastReconcile    time.Time
	LastReconcileErr string
}

type CourseState struct {
	ID         string
	Name       string
	Recipients int
	HasReading bool
	Capacity   int
	Actual     int
	Remaining  int
	LastCheck  time.Time
	LastChange time.Time
	LastError  string
	Alerts     int
}

// Label is a short seat status: waiting|error|override|full|open.
func (c CourseState) Label() string {
	switch {
	case !c.HasReading && c.LastError != "":
		return "error"
	case !c.HasReading:
		return "waiting"
	case c.Remaining < 0:
		return "override"
	case c.Remaining == 0:
		return "full"
	default:
		return "open"
	}
}

// Package seats tracks the seating numbers of one course between polls and
// turns changes into the text recipients receive.
package seats

import "fmt"

const (
	overrideText       = "There are no available seats and %d people have overrides."
	noSeatsText        = "There are no available seats in the course."
	availableText      = "There are %d seats available in the course."
	remainingDeltaText = "The number of available seats has %s by %d. "
)

// Reading is one extraction from a seat page.
type Reading struct {
	Capacity  int
	Actual    int
	Remaining int
}

// Value holds the current and previous readings of one field.
type Value struct {
	Current  int
	Previous int
}

func (v *Value) shift(next int) {
	v.Previous = v.Current
	v.Current = next
}

func (v Value) Delta() int {
	return v.Current - v.Previous
}

// Snapshot is owned by a single poller and is not safe for concurrent use.
type Snapshot struct {
	Capacity  Value
	Actual    Value
	Remaining Value
}

// Seed sets current and previous to the same reading so the first poll
// never produces a diff.
func (s *Snapshot) Seed(r Reading) {
	s.Capacity = Value{Current: r.Capacity, Previous: r.Capacity}
	s.Actual = Value{Current: r.Actual, Previous: r.Actual}
	s.Remaining = Value{Current: r.Remaining, Previous: r.Remaining}
}

// Update moves every current value to previous and stores the new reading.
func (s *Snapshot) Update(r Reading) {
	s.Capacity.shift(r.Capacity)
	s.Actual.shift(r.Actual)
	s.Remaining.shift(r.Remaining)
}

func (s *Snapshot) RemainingDelta() int {
	return s.Remaining.Delta()
}

// Current returns the latest reading.
func (s *Snapshot) Current() Reading {
	return Reading{
		Capacity:  s.Capacity.Current,
		Actual:    s.Actual.Current,
		Remaining: s.Remaining.Current,
	}
}

// DescribeRemaining reports the current remaining seats. A negative count
// means students were enrolled past capacity by instructor override.
func (s *Snapshot) DescribeRemaining() string {
	return DescribeRemaining(s.Remaining.Current)
}

// DescribeChange returns "" when the remaining seat count did not move.
func (s *Snapshot) DescribeChange() string {
	delta := s.RemainingDelta()
	if delta == 0 {
		return ""
	}
	direction := "increased"
	if delta < 0 {
		direction = "decreased"
		delta = -delta
	}
	return fmt.Sprintf(remainingDeltaText, direction, delta) + s.DescribeRemaining()
}

func DescribeRemaining(remaining int) string {
	switch {
	case remaining < 0:
		return fmt.Sprintf(overrideText, -remaining)
	case remaining == 0:
		return noSeatsText
	default:
		return fmt.Sprintf(availableText, remaining)
	}
}

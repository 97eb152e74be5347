// Package course describes a course section as entered by a user and maps it
// to the registrar page that lists its seating numbers.
package course

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

type Semester string

const (
	Spring Semester = "spr"
	Summer Semester = "sum"
	Fall   Semester = "fal"
	Winter Semester = "win"
)

// MaxNameLength bounds the display name used in alert subjects.
const MaxNameLength = 25

var semesterCodes = map[Semester]int{
	Spring: 20,
	Summer: 50,
	Fall:   10,
	Winter: 15,
}

var (
	ErrInvalidSemester = errors.New("invalid semester")
	ErrInvalidCRN      = errors.New("crn must be a positive number")
	ErrInvalidName     = errors.New("invalid course name")
	ErrInvalidYear     = errors.New("invalid year")
)

func ParseSemester(s string) (Semester, error) {
	sem := Semester(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := semesterCodes[sem]; !ok {
		return "", fmt.Errorf("%w %q (spr|sum|fal|win)", ErrInvalidSemester, s)
	}
	return sem, nil
}

// Course is a section identified by its registration number within a term.
type Course struct {
	CRN      int
	Name     string
	Semester Semester
	Year     int
}

func (c Course) Validate() error {
	if c.CRN <= 0 {
		return ErrInvalidCRN
	}
	name := strings.TrimSpace(c.Name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("%w: must be 1-%d characters", ErrInvalidName, MaxNameLength)
	}
	if _, ok := semesterCodes[c.Semester]; !ok {
		return fmt.Errorf("%w %q", ErrInvalidSemester, c.Semester)
	}
	if c.Year < 2000 || c.Year > 9998 {
		return fmt.Errorf("%w %d", ErrInvalidYear, c.Year)
	}
	return nil
}

// Term returns the registrar term code. Fall and winter terms belong to the
// following academic year.
func (c Course) Term() string {
	year := c.Year
	if c.Semester == Fall || c.Semester == Winter {
		year++
	}
	return fmt.Sprintf("%d%d", year, semesterCodes[c.Semester])
}

// URL fills the {term} and {crn} placeholders of base.
func (c Course) URL(base string) string {
	return strings.NewReplacer(
		"{term}", c.Term(),
		"{crn}", strconv.Itoa(c.CRN),
	).Replace(base)
}

func (c Course) String() string {
	return fmt.Sprintf("%s (%d), %s, %d", c.Name, c.CRN, c.Semester, c.Year)
}

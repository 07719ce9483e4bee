package roster

import (
	"fmt"
	"slices"
)

// Known availability values. Other non-empty values are accepted and passed
// through to the generator unchanged.
const (
	Available = "available"
	OnProject = "on_project"
)

// Employee is one roster entry. Records are immutable after Load.
type Employee struct {
	ID              int      `json:"id"`
	Name            string   `json:"name"`
	Skills          []string `json:"skills"`
	ExperienceYears int      `json:"experience_years"`
	Projects        []string `json:"projects"`
	Availability    string   `json:"availability"`
}

// Clone returns a copy of e that shares no slices with it. Empty lists stay
// non-nil so they still encode as [].
func (e Employee) Clone() Employee {
	e.Skills = slices.Clone(e.Skills)
	e.Projects = slices.Clone(e.Projects)
	return e
}

// CloneAll clones every record in employees.
func CloneAll(employees []Employee) []Employee {
	out := make([]Employee, len(employees))
	for i, e := range employees {
		out[i] = e.Clone()
	}
	return out
}

// LoadError is returned when the roster source is missing or malformed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("loading roster: %v", e.Err)
	}
	return fmt.Sprintf("loading roster %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// FormatError is returned by Format when a record cannot be rendered.
type FormatError struct {
	EmployeeID int
	Field      string
	Reason     string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("formatting employee %d: %s %s", e.EmployeeID, e.Field, e.Reason)
}

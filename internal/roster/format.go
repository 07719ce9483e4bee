package roster

import (
	"fmt"
	"strings"
)

// Format renders an employee as the single-line document used both for
// embedding and as generator context. The two uses must stay identical.
func Format(e Employee) (string, error) {
	switch {
	case strings.TrimSpace(e.Name) == "":
		return "", &FormatError{EmployeeID: e.ID, Field: "name", Reason: "is empty"}
	case strings.TrimSpace(e.Availability) == "":
		return "", &FormatError{EmployeeID: e.ID, Field: "availability", Reason: "is empty"}
	case e.ExperienceYears < 0:
		return "", &FormatError{EmployeeID: e.ID, Field: "experience_years", Reason: "is negative"}
	}

	return fmt.Sprintf(
		"Name: %s. Experience: %d years. Skills: %s. Past Projects: %s. Current Status: %s.",
		e.Name,
		e.ExperienceYears,
		strings.Join(e.Skills, ", "),
		strings.Join(e.Projects, ", "),
		e.Availability,
	), nil
}

// FormatAll formats every employee in order, stopping at the first failure.
func FormatAll(employees []Employee) ([]string, error) {
	docs := make([]string, len(employees))
	for i, e := range employees {
		doc, err := Format(e)
		if err != nil {
			return nil, err
		}
		docs[i] = doc
	}
	return docs, nil
}

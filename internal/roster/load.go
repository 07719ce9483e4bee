package roster

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// rawEmployee mirrors Employee with pointer fields so that a missing key can
// be told apart from a zero value.
type rawEmployee struct {
	ID              *int     `json:"id" validate:"required,gte=0"`
	Name            *string  `json:"name" validate:"required,min=1"`
	Skills          []string `json:"skills" validate:"required,dive,required"`
	ExperienceYears *int     `json:"experience_years" validate:"required,gte=0"`
	Projects        []string `json:"projects" validate:"required,dive,required"`
	Availability    *string  `json:"availability" validate:"required,min=1"`
}

type document struct {
	Employees []rawEmployee `json:"employees"`
}

// Load reads and validates the roster document at path.
func Load(path string) ([]Employee, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	employees, err := Decode(f)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
		}
		return nil, err
	}
	return employees, nil
}

// Decode parses a roster document with a top-level "employees" array.
// Every record must carry all fields with the right JSON types and ids must
// be unique. Order is preserved.
func Decode(r io.Reader) ([]Employee, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &LoadError{Err: fmt.Errorf("decoding json: %w", err)}
	}
	if doc.Employees == nil {
		return nil, &LoadError{Err: errors.New(`missing top-level "employees" array`)}
	}

	seen := make(map[int]int, len(doc.Employees))
	employees := make([]Employee, 0, len(doc.Employees))
	for i, raw := range doc.Employees {
		if err := validate.Struct(raw); err != nil {
			return nil, &LoadError{Err: fmt.Errorf("employee #%d: %s", i, describeValidation(err))}
		}
		if prev, ok := seen[*raw.ID]; ok {
			return nil, &LoadError{Err: fmt.Errorf("employee #%d: duplicate id %d (first seen at #%d)", i, *raw.ID, prev)}
		}
		seen[*raw.ID] = i

		employees = append(employees, Employee{
			ID:              *raw.ID,
			Name:            *raw.Name,
			Skills:          slices.Clone(raw.Skills),
			ExperienceYears: *raw.ExperienceYears,
			Projects:        slices.Clone(raw.Projects),
			Availability:    *raw.Availability,
		})
	}
	return employees, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must not be empty", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

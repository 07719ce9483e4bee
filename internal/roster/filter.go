package roster

import "strings"

// Filter narrows the roster by keyword. Zero-valued fields are ignored.
type Filter struct {
	// Skill matches a whole skill name, case-insensitively.
	Skill string
	// MinExperience, when set, keeps employees with at least that many years.
	MinExperience *int
}

// Apply returns the employees matching f, in their original order.
// Records are cloned; with no criteria set the whole input is copied.
func (f Filter) Apply(employees []Employee) []Employee {
	out := make([]Employee, 0, len(employees))
	for _, e := range employees {
		if f.Skill != "" && !HasSkill(e, f.Skill) {
			continue
		}
		if f.MinExperience != nil && e.ExperienceYears < *f.MinExperience {
			continue
		}
		out = append(out, e.Clone())
	}
	return out
}

// HasSkill reports whether e lists skill, ignoring case.
func HasSkill(e Employee, skill string) bool {
	for _, s := range e.Skills {
		if strings.EqualFold(s, skill) {
			return true
		}
	}
	return false
}

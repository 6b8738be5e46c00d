package person

import (
	"sort"
	"strings"
)

// Filter returns the persons matching term, case-insensitively, on name, occupation,
// meet channel or any tag. An empty term matches everything.
func Filter(persons []Person, term string) []Person {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return append([]Person(nil), persons...)
	}

	var out []Person
	for _, p := range persons {
		if matches(&p, term) {
			out = append(out, p)
		}
	}
	return out
}

func matches(p *Person, term string) bool {
	if strings.Contains(strings.ToLower(p.Name), term) ||
		strings.Contains(strings.ToLower(p.Occupation), term) ||
		strings.Contains(strings.ToLower(p.MeetChannel), term) {
		return true
	}
	for _, tag := range p.AllTags() {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

// SortByUpdated orders persons by UpdatedAt in place, newest first when desc is true.
// Ties fall back to ID so output is stable.
func SortByUpdated(persons []Person, desc bool) {
	sort.SliceStable(persons, func(i, j int) bool {
		a, b := persons[i], persons[j]
		if a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.ID < b.ID
		}
		if desc {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.UpdatedAt.Before(b.UpdatedAt)
	})
}

package workoutsvc

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/mkrupp/gymtracker/internal/domain"
)

// matcher compares exercise names ignoring case and width, so "ＢＥＮＣＨ"
// matches "bench" and "Straße" matches "STRASSE".
type matcher struct {
	fold  cases.Caser
	query string
}

// newMatcher is not safe for concurrent use; the Caser keeps state.
func newMatcher(query string) *matcher {
	m := &matcher{fold: cases.Fold()}
	m.query = m.normalize(query)

	return m
}

func (m *matcher) normalize(s string) string {
	s = norm.NFKC.String(strings.TrimSpace(s))

	return strings.Join(strings.Fields(m.fold.String(s)), " ")
}

func (m *matcher) match(name string) bool {
	if m.query == "" {
		return true
	}

	return strings.Contains(m.normalize(name), m.query)
}

func filterExercises(exercises []domain.Exercise, query string) []domain.Exercise {
	m := newMatcher(query)
	matched := make([]domain.Exercise, 0, len(exercises))

	for _, ex := range exercises {
		if m.match(ex.Name) {
			matched = append(matched, ex)
		}
	}

	return matched
}

// Package facematch decides which known person a detected face belongs to.
package facematch

import (
	"math"

	"github.com/kozaktomas/photo-library/internal/database"
	"github.com/kozaktomas/photo-library/internal/faces"
)

// Result is the outcome of resolving one face.
type Result struct {
	// Person is the matched person. Zero when New is true.
	Person int64
	// Distance to the matched reference, or to the nearest reference when
	// New is true. +Inf when nothing was known.
	Distance float64
	// New means no reference was within tolerance and a person must be minted.
	New bool
}

// Resolver picks a person for a face embedding.
type Resolver interface {
	Resolve(query faces.Embedding, known []database.KnownFace) Result
}

// Matcher is a nearest-neighbour threshold classifier over reference faces.
type Matcher struct {
	Tolerance float64
}

// NewMatcher creates a matcher with the given tolerance.
func NewMatcher(tolerance float64) *Matcher {
	return &Matcher{Tolerance: tolerance}
}

// Resolve scans known in order. A reference matches only when its distance
// is strictly below the tolerance and strictly below every earlier match, so
// ties keep the earliest reference.
func (m *Matcher) Resolve(query faces.Embedding, known []database.KnownFace) Result {
	best := m.Tolerance
	nearest := math.Inf(1)
	var person int64
	found := false

	for _, k := range known {
		d := query.Distance(k.Embedding)
		if d < nearest {
			nearest = d
		}
		if d < best {
			best = d
			person = k.Person
			found = true
		}
	}

	if !found {
		return Result{Distance: nearest, New: true}
	}
	return Result{Person: person, Distance: best}
}

package models

import "github.com/google/uuid"

// ContactPair is an unordered pair of users in canonical order: A sorts
// strictly before B by the canonical string form of the ids. Every insert
// and existence check on the contacts table goes through a ContactPair, so
// a single stored row serves both directions.
type ContactPair struct {
	A uuid.UUID
	B uuid.UUID
}

// CanonicalPair orders two user ids lexicographically. The result is the
// same whichever order the ids are given in.
func CanonicalPair(x, y uuid.UUID) ContactPair {
	if y.String() < x.String() {
		return ContactPair{A: y, B: x}
	}
	return ContactPair{A: x, B: y}
}

// Includes reports whether id is one side of the pair.
func (p ContactPair) Includes(id uuid.UUID) bool {
	return p.A == id || p.B == id
}

// Other returns the side of the pair that is not id.
func (p ContactPair) Other(id uuid.UUID) uuid.UUID {
	if p.A == id {
		return p.B
	}
	return p.A
}

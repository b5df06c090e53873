// Package access defines the visibility filter handed from the scope resolver
// to every read and write path.
//
// A Scope is either unrestricted or an explicit set of ids. The explicit set
// may be empty, which means nothing is visible. The zero Scope is an empty
// explicit set, so a forgotten initialisation never widens access.
package access

import (
	"sort"

	"github.com/google/uuid"
)

// Kind names the entity family a scope applies to.
type Kind string

const (
	KindProfessional Kind = "professional"
	KindPatient      Kind = "patient"
	KindSecretary    Kind = "secretary"
)

type Scope struct {
	unrestricted bool
	ids          map[uuid.UUID]struct{}
}

// Unrestricted returns the scope that admits every id.
func Unrestricted() Scope {
	return Scope{unrestricted: true}
}

// Only returns a scope admitting exactly the given ids. Nil ids are skipped.
func Only(ids ...uuid.UUID) Scope {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		set[id] = struct{}{}
	}
	return Scope{ids: set}
}

func (s Scope) IsUnrestricted() bool {
	return s.unrestricted
}

// IsEmpty reports whether the scope admits nothing.
func (s Scope) IsEmpty() bool {
	return !s.unrestricted && len(s.ids) == 0
}

func (s Scope) Allows(id uuid.UUID) bool {
	if s.unrestricted {
		return true
	}
	_, ok := s.ids[id]
	return ok
}

// IDs returns the explicit ids in a stable order. It returns nil for an
// unrestricted scope; callers must check IsUnrestricted first.
func (s Scope) IDs() []uuid.UUID {
	if s.unrestricted {
		return nil
	}
	out := make([]uuid.UUID, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (s Scope) Len() int {
	return len(s.ids)
}

// Union merges two scopes. Unrestricted absorbs everything.
func (s Scope) Union(other Scope) Scope {
	if s.unrestricted || other.unrestricted {
		return Unrestricted()
	}
	merged := make([]uuid.UUID, 0, len(s.ids)+len(other.ids))
	merged = append(merged, s.IDs()...)
	merged = append(merged, other.IDs()...)
	return Only(merged...)
}

// Intersect narrows the scope to ids also present in other.
func (s Scope) Intersect(other Scope) Scope {
	switch {
	case s.unrestricted:
		return other
	case other.unrestricted:
		return s
	}
	var kept []uuid.UUID
	for id := range s.ids {
		if _, ok := other.ids[id]; ok {
			kept = append(kept, id)
		}
	}
	return Only(kept...)
}

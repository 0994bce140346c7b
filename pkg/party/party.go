// Package party identifies the keyservers taking part in a DOPRF batch.
package party

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dnascreen/doprf/pkg/ristretto"
)

// ErrZeroID is returned by NewID for the reserved value 0.
var ErrZeroID = errors.New("party: keyserver id 0 is reserved")

// ID identifies a single keyserver within a committee. Valid IDs are
// 1..=255; 0 is reserved and never assigned.
type ID uint8

// NewID validates v and returns it as an ID.
func NewID(v uint32) (ID, error) {
	if v == 0 {
		return 0, ErrZeroID
	}
	if v > 255 {
		return 0, fmt.Errorf("party: keyserver id %d does not fit in a byte", v)
	}
	return ID(v), nil
}

// Scalar returns the group scalar corresponding to this ID, used as the
// x-coordinate in Lagrange interpolation.
func (id ID) Scalar() ristretto.Scalar {
	return ristretto.ScalarFromUint64(uint64(id))
}

func (id ID) String() string {
	return fmt.Sprintf("keyserver-%d", uint8(id))
}

// Set is a canonically ordered, duplicate-free collection of IDs.
type Set struct {
	ids []ID
}

// NewSet builds a Set from ids, sorting and de-duplicating them.
func NewSet(ids ...ID) Set {
	seen := make(map[ID]struct{}, len(ids))
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return Set{ids: out}
}

// Len returns the number of distinct IDs in the set.
func (s Set) Len() int {
	return len(s.ids)
}

// IDs returns the set's members in ascending order. The returned slice must
// not be mutated by the caller.
func (s Set) IDs() []ID {
	return s.ids
}

// Contains reports whether id is a member of the set.
func (s Set) Contains(id ID) bool {
	i := sort.Search(len(s.ids), func(i int) bool { return s.ids[i] >= id })
	return i < len(s.ids) && s.ids[i] == id
}

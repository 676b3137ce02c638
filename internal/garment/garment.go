// Package garment defines the garment kinds a try-on can retexture, the set
// of kinds selected for a session, and the fabric sources bound to them.
package garment

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"strings"
)

// Kind is one of the three fixed replacement targets.
type Kind string

const (
	Top    Kind = "top"    // kurti
	Bottom Kind = "bottom" // salwar
	Chunni Kind = "chunni" // dupatta / drape
)

// AllKinds returns every garment kind in canonical order.
func AllKinds() []Kind {
	return []Kind{Top, Bottom, Chunni}
}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Top, Bottom, Chunni:
		return k, nil
	}
	return "", fmt.Errorf("unknown garment kind %q: must be one of top, bottom, chunni", s)
}

// Label is the uppercase form used in generation instructions.
func (k Kind) Label() string {
	return strings.ToUpper(string(k))
}

func (k Kind) bit() Set {
	switch k {
	case Top:
		return 1 << 0
	case Bottom:
		return 1 << 1
	case Chunni:
		return 1 << 2
	}
	return 0
}

// Set is a bitset over the three garment kinds. The zero value is the empty set.
type Set uint8

// NewSet returns a set containing the given kinds.
func NewSet(kinds ...Kind) Set {
	var s Set
	for _, k := range kinds {
		s |= k.bit()
	}
	return s
}

// Has reports whether k is in the set.
func (s Set) Has(k Kind) bool {
	b := k.bit()
	return b != 0 && s&b != 0
}

// With returns a copy of s including k.
func (s Set) With(k Kind) Set { return s | k.bit() }

// Without returns a copy of s excluding k.
func (s Set) Without(k Kind) Set { return s &^ k.bit() }

// Toggle flips membership of k.
func (s Set) Toggle(k Kind) Set { return s ^ k.bit() }

// Len returns the number of selected kinds.
func (s Set) Len() int { return bits.OnesCount8(uint8(s & 0b111)) }

// Empty reports whether no kind is selected.
func (s Set) Empty() bool { return s.Len() == 0 }

// Kinds returns the selected kinds in canonical order (top, bottom, chunni).
func (s Set) Kinds() []Kind {
	out := make([]Kind, 0, 3)
	for _, k := range AllKinds() {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// Key joins the selected kinds with "+", e.g. "top+chunni".
func (s Set) Key() string {
	kinds := s.Kinds()
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, "+")
}

func (s Set) String() string {
	if s.Empty() {
		return "none"
	}
	return s.Key()
}

// MarshalJSON encodes the set as {"top":bool,"bottom":bool,"chunni":bool}.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[Kind]bool{
		Top:    s.Has(Top),
		Bottom: s.Has(Bottom),
		Chunni: s.Has(Chunni),
	})
}

// UnmarshalJSON accepts the object form produced by MarshalJSON.
func (s *Set) UnmarshalJSON(data []byte) error {
	var m map[string]bool
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	var out Set
	for name, on := range m {
		k, err := ParseKind(name)
		if err != nil {
			return err
		}
		if on {
			out = out.With(k)
		}
	}
	*s = out
	return nil
}

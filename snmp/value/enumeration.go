package value

import (
	"iter"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Enumeration is the result of a subtree walk: OID → Value in the order the
// agent returned them. OIDs are stored without a leading dot.
type Enumeration struct {
	m *orderedmap.OrderedMap[string, Value]
}

// NewEnumeration returns an empty Enumeration.
func NewEnumeration() *Enumeration {
	return &Enumeration{m: orderedmap.New[string, Value]()}
}

// Set records oid → v. Re-setting an existing OID keeps its original position.
func (e *Enumeration) Set(oid string, v Value) {
	e.m.Set(oid, v)
}

// Get returns the value stored for oid.
func (e *Enumeration) Get(oid string) (Value, bool) {
	if e == nil {
		return Absent, false
	}
	return e.m.Get(oid)
}

// Len returns the number of entries.
func (e *Enumeration) Len() int {
	if e == nil {
		return 0
	}
	return e.m.Len()
}

// All iterates the entries in insertion order.
func (e *Enumeration) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if e == nil {
			return
		}
		for p := e.m.Oldest(); p != nil; p = p.Next() {
			if !yield(p.Key, p.Value) {
				return
			}
		}
	}
}

// Keys returns the OIDs in insertion order.
func (e *Enumeration) Keys() []string {
	keys := make([]string, 0, e.Len())
	for k := range e.All() {
		keys = append(keys, k)
	}
	return keys
}

// MarshalJSON encodes the enumeration as a JSON object, preserving order.
func (e *Enumeration) MarshalJSON() ([]byte, error) {
	if e == nil {
		return []byte("{}"), nil
	}
	return e.m.MarshalJSON()
}

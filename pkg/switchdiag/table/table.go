// Package table rebuilds SNMP conceptual tables from independent column walks.
//
// A table is walked one column at a time. The primary column defines which
// rows exist; every secondary column contributes one field per row, or the
// absent marker when the agent returned nothing for that index.
package table

import (
	"context"
	"fmt"
	"iter"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/vpbank/switchdiag/snmp/oid"
	"github.com/vpbank/switchdiag/snmp/value"
)

// Column names one table column: the field it fills and the OID it is walked
// from.
type Column struct {
	Field string
	Root  string
}

// ColumnResult pairs a Column with the enumeration its walk produced.
type ColumnResult struct {
	Column
	Values *value.Enumeration
}

// Row maps field name to value for one table index.
type Row map[string]value.Value

// Table is an ordered index → Row mapping. Rows appear in the order the
// primary column returned them.
type Table struct {
	rows *orderedmap.OrderedMap[string, Row]
}

// New returns an empty table.
func New() *Table {
	return &Table{rows: orderedmap.New[string, Row]()}
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows.Len() }

// Row returns the row stored for index.
func (t *Table) Row(index string) (Row, bool) { return t.rows.Get(index) }

// Indexes returns the row indexes in order.
func (t *Table) Indexes() []string {
	out := make([]string, 0, t.rows.Len())
	for p := t.rows.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Key)
	}
	return out
}

// All iterates rows in order.
func (t *Table) All() iter.Seq2[string, Row] {
	return func(yield func(string, Row) bool) {
		for p := t.rows.Oldest(); p != nil; p = p.Next() {
			if !yield(p.Key, p.Value) {
				return
			}
		}
	}
}

// MarshalJSON encodes the table as {"<index>": {"<field>": value, ...}, ...}.
func (t *Table) MarshalJSON() ([]byte, error) {
	return t.rows.MarshalJSON()
}

// Reconstruct merges column results into one row per primary index.
//
// For each primary entry the trailing OID component becomes the row index. The
// row gets the primary value under primary.Field and, for every secondary, the
// value stored at secondary.Root + "." + index or value.Absent. Indexes that
// appear only in secondary columns are ignored. Primary entries whose last
// component is not numeric are skipped.
func Reconstruct(primary ColumnResult, secondary ...ColumnResult) *Table {
	t := New()
	if primary.Values == nil {
		return t
	}
	for name, v := range primary.Values.All() {
		idx, ok := oid.TrailingIndex(name)
		if !ok {
			continue
		}
		row := Row{primary.Field: v}
		for _, sec := range secondary {
			sv, found := sec.Values.Get(oid.Join(sec.Root, idx))
			if !found {
				sv = value.Absent
			}
			row[sec.Field] = sv
		}
		t.rows.Set(idx, row)
	}
	return t
}

// Walker is the subset of the query façade Collect needs.
type Walker interface {
	Walk(ctx context.Context, root string) (*value.Enumeration, error)
}

// Collect walks primary, then each secondary column, and reconstructs the
// table. An empty primary walk yields an empty table without walking the
// secondaries. The first walk error is returned.
func Collect(ctx context.Context, w Walker, primary Column, secondary ...Column) (*Table, error) {
	pv, err := w.Walk(ctx, primary.Root)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", primary.Field, err)
	}
	if pv.Len() == 0 {
		return New(), nil
	}

	results := make([]ColumnResult, 0, len(secondary))
	for _, col := range secondary {
		sv, err := w.Walk(ctx, col.Root)
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", col.Field, err)
		}
		results = append(results, ColumnResult{Column: col, Values: sv})
	}
	return Reconstruct(ColumnResult{Column: primary, Values: pv}, results...), nil
}

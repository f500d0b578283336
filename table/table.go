// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package table implements a structured in-memory table of query results: an
// ordered list of named columns and rows of string cells.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/stockparfait/errors"
)

// Column describes a single table column.
type Column struct {
	Name     string
	Datatype string // e.g. "char", "double"; may be empty
	Unit     string // may be empty
}

// Row of cells, one per column, in column order.
type Row []string

// CSV returns an encoding/csv compatible representation of the row.
func (r Row) CSV() []string { return []string(r) }

// Table container.
//
// A typical use:
//
//	t := NewTable(Column{Name: "observation_id"}, Column{Name: "product_url"})
//	t.AddRow(Row{"obs1", "http://..."}, Row{"obs2", "http://..."})
//	urls, err := t.Column("product_url")
type Table struct {
	Columns []Column
	Rows    []Row
}

// NewTable creates a new Table instance with the given columns.
func NewTable(columns ...Column) *Table {
	return &Table{Columns: columns}
}

// AddRow adds one or more rows to the table. It is expected that each row has
// exactly one cell per column.
func (t *Table) AddRow(rows ...Row) {
	t.Rows = append(t.Rows, rows...)
}

// Len is the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Header returns the column names.
func (t *Table) Header() []string {
	res := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		res[i] = c.Name
	}
	return res
}

// ColumnIndex returns the index of the named column, and false if there is no
// such column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c.Name == name {
			return i, true
		}
	}
	return -1, false
}

// HasColumn checks if the column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.ColumnIndex(name)
	return ok
}

// Column returns all the values of the named column.
func (t *Table) Column(name string) ([]string, error) {
	i, ok := t.ColumnIndex(name)
	if !ok {
		return nil, errors.Reason("no column '%s'", name)
	}
	res := make([]string, len(t.Rows))
	for j, r := range t.Rows {
		if i >= len(r) {
			return nil, errors.Reason("row %d has %d cells, need column %d",
				j, len(r), i)
		}
		res[j] = r[i]
	}
	return res, nil
}

// Value returns the cell of the named column in row i.
func (t *Table) Value(i int, name string) (string, error) {
	if i < 0 || i >= len(t.Rows) {
		return "", errors.Reason("row index %d is out of range [0, %d)", i, len(t.Rows))
	}
	j, ok := t.ColumnIndex(name)
	if !ok {
		return "", errors.Reason("no column '%s'", name)
	}
	if j >= len(t.Rows[i]) {
		return "", errors.Reason("row %d has %d cells, need column %d",
			i, len(t.Rows[i]), j)
	}
	return t.Rows[i][j], nil
}

// Params are parameters for pretty-printing or CSV export of Table data.
type Params struct {
	Rows        int  // max. number of rows to write; 0 = unlimited (default)
	NoHeader    bool // whether to print the header, default - yes
	MaxColWidth int  // for WriteText only; 0 = unlimited, otherwise must be >= 4
}

// WriteCSV writes the entire table to w in CSV format.
func (t *Table) WriteCSV(w io.Writer, p Params) error {
	cw := csv.NewWriter(w)
	if !p.NoHeader && len(t.Columns) > 0 {
		if err := cw.Write(t.Header()); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
	}
	for i, r := range t.Rows {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		if err := cw.Write(r.CSV()); err != nil {
			return errors.Annotate(err, "failed to write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Annotate(err, "failed to flush written rows")
	}
	return nil
}

// WriteText writes the table as a text formatted for ease of reading.
func (t *Table) WriteText(w io.Writer, p Params) error {
	if p.MaxColWidth != 0 && p.MaxColWidth < 4 {
		return errors.Reason("MaxColWidth [%d] must be 0 or >= 4", p.MaxColWidth)
	}
	rows := t.Rows
	if p.Rows > 0 && len(rows) > p.Rows {
		rows = rows[:p.Rows]
	}
	var lines [][]string
	if !p.NoHeader && len(t.Columns) > 0 {
		lines = append(lines, t.Header())
	}
	for _, r := range rows {
		lines = append(lines, r.CSV())
	}
	if len(lines) == 0 {
		return nil
	}

	widths := make([]int, len(lines[0]))
	for i, l := range lines {
		if len(l) != len(widths) {
			return errors.Reason("row %d size [%d] != expected size [%d]",
				i, len(l), len(widths))
		}
		for j, s := range l {
			if n := len([]rune(s)); n > widths[j] {
				widths[j] = n
			}
		}
	}
	if p.MaxColWidth > 0 {
		for j := range widths {
			if widths[j] > p.MaxColWidth {
				widths[j] = p.MaxColWidth
			}
		}
	}

	write := func(row []string) error {
		cells := make([]string, len(row))
		for i, s := range row {
			if r := []rune(s); len(r) > widths[i] {
				s = string(r[:widths[i]-2]) + ".."
			}
			cells[i] = fmt.Sprintf("%[2]*[1]s", s, widths[i])
		}
		_, err := fmt.Fprintf(w, "%s\n", strings.Join(cells, " | "))
		return err
	}

	for i, l := range lines {
		if err := write(l); err != nil {
			return errors.Annotate(err, "failed to write row")
		}
		if i == 0 && !p.NoHeader && len(t.Columns) > 0 {
			dashes := make([]string, len(widths))
			for j, n := range widths {
				dashes[j] = strings.Repeat("-", n)
			}
			if err := write(dashes); err != nil {
				return errors.Annotate(err, "failed to write header separator")
			}
		}
	}
	return nil
}

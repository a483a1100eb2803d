// Package db holds the in-memory transaction table that every aggregation reads.
package db

import "time"

// Transaction is one card transaction from the dataset.
type Transaction struct {
	RowIndex  int64
	TransTime time.Time
	CCNum     int64
	Merchant  string
	Category  string
	Amount    float64
	First     string
	Last      string
	Gender    string
	Street    string
	City      string
	State     string
	Zip       int64
	Lat       float64
	Long      float64
	CityPop   int64
	Job       string
	DOB       string
	TransNum  string
	UnixTime  int64
	MerchLat  float64
	MerchLong float64
	IsFraud   bool
}

// Table is an ordered, read-only sequence of transactions. Row order is the
// concatenation order of the source files and is never changed after
// construction.
type Table struct {
	rows []Transaction
}

// NewTable wraps rows in a Table. The caller must not modify rows afterwards.
func NewTable(rows []Transaction) *Table {
	return &Table{rows: rows}
}

// Concat joins tables in argument order into a new Table.
func Concat(tables ...*Table) *Table {
	total := 0
	for _, t := range tables {
		total += t.Len()
	}
	rows := make([]Transaction, 0, total)
	for _, t := range tables {
		if t != nil {
			rows = append(rows, t.rows...)
		}
	}
	return &Table{rows: rows}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Row returns a copy of row i.
func (t *Table) Row(i int) Transaction {
	return t.rows[i]
}

// Rows exposes the backing rows. They are shared, not copied, and must be
// treated as read-only.
func (t *Table) Rows() []Transaction {
	if t == nil {
		return nil
	}
	return t.rows
}

// Head returns the first n rows in original order without copying. n is
// clamped to [0, Len()]. The prefix is a deterministic truncation, not a sample.
func (t *Table) Head(n int) *Table {
	size := t.Len()
	switch {
	case n < 0:
		n = 0
	case n > size:
		n = size
	}
	if t == nil {
		return &Table{}
	}
	return &Table{rows: t.rows[:n:n]}
}

// Package query implements the aggregation pipeline that turns a prefix of
// the transaction table into the derived tables drawn by the dashboard.
package query

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/aqilqeka/Aqil-project/db"
	"github.com/aqilqeka/Aqil-project/index"
)

// Outcome labels a transaction as fraudulent or not.
type Outcome string

const (
	OutcomeNormal Outcome = "Normal"
	OutcomeFraud  Outcome = "Fraud"
)

// OutcomeOf maps a fraud flag to its label.
func OutcomeOf(fraud bool) Outcome {
	if fraud {
		return OutcomeFraud
	}
	return OutcomeNormal
}

// LateNightHours is the fixed late-night window.
var LateNightHours = []int{22, 23}

// Frame is a row subset enriched with the derived hour and outcome columns.
// Every aggregator reads a Frame, so the derivation happens once per pass.
type Frame struct {
	Table *db.Table
	// Hours holds the hour of day (0-23) of each row.
	Hours []int
	// Fraud holds the positions of fraudulent rows.
	Fraud *roaring.Bitmap
	// ByHour indexes row positions by hour of day.
	ByHour *index.RoaringIndex[int]
}

// Enrich derives hour of day and fraud status for every row of t.
func Enrich(t *db.Table) *Frame {
	rows := t.Rows()
	f := &Frame{
		Table:  t,
		Hours:  make([]int, len(rows)),
		Fraud:  index.Mask(len(rows), func(i int) bool { return rows[i].IsFraud }),
		ByHour: index.NewRoaringIndex[int](),
	}
	for i := range rows {
		h := rows[i].TransTime.Hour()
		f.Hours[i] = h
		f.ByHour.Add(uint32(i), h)
	}
	return f
}

// Len returns the number of rows in the frame.
func (f *Frame) Len() int {
	return f.Table.Len()
}

// Outcome returns the label of row i.
func (f *Frame) Outcome(i int) Outcome {
	return OutcomeOf(f.Fraud.Contains(uint32(i)))
}

// LateNightFraud returns the fraudulent rows that fall in LateNightHours.
func (f *Frame) LateNightFraud() *roaring.Bitmap {
	return roaring.And(f.Fraud, f.ByHour.Union(LateNightHours...))
}

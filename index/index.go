// Package index provides bitmap indexes over table row positions.
package index

import (
	"cmp"
	"slices"

	"github.com/RoaringBitmap/roaring"
)

// ---------------------------------------------------------------------
// RoaringIndex: maps each distinct value -> roaring.Bitmap of rowIDs.
// ---------------------------------------------------------------------

// RoaringIndex is a value index backed by one Roaring bitmap per distinct
// value. It is built once and then only read, so it carries no lock.
type RoaringIndex[K cmp.Ordered] struct {
	values map[K]*roaring.Bitmap
	rows   uint32
}

// NewRoaringIndex constructs an empty index.
func NewRoaringIndex[K cmp.Ordered]() *RoaringIndex[K] {
	return &RoaringIndex[K]{values: make(map[K]*roaring.Bitmap)}
}

// Add records rowID under value.
func (r *RoaringIndex[K]) Add(rowID uint32, value K) {
	bm, ok := r.values[value]
	if !ok {
		bm = roaring.New()
		r.values[value] = bm
	}
	bm.Add(rowID)
	if rowID >= r.rows {
		r.rows = rowID + 1
	}
}

// Get returns the rows holding value. The bitmap is empty, never nil, when
// the value is absent. Callers must not mutate it.
func (r *RoaringIndex[K]) Get(value K) *roaring.Bitmap {
	if bm, ok := r.values[value]; ok {
		return bm
	}
	return roaring.New()
}

// Union returns a new bitmap of the rows holding any of values.
func (r *RoaringIndex[K]) Union(values ...K) *roaring.Bitmap {
	bms := make([]*roaring.Bitmap, 0, len(values))
	for _, v := range values {
		if bm, ok := r.values[v]; ok {
			bms = append(bms, bm)
		}
	}
	return roaring.FastOr(bms...)
}

// Keys returns the distinct values in ascending order.
func (r *RoaringIndex[K]) Keys() []K {
	keys := make([]K, 0, len(r.values))
	for k := range r.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Cardinality returns the number of distinct values.
func (r *RoaringIndex[K]) Cardinality() int {
	return len(r.values)
}

// Rows returns one past the highest rowID indexed.
func (r *RoaringIndex[K]) Rows() uint32 {
	return r.rows
}

// Mask builds a bitmap of the positions in [0, n) for which keep is true.
func Mask(n int, keep func(i int) bool) *roaring.Bitmap {
	bm := roaring.New()
	for i := 0; i < n; i++ {
		if keep(i) {
			bm.Add(uint32(i))
		}
	}
	return bm
}

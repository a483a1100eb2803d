package query

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring"

	"github.com/aqilqeka/Aqil-project/db"
)

// DefaultAmountBins is the bin count of the amount histogram.
const DefaultAmountBins = 50

// ---------------------------------------------------------------------
// Derived tables
// ---------------------------------------------------------------------

// Summary holds the headline counts of a table.
type Summary struct {
	Total     int     `json:"total"`
	Fraud     int     `json:"fraud"`
	FraudRate float64 `json:"fraud_rate"` // percent
}

// AmountBin is one histogram bucket, split by outcome.
type AmountBin struct {
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
	Normal int     `json:"normal"`
	Fraud  int     `json:"fraud"`
}

// AmountHistogram spans the observed min-max of amount with fixed-width bins.
type AmountHistogram struct {
	Min   float64     `json:"min"`
	Max   float64     `json:"max"`
	Width float64     `json:"width"`
	Bins  []AmountBin `json:"bins"`
}

// DailyCount is the transaction volume of one calendar date.
type DailyCount struct {
	Date  time.Time `json:"date"`
	Total int       `json:"total"`
	Fraud int       `json:"fraud"`
}

// CategoryCount is the number of fraudulent rows of a merchant category.
type CategoryCount struct {
	Category   string `json:"category"`
	FraudCount int    `json:"fraud_count"`
}

// HourlyCount is the number of rows of one outcome in one hour of day.
type HourlyCount struct {
	Hour    int     `json:"hour"`
	Outcome Outcome `json:"fraud_status"`
	Count   int     `json:"count"`
}

// JobCount is the number of fraudulent rows of a cardholder job.
type JobCount struct {
	Job        string `json:"job"`
	FraudCount int    `json:"fraud_count"`
}

// GeoPoint is the number of fraudulent rows at an exact merchant location
// for one gender.
type GeoPoint struct {
	Lat        float64 `json:"merch_lat"`
	Long       float64 `json:"merch_long"`
	Gender     string  `json:"gender"`
	FraudCount int     `json:"fraud_count"`
}

// CorrelationMatrix holds pairwise Pearson coefficients, row-major.
// Entries involving a zero-variance field are NaN.
type CorrelationMatrix struct {
	Fields []string    `json:"fields"`
	Values [][]float64 `json:"values"`
}

// ---------------------------------------------------------------------
// Aggregators
// ---------------------------------------------------------------------

// Summarize counts rows and fraudulent rows of t.
func Summarize(t *db.Table) Summary {
	s := Summary{Total: t.Len()}
	for _, tx := range t.Rows() {
		if tx.IsFraud {
			s.Fraud++
		}
	}
	if s.Total > 0 {
		s.FraudRate = float64(s.Fraud) / float64(s.Total) * 100
	}
	return s
}

// AmountDistribution bins the amount column into bins equal-width buckets
// between its minimum and maximum. When every amount is equal all rows land
// in the first bucket.
func AmountDistribution(f *Frame, bins int) AmountHistogram {
	rows := f.Table.Rows()
	if len(rows) == 0 || bins <= 0 {
		return AmountHistogram{Bins: []AmountBin{}}
	}

	lo, hi := rows[0].Amount, rows[0].Amount
	for i := range rows {
		lo = math.Min(lo, rows[i].Amount)
		hi = math.Max(hi, rows[i].Amount)
	}
	width := (hi - lo) / float64(bins)

	h := AmountHistogram{Min: lo, Max: hi, Width: width, Bins: make([]AmountBin, bins)}
	for i := range h.Bins {
		h.Bins[i].Lower = lo + float64(i)*width
		h.Bins[i].Upper = lo + float64(i+1)*width
	}
	h.Bins[bins-1].Upper = hi

	for i := range rows {
		b := 0
		if width > 0 {
			b = min(int((rows[i].Amount-lo)/width), bins-1)
		}
		if f.Fraud.Contains(uint32(i)) {
			h.Bins[b].Fraud++
		} else {
			h.Bins[b].Normal++
		}
	}
	return h
}

// TimeSeries counts all and fraudulent rows per calendar date, date ascending.
func TimeSeries(f *Frame) []DailyCount {
	byDay := make(map[time.Time]*DailyCount)
	for i, tx := range f.Table.Rows() {
		y, m, d := tx.TransTime.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		dc, ok := byDay[day]
		if !ok {
			dc = &DailyCount{Date: day}
			byDay[day] = dc
		}
		dc.Total++
		if f.Fraud.Contains(uint32(i)) {
			dc.Fraud++
		}
	}

	out := make([]DailyCount, 0, len(byDay))
	for _, dc := range byDay {
		out = append(out, *dc)
	}
	slices.SortFunc(out, func(a, b DailyCount) int { return a.Date.Compare(b.Date) })
	return out
}

// CategoryRanking counts fraudulent rows per merchant category, highest first.
// Categories without fraud are absent.
func CategoryRanking(f *Frame) []CategoryCount {
	out := categoryCounts(f, f.Fraud)
	SortByCountDesc(out)
	return out
}

// LateNightByCategory counts fraudulent rows in LateNightHours per category,
// in category order. Charts re-sort it with SortByCountDesc.
func LateNightByCategory(f *Frame) []CategoryCount {
	return categoryCounts(f, f.LateNightFraud())
}

// SortByCountDesc orders counts by fraud count descending, then by name.
func SortByCountDesc(counts []CategoryCount) {
	slices.SortFunc(counts, func(a, b CategoryCount) int {
		if c := cmp.Compare(b.FraudCount, a.FraudCount); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
}

// HourlyVelocity counts rows per (hour, outcome) pair present in the frame,
// ordered by hour with Normal before Fraud.
func HourlyVelocity(f *Frame) []HourlyCount {
	var out []HourlyCount
	for _, h := range f.ByHour.Keys() {
		rows := f.ByHour.Get(h)
		fraud := int(rows.AndCardinality(f.Fraud))
		if normal := int(rows.GetCardinality()) - fraud; normal > 0 {
			out = append(out, HourlyCount{Hour: h, Outcome: OutcomeNormal, Count: normal})
		}
		if fraud > 0 {
			out = append(out, HourlyCount{Hour: h, Outcome: OutcomeFraud, Count: fraud})
		}
	}
	if out == nil {
		out = []HourlyCount{}
	}
	return out
}

// FraudByJob counts fraudulent rows per cardholder job, highest first.
func FraudByJob(f *Frame) []JobCount {
	counts := countBy(f, f.Fraud, func(tx *db.Transaction) string { return tx.Job })
	out := make([]JobCount, 0, len(counts))
	for job, n := range counts {
		out = append(out, JobCount{Job: job, FraudCount: n})
	}
	slices.SortFunc(out, func(a, b JobCount) int {
		if c := cmp.Compare(b.FraudCount, a.FraudCount); c != 0 {
			return c
		}
		return cmp.Compare(a.Job, b.Job)
	})
	return out
}

type geoKey struct {
	lat, long float64
	gender    string
}

// GeoFraudByGender counts fraudulent rows per exact (merchant lat, merchant
// long, gender). Nearby but unequal coordinates stay separate.
func GeoFraudByGender(f *Frame) []GeoPoint {
	rows := f.Table.Rows()
	counts := make(map[geoKey]int)
	f.Fraud.Iterate(func(i uint32) bool {
		tx := &rows[i]
		counts[geoKey{lat: tx.MerchLat, long: tx.MerchLong, gender: tx.Gender}]++
		return true
	})

	out := make([]GeoPoint, 0, len(counts))
	for k, n := range counts {
		out = append(out, GeoPoint{Lat: k.lat, Long: k.long, Gender: k.gender, FraudCount: n})
	}
	slices.SortFunc(out, func(a, b GeoPoint) int {
		if c := cmp.Compare(a.Lat, b.Lat); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Long, b.Long); c != 0 {
			return c
		}
		return cmp.Compare(a.Gender, b.Gender)
	})
	return out
}

// Correlation computes the Pearson correlation of every pair of numeric
// fields. The matrix is square over db.NumericFields and symmetric. The
// diagonal is 1 for fields with non-zero variance. A field whose values are
// all equal has zero variance and correlates as NaN.
func Correlation(f *Frame) CorrelationMatrix {
	fields := db.NumericFields
	k := len(fields)
	rows := f.Table.Rows()

	m := CorrelationMatrix{Fields: make([]string, k), Values: make([][]float64, k)}
	for i, fld := range fields {
		m.Fields[i] = fld.Name
		m.Values[i] = make([]float64, k)
	}

	means := make([]float64, k)
	constant := make([]bool, k)
	for i := range constant {
		constant[i] = true
	}
	for r := range rows {
		for i, fld := range fields {
			v := fld.Value(&rows[r])
			means[i] += v
			if constant[i] && v != fld.Value(&rows[0]) {
				constant[i] = false
			}
		}
	}
	n := float64(len(rows))
	for i := range means {
		means[i] /= n
	}

	cov := make([][]float64, k)
	for i := range cov {
		cov[i] = make([]float64, k)
	}
	delta := make([]float64, k)
	for r := range rows {
		for i, fld := range fields {
			delta[i] = fld.Value(&rows[r]) - means[i]
		}
		for i := 0; i < k; i++ {
			for j := i; j < k; j++ {
				cov[i][j] += delta[i] * delta[j]
			}
		}
	}

	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			v := math.NaN()
			switch {
			case len(rows) < 2 || constant[i] || constant[j]:
			case i == j:
				v = 1
			default:
				v = cov[i][j] / math.Sqrt(cov[i][i]*cov[j][j])
				v = math.Max(-1, math.Min(1, v))
			}
			m.Values[i][j] = v
			m.Values[j][i] = v
		}
	}
	return m
}

// ---------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------

func countBy(f *Frame, positions *roaring.Bitmap, key func(tx *db.Transaction) string) map[string]int {
	rows := f.Table.Rows()
	counts := make(map[string]int)
	positions.Iterate(func(i uint32) bool {
		counts[key(&rows[i])]++
		return true
	})
	return counts
}

func categoryCounts(f *Frame, positions *roaring.Bitmap) []CategoryCount {
	counts := countBy(f, positions, func(tx *db.Transaction) string { return tx.Category })
	out := make([]CategoryCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, CategoryCount{Category: c, FraudCount: n})
	}
	slices.SortFunc(out, func(a, b CategoryCount) int { return cmp.Compare(a.Category, b.Category) })
	return out
}

package query_test

import (
	"math"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/aqilqeka/Aqil-project/db"
	"github.com/aqilqeka/Aqil-project/db/dbtest"
	"github.com/aqilqeka/Aqil-project/query"
)

func genTransaction() *rapid.Generator[db.Transaction] {
	return rapid.Custom(func(t *rapid.T) db.Transaction {
		tx := dbtest.Tx(0, rapid.SampledFrom([]string{"gas", "grocery", "home", "travel"}).Draw(t, "category"), rapid.Bool().Draw(t, "fraud"))
		tx.TransTime = dbtest.Base.Add(time.Duration(rapid.IntRange(0, 30*24*60).Draw(t, "minute")) * time.Minute)
		tx.Amount = rapid.Float64Range(0, 5000).Draw(t, "amount")
		tx.CityPop = rapid.Int64Range(1, 3_000_000).Draw(t, "city_pop")
		tx.MerchLat = rapid.SampledFrom([]float64{36.01, 36.02, 40.5}).Draw(t, "merch_lat")
		tx.Gender = rapid.SampledFrom([]string{"F", "M"}).Draw(t, "gender")
		return tx
	})
}

func genFrame(t *rapid.T) (*query.Frame, int) {
	rows := rapid.SliceOfN(genTransaction(), 0, 200).Draw(t, "rows")
	fraud := 0
	for _, tx := range rows {
		if tx.IsFraud {
			fraud++
		}
	}
	return query.Enrich(db.NewTable(rows)), fraud
}

func TestHourlyVelocityProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f, fraud := genFrame(t)
		var fraudSum, normalSum int
		for _, hc := range query.HourlyVelocity(f) {
			if hc.Hour < 0 || hc.Hour > 23 {
				t.Fatalf("hour %d out of range", hc.Hour)
			}
			if hc.Count < 1 {
				t.Fatalf("zero count emitted for hour %d", hc.Hour)
			}
			switch hc.Outcome {
			case query.OutcomeFraud:
				fraudSum += hc.Count
			case query.OutcomeNormal:
				normalSum += hc.Count
			}
		}
		if fraudSum != fraud {
			t.Fatalf("fraud counts sum to %d, want %d", fraudSum, fraud)
		}
		if normalSum != f.Len()-fraud {
			t.Fatalf("normal counts sum to %d, want %d", normalSum, f.Len()-fraud)
		}
	})
}

func TestCategoryRankingProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f, fraud := genFrame(t)
		ranking := query.CategoryRanking(f)
		sum := 0
		for i, c := range ranking {
			if c.FraudCount < 1 {
				t.Fatalf("category %q has count %d", c.Category, c.FraudCount)
			}
			if i > 0 && ranking[i-1].FraudCount < c.FraudCount {
				t.Fatalf("ranking not descending at %d", i)
			}
			sum += c.FraudCount
		}
		if sum != fraud {
			t.Fatalf("ranking sums to %d, want %d", sum, fraud)
		}
	})
}

func TestLateNightProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f, _ := genFrame(t)
		want := make(map[string]int)
		for _, tx := range f.Table.Rows() {
			if h := tx.TransTime.Hour(); tx.IsFraud && (h == 22 || h == 23) {
				want[tx.Category]++
			}
		}
		got := query.LateNightByCategory(f)
		if len(got) != len(want) {
			t.Fatalf("got %d categories, want %d", len(got), len(want))
		}
		for _, c := range got {
			if want[c.Category] != c.FraudCount {
				t.Fatalf("category %q: got %d, want %d", c.Category, c.FraudCount, want[c.Category])
			}
		}
	})
}

func TestCorrelationProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f, _ := genFrame(t)
		m := query.Correlation(f)
		k := len(db.NumericFields)
		if len(m.Values) != k {
			t.Fatalf("matrix has %d rows, want %d", len(m.Values), k)
		}
		for i := 0; i < k; i++ {
			if len(m.Values[i]) != k {
				t.Fatalf("row %d has %d columns", i, len(m.Values[i]))
			}
			if d := m.Values[i][i]; !math.IsNaN(d) && d != 1 {
				t.Fatalf("diagonal %d is %v", i, d)
			}
			for j := 0; j < k; j++ {
				a, b := m.Values[i][j], m.Values[j][i]
				if math.IsNaN(a) != math.IsNaN(b) || (!math.IsNaN(a) && a != b) {
					t.Fatalf("asymmetric at (%d,%d): %v vs %v", i, j, a, b)
				}
			}
		}
	})
}

func TestAmountDistributionConservesRows(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f, fraud := genFrame(t)
		h := query.AmountDistribution(f, query.DefaultAmountBins)
		var normalSum, fraudSum int
		for _, b := range h.Bins {
			normalSum += b.Normal
			fraudSum += b.Fraud
		}
		if fraudSum != fraud || normalSum+fraudSum != f.Len() {
			t.Fatalf("histogram holds %d/%d rows, want %d/%d", fraudSum, normalSum+fraudSum, fraud, f.Len())
		}
	})
}

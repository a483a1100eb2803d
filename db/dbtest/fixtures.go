// Package dbtest builds transaction fixtures for tests.
package dbtest

import (
	"fmt"
	"strings"
	"time"

	"github.com/aqilqeka/Aqil-project/db"
)

// Base is the date every fixture transaction falls on unless overridden.
var Base = time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)

var (
	categories = []string{"grocery_pos", "gas_transport", "shopping_net", "misc_net", "home"}
	jobs       = []string{"Psychologist, counselling", "Special educational needs teacher", "Nature conservation officer"}
	genders    = []string{"F", "M"}
)

// Tx returns a transaction at the given hour of Base with the given category
// and fraud flag. Other fields carry plausible values.
func Tx(hour int, category string, fraud bool) db.Transaction {
	ts := Base.Add(time.Duration(hour) * time.Hour)
	return db.Transaction{
		TransTime: ts,
		CCNum:     2703186189652095,
		Merchant:  "fraud_Rippin, Kub and Mann",
		Category:  category,
		Amount:    4.97,
		First:     "Jennifer",
		Last:      "Banks",
		Gender:    "F",
		Street:    "561 Perry Cove",
		City:      "Moravian Falls",
		State:     "NC",
		Zip:       28654,
		Lat:       36.0788,
		Long:      -81.1781,
		CityPop:   3495,
		Job:       jobs[0],
		DOB:       "1988-03-09",
		TransNum:  fmt.Sprintf("tx-%02d-%s", hour, category),
		UnixTime:  ts.Unix(),
		MerchLat:  36.011293,
		MerchLong: -82.048315,
		IsFraud:   fraud,
	}
}

// Sample returns a deterministic table of n rows spread across hours, days,
// categories, jobs and genders, with every seventh row fraudulent.
func Sample(n int) *db.Table {
	rows := make([]db.Transaction, n)
	for i := range rows {
		tx := Tx(i%24, categories[i%len(categories)], i%7 == 0)
		tx.RowIndex = int64(i)
		tx.TransTime = Base.Add(time.Duration(i) * 37 * time.Minute)
		tx.UnixTime = tx.TransTime.Unix()
		tx.Amount = float64(i%500) + 0.25
		tx.Job = jobs[i%len(jobs)]
		tx.Gender = genders[i%len(genders)]
		tx.MerchLat = 36 + float64(i%5)/10
		tx.MerchLong = -82 + float64(i%3)/10
		tx.CityPop = int64(1000 + i%97)
		tx.TransNum = fmt.Sprintf("tx-%06d", i)
		rows[i] = tx
	}
	return db.NewTable(rows)
}

// Header is the header line of the dataset files.
var Header = "," + strings.Join([]string{
	db.ColTransTime, db.ColCCNum, db.ColMerchant, db.ColCategory, db.ColAmount,
	db.ColFirst, db.ColLast, db.ColGender, db.ColStreet, db.ColCity, db.ColState,
	db.ColZip, db.ColLat, db.ColLong, db.ColCityPop, db.ColJob, db.ColDOB,
	db.ColTransNum, db.ColUnixTime, db.ColMerchLat, db.ColMerchLong, db.ColIsFraud,
}, ",")

// CSV renders rows in the dataset file format, header included.
func CSV(rows []db.Transaction) string {
	var sb strings.Builder
	sb.WriteString(Header)
	sb.WriteByte('\n')
	for _, tx := range rows {
		fraud := 0
		if tx.IsFraud {
			fraud = 1
		}
		fmt.Fprintf(&sb, "%d,%s,%d,%q,%s,%g,%s,%s,%s,%q,%q,%s,%d,%g,%g,%d,%q,%s,%s,%d,%g,%g,%d\n",
			tx.RowIndex, tx.TransTime.UTC().Format(db.TimeLayout), tx.CCNum, tx.Merchant,
			tx.Category, tx.Amount, tx.First, tx.Last, tx.Gender, tx.Street, tx.City,
			tx.State, tx.Zip, tx.Lat, tx.Long, tx.CityPop, tx.Job, tx.DOB, tx.TransNum,
			tx.UnixTime, tx.MerchLat, tx.MerchLong, fraud)
	}
	return sb.String()
}

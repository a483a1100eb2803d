package db

import (
	"errors"

	"github.com/apache/arrow-go/v18/arrow"
)

// ErrSchemaMismatch reports a column that is absent or carries the wrong type.
var ErrSchemaMismatch = errors.New("schema mismatch")

// TimeLayout is the layout of the trans_date_trans_time column.
const TimeLayout = "2006-01-02 15:04:05"

// Column names as they appear in the dataset files. The first column is an
// unnamed positional index written by the exporter.
const (
	ColRowIndex  = "row_index"
	ColTransTime = "trans_date_trans_time"
	ColCCNum     = "cc_num"
	ColMerchant  = "merchant"
	ColCategory  = "category"
	ColAmount    = "amt"
	ColFirst     = "first"
	ColLast      = "last"
	ColGender    = "gender"
	ColStreet    = "street"
	ColCity      = "city"
	ColState     = "state"
	ColZip       = "zip"
	ColLat       = "lat"
	ColLong      = "long"
	ColCityPop   = "city_pop"
	ColJob       = "job"
	ColDOB       = "dob"
	ColTransNum  = "trans_num"
	ColUnixTime  = "unix_time"
	ColMerchLat  = "merch_lat"
	ColMerchLong = "merch_long"
	ColIsFraud   = "is_fraud"
)

// CSVSchema is the schema of fraudTrain.csv and fraudTest.csv, in file order.
// Timestamps stay strings here; FromRecords parses them with TimeLayout.
var CSVSchema = arrow.NewSchema([]arrow.Field{
	{Name: ColRowIndex, Type: arrow.PrimitiveTypes.Int64},
	{Name: ColTransTime, Type: arrow.BinaryTypes.String},
	{Name: ColCCNum, Type: arrow.PrimitiveTypes.Int64},
	{Name: ColMerchant, Type: arrow.BinaryTypes.String},
	{Name: ColCategory, Type: arrow.BinaryTypes.String},
	{Name: ColAmount, Type: arrow.PrimitiveTypes.Float64},
	{Name: ColFirst, Type: arrow.BinaryTypes.String},
	{Name: ColLast, Type: arrow.BinaryTypes.String},
	{Name: ColGender, Type: arrow.BinaryTypes.String},
	{Name: ColStreet, Type: arrow.BinaryTypes.String},
	{Name: ColCity, Type: arrow.BinaryTypes.String},
	{Name: ColState, Type: arrow.BinaryTypes.String},
	{Name: ColZip, Type: arrow.PrimitiveTypes.Int64},
	{Name: ColLat, Type: arrow.PrimitiveTypes.Float64},
	{Name: ColLong, Type: arrow.PrimitiveTypes.Float64},
	{Name: ColCityPop, Type: arrow.PrimitiveTypes.Int64},
	{Name: ColJob, Type: arrow.BinaryTypes.String},
	{Name: ColDOB, Type: arrow.BinaryTypes.String},
	{Name: ColTransNum, Type: arrow.BinaryTypes.String},
	{Name: ColUnixTime, Type: arrow.PrimitiveTypes.Int64},
	{Name: ColMerchLat, Type: arrow.PrimitiveTypes.Float64},
	{Name: ColMerchLong, Type: arrow.PrimitiveTypes.Float64},
	{Name: ColIsFraud, Type: arrow.PrimitiveTypes.Int64},
}, nil)

// NumericField is a numeric column with a typed accessor.
type NumericField struct {
	Name  string
	Value func(tx *Transaction) float64
}

// NumericFields lists the numeric columns of the dataset in file order.
var NumericFields = []NumericField{
	{Name: ColRowIndex, Value: func(tx *Transaction) float64 { return float64(tx.RowIndex) }},
	{Name: ColCCNum, Value: func(tx *Transaction) float64 { return float64(tx.CCNum) }},
	{Name: ColAmount, Value: func(tx *Transaction) float64 { return tx.Amount }},
	{Name: ColZip, Value: func(tx *Transaction) float64 { return float64(tx.Zip) }},
	{Name: ColLat, Value: func(tx *Transaction) float64 { return tx.Lat }},
	{Name: ColLong, Value: func(tx *Transaction) float64 { return tx.Long }},
	{Name: ColCityPop, Value: func(tx *Transaction) float64 { return float64(tx.CityPop) }},
	{Name: ColUnixTime, Value: func(tx *Transaction) float64 { return float64(tx.UnixTime) }},
	{Name: ColMerchLat, Value: func(tx *Transaction) float64 { return tx.MerchLat }},
	{Name: ColMerchLong, Value: func(tx *Transaction) float64 { return tx.MerchLong }},
	{Name: ColIsFraud, Value: func(tx *Transaction) float64 {
		if tx.IsFraud {
			return 1
		}
		return 0
	}},
}

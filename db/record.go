package db

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// columns binds the typed Arrow arrays of one record batch.
type columns struct {
	rowIndex, ccNum, zip, cityPop, unixTime, isFraud *array.Int64
	amount, lat, long, merchLat, merchLong          *array.Float64

	transTime, merchant, category, first, last, gender *array.String
	street, city, state, job, dob, transNum            *array.String
}

func column[T arrow.Array](rec arrow.Record, name string) (T, error) {
	var zero T
	idx := rec.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return zero, fmt.Errorf("%w: column %q not found", ErrSchemaMismatch, name)
	}
	col := rec.Column(idx[0])
	typed, ok := col.(T)
	if !ok {
		return zero, fmt.Errorf("%w: column %q has type %s", ErrSchemaMismatch, name, col.DataType())
	}
	if col.NullN() > 0 {
		return zero, fmt.Errorf("%w: column %q contains %d nulls", ErrSchemaMismatch, name, col.NullN())
	}
	return typed, nil
}

func bindColumns(rec arrow.Record) (*columns, error) {
	var (
		c   columns
		err error
	)
	ints := []struct {
		dst  **array.Int64
		name string
	}{
		{&c.rowIndex, ColRowIndex}, {&c.ccNum, ColCCNum}, {&c.zip, ColZip},
		{&c.cityPop, ColCityPop}, {&c.unixTime, ColUnixTime}, {&c.isFraud, ColIsFraud},
	}
	for _, f := range ints {
		if *f.dst, err = column[*array.Int64](rec, f.name); err != nil {
			return nil, err
		}
	}
	floats := []struct {
		dst  **array.Float64
		name string
	}{
		{&c.amount, ColAmount}, {&c.lat, ColLat}, {&c.long, ColLong},
		{&c.merchLat, ColMerchLat}, {&c.merchLong, ColMerchLong},
	}
	for _, f := range floats {
		if *f.dst, err = column[*array.Float64](rec, f.name); err != nil {
			return nil, err
		}
	}
	strs := []struct {
		dst  **array.String
		name string
	}{
		{&c.transTime, ColTransTime}, {&c.merchant, ColMerchant}, {&c.category, ColCategory},
		{&c.first, ColFirst}, {&c.last, ColLast}, {&c.gender, ColGender},
		{&c.street, ColStreet}, {&c.city, ColCity}, {&c.state, ColState},
		{&c.job, ColJob}, {&c.dob, ColDOB}, {&c.transNum, ColTransNum},
	}
	for _, f := range strs {
		if *f.dst, err = column[*array.String](rec, f.name); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func (c *columns) transaction(i int) (Transaction, error) {
	ts, err := time.ParseInLocation(TimeLayout, c.transTime.Value(i), time.UTC)
	if err != nil {
		return Transaction{}, fmt.Errorf("row %d: parse %s: %w", i, ColTransTime, err)
	}
	return Transaction{
		RowIndex:  c.rowIndex.Value(i),
		TransTime: ts,
		CCNum:     c.ccNum.Value(i),
		Merchant:  c.merchant.Value(i),
		Category:  c.category.Value(i),
		Amount:    c.amount.Value(i),
		First:     c.first.Value(i),
		Last:      c.last.Value(i),
		Gender:    c.gender.Value(i),
		Street:    c.street.Value(i),
		City:      c.city.Value(i),
		State:     c.state.Value(i),
		Zip:       c.zip.Value(i),
		Lat:       c.lat.Value(i),
		Long:      c.long.Value(i),
		CityPop:   c.cityPop.Value(i),
		Job:       c.job.Value(i),
		DOB:       c.dob.Value(i),
		TransNum:  c.transNum.Value(i),
		UnixTime:  c.unixTime.Value(i),
		MerchLat:  c.merchLat.Value(i),
		MerchLong: c.merchLong.Value(i),
		IsFraud:   c.isFraud.Value(i) != 0,
	}, nil
}

// AppendRecord converts one record batch and appends its rows to rows.
func AppendRecord(rows []Transaction, rec arrow.Record) ([]Transaction, error) {
	cols, err := bindColumns(rec)
	if err != nil {
		return rows, err
	}
	n := int(rec.NumRows())
	for i := 0; i < n; i++ {
		tx, err := cols.transaction(i)
		if err != nil {
			return rows, err
		}
		rows = append(rows, tx)
	}
	return rows, nil
}

// FromRecords builds a Table from record batches in order. It fails fast on
// the first missing or mistyped column.
func FromRecords(records []arrow.Record) (*Table, error) {
	var total int64
	for _, rec := range records {
		total += rec.NumRows()
	}
	rows := make([]Transaction, 0, total)
	for i, rec := range records {
		var err error
		if rows, err = AppendRecord(rows, rec); err != nil {
			return nil, fmt.Errorf("record batch %d: %w", i, err)
		}
	}
	return NewTable(rows), nil
}

// Records encodes the table as record batches of at most chunk rows using
// CSVSchema. Callers release the returned records.
func (t *Table) Records(mem memory.Allocator, chunk int) []arrow.Record {
	if chunk <= 0 {
		chunk = t.Len()
	}
	var out []arrow.Record
	rows := t.Rows()
	for start := 0; start < len(rows); start += chunk {
		end := start + chunk
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, buildRecord(mem, rows[start:end]))
	}
	return out
}

func buildRecord(mem memory.Allocator, rows []Transaction) arrow.Record {
	builder := array.NewRecordBuilder(mem, CSVSchema)
	defer builder.Release()

	b := func(i int) array.Builder { return builder.Field(i) }
	for _, tx := range rows {
		b(0).(*array.Int64Builder).Append(tx.RowIndex)
		b(1).(*array.StringBuilder).Append(tx.TransTime.UTC().Format(TimeLayout))
		b(2).(*array.Int64Builder).Append(tx.CCNum)
		b(3).(*array.StringBuilder).Append(tx.Merchant)
		b(4).(*array.StringBuilder).Append(tx.Category)
		b(5).(*array.Float64Builder).Append(tx.Amount)
		b(6).(*array.StringBuilder).Append(tx.First)
		b(7).(*array.StringBuilder).Append(tx.Last)
		b(8).(*array.StringBuilder).Append(tx.Gender)
		b(9).(*array.StringBuilder).Append(tx.Street)
		b(10).(*array.StringBuilder).Append(tx.City)
		b(11).(*array.StringBuilder).Append(tx.State)
		b(12).(*array.Int64Builder).Append(tx.Zip)
		b(13).(*array.Float64Builder).Append(tx.Lat)
		b(14).(*array.Float64Builder).Append(tx.Long)
		b(15).(*array.Int64Builder).Append(tx.CityPop)
		b(16).(*array.StringBuilder).Append(tx.Job)
		b(17).(*array.StringBuilder).Append(tx.DOB)
		b(18).(*array.StringBuilder).Append(tx.TransNum)
		b(19).(*array.Int64Builder).Append(tx.UnixTime)
		b(20).(*array.Float64Builder).Append(tx.MerchLat)
		b(21).(*array.Float64Builder).Append(tx.MerchLong)
		var fraud int64
		if tx.IsFraud {
			fraud = 1
		}
		b(22).(*array.Int64Builder).Append(fraud)
	}
	return builder.NewRecord()
}

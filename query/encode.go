package query

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/aqilqeka/Aqil-project/db"
)

var (
	summarySchema = arrow.NewSchema([]arrow.Field{
		{Name: "total", Type: arrow.PrimitiveTypes.Int64},
		{Name: "fraud", Type: arrow.PrimitiveTypes.Int64},
		{Name: "fraud_rate", Type: arrow.PrimitiveTypes.Float64},
	}, nil)
	amountSchema = arrow.NewSchema([]arrow.Field{
		{Name: "lower", Type: arrow.PrimitiveTypes.Float64},
		{Name: "upper", Type: arrow.PrimitiveTypes.Float64},
		{Name: "normal", Type: arrow.PrimitiveTypes.Int64},
		{Name: "fraud", Type: arrow.PrimitiveTypes.Int64},
	}, nil)
	timeSeriesSchema = arrow.NewSchema([]arrow.Field{
		{Name: "date", Type: arrow.FixedWidthTypes.Date32},
		{Name: "total", Type: arrow.PrimitiveTypes.Int64},
		{Name: "fraud", Type: arrow.PrimitiveTypes.Int64},
	}, nil)
	categorySchema = arrow.NewSchema([]arrow.Field{
		{Name: "category", Type: arrow.BinaryTypes.String},
		{Name: "fraud_count", Type: arrow.PrimitiveTypes.Int64},
	}, nil)
	hourlySchema = arrow.NewSchema([]arrow.Field{
		{Name: "hour", Type: arrow.PrimitiveTypes.Int64},
		{Name: "fraud_status", Type: arrow.BinaryTypes.String},
		{Name: "count", Type: arrow.PrimitiveTypes.Int64},
	}, nil)
	jobSchema = arrow.NewSchema([]arrow.Field{
		{Name: "job", Type: arrow.BinaryTypes.String},
		{Name: "fraud_count", Type: arrow.PrimitiveTypes.Int64},
	}, nil)
	geoSchema = arrow.NewSchema([]arrow.Field{
		{Name: "merch_lat", Type: arrow.PrimitiveTypes.Float64},
		{Name: "merch_long", Type: arrow.PrimitiveTypes.Float64},
		{Name: "gender", Type: arrow.BinaryTypes.String},
		{Name: "fraud_count", Type: arrow.PrimitiveTypes.Int64},
	}, nil)
)

// Schema returns the Arrow schema EncodeRecord produces for kind.
func Schema(kind Aggregate) (*arrow.Schema, error) {
	switch kind {
	case AggSummary:
		return summarySchema, nil
	case AggAmount:
		return amountSchema, nil
	case AggTimeSeries:
		return timeSeriesSchema, nil
	case AggCategory, AggLateNight:
		return categorySchema, nil
	case AggHourly:
		return hourlySchema, nil
	case AggJob:
		return jobSchema, nil
	case AggGeo:
		return geoSchema, nil
	case AggCorrelation:
		names := make([]string, len(db.NumericFields))
		for i, f := range db.NumericFields {
			names[i] = f.Name
		}
		return correlationSchema(names), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAggregate, kind)
}

func correlationSchema(names []string) *arrow.Schema {
	fields := []arrow.Field{{Name: "field", Type: arrow.BinaryTypes.String}}
	for _, name := range names {
		fields = append(fields, arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	}
	return arrow.NewSchema(fields, nil)
}

// EncodeRecord renders the derived table kind of res as an Arrow record with
// named columns. Aggregates that were not computed encode as zero rows. The
// caller releases the record.
func EncodeRecord(mem memory.Allocator, kind Aggregate, res *Result) (arrow.Record, error) {
	switch kind {
	case AggSummary:
		b := array.NewRecordBuilder(mem, summarySchema)
		defer b.Release()
		if s := res.Summary; s != nil {
			b.Field(0).(*array.Int64Builder).Append(int64(s.Total))
			b.Field(1).(*array.Int64Builder).Append(int64(s.Fraud))
			b.Field(2).(*array.Float64Builder).Append(s.FraudRate)
		}
		return b.NewRecord(), nil

	case AggAmount:
		b := array.NewRecordBuilder(mem, amountSchema)
		defer b.Release()
		if h := res.Amount; h != nil {
			for _, bin := range h.Bins {
				b.Field(0).(*array.Float64Builder).Append(bin.Lower)
				b.Field(1).(*array.Float64Builder).Append(bin.Upper)
				b.Field(2).(*array.Int64Builder).Append(int64(bin.Normal))
				b.Field(3).(*array.Int64Builder).Append(int64(bin.Fraud))
			}
		}
		return b.NewRecord(), nil

	case AggTimeSeries:
		b := array.NewRecordBuilder(mem, timeSeriesSchema)
		defer b.Release()
		for _, dc := range res.TimeSeries {
			b.Field(0).(*array.Date32Builder).Append(arrow.Date32FromTime(dc.Date))
			b.Field(1).(*array.Int64Builder).Append(int64(dc.Total))
			b.Field(2).(*array.Int64Builder).Append(int64(dc.Fraud))
		}
		return b.NewRecord(), nil

	case AggCategory, AggLateNight:
		counts := res.Categories
		if kind == AggLateNight {
			counts = res.LateNight
		}
		b := array.NewRecordBuilder(mem, categorySchema)
		defer b.Release()
		for _, c := range counts {
			b.Field(0).(*array.StringBuilder).Append(c.Category)
			b.Field(1).(*array.Int64Builder).Append(int64(c.FraudCount))
		}
		return b.NewRecord(), nil

	case AggHourly:
		b := array.NewRecordBuilder(mem, hourlySchema)
		defer b.Release()
		for _, hc := range res.Hourly {
			b.Field(0).(*array.Int64Builder).Append(int64(hc.Hour))
			b.Field(1).(*array.StringBuilder).Append(string(hc.Outcome))
			b.Field(2).(*array.Int64Builder).Append(int64(hc.Count))
		}
		return b.NewRecord(), nil

	case AggJob:
		b := array.NewRecordBuilder(mem, jobSchema)
		defer b.Release()
		for _, jc := range res.Jobs {
			b.Field(0).(*array.StringBuilder).Append(jc.Job)
			b.Field(1).(*array.Int64Builder).Append(int64(jc.FraudCount))
		}
		return b.NewRecord(), nil

	case AggGeo:
		b := array.NewRecordBuilder(mem, geoSchema)
		defer b.Release()
		for _, g := range res.Geo {
			b.Field(0).(*array.Float64Builder).Append(g.Lat)
			b.Field(1).(*array.Float64Builder).Append(g.Long)
			b.Field(2).(*array.StringBuilder).Append(g.Gender)
			b.Field(3).(*array.Int64Builder).Append(int64(g.FraudCount))
		}
		return b.NewRecord(), nil

	case AggCorrelation:
		return encodeCorrelation(mem, res.Correlation), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAggregate, kind)
}

// encodeCorrelation writes one row per field with a column per field.
// NaN coefficients are written as nulls.
func encodeCorrelation(mem memory.Allocator, m *CorrelationMatrix) arrow.Record {
	if m == nil {
		m = &CorrelationMatrix{}
	}
	b := array.NewRecordBuilder(mem, correlationSchema(m.Fields))
	defer b.Release()

	for i, name := range m.Fields {
		b.Field(0).(*array.StringBuilder).Append(name)
		for j, v := range m.Values[i] {
			fb := b.Field(j + 1).(*array.Float64Builder)
			if math.IsNaN(v) {
				fb.AppendNull()
				continue
			}
			fb.Append(v)
		}
	}
	return b.NewRecord()
}

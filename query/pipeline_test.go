package query_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/aqilqeka/Aqil-project/db/dbtest"
	"github.com/aqilqeka/Aqil-project/query"
)

func TestPipelineRunAll(t *testing.T) {
	table := dbtest.Sample(3000)
	p := query.NewPipeline(zaptest.NewLogger(t))

	res, err := p.Run(table, 2000)
	require.NoError(t, err)

	assert.NotEmpty(t, res.PassID)
	assert.Equal(t, 2000, res.Rows)
	require.NotNil(t, res.Summary)
	assert.Equal(t, 3000, res.Summary.Total, "summary covers the whole table")
	require.NotNil(t, res.Amount)
	assert.Len(t, res.Amount.Bins, query.DefaultAmountBins)
	assert.NotEmpty(t, res.TimeSeries)
	assert.NotEmpty(t, res.Categories)
	assert.NotEmpty(t, res.Hourly)
	assert.NotEmpty(t, res.LateNight)
	assert.NotEmpty(t, res.Jobs)
	assert.NotEmpty(t, res.Geo)
	require.NotNil(t, res.Correlation)

	total := 0
	for _, hc := range res.Hourly {
		total += hc.Count
	}
	assert.Equal(t, 2000, total, "aggregates read only the selected prefix")
}

func TestPipelineRunSubset(t *testing.T) {
	p := query.NewPipeline(nil)

	res, err := p.Run(dbtest.Sample(100), 100, query.AggCategory)
	require.NoError(t, err)
	assert.NotNil(t, res.Value(query.AggCategory))
	assert.Nil(t, res.Value(query.AggSummary))
	assert.Nil(t, res.Amount)
}

func TestPipelineUnknownAggregate(t *testing.T) {
	p := query.NewPipeline(nil)

	_, err := p.Run(dbtest.Sample(10), 10, query.Aggregate("prediction"))
	assert.ErrorIs(t, err, query.ErrUnknownAggregate)

	_, err = query.ParseAggregate("nope")
	assert.ErrorIs(t, err, query.ErrUnknownAggregate)
}

func TestEncodeRecord(t *testing.T) {
	pool := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer pool.AssertSize(t, 0)

	res, err := query.NewPipeline(nil).Run(dbtest.Sample(500), 500)
	require.NoError(t, err)

	for _, kind := range query.Aggregates {
		rec, err := query.EncodeRecord(pool, kind, res)
		require.NoError(t, err, kind)
		assert.Positive(t, rec.NumRows(), kind)
		rec.Release()
	}

	rec, err := query.EncodeRecord(pool, query.AggCategory, res)
	require.NoError(t, err)
	defer rec.Release()
	require.Equal(t, int64(len(res.Categories)), rec.NumRows())
	assert.Equal(t, "category", rec.ColumnName(0))
	assert.Equal(t, "fraud_count", rec.ColumnName(1))
	assert.Equal(t, res.Categories[0].Category, rec.Column(0).(*array.String).Value(0))
	assert.Equal(t, int64(res.Categories[0].FraudCount), rec.Column(1).(*array.Int64).Value(0))
}

func TestEncodeCorrelationNulls(t *testing.T) {
	res, err := query.NewPipeline(nil).Run(dbtest.Sample(50), 50, query.AggCorrelation)
	require.NoError(t, err)

	rec, err := query.EncodeRecord(memory.DefaultAllocator, query.AggCorrelation, res)
	require.NoError(t, err)
	defer rec.Release()

	assert.Equal(t, int64(len(res.Correlation.Fields)), rec.NumRows())
	assert.Equal(t, int64(len(res.Correlation.Fields)+1), rec.NumCols())
}

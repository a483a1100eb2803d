package query

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/aqilqeka/Aqil-project/db"
)

// Aggregate names one derived table.
type Aggregate string

const (
	AggSummary     Aggregate = "summary"
	AggAmount      Aggregate = "amount_distribution"
	AggTimeSeries  Aggregate = "time_series"
	AggCategory    Aggregate = "category_ranking"
	AggHourly      Aggregate = "hourly_velocity"
	AggLateNight   Aggregate = "late_night_category"
	AggJob         Aggregate = "fraud_by_job"
	AggGeo         Aggregate = "geo_fraud_by_gender"
	AggCorrelation Aggregate = "correlation"
)

// Aggregates lists every aggregate in page order.
var Aggregates = []Aggregate{
	AggSummary, AggAmount, AggTimeSeries, AggCategory, AggHourly,
	AggLateNight, AggJob, AggGeo, AggCorrelation,
}

// ErrUnknownAggregate is returned for names outside Aggregates.
var ErrUnknownAggregate = errors.New("unknown aggregate")

// ParseAggregate validates an aggregate name.
func ParseAggregate(name string) (Aggregate, error) {
	for _, a := range Aggregates {
		if string(a) == name {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAggregate, name)
}

// ---------------------------------------------------------------------
// Prometheus Metrics
// ---------------------------------------------------------------------

var (
	aggregateLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "fraudboard_aggregate_latency_seconds",
		Help: "Aggregation latency distribution per derived table",
	}, []string{"aggregate"})
	passRows = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fraudboard_pass_rows",
		Help:    "Row-count selection of each render pass",
		Buckets: prometheus.ExponentialBuckets(1000, 4, 8),
	})
)

func init() {
	prometheus.MustRegister(aggregateLatency, passRows)
}

// ---------------------------------------------------------------------
// Pipeline
// ---------------------------------------------------------------------

// Result holds the derived tables of one render pass. Only the requested
// aggregates are set.
type Result struct {
	PassID string
	Rows   int

	Summary     *Summary
	Amount      *AmountHistogram
	TimeSeries  []DailyCount
	Categories  []CategoryCount
	Hourly      []HourlyCount
	LateNight   []CategoryCount
	Jobs        []JobCount
	Geo         []GeoPoint
	Correlation *CorrelationMatrix
}

// Value returns the derived table for kind, or nil when it was not computed.
func (r *Result) Value(kind Aggregate) any {
	switch kind {
	case AggSummary:
		if r.Summary == nil {
			return nil
		}
		return r.Summary
	case AggAmount:
		if r.Amount == nil {
			return nil
		}
		return r.Amount
	case AggTimeSeries:
		return r.TimeSeries
	case AggCategory:
		return r.Categories
	case AggHourly:
		return r.Hourly
	case AggLateNight:
		return r.LateNight
	case AggJob:
		return r.Jobs
	case AggGeo:
		return r.Geo
	case AggCorrelation:
		if r.Correlation == nil {
			return nil
		}
		return r.Correlation
	}
	return nil
}

// Pipeline runs render passes over a shared, read-only table. It keeps no
// state between passes.
type Pipeline struct {
	logger *zap.Logger
	bins   int
}

// NewPipeline creates a pipeline that logs to logger.
func NewPipeline(logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{logger: logger, bins: DefaultAmountBins}
}

// Run takes the first rows rows of table, enriches them once and computes
// the requested aggregates (all of them when kinds is empty). The summary is
// always computed over the full table.
func (p *Pipeline) Run(table *db.Table, rows int, kinds ...Aggregate) (*Result, error) {
	if len(kinds) == 0 {
		kinds = Aggregates
	}
	for _, k := range kinds {
		if _, err := ParseAggregate(string(k)); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	subset := table.Head(rows)
	frame := Enrich(subset)
	res := &Result{PassID: uuid.NewString(), Rows: subset.Len()}
	passRows.Observe(float64(subset.Len()))

	for _, k := range kinds {
		t := time.Now()
		p.compute(res, k, table, frame)
		aggregateLatency.WithLabelValues(string(k)).Observe(time.Since(t).Seconds())
	}

	p.logger.Debug("render pass complete",
		zap.String("pass_id", res.PassID),
		zap.Int("rows", res.Rows),
		zap.Int("aggregates", len(kinds)),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (p *Pipeline) compute(res *Result, kind Aggregate, table *db.Table, frame *Frame) {
	switch kind {
	case AggSummary:
		s := Summarize(table)
		res.Summary = &s
	case AggAmount:
		h := AmountDistribution(frame, p.bins)
		res.Amount = &h
	case AggTimeSeries:
		res.TimeSeries = TimeSeries(frame)
	case AggCategory:
		res.Categories = CategoryRanking(frame)
	case AggHourly:
		res.Hourly = HourlyVelocity(frame)
	case AggLateNight:
		res.LateNight = LateNightByCategory(frame)
	case AggJob:
		res.Jobs = FraudByJob(frame)
	case AggGeo:
		res.Geo = GeoFraudByGender(frame)
	case AggCorrelation:
		m := Correlation(frame)
		res.Correlation = &m
	}
}

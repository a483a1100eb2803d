package dashboard

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/aqilqeka/Aqil-project/query"
)

// Chart names one rendered figure of the page.
type Chart string

const (
	ChartAmount     Chart = "amount"
	ChartTimeSeries Chart = "timeseries"
	ChartCategory   Chart = "category"
	ChartHourly     Chart = "hourly"
	ChartLateNight  Chart = "latenight"
	ChartJob        Chart = "job"
	ChartGeo        Chart = "geo"
)

// Figure is a chart with its caption on the page.
type Figure struct {
	Name    Chart
	Caption string
}

// Figures lists the charts in page order.
var Figures = []Figure{
	{ChartAmount, "Transaction amount distribution"},
	{ChartTimeSeries, "Transactions over time"},
	{ChartCategory, "Fraud by merchant category"},
	{ChartHourly, "Transactions by hour of day"},
	{ChartLateNight, "Late-night fraud (22:00 to 23:59) by category"},
	{ChartJob, "Fraud by cardholder job"},
	{ChartGeo, "Fraud locations by gender"},
}

var chartAggregates = map[Chart]query.Aggregate{
	ChartAmount:     query.AggAmount,
	ChartTimeSeries: query.AggTimeSeries,
	ChartCategory:   query.AggCategory,
	ChartHourly:     query.AggHourly,
	ChartLateNight:  query.AggLateNight,
	ChartJob:        query.AggJob,
	ChartGeo:        query.AggGeo,
}

const (
	chartWidth  = 900
	chartHeight = 480
	// maxJobBars caps the job chart. The full ranking is served by the API.
	maxJobBars = 25
)

var (
	normalColor = chart.ColorBlue
	fraudColor  = chart.ColorRed
)

var errEmptyChart = errors.New("nothing to draw")

// ErrUnknownChart is returned for chart names outside Figures.
var ErrUnknownChart = errors.New("unknown chart")

// aggregateFor returns the derived table chart c draws.
func aggregateFor(c Chart) (query.Aggregate, error) {
	kind, ok := chartAggregates[c]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownChart, c)
	}
	return kind, nil
}

// renderChart draws chart c from res as a PNG. It returns errEmptyChart
// when the derived table has no rows.
func renderChart(c Chart, res *query.Result) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch c {
	case ChartAmount:
		err = amountChart(&buf, res.Amount)
	case ChartTimeSeries:
		err = timeSeriesChart(&buf, res.TimeSeries)
	case ChartCategory:
		err = categoryChart(&buf, "Fraud count by category", res.Categories)
	case ChartLateNight:
		late := slices.Clone(res.LateNight)
		query.SortByCountDesc(late)
		err = categoryChart(&buf, "Late-night fraud count by category", late)
	case ChartHourly:
		err = hourlyChart(&buf, res.Hourly)
	case ChartJob:
		err = jobChart(&buf, res.Jobs)
	case ChartGeo:
		err = geoChart(&buf, res.Geo)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChart, c)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ---------------------------------------------------------------------
// Renderers
// ---------------------------------------------------------------------

func amountChart(w io.Writer, h *query.AmountHistogram) error {
	if h == nil || len(h.Bins) == 0 {
		return errEmptyChart
	}
	xs := make([]float64, len(h.Bins))
	normal := make([]float64, len(h.Bins))
	fraud := make([]float64, len(h.Bins))
	var maxNormal, maxFraud float64
	for i, b := range h.Bins {
		xs[i] = (b.Lower + b.Upper) / 2
		normal[i] = float64(b.Normal)
		fraud[i] = float64(b.Fraud)
		maxNormal = max(maxNormal, normal[i])
		maxFraud = max(maxFraud, fraud[i])
	}

	graph := chart.Chart{
		Title:  "Amount distribution by outcome",
		Width:  chartWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:           "amount",
			Range:          spanRange(h.Min, h.Max),
			ValueFormatter: amountFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "normal",
			Range:          countRange(maxNormal),
			ValueFormatter: countFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "fraud",
			Range:          countRange(maxFraud),
			ValueFormatter: countFormatter,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    string(query.OutcomeNormal),
				Style:   lineStyle(normalColor),
				XValues: xs,
				YValues: normal,
			},
			chart.ContinuousSeries{
				Name:    string(query.OutcomeFraud),
				Style:   lineStyle(fraudColor),
				YAxis:   chart.YAxisSecondary,
				XValues: xs,
				YValues: fraud,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph.Render(chart.PNG, w)
}

func timeSeriesChart(w io.Writer, days []query.DailyCount) error {
	if len(days) == 0 {
		return errEmptyChart
	}
	xs := make([]time.Time, len(days))
	total := make([]float64, len(days))
	fraud := make([]float64, len(days))
	var maxTotal, maxFraud float64
	for i, d := range days {
		xs[i] = d.Date
		total[i] = float64(d.Total)
		fraud[i] = float64(d.Fraud)
		maxTotal = max(maxTotal, total[i])
		maxFraud = max(maxFraud, fraud[i])
	}
	first, last := days[0].Date, days[len(days)-1].Date
	if !last.After(first) {
		first, last = first.Add(-12*time.Hour), last.Add(12*time.Hour)
	}

	graph := chart.Chart{
		Title:  "Daily transactions",
		Width:  chartWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Range:          &chart.ContinuousRange{Min: chart.TimeToFloat64(first), Max: chart.TimeToFloat64(last)},
			ValueFormatter: dateFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "transactions",
			Range:          countRange(maxTotal),
			ValueFormatter: countFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "fraud",
			Range:          countRange(maxFraud),
			ValueFormatter: countFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Total",
				Style:   lineStyle(normalColor),
				XValues: xs,
				YValues: total,
			},
			chart.TimeSeries{
				Name:    string(query.OutcomeFraud),
				Style:   lineStyle(fraudColor),
				YAxis:   chart.YAxisSecondary,
				XValues: xs,
				YValues: fraud,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph.Render(chart.PNG, w)
}

func hourlyChart(w io.Writer, counts []query.HourlyCount) error {
	if len(counts) == 0 {
		return errEmptyChart
	}
	hours := make([]float64, 24)
	normal := make([]float64, 24)
	fraud := make([]float64, 24)
	for h := range hours {
		hours[h] = float64(h)
	}
	for _, c := range counts {
		if c.Outcome == query.OutcomeFraud {
			fraud[c.Hour] = float64(c.Count)
		} else {
			normal[c.Hour] = float64(c.Count)
		}
	}

	graph := chart.Chart{
		Title:  "Hourly transaction velocity",
		Width:  chartWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:           "hour of day",
			Range:          &chart.ContinuousRange{Min: 0, Max: 23},
			ValueFormatter: countFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "normal",
			Range:          countRange(slices.Max(normal)),
			ValueFormatter: countFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "fraud",
			Range:          countRange(slices.Max(fraud)),
			ValueFormatter: countFormatter,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    string(query.OutcomeNormal),
				Style:   lineStyle(normalColor),
				XValues: hours,
				YValues: normal,
			},
			chart.ContinuousSeries{
				Name:    string(query.OutcomeFraud),
				Style:   lineStyle(fraudColor),
				YAxis:   chart.YAxisSecondary,
				XValues: hours,
				YValues: fraud,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph.Render(chart.PNG, w)
}

func categoryChart(w io.Writer, title string, counts []query.CategoryCount) error {
	bars := make([]chart.Value, len(counts))
	for i, c := range counts {
		bars[i] = chart.Value{Label: c.Category, Value: float64(c.FraudCount)}
	}
	return barChart(w, title, bars)
}

func jobChart(w io.Writer, counts []query.JobCount) error {
	if len(counts) > maxJobBars {
		counts = counts[:maxJobBars]
	}
	bars := make([]chart.Value, len(counts))
	for i, c := range counts {
		bars[i] = chart.Value{Label: c.Job, Value: float64(c.FraudCount)}
	}
	return barChart(w, "Fraud count by job", bars)
}

func barChart(w io.Writer, title string, bars []chart.Value) error {
	if len(bars) == 0 {
		return errEmptyChart
	}
	var top float64
	for i := range bars {
		bars[i].Style = chart.Style{FillColor: fraudColor, StrokeColor: fraudColor}
		top = max(top, bars[i].Value)
	}

	bc := chart.BarChart{
		Title:  title,
		Width:  max(chartWidth, 60*len(bars)),
		Height: chartHeight + 120,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 120},
		},
		XAxis:    chart.Style{TextRotationDegrees: 45},
		BarWidth: 40,
		Bars:     bars,
		YAxis: chart.YAxis{
			Range:          countRange(top),
			ValueFormatter: countFormatter,
		},
	}
	return bc.Render(chart.PNG, w)
}

func geoChart(w io.Writer, points []query.GeoPoint) error {
	if len(points) == 0 {
		return errEmptyChart
	}
	type coords struct{ lat, long []float64 }
	byGender := map[string]*coords{}
	var genders []string
	minLat, maxLat := points[0].Lat, points[0].Lat
	minLong, maxLong := points[0].Long, points[0].Long
	for _, p := range points {
		c, ok := byGender[p.Gender]
		if !ok {
			c = &coords{}
			byGender[p.Gender] = c
			genders = append(genders, p.Gender)
		}
		c.lat = append(c.lat, p.Lat)
		c.long = append(c.long, p.Long)
		minLat, maxLat = min(minLat, p.Lat), max(maxLat, p.Lat)
		minLong, maxLong = min(minLong, p.Long), max(maxLong, p.Long)
	}
	slices.Sort(genders)

	palette := []drawing.Color{fraudColor, normalColor, chart.ColorGreen, chart.ColorOrange}
	var series []chart.Series
	for i, g := range genders {
		color := palette[i%len(palette)]
		series = append(series, chart.ContinuousSeries{
			Name: g,
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    3,
				DotColor:    color,
				StrokeColor: color,
			},
			XValues: byGender[g].long,
			YValues: byGender[g].lat,
		})
	}

	graph := chart.Chart{
		Title:  "Fraudulent merchant locations",
		Width:  chartWidth,
		Height: chartHeight + 120,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{Name: "merch_long", Range: spanRange(minLong, maxLong), ValueFormatter: coordFormatter},
		YAxis: chart.YAxis{Name: "merch_lat", Range: spanRange(minLat, maxLat), ValueFormatter: coordFormatter},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph.Render(chart.PNG, w)
}

// ---------------------------------------------------------------------
// Axes
// ---------------------------------------------------------------------

func lineStyle(c drawing.Color) chart.Style {
	return chart.Style{StrokeColor: c, StrokeWidth: 2}
}

// countRange starts at zero and leaves headroom above top.
func countRange(top float64) *chart.ContinuousRange {
	if top <= 0 {
		top = 1
	}
	return &chart.ContinuousRange{Min: 0, Max: top * 1.1}
}

// spanRange covers [lo, hi], widened when the span is zero.
func spanRange(lo, hi float64) *chart.ContinuousRange {
	if hi <= lo {
		return &chart.ContinuousRange{Min: lo - 1, Max: lo + 1}
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}

func countFormatter(v interface{}) string {
	if vf, isFloat := v.(float64); isFloat {
		return strconv.FormatFloat(vf, 'f', 0, 64)
	}
	return ""
}

func amountFormatter(v interface{}) string {
	if vf, isFloat := v.(float64); isFloat {
		return fmt.Sprintf("$%.0f", vf)
	}
	return ""
}

func coordFormatter(v interface{}) string {
	if vf, isFloat := v.(float64); isFloat {
		return fmt.Sprintf("%.2f", vf)
	}
	return ""
}

func dateFormatter(v interface{}) string {
	if vf, isFloat := v.(float64); isFloat {
		return chart.TimeFromFloat64(vf).UTC().Format("2006-01-02")
	}
	return ""
}

// ---------------------------------------------------------------------
// Render cache
// ---------------------------------------------------------------------

// renderCache keeps rendered PNGs keyed by chart and row count. The table
// never changes once loaded, so entries never go stale.
type renderCache struct {
	mu    sync.Mutex
	cache *lru.Cache
}

func newRenderCache(size int) *renderCache {
	return &renderCache{cache: lru.New(size)}
}

func cacheKey(c Chart, rows int) string {
	return string(c) + "/" + strconv.Itoa(rows)
}

func (c *renderCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

func (c *renderCache) add(key string, png []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(key, png)
}

func (c *renderCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/aqilqeka/Aqil-project/db"
	"github.com/aqilqeka/Aqil-project/db/dbtest"
	"github.com/aqilqeka/Aqil-project/loader"
	"github.com/aqilqeka/Aqil-project/query"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

type pendingSource struct{}

func (pendingSource) Load(context.Context) (*db.Table, error) { return nil, nil }

func newTestServer(t *testing.T, session *loader.Session) *Server {
	t.Helper()
	logger := zaptest.NewLogger(t)
	srv, err := NewServer(Options{Addr: ":0", DefaultRows: 2000, RenderCacheSize: 16}, session, query.NewPipeline(logger), logger)
	require.NoError(t, err)
	return srv
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestClampRows(t *testing.T) {
	tests := []struct {
		name     string
		n, total int
		want     int
	}{
		{"default within table", 100000, 1852394, 100000},
		{"below minimum", 10, 50000, 1000},
		{"above total", 5000000, 1852394, 1852394},
		{"rounded to step", 12345, 50000, 12000},
		{"small table used whole", 100000, 700, 700},
		{"empty table", 100000, 0, 0},
		{"exact total", 3000, 3000, 3000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampRows(tt.n, tt.total))
		})
	}
}

func TestIndexPage(t *testing.T) {
	srv := newTestServer(t, loader.NewStaticSession(dbtest.Sample(3000)))

	rr := get(t, srv, "/")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Total transactions")
	assert.Contains(t, body, ">3000<")
	assert.Contains(t, body, `/charts/category.png?rows=2000`)
	assert.Contains(t, body, "Feature correlation")
	assert.Contains(t, body, db.ColAmount)
}

func TestIndexWhileLoading(t *testing.T) {
	srv := newTestServer(t, loader.NewSession(pendingSource{}))

	rr := get(t, srv, "/")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "Loading the transaction dataset")

	rr = get(t, srv, "/api/summary")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = get(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"loading"}`, rr.Body.String())
}

func TestAPICategoryRanking(t *testing.T) {
	table := dbtest.Sample(3000)
	srv := newTestServer(t, loader.NewStaticSession(table))

	rr := get(t, srv, "/api/category_ranking?rows=2000")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp struct {
		Aggregate string                `json:"aggregate"`
		Rows      int                   `json:"rows"`
		Data      []query.CategoryCount `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "category_ranking", resp.Aggregate)
	assert.Equal(t, 2000, resp.Rows)
	assert.Equal(t, query.CategoryRanking(query.Enrich(table.Head(2000))), resp.Data)
}

func TestAPICorrelationNullsZeroVariance(t *testing.T) {
	srv := newTestServer(t, loader.NewStaticSession(dbtest.Sample(3000)))

	rr := get(t, srv, "/api/correlation")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data struct {
			Fields []string     `json:"fields"`
			Values [][]*float64 `json:"values"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, db.ColRowIndex, resp.Data.Fields[0])
	require.Equal(t, db.ColCCNum, resp.Data.Fields[1])
	require.NotNil(t, resp.Data.Values[0][0])
	assert.InDelta(t, 1.0, *resp.Data.Values[0][0], 1e-9)
	assert.Nil(t, resp.Data.Values[1][1], "constant card number has no correlation")
}

func TestAPIArrowFormat(t *testing.T) {
	srv := newTestServer(t, loader.NewStaticSession(dbtest.Sample(3000)))

	rr := get(t, srv, "/api/hourly_velocity?format=arrow")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/vnd.apache.arrow.stream", rr.Header().Get("Content-Type"))

	reader, err := ipc.NewReader(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	defer reader.Release()
	require.True(t, reader.Next())
	rec := reader.Record()
	assert.Equal(t, "hour", rec.ColumnName(0))
	assert.Equal(t, "fraud_status", rec.ColumnName(1))
	assert.Equal(t, "count", rec.ColumnName(2))
	assert.EqualValues(t, 48, rec.NumRows())
}

func TestAPIErrors(t *testing.T) {
	srv := newTestServer(t, loader.NewStaticSession(dbtest.Sample(3000)))

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/prediction").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/summary?rows=lots").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/charts/pie.png").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/charts/category.svg").Code)
}

func TestChartsRenderPNG(t *testing.T) {
	srv := newTestServer(t, loader.NewStaticSession(dbtest.Sample(3000)))

	for _, fig := range Figures {
		t.Run(string(fig.Name), func(t *testing.T) {
			rr := get(t, srv, "/charts/"+string(fig.Name)+".png")
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
			assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), pngMagic))
		})
	}
}

func TestChartCache(t *testing.T) {
	srv := newTestServer(t, loader.NewStaticSession(dbtest.Sample(3000)))

	first := get(t, srv, "/charts/category.png?rows=2000")
	require.Equal(t, http.StatusOK, first.Code)
	second := get(t, srv, "/charts/category.png?rows=2400")
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, 1, srv.charts.len(), "both requests clamp to 2000 rows")
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
}

func TestEmptyChartIsNoContent(t *testing.T) {
	rows := make([]db.Transaction, 1500)
	for i := range rows {
		rows[i] = dbtest.Tx(i%24, "grocery_pos", false)
	}
	srv := newTestServer(t, loader.NewStaticSession(db.NewTable(rows)))

	for _, c := range []Chart{ChartCategory, ChartLateNight, ChartJob, ChartGeo} {
		rr := get(t, srv, "/charts/"+string(c)+".png")
		assert.Equal(t, http.StatusNoContent, rr.Code, c)
		assert.Empty(t, rr.Body.Bytes())
	}
	assert.Equal(t, http.StatusOK, get(t, srv, "/charts/hourly.png").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, loader.NewStaticSession(dbtest.Sample(1000)))
	get(t, srv, "/api/summary")

	rr := get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "fraudboard_aggregate_latency_seconds")
	assert.Contains(t, rr.Body.String(), "fraudboard_http_request_duration_seconds")
}

func TestHeatColor(t *testing.T) {
	assert.Equal(t, "rgba(214, 39, 40, 1.00)", string(heatColor(1)))
	assert.Equal(t, "rgba(31, 119, 180, 0.50)", string(heatColor(-0.5)))
	assert.Equal(t, "#e0e0e0", string(heatColor(nan())))
}

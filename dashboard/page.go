package dashboard

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"math"
	"net/http"

	"go.uber.org/zap"

	"github.com/aqilqeka/Aqil-project/loader"
	"github.com/aqilqeka/Aqil-project/query"
)

// templatesFS embeds HTML templates for server-side rendering.
//
//go:embed templates/*.html
var templatesFS embed.FS

func parseTemplates() (*template.Template, error) {
	t, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}

// heatCell is one coloured cell of the correlation heatmap.
type heatCell struct {
	Text  string
	Color template.CSS
}

type heatRow struct {
	Field string
	Cells []heatCell
}

type pageData struct {
	Loading  bool
	Error    string
	Summary  query.Summary
	Rows     int
	MinRows  int
	MaxRows  int
	Step     int
	Figures  []Figure
	Fields   []string
	Heatmap  []heatRow
	PassID   string
	RowsText string
}

// heatColor maps a coefficient to a blue (negative) to red (positive) shade.
func heatColor(v float64) template.CSS {
	if math.IsNaN(v) {
		return "#e0e0e0"
	}
	a := math.Min(math.Abs(v), 1)
	if v >= 0 {
		return template.CSS(fmt.Sprintf("rgba(214, 39, 40, %.2f)", a))
	}
	return template.CSS(fmt.Sprintf("rgba(31, 119, 180, %.2f)", a))
}

func heatmap(m *query.CorrelationMatrix) []heatRow {
	rows := make([]heatRow, len(m.Fields))
	for i, name := range m.Fields {
		cells := make([]heatCell, len(m.Values[i]))
		for j, v := range m.Values[i] {
			text := "n/a"
			if !math.IsNaN(v) {
				text = fmt.Sprintf("%.2f", v)
			}
			cells[j] = heatCell{Text: text, Color: heatColor(v)}
		}
		rows[i] = heatRow{Field: name, Cells: cells}
	}
	return rows
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := pageData{Figures: Figures, MinRows: MinRows, Step: RowStep}

	table, err := s.session.Table()
	switch {
	case errors.Is(err, loader.ErrNotInitialized):
		data.Loading = true
	case err != nil:
		data.Error = "The dataset failed to load: " + err.Error()
	default:
		data.MaxRows = table.Len()
		data.Rows, err = s.rows(r, table.Len())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data.RowsText = fmt.Sprintf("%d", data.Rows)
		res, err := s.pipeline.Run(table, data.Rows, query.AggSummary, query.AggCorrelation)
		if err != nil {
			s.logger.Error("render pass failed", zap.Error(err))
			data.Error = "Analysis failed: " + err.Error()
			break
		}
		data.PassID = res.PassID
		data.Summary = *res.Summary
		data.Fields = res.Correlation.Fields
		data.Heatmap = heatmap(res.Correlation)
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", data); err != nil {
		s.logger.Error("template execution failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if data.Loading {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_, _ = w.Write(buf.Bytes())
}

package main

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/aqilqeka/Aqil-project/query"
)

// reportTopN limits the long rankings in the printed report.
const reportTopN = 15

// writeReport prints the derived tables of res as text tables.
func writeReport(w io.Writer, res *query.Result) {
	fmt.Fprintf(w, "Render pass %s over %d rows\n\n", res.PassID, res.Rows)

	if s := res.Summary; s != nil {
		section(w, "Summary", []string{"Total", "Fraud", "Fraud rate"}, [][]string{{
			strconv.Itoa(s.Total), strconv.Itoa(s.Fraud), fmt.Sprintf("%.2f%%", s.FraudRate),
		}})
	}

	if h := res.Amount; h != nil {
		var rows [][]string
		for _, b := range h.Bins {
			if b.Normal+b.Fraud == 0 {
				continue
			}
			rows = append(rows, []string{
				fmt.Sprintf("%.2f - %.2f", b.Lower, b.Upper), strconv.Itoa(b.Normal), strconv.Itoa(b.Fraud),
			})
		}
		section(w, "Amount distribution", []string{"Amount", "Normal", "Fraud"}, rows)
	}

	var daily [][]string
	for _, d := range res.TimeSeries {
		daily = append(daily, []string{d.Date.Format("2006-01-02"), strconv.Itoa(d.Total), strconv.Itoa(d.Fraud)})
	}
	section(w, "Daily transactions", []string{"Date", "Total", "Fraud"}, daily)

	section(w, "Fraud by category", []string{"Category", "Fraud count"}, categoryRows(res.Categories))

	var hourly [][]string
	for _, h := range res.Hourly {
		hourly = append(hourly, []string{strconv.Itoa(h.Hour), string(h.Outcome), strconv.Itoa(h.Count)})
	}
	section(w, "Hourly velocity", []string{"Hour", "Fraud status", "Count"}, hourly)

	section(w, "Late-night fraud by category", []string{"Category", "Fraud count"}, categoryRows(res.LateNight))

	var jobs [][]string
	for i, j := range res.Jobs {
		if i == reportTopN {
			break
		}
		jobs = append(jobs, []string{j.Job, strconv.Itoa(j.FraudCount)})
	}
	section(w, "Fraud by job (top 15)", []string{"Job", "Fraud count"}, jobs)

	fmt.Fprintf(w, "Fraud locations: %d distinct (merchant location, gender) groups\n\n", len(res.Geo))

	if m := res.Correlation; m != nil {
		rows := make([][]string, len(m.Fields))
		for i, name := range m.Fields {
			row := []string{name}
			for _, v := range m.Values[i] {
				row = append(row, formatCoefficient(v))
			}
			rows[i] = row
		}
		section(w, "Correlation", append([]string{""}, m.Fields...), rows)
	}
}

func categoryRows(counts []query.CategoryCount) [][]string {
	rows := make([][]string, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, []string{c.Category, strconv.Itoa(c.FraudCount)})
	}
	return rows
}

func formatCoefficient(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}

func section(w io.Writer, title string, header []string, rows [][]string) {
	fmt.Fprintf(w, "%s\n", title)
	if len(rows) == 0 {
		fmt.Fprintf(w, "(no rows)\n\n")
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
	fmt.Fprintln(w)
}

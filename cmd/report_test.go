package main

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqilqeka/Aqil-project/db/dbtest"
	"github.com/aqilqeka/Aqil-project/query"
)

func TestWriteReport(t *testing.T) {
	res, err := query.NewPipeline(nil).Run(dbtest.Sample(700), 700)
	require.NoError(t, err)

	var buf bytes.Buffer
	writeReport(&buf, res)
	out := buf.String()

	for _, title := range []string{"Summary", "Amount distribution", "Daily transactions", "Fraud by category",
		"Hourly velocity", "Late-night fraud by category", "Fraud by job", "Correlation"} {
		assert.Contains(t, out, title)
	}
	assert.Contains(t, out, "grocery_pos")
	assert.Contains(t, out, "FRAUD COUNT")
	assert.Contains(t, out, "n/a")
}

func TestWriteReportEmptySections(t *testing.T) {
	var buf bytes.Buffer
	writeReport(&buf, &query.Result{PassID: "p", Rows: 0})
	assert.Contains(t, buf.String(), "(no rows)")
}

func TestFormatCoefficient(t *testing.T) {
	assert.Equal(t, "n/a", formatCoefficient(math.NaN()))
	assert.Equal(t, "-0.25", formatCoefficient(-0.25))
}

// Package loader fetches the transaction dataset and builds the table the
// aggregation pipeline reads.
package loader

import (
	"bufio"
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/aqilqeka/Aqil-project/db"
)

// csvChunk is the number of rows per Arrow record batch while parsing.
const csvChunk = 64 * 1024

// ParseCSV reads one dataset file. The header must list the columns of
// db.CSVSchema in order; the first, unnamed index column may carry any name.
func ParseCSV(r io.Reader) (*db.Table, error) {
	br := bufio.NewReaderSize(r, 1<<20)
	line, err := br.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if err := checkHeader(line); err != nil {
		return nil, err
	}

	reader := csv.NewReader(br, db.CSVSchema,
		csv.WithChunk(csvChunk),
		csv.WithAllocator(memory.NewGoAllocator()),
	)
	defer reader.Release()

	var rows []db.Transaction
	for reader.Next() {
		// The record is only valid until the next call to Next.
		if rows, err = db.AppendRecord(rows, reader.Record()); err != nil {
			return nil, fmt.Errorf("row %d: %w", len(rows)+1, err)
		}
	}
	if err := reader.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return db.NewTable(rows), nil
}

func checkHeader(line string) error {
	names, err := stdcsv.NewReader(strings.NewReader(line)).Read()
	if err != nil {
		return fmt.Errorf("parse header: %w", err)
	}
	fields := db.CSVSchema.Fields()
	if len(names) != len(fields) {
		return fmt.Errorf("%w: header has %d columns, want %d", db.ErrSchemaMismatch, len(names), len(fields))
	}
	for i := 1; i < len(fields); i++ {
		if got := strings.TrimSpace(names[i]); got != fields[i].Name {
			return fmt.Errorf("%w: column %d is %q, want %q", db.ErrSchemaMismatch, i, got, fields[i].Name)
		}
	}
	return nil
}

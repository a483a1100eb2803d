// Package storage reads and writes transaction tables and derived tables in
// the Arrow IPC formats.
package storage

import (
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/aqilqeka/Aqil-project/db"
)

// SnapshotChunk is the number of rows per record batch in a snapshot file.
const SnapshotChunk = 64 * 1024

// SaveToDisk writes table to filepath in the Arrow IPC file format. The file
// is written to a temporary name and renamed into place, so readers never
// observe a partial snapshot.
func SaveToDisk(filepath string, table *db.Table) error {
	tmp := filepath + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create file %q: %w", tmp, err)
	}
	defer func() {
		_ = file.Close()
		_ = os.Remove(tmp)
	}()

	mem := memory.NewGoAllocator()
	writer, err := ipc.NewFileWriter(file, ipc.WithSchema(db.CSVSchema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("failed to create Arrow file writer: %w", err)
	}

	for _, record := range table.Records(mem, SnapshotChunk) {
		err := writer.Write(record)
		record.Release()
		if err != nil {
			_ = writer.Close()
			return fmt.Errorf("failed to write record to Arrow file: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close Arrow file writer: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close file %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, filepath); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	return nil
}

// LoadFromDisk reads an Arrow IPC file written by SaveToDisk.
func LoadFromDisk(filepath string) (*db.Table, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %q: %w", filepath, err)
	}
	defer func() {
		_ = file.Close()
	}()

	reader, err := ipc.NewFileReader(file, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("failed to create Arrow file reader: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	var rows []db.Transaction
	for i := 0; i < reader.NumRecords(); i++ {
		rec, err := reader.RecordAt(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read record %d from file: %w", i, err)
		}
		rows, err = db.AppendRecord(rows, rec)
		rec.Release()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return db.NewTable(rows), nil
}

// WriteStream writes record to w in the Arrow IPC stream format.
func WriteStream(w io.Writer, record arrow.Record) error {
	writer := ipc.NewWriter(w, ipc.WithSchema(record.Schema()))
	if err := writer.Write(record); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write record to Arrow stream: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close Arrow stream: %w", err)
	}
	return nil
}

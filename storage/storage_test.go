package storage_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqilqeka/Aqil-project/db/dbtest"
	"github.com/aqilqeka/Aqil-project/query"
	"github.com/aqilqeka/Aqil-project/storage"
)

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transactions.arrow")
	table := dbtest.Sample(1500)

	require.NoError(t, storage.SaveToDisk(path, table))
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file is cleaned up")

	got, err := storage.LoadFromDisk(path)
	require.NoError(t, err)
	assert.Equal(t, table.Rows(), got.Rows())
}

func TestLoadFromDiskMissing(t *testing.T) {
	_, err := storage.LoadFromDisk(filepath.Join(t.TempDir(), "absent.arrow"))
	assert.Error(t, err)
}

func TestWriteStream(t *testing.T) {
	res, err := query.NewPipeline(nil).Run(dbtest.Sample(200), 200, query.AggCategory)
	require.NoError(t, err)
	rec, err := query.EncodeRecord(memory.DefaultAllocator, query.AggCategory, res)
	require.NoError(t, err)
	defer rec.Release()

	var buf bytes.Buffer
	require.NoError(t, storage.WriteStream(&buf, rec))

	reader, err := ipc.NewReader(&buf)
	require.NoError(t, err)
	defer reader.Release()
	require.True(t, reader.Next())
	assert.Equal(t, rec.NumRows(), reader.Record().NumRows())
	assert.True(t, reader.Schema().Equal(rec.Schema()))
}

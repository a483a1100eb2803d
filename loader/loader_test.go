package loader_test

import (
	"archive/zip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/aqilqeka/Aqil-project/db"
	"github.com/aqilqeka/Aqil-project/db/dbtest"
	"github.com/aqilqeka/Aqil-project/loader"
)

func writeArchive(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func datasetFiles() (train, test *db.Table, files map[string]string) {
	train = dbtest.Sample(40)
	rows := dbtest.Sample(15).Rows()
	testRows := make([]db.Transaction, len(rows))
	for i, tx := range rows {
		tx.TransNum = "test-" + tx.TransNum
		testRows[i] = tx
	}
	test = db.NewTable(testRows)
	files = map[string]string{
		"nested/" + loader.TrainFile: dbtest.CSV(train.Rows()),
		loader.TestFile:              dbtest.CSV(test.Rows()),
	}
	return train, test, files
}

func TestParseCSV(t *testing.T) {
	want := dbtest.Sample(30)

	got, err := loader.ParseCSV(strings.NewReader(dbtest.CSV(want.Rows())))
	require.NoError(t, err)
	assert.Equal(t, want.Rows(), got.Rows())
}

func TestParseCSVHeaderMismatch(t *testing.T) {
	body := strings.Replace(dbtest.CSV(dbtest.Sample(2).Rows()), "is_fraud", "label", 1)

	_, err := loader.ParseCSV(strings.NewReader(body))
	assert.ErrorIs(t, err, db.ErrSchemaMismatch)
}

func TestParseCSVBadValue(t *testing.T) {
	body := dbtest.Header + "\n0,2019-01-01 00:00:18,x,m,c,1,f,l,F,s,c,NC,1,1,1,1,j,d,t,1,1,1,0\n"

	_, err := loader.ParseCSV(strings.NewReader(body))
	assert.Error(t, err)
}

func TestReadArchiveConcatenatesTrainThenTest(t *testing.T) {
	train, test, files := datasetFiles()

	table, err := loader.ReadArchive(writeArchive(t, files))
	require.NoError(t, err)
	require.Equal(t, train.Len()+test.Len(), table.Len())
	assert.Equal(t, train.Row(0).TransNum, table.Row(0).TransNum)
	assert.Equal(t, test.Row(0).TransNum, table.Row(train.Len()).TransNum)
}

func TestReadArchiveMissingEntry(t *testing.T) {
	path := writeArchive(t, map[string]string{loader.TrainFile: dbtest.CSV(nil)})

	_, err := loader.ReadArchive(path)
	assert.ErrorIs(t, err, loader.ErrMissingEntry)
}

func TestReadDir(t *testing.T) {
	train, test, _ := datasetFiles()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, loader.TrainFile), []byte(dbtest.CSV(train.Rows())), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, loader.TestFile), []byte(dbtest.CSV(test.Rows())), 0o644))

	table, err := loader.ReadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, train.Len()+test.Len(), table.Len())

	_, err = loader.ReadDir(t.TempDir())
	assert.ErrorIs(t, err, loader.ErrMissingEntry)
}

func TestLoadOverHTTPWritesSnapshot(t *testing.T) {
	train, test, files := datasetFiles()
	archive, err := os.ReadFile(writeArchive(t, files))
	require.NoError(t, err)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	cache := t.TempDir()
	l := loader.New(loader.Config{Source: srv.URL + "/dataset.zip", CacheDir: cache}, zaptest.NewLogger(t))
	table, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, train.Len()+test.Len(), table.Len())
	assert.FileExists(t, filepath.Join(cache, loader.SnapshotFile))

	again, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, table.Rows(), again.Rows())
	assert.EqualValues(t, 1, hits.Load(), "snapshot serves the second load")
}

func TestLoadHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	l := loader.New(loader.Config{Source: srv.URL}, nil)
	_, err := l.Load(context.Background())
	assert.ErrorContains(t, err, "404")
}

func TestLoadLocalArchive(t *testing.T) {
	_, _, files := datasetFiles()
	path := writeArchive(t, files)

	table, err := loader.New(loader.Config{Source: "file://" + path}, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 55, table.Len())
}

func TestLoadUnsupportedScheme(t *testing.T) {
	_, err := loader.New(loader.Config{Source: "ftp://example.com/data.zip"}, nil).Load(context.Background())
	assert.ErrorContains(t, err, "unsupported source scheme")
}

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Load(ctx context.Context) (*db.Table, error) {
	args := m.Called(ctx)
	table, _ := args.Get(0).(*db.Table)
	return table, args.Error(1)
}

func TestSessionLoadsOnce(t *testing.T) {
	src := &mockSource{}
	src.On("Load", mock.Anything).Return(dbtest.Sample(5), nil).Once()
	s := loader.NewSession(src)

	_, err := s.Table()
	assert.ErrorIs(t, err, loader.ErrNotInitialized)

	require.NoError(t, s.Init(context.Background()))
	require.NoError(t, s.Init(context.Background()))
	table, err := s.Table()
	require.NoError(t, err)
	assert.Equal(t, 5, table.Len())
	src.AssertExpectations(t)
}

func TestSessionKeepsFailure(t *testing.T) {
	boom := errors.New("network down")
	src := &mockSource{}
	src.On("Load", mock.Anything).Return(nil, boom).Once()
	s := loader.NewSession(src)

	assert.ErrorIs(t, s.Init(context.Background()), boom)
	assert.ErrorIs(t, s.Init(context.Background()), boom)
	_, err := s.Table()
	assert.ErrorIs(t, err, boom)
	src.AssertExpectations(t)
}

func TestStaticSession(t *testing.T) {
	s := loader.NewStaticSession(dbtest.Sample(3))
	require.NoError(t, s.Init(context.Background()))
	table, err := s.Table()
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
}

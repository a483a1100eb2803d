package loader

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/aqilqeka/Aqil-project/db"
)

// Dataset file names inside the archive.
const (
	TrainFile = "fraudTrain.csv"
	TestFile  = "fraudTest.csv"
)

// ErrMissingEntry is returned when the archive lacks a dataset file.
var ErrMissingEntry = errors.New("dataset file missing")

type opener func() (io.ReadCloser, error)

// ReadArchive extracts and parses both dataset files from the zip archive at
// path. Train rows precede test rows.
func ReadArchive(path string) (*db.Table, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %q: %w", path, err)
	}
	defer zr.Close()

	entries := make(map[string]*zip.File)
	for _, f := range zr.File {
		entries[filepath.Base(f.Name)] = f
	}
	open := func(name string) (opener, error) {
		f, ok := entries[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s in %q", ErrMissingEntry, name, path)
		}
		return f.Open, nil
	}
	train, err := open(TrainFile)
	if err != nil {
		return nil, err
	}
	test, err := open(TestFile)
	if err != nil {
		return nil, err
	}
	return parsePair(train, test)
}

// ReadDir parses both dataset files from an already extracted directory.
func ReadDir(dir string) (*db.Table, error) {
	open := func(name string) opener {
		return func() (io.ReadCloser, error) {
			f, err := os.Open(filepath.Join(dir, name))
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s in %q", ErrMissingEntry, name, dir)
			}
			return f, err
		}
	}
	return parsePair(open(TrainFile), open(TestFile))
}

// parsePair parses train and test concurrently and concatenates them in
// that order.
func parsePair(train, test opener) (*db.Table, error) {
	var parts [2]*db.Table
	var g errgroup.Group
	for i, o := range []opener{train, test} {
		name := []string{TrainFile, TestFile}[i]
		g.Go(func() error {
			rc, err := o()
			if err != nil {
				return err
			}
			defer rc.Close()
			t, err := ParseCSV(rc)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			parts[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return db.Concat(parts[0], parts[1]), nil
}

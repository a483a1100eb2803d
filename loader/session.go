package loader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/aqilqeka/Aqil-project/db"
)

// ErrNotInitialized is returned by Session.Table before Init has finished.
var ErrNotInitialized = errors.New("dataset not initialized")

// Source produces the transaction table. *Loader implements it.
type Source interface {
	Load(ctx context.Context) (*db.Table, error)
}

// Session owns the process-wide transaction table. The table is built once
// by Init and only read afterwards.
type Session struct {
	source Source
	once   sync.Once
	ready  atomic.Bool
	table  *db.Table
	err    error
}

// NewSession creates a session that loads from src.
func NewSession(src Source) *Session {
	return &Session{source: src}
}

// NewStaticSession wraps an already built table.
func NewStaticSession(t *db.Table) *Session {
	s := &Session{}
	s.once.Do(func() {
		s.table = t
		s.ready.Store(true)
	})
	return s
}

// Init loads the table on the first call. Later calls return the result of
// the first one; a failed load is not retried.
func (s *Session) Init(ctx context.Context) error {
	s.once.Do(func() {
		s.table, s.err = s.source.Load(ctx)
		s.ready.Store(true)
	})
	return s.err
}

// Table returns the loaded table, the load error, or ErrNotInitialized while
// Init is still running.
func (s *Session) Table() (*db.Table, error) {
	if !s.ready.Load() {
		return nil, ErrNotInitialized
	}
	return s.table, s.err
}

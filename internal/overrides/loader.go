package overrides

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/maternidades/internal/domain/entities"
	"github.com/zatekoja/maternidades/internal/snapshot"
)

// SourceFunc opens the snapshot the loader reads from.
type SourceFunc func(ctx context.Context) (*snapshot.Reader, error)

// SnapshotSource opens tag under searchPaths on every call.
func SnapshotSource(tag string, searchPaths []string) SourceFunc {
	return func(ctx context.Context) (*snapshot.Reader, error) {
		return snapshot.Open(tag, searchPaths)
	}
}

// Loader serves the current override table and rebuilds it on Refresh.
// Readers never block: a new table is published by pointer swap.
type Loader struct {
	source SourceFunc
	table  atomic.Pointer[Table]
}

// NewLoader creates a loader with an empty table. Call Refresh to load.
func NewLoader(source SourceFunc) *Loader {
	l := &Loader{source: source}
	l.table.Store(&Table{entries: map[string]entities.Override{}})
	return l
}

// Get returns the override for cnes from the current table.
func (l *Loader) Get(cnes string) (entities.Override, bool) {
	return l.table.Load().Get(cnes)
}

// Table returns the current table
func (l *Loader) Table() *Table {
	return l.table.Load()
}

// Refresh rebuilds the table from the snapshot. On error the previous table
// stays in place.
func (l *Loader) Refresh(ctx context.Context) error {
	r, err := l.source(ctx)
	if err != nil {
		return err
	}
	t, err := Build(r)
	if err != nil {
		return err
	}
	l.table.Store(t)

	s := t.Stats()
	log.Info().
		Str("snapshot", t.Tag()).
		Int("facilities", s.Facilities).
		Int("convenio_rows", s.ConvenioRows).
		Int("manual_rows", s.ManualRows).
		Int("rejected", s.Rejected).
		Msg("override table refreshed")
	return nil
}

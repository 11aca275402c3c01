package database

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/zatekoja/maternidades/internal/domain/entities"
	"github.com/zatekoja/maternidades/internal/domain/repositories"
	"github.com/zatekoja/maternidades/internal/infrastructure/clients/sqldb"
	apperrors "github.com/zatekoja/maternidades/pkg/errors"
)

const addressCacheTable = "address_cache"

const addressCacheSchema = `CREATE TABLE IF NOT EXISTS address_cache (
	key TEXT PRIMARY KEY,
	lat REAL NOT NULL,
	lon REAL NOT NULL,
	source TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// AddressCacheAdapter implements AddressCacheRepository on SQLite or PostgreSQL
type AddressCacheAdapter struct {
	client *sqldb.Client
	db     *goqu.Database
	now    func() time.Time
}

// NewAddressCacheAdapter creates the adapter and ensures the table exists.
func NewAddressCacheAdapter(ctx context.Context, client *sqldb.Client) (repositories.AddressCacheRepository, error) {
	if _, err := client.DB().ExecContext(ctx, addressCacheSchema); err != nil {
		return nil, apperrors.NewInternalError("failed to create address_cache table", err)
	}
	return &AddressCacheAdapter{
		client: client,
		db:     client.Goqu(),
		now:    time.Now,
	}, nil
}

type addressCacheRow struct {
	Key       string  `db:"key"`
	Lat       float64 `db:"lat"`
	Lon       float64 `db:"lon"`
	Source    string  `db:"source"`
	UpdatedAt string  `db:"updated_at"`
}

// Get returns the entry for key, or nil when absent
func (a *AddressCacheAdapter) Get(ctx context.Context, key string) (*entities.AddressCacheEntry, error) {
	var row addressCacheRow
	found, err := a.db.From(addressCacheTable).
		Select("key", "lat", "lon", "source", "updated_at").
		Where(goqu.Ex{"key": key}).
		ScanStructContext(ctx, &row)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to read address cache", err)
	}
	if !found {
		return nil, nil
	}

	entry := &entities.AddressCacheEntry{Key: row.Key, Lat: row.Lat, Lon: row.Lon, Source: row.Source}
	if ts, err := time.Parse(time.RFC3339, row.UpdatedAt); err == nil {
		entry.UpdatedAt = ts
	}
	return entry, nil
}

// Put replaces the entry for entry.Key inside one transaction.
func (a *AddressCacheAdapter) Put(ctx context.Context, entry *entities.AddressCacheEntry) error {
	if entry == nil || entry.Key == "" {
		return apperrors.NewValidationError("address cache key is required")
	}
	if !entities.InBrazil(entry.Lat, entry.Lon) {
		return apperrors.NewValidationError("address cache coordinates outside Brazil")
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = a.now().UTC()
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewInternalError("failed to begin address cache transaction", err)
	}
	err = tx.Wrap(func() error {
		if _, err := tx.Delete(addressCacheTable).
			Where(goqu.Ex{"key": entry.Key}).
			Executor().ExecContext(ctx); err != nil {
			return err
		}
		_, err := tx.Insert(addressCacheTable).Rows(goqu.Record{
			"key":        entry.Key,
			"lat":        entry.Lat,
			"lon":        entry.Lon,
			"source":     entry.Source,
			"updated_at": entry.UpdatedAt.UTC().Format(time.RFC3339),
		}).Executor().ExecContext(ctx)
		return err
	})
	if err != nil {
		return apperrors.NewInternalError("failed to write address cache", err)
	}
	return nil
}

// Count returns the number of cached addresses
func (a *AddressCacheAdapter) Count(ctx context.Context) (int, error) {
	n, err := a.db.From(addressCacheTable).CountContext(ctx)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to count address cache", err)
	}
	return int(n), nil
}

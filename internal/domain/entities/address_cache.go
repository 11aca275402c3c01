package entities

import "time"

// AddressCacheEntry is a resolved canonical address
type AddressCacheEntry struct {
	Key       string    `db:"key"`
	Lat       float64   `db:"lat"`
	Lon       float64   `db:"lon"`
	Source    string    `db:"source"`
	UpdatedAt time.Time `db:"-"`
}

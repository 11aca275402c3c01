package services

import (
	"time"

	"github.com/zatekoja/maternidades/internal/domain/entities"
	"github.com/zatekoja/maternidades/pkg/utils"
)

// Dataset is an immutable in-memory copy of the geo artifact. A refresh
// publishes a new Dataset; readers never see a partial one.
type Dataset struct {
	facilities []*entities.Facility
	byID       map[string]*entities.Facility
	folded     []string
	version    string
	snapshot   string
	loadedAt   time.Time
}

func newDataset(facilities []*entities.Facility, now time.Time) *Dataset {
	d := &Dataset{
		facilities: make([]*entities.Facility, 0, len(facilities)),
		byID:       make(map[string]*entities.Facility, len(facilities)),
		loadedAt:   now,
	}
	for _, f := range facilities {
		if f == nil || !f.HasCoordinates() {
			continue
		}
		if _, dup := d.byID[f.CNESID]; dup {
			continue
		}
		d.byID[f.CNESID] = f
		d.facilities = append(d.facilities, f)
		d.folded = append(d.folded, utils.NormalizeKey(f.DisplayName+" "+f.LegalName))
		if d.version == "" {
			d.version = f.DataVersion
			d.snapshot = f.SnapshotTag
		}
	}
	return d
}

// Len returns the number of facilities.
func (d *Dataset) Len() int { return len(d.facilities) }

// Version is the data_version stamped by the build.
func (d *Dataset) Version() string { return d.version }

// SnapshotTag is the CNES snapshot the dataset came from.
func (d *Dataset) SnapshotTag() string { return d.snapshot }

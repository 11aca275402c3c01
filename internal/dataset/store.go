package dataset

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zatekoja/maternidades/internal/domain/entities"
	"github.com/zatekoja/maternidades/internal/domain/repositories"
	apperrors "github.com/zatekoja/maternidades/pkg/errors"
)

// ArtifactStore reads the published artifacts of a data directory
type ArtifactStore struct {
	dir string
}

// NewArtifactStore creates a store over dir
func NewArtifactStore(dir string) *ArtifactStore {
	return &ArtifactStore{dir: dir}
}

var _ repositories.FacilityRepository = (*ArtifactStore)(nil)

// Dir returns the data directory
func (s *ArtifactStore) Dir() string { return s.dir }

// GeoPath returns the path of hospitals_geo.min
func (s *ArtifactStore) GeoPath() string { return filepath.Join(s.dir, GeoArtifact) }

// LoadGeo returns the facilities of hospitals_geo.min, stamped with the data
// version of the last published build.
func (s *ArtifactStore) LoadGeo(ctx context.Context) ([]*entities.Facility, error) {
	return s.load(ctx, s.GeoPath(), ReadGeo)
}

// LoadReady returns the facilities of hospitals_ready
func (s *ArtifactStore) LoadReady(ctx context.Context) ([]*entities.Facility, error) {
	return s.load(ctx, filepath.Join(s.dir, ReadyArtifact), ReadReady)
}

func (s *ArtifactStore) load(ctx context.Context, path string, read func(string) ([]*entities.Facility, error)) ([]*entities.Facility, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NewDatasetUnavailableError("artifact not found: " + path)
	}
	facilities, err := read(path)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load artifact", err)
	}

	if report, err := ReadReport(s.dir); err == nil && report.Published {
		for _, f := range facilities {
			if f.DataVersion == "" {
				f.DataVersion = report.DataVersion
			}
			if f.SnapshotTag == "" {
				f.SnapshotTag = report.Snapshot
			}
		}
	}
	return facilities, nil
}

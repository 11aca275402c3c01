package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/zatekoja/maternidades/internal/domain/entities"
)

// Artifact file names under the data directory.
const (
	ReadyArtifact = "hospitals_ready.parquet"
	GeoArtifact   = "hospitals_geo.min.parquet"
	ReportFile    = "build_report.json"
)

// ReadyRow is the schema of hospitals_ready: every facility, every column.
type ReadyRow struct {
	CNESID           string   `parquet:"cnes_id"`
	DisplayName      string   `parquet:"display_name"`
	LegalName        string   `parquet:"legal_name"`
	Address          string   `parquet:"address"`
	Street           string   `parquet:"street"`
	Number           string   `parquet:"number"`
	Neighborhood     string   `parquet:"neighborhood"`
	Municipality     string   `parquet:"municipality,dict"`
	MunicipalityCode string   `parquet:"municipality_code,dict"`
	UF               string   `parquet:"uf,dict"`
	Lat              *float64 `parquet:"lat,optional"`
	Lon              *float64 `parquet:"lon,optional"`
	CoordSource      string   `parquet:"coord_source,dict"`
	PhoneRaw         string   `parquet:"phone_raw"`
	PhoneE164        string   `parquet:"phone_e164"`
	PhoneDisplay     string   `parquet:"phone_display"`
	Sphere           string   `parquet:"sphere,dict"`
	AcceptsSUS       string   `parquet:"accepts_sus,dict"`
	HasMaternity     bool     `parquet:"has_maternity"`
	IsProbable       bool     `parquet:"is_probable"`
	Score            float64  `parquet:"score"`
	Reason           string   `parquet:"reason,dict"`
	Evidence         string   `parquet:"evidence"`
	NatureCode       string   `parquet:"nature_code,dict"`
	SnapshotTag      string   `parquet:"snapshot_tag,dict"`
	SourceFile       string   `parquet:"source_file,dict"`
	DataVersion      string   `parquet:"data_version,dict"`
}

// GeoRow is the schema of hospitals_geo.min: resolved facilities, query columns only.
type GeoRow struct {
	CNESID       string  `parquet:"cnes_id"`
	DisplayName  string  `parquet:"display_name"`
	Sphere       string  `parquet:"sphere,dict"`
	AcceptsSUS   string  `parquet:"accepts_sus,dict"`
	SUSLabel     string  `parquet:"sus_label,dict"`
	SUSBadge     string  `parquet:"sus_badge,dict"`
	HasMaternity bool    `parquet:"has_maternity"`
	IsProbable   bool    `parquet:"is_probable"`
	Score        float64 `parquet:"score"`
	PhoneRaw     string  `parquet:"phone_raw"`
	PhoneE164    string  `parquet:"phone_e164"`
	PhoneDisplay string  `parquet:"phone_display"`
	Address      string  `parquet:"address"`
	Lat          float64 `parquet:"lat"`
	Lon          float64 `parquet:"lon"`
	Municipality string  `parquet:"municipality,dict"`
	UF           string  `parquet:"uf,dict"`
}

func toReadyRow(f *entities.Facility) ReadyRow {
	return ReadyRow{
		CNESID:           f.CNESID,
		DisplayName:      f.DisplayName,
		LegalName:        f.LegalName,
		Address:          f.CanonicalAddress,
		Street:           f.Street,
		Number:           f.Number,
		Neighborhood:     f.Neighborhood,
		Municipality:     f.Municipality,
		MunicipalityCode: f.MunicipalityCode,
		UF:               f.UF,
		Lat:              f.Lat,
		Lon:              f.Lon,
		CoordSource:      f.CoordSource,
		PhoneRaw:         f.PhoneRaw,
		PhoneE164:        f.PhoneE164,
		PhoneDisplay:     f.PhoneDisplay,
		Sphere:           string(f.Sphere),
		AcceptsSUS:       string(f.AcceptsSUS),
		HasMaternity:     f.HasMaternity,
		IsProbable:       f.IsProbable,
		Score:            f.Score,
		Reason:           f.Reason,
		Evidence:         f.Evidence,
		NatureCode:       f.NatureCode,
		SnapshotTag:      f.SnapshotTag,
		SourceFile:       f.SourceFile,
		DataVersion:      f.DataVersion,
	}
}

func (r ReadyRow) facility() *entities.Facility {
	return &entities.Facility{
		CNESID:           r.CNESID,
		DisplayName:      r.DisplayName,
		LegalName:        r.LegalName,
		CanonicalAddress: r.Address,
		Street:           r.Street,
		Number:           r.Number,
		Neighborhood:     r.Neighborhood,
		Municipality:     r.Municipality,
		MunicipalityCode: r.MunicipalityCode,
		UF:               r.UF,
		Lat:              r.Lat,
		Lon:              r.Lon,
		CoordSource:      r.CoordSource,
		PhoneRaw:         r.PhoneRaw,
		PhoneE164:        r.PhoneE164,
		PhoneDisplay:     r.PhoneDisplay,
		Sphere:           entities.Sphere(r.Sphere),
		AcceptsSUS:       entities.SUSAcceptance(r.AcceptsSUS),
		HasMaternity:     r.HasMaternity,
		IsProbable:       r.IsProbable,
		Score:            r.Score,
		Reason:           r.Reason,
		Evidence:         r.Evidence,
		NatureCode:       r.NatureCode,
		SnapshotTag:      r.SnapshotTag,
		SourceFile:       r.SourceFile,
		DataVersion:      r.DataVersion,
	}
}

func toGeoRow(f *entities.Facility) GeoRow {
	return GeoRow{
		CNESID:       f.CNESID,
		DisplayName:  f.DisplayName,
		Sphere:       string(f.Sphere),
		AcceptsSUS:   string(f.AcceptsSUS),
		SUSLabel:     f.AcceptsSUS.Label(),
		SUSBadge:     f.AcceptsSUS.Badge(),
		HasMaternity: f.HasMaternity,
		IsProbable:   f.IsProbable,
		Score:        f.Score,
		PhoneRaw:     f.PhoneRaw,
		PhoneE164:    f.PhoneE164,
		PhoneDisplay: f.PhoneDisplay,
		Address:      f.CanonicalAddress,
		Lat:          *f.Lat,
		Lon:          *f.Lon,
		Municipality: f.Municipality,
		UF:           f.UF,
	}
}

func (r GeoRow) facility() *entities.Facility {
	lat, lon := r.Lat, r.Lon
	return &entities.Facility{
		CNESID:           r.CNESID,
		DisplayName:      r.DisplayName,
		CanonicalAddress: r.Address,
		Municipality:     r.Municipality,
		UF:               r.UF,
		Lat:              &lat,
		Lon:              &lon,
		PhoneRaw:         r.PhoneRaw,
		PhoneE164:        r.PhoneE164,
		PhoneDisplay:     r.PhoneDisplay,
		Sphere:           entities.Sphere(r.Sphere),
		AcceptsSUS:       entities.SUSAcceptance(r.AcceptsSUS),
		HasMaternity:     r.HasMaternity,
		IsProbable:       r.IsProbable,
		Score:            r.Score,
	}
}

// WriteArtifacts writes both artifacts for facilities, which must already
// be sorted by cnes id. Each file is written to a temporary sibling and
// renamed into place.
func WriteArtifacts(dir string, facilities []*entities.Facility) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	ready := make([]ReadyRow, 0, len(facilities))
	geo := make([]GeoRow, 0, len(facilities))
	for _, f := range facilities {
		ready = append(ready, toReadyRow(f))
		if f.HasCoordinates() {
			geo = append(geo, toGeoRow(f))
		}
	}

	readyPath := filepath.Join(dir, ReadyArtifact)
	if err := writeParquet(readyPath, ready); err != nil {
		return nil, err
	}
	geoPath := filepath.Join(dir, GeoArtifact)
	if err := writeParquet(geoPath, geo); err != nil {
		return nil, err
	}
	return map[string]string{"ready": readyPath, "geo": geoPath}, nil
}

func writeParquet[T any](path string, rows []T) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := parquet.NewGenericWriter[T](tmp, parquet.Compression(&parquet.Zstd))
	if _, err := w.Write(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := w.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to finish %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to publish %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadReady loads hospitals_ready from path
func ReadReady(path string) ([]*entities.Facility, error) {
	rows, err := parquet.ReadFile[ReadyRow](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	out := make([]*entities.Facility, len(rows))
	for i, r := range rows {
		out[i] = r.facility()
	}
	return out, nil
}

// ReadGeo loads hospitals_geo.min from path
func ReadGeo(path string) ([]*entities.Facility, error) {
	rows, err := parquet.ReadFile[GeoRow](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	out := make([]*entities.Facility, len(rows))
	for i, r := range rows {
		out[i] = r.facility()
	}
	return out, nil
}

package dataset

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/maternidades/internal/classifier"
	"github.com/zatekoja/maternidades/internal/domain/entities"
	"github.com/zatekoja/maternidades/internal/domain/providers"
	"github.com/zatekoja/maternidades/internal/geocoding"
	"github.com/zatekoja/maternidades/internal/reference"
	"github.com/zatekoja/maternidades/internal/snapshot"
	apperrors "github.com/zatekoja/maternidades/pkg/errors"
)

// CoordSourceSnapshot tags coordinates taken from the establishment row.
const CoordSourceSnapshot = "snapshot"

// ErrGatesFailed is wrapped by Build when a quality gate fails.
var ErrGatesFailed = errors.New("quality gates failed")

// Options configure a Builder
type Options struct {
	Tag         string
	SearchPaths []string
	// ConfigPath is the classifier config JSON; empty uses the defaults.
	ConfigPath string
	OutputDir  string
	// Geocoder resolves missing coordinates. Nil keeps snapshot
	// coordinates only.
	Geocoder *geocoding.Geocoder
	// Events, when set, receives a dataset_published event after a
	// successful build.
	Events providers.EventBus
	Now    func() time.Time
}

// Builder turns one CNES snapshot into the published artifacts
type Builder struct {
	opts Options
}

// NewBuilder creates a builder
func NewBuilder(opts Options) *Builder {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Builder{opts: opts}
}

// Build runs the pipeline. The report is returned, and written, whenever
// the snapshot could be read; quality gate failures return it together
// with an error wrapping ErrGatesFailed and leave the published artifacts
// untouched.
func (b *Builder) Build(ctx context.Context) (*entities.BuildReport, error) {
	started := b.opts.Now()
	report := &entities.BuildReport{
		BuildID:   uuid.NewString(),
		Snapshot:  b.opts.Tag,
		StartedAt: started.UTC(),
		ByUF:      map[string]*entities.UFCounts{},
		Timings:   map[string]int64{},
	}
	logger := log.With().Str("build_id", report.BuildID).Str("snapshot", b.opts.Tag).Logger()
	mark := b.timer(report)

	r, err := snapshot.Open(b.opts.Tag, b.opts.SearchPaths)
	if err != nil {
		return nil, err
	}
	cfg, err := reference.LoadConfig(b.opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	report.DataVersion = cfg.DataVersion
	if report.DataVersion == "" {
		report.DataVersion = b.opts.Tag
	}
	desc, err := reference.LoadDescriptions(r)
	if err != nil {
		return nil, err
	}
	mark("reference")

	aux, err := loadAuxiliary(ctx, r)
	if err != nil {
		return nil, err
	}
	report.Counters.BedRows = aux.bedRows
	report.Counters.ServiceRows = aux.serviceRows
	report.Counters.ConvenioRows = aux.overrides.Stats().ConvenioRows
	report.Counters.OverrideRows = aux.overrides.Stats().ManualRows
	mark("auxiliary")

	establishments, inputRows, err := b.readEstablishments(ctx, r, report)
	if err != nil {
		return nil, err
	}
	mark("establishments")

	cls := classifier.New(cfg, desc)
	sourceFile := filepath.Base(r.File(snapshot.TableEstablishments))
	facilities := make([]*entities.Facility, 0, len(establishments))
	for _, e := range establishments {
		in := classifier.Input{
			Establishment: e,
			Beds:          aux.beds[e.CNESID],
			Services:      aux.services[e.CNESID],
		}
		// Only convenio signals feed the artifact. Sphere and SUS overrides
		// are layered by the query service so a later override refresh can
		// revert them.
		if o, ok := aux.overrides.Get(e.CNESID); ok && len(o.Convenios) > 0 {
			in.Override = &entities.Override{Convenios: o.Convenios, ConvenioSource: o.ConvenioSource}
		}
		res := cls.Classify(in)
		for _, w := range res.Warnings {
			report.Counters.Warnings++
			logger.Warn().Str("cnes_id", e.CNESID).Msg(w)
		}
		facilities = append(facilities, b.facility(e, res, desc, report, sourceFile))
	}
	mark("classify")

	if err := b.geocode(ctx, facilities, report); err != nil {
		return nil, err
	}
	mark("geocode")

	sort.Slice(facilities, func(i, j int) bool { return facilities[i].CNESID < facilities[j].CNESID })
	b.summarize(facilities, report)

	report.Gates = evaluateGates(facilities, inputRows, report.Counters.Malformed)

	var buildErr error
	if report.Passed() {
		artifacts, err := WriteArtifacts(b.opts.OutputDir, facilities)
		if err != nil {
			return nil, err
		}
		report.Artifacts = artifacts
		report.Published = true
		mark("write")
	} else {
		buildErr = fmt.Errorf("%w: %s", ErrGatesFailed, strings.Join(failedGates(report), ", "))
	}

	finished := b.opts.Now()
	report.FinishedAt = finished.UTC()
	report.DurationMs = finished.Sub(started).Milliseconds()
	if _, err := WriteReport(b.opts.OutputDir, report); err != nil {
		return report, err
	}

	logger.Info().
		Int("facilities", report.Facilities).
		Float64("coordinate_coverage", report.CoordinateCoverage).
		Float64("phone_coverage", report.PhoneCoverage).
		Bool("published", report.Published).
		Int64("duration_ms", report.DurationMs).
		Msg("dataset build finished")

	if buildErr != nil {
		return report, buildErr
	}
	b.announce(ctx, report)
	return report, nil
}

// readEstablishments parses the establishments table, dropping malformed
// rows and later duplicates of an id. It also returns the number of input
// records, unparseable CSV records included.
func (b *Builder) readEstablishments(ctx context.Context, r *snapshot.Reader, report *entities.BuildReport) ([]*snapshot.Establishment, int, error) {
	s, err := r.Rows(snapshot.TableEstablishments)
	if err != nil {
		return nil, 0, err
	}
	defer s.Close()

	seen := map[string]bool{}
	var out []*snapshot.Establishment
	parseFailures := 0
	for s.Next() {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		e, err := snapshot.ParseEstablishment(s.Row())
		if err != nil {
			parseFailures++
			log.Debug().Err(err).Msg("establishment row dropped")
			continue
		}
		if seen[e.CNESID] {
			report.Counters.Duplicates++
			continue
		}
		seen[e.CNESID] = true
		out = append(out, e)
	}
	if err := s.Err(); err != nil {
		return nil, 0, err
	}

	report.Counters.RowsRead = s.Read()
	report.Counters.DroppedEmptyID = s.Dropped()
	report.Counters.Malformed = s.Malformed() + parseFailures
	return out, s.Read() + s.Malformed(), nil
}

func (b *Builder) facility(e *snapshot.Establishment, res classifier.Result, desc *reference.Descriptions, report *entities.BuildReport, sourceFile string) *entities.Facility {
	f := &entities.Facility{
		CNESID:           e.CNESID,
		DisplayName:      e.Name(),
		LegalName:        e.LegalName,
		Street:           e.Street,
		Number:           e.Number,
		Neighborhood:     e.Neighborhood,
		MunicipalityCode: e.MunicipalityCode,
		UF:               e.UF,
		NatureCode:       e.NatureCode,
		PhoneRaw:         strings.TrimSpace(e.Phone),
		Sphere:           res.Sphere,
		AcceptsSUS:       res.AcceptsSUS,
		HasMaternity:     res.HasMaternity,
		IsProbable:       res.IsProbable,
		Score:            res.Score,
		Reason:           res.Reason,
		Evidence:         res.Evidence,
		SnapshotTag:      report.Snapshot,
		SourceFile:       sourceFile,
		DataVersion:      report.DataVersion,
	}
	if m, ok := desc.Municipality(e.MunicipalityCode); ok {
		f.Municipality = m.Name
		if f.UF == "" {
			f.UF = m.UF
		}
	}
	f.CanonicalAddress = geocoding.CanonicalAddress(f.Street, f.Number, f.Neighborhood, f.Municipality, f.UF)
	if e.Lat != nil && e.Lon != nil {
		lat, lon := *e.Lat, *e.Lon
		f.Lat, f.Lon = &lat, &lon
		f.CoordSource = CoordSourceSnapshot
	}
	f.PhoneE164, f.PhoneDisplay = NormalizePhone(f.PhoneRaw)
	return f
}

// geocode fills missing coordinates. Unresolved addresses keep null
// coordinates; only cancellation aborts the build.
func (b *Builder) geocode(ctx context.Context, facilities []*entities.Facility, report *entities.BuildReport) error {
	g := b.opts.Geocoder
	if g == nil {
		return nil
	}
	before := g.Stats()
	for _, f := range facilities {
		if f.HasCoordinates() || f.CanonicalAddress == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		coords, err := g.Geocode(ctx, f.CanonicalAddress)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if !apperrors.IsType(err, apperrors.ErrorTypeGeocodeUnavailable) {
				return err
			}
			continue
		}
		lat, lon := coords.Latitude, coords.Longitude
		f.Lat, f.Lon = &lat, &lon
		f.CoordSource = coords.Source
	}
	after := g.Stats()
	report.Counters.GeocodeCacheHits = after.CacheHits - before.CacheHits
	report.Counters.GeocodeProvider = after.ProviderHits - before.ProviderHits
	report.Counters.GeocodeFailures = (after.Failures - before.Failures) + (after.OutOfBounds - before.OutOfBounds)
	report.Counters.GeocodeSkipped = after.Skipped - before.Skipped
	return nil
}

func (b *Builder) summarize(facilities []*entities.Facility, report *entities.BuildReport) {
	report.Facilities = len(facilities)
	for _, f := range facilities {
		if f.HasCoordinates() {
			report.WithCoordinates++
		}
		if f.PhoneE164 != "" {
			report.WithPhone++
		}
		uf := f.UF
		if uf == "" {
			uf = "??"
		}
		if report.ByUF[uf] == nil {
			report.ByUF[uf] = &entities.UFCounts{}
		}
		report.ByUF[uf].Add(f.Label())
	}
	report.CoordinateCoverage = ratio(report.WithCoordinates, report.Facilities)
	report.PhoneCoverage = ratio(report.WithPhone, report.Facilities)
}

func (b *Builder) announce(ctx context.Context, report *entities.BuildReport) {
	if b.opts.Events == nil {
		return
	}
	event := entities.NewDatasetPublishedEvent(report, report.Artifacts["geo"])
	if err := b.opts.Events.Publish(ctx, providers.EventChannelDatasetUpdates, event); err != nil {
		log.Warn().Err(err).Str("build_id", report.BuildID).Msg("failed to publish dataset event")
	}
}

func (b *Builder) timer(report *entities.BuildReport) func(step string) {
	last := b.opts.Now()
	return func(step string) {
		now := b.opts.Now()
		report.Timings[step] = now.Sub(last).Milliseconds()
		last = now
	}
}

func failedGates(report *entities.BuildReport) []string {
	var names []string
	for _, g := range report.Gates {
		if !g.Passed {
			names = append(names, g.Name)
		}
	}
	return names
}

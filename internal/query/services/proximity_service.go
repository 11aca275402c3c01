package services

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/maternidades/internal/domain/entities"
	"github.com/zatekoja/maternidades/internal/domain/providers"
	"github.com/zatekoja/maternidades/internal/domain/repositories"
	"github.com/zatekoja/maternidades/internal/infrastructure/observability"
	"github.com/zatekoja/maternidades/internal/overrides"
	"github.com/zatekoja/maternidades/internal/query/adapters"
	"github.com/zatekoja/maternidades/internal/snapshot"
	apperrors "github.com/zatekoja/maternidades/pkg/errors"
)

// Query limits.
const (
	MaxRadiusKm       = 100.0
	DefaultLimit      = 10
	MaxLimit          = 50
	DefaultRoutingTTL = 300 * time.Second
	DefaultRoutingCap = 10 * time.Second
)

// State is the lifecycle state of the service
type State string

const (
	StateCold    State = "cold"
	StateServing State = "serving"
	StateStale   State = "stale"
)

// Options configures a ProximityService.
type Options struct {
	// Routing is nil when travel time is off.
	Routing        providers.RoutingProvider
	RoutingTimeout time.Duration
	TravelTimes    *adapters.TravelTimeCache
	Overrides      *overrides.Loader
	Metrics        *observability.Metrics
	Now            func() time.Time
}

// Health summarizes the service for the health endpoint
type Health struct {
	State       State     `json:"state"`
	Facilities  int       `json:"facilities"`
	DataVersion string    `json:"data_version,omitempty"`
	SnapshotTag string    `json:"snapshot_tag,omitempty"`
	Overrides   int       `json:"overrides"`
	LoadedAt    time.Time `json:"loaded_at,omitempty"`
	TravelTime  string    `json:"travel_time"`
}

// ProximityService answers proximity and name queries over the geo artifact.
type ProximityService struct {
	repo    repositories.FacilityRepository
	routing providers.RoutingProvider
	timeout time.Duration
	times   *adapters.TravelTimeCache
	loader  *overrides.Loader
	metrics *observability.Metrics
	now     func() time.Time

	dataset   atomic.Pointer[Dataset]
	state     atomic.Value
	refreshMu sync.Mutex
}

// NewProximityService creates a cold service. Call Refresh to load.
func NewProximityService(repo repositories.FacilityRepository, opts Options) *ProximityService {
	if opts.RoutingTimeout <= 0 {
		opts.RoutingTimeout = DefaultRoutingCap
	}
	if opts.Routing != nil && opts.TravelTimes == nil {
		opts.TravelTimes = adapters.NewTravelTimeCache(DefaultRoutingTTL, 0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &ProximityService{
		repo:    repo,
		routing: opts.Routing,
		timeout: opts.RoutingTimeout,
		times:   opts.TravelTimes,
		loader:  opts.Overrides,
		metrics: opts.Metrics,
		now:     opts.Now,
	}
	s.state.Store(StateCold)
	return s
}

// State returns the current lifecycle state.
func (s *ProximityService) State() State {
	return s.state.Load().(State)
}

// Refresh reloads the artifact and the override table. While loading, the
// previous dataset keeps serving. A failed load leaves the service cold.
func (s *ProximityService) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if s.State() == StateServing {
		s.state.Store(StateStale)
	}

	if s.loader != nil {
		if err := s.loader.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("override refresh failed, keeping previous table")
		}
	}

	facilities, err := s.repo.LoadGeo(ctx)
	if err != nil {
		s.dataset.Store(nil)
		s.state.Store(StateCold)
		log.Error().Err(err).Msg("dataset load failed, service is cold")
		return err
	}

	ds := newDataset(facilities, s.now())
	s.dataset.Store(ds)
	s.state.Store(StateServing)
	log.Info().
		Int("facilities", ds.Len()).
		Str("data_version", ds.Version()).
		Str("snapshot", ds.SnapshotTag()).
		Msg("dataset loaded")
	return nil
}

// Health reports the state and dataset summary.
func (s *ProximityService) Health() Health {
	h := Health{State: s.State(), TravelTime: "off"}
	if s.routing != nil {
		h.TravelTime = s.routing.Name()
	}
	if ds := s.dataset.Load(); ds != nil {
		h.Facilities = ds.Len()
		h.DataVersion = ds.Version()
		h.SnapshotTag = ds.SnapshotTag()
		h.LoadedAt = ds.loadedAt
	}
	if s.loader != nil {
		h.Overrides = s.loader.Table().Len()
	}
	return h
}

func (s *ProximityService) current() (*Dataset, error) {
	ds := s.dataset.Load()
	if ds == nil || s.State() == StateCold {
		return nil, apperrors.NewDatasetUnavailableError("facility dataset is not loaded")
	}
	return ds, nil
}

type candidate struct {
	f          *entities.Facility
	sphere     entities.Sphere
	sus        entities.SUSAcceptance
	overridden bool
	distance   float64
	preferred  bool
	travel     *entities.TravelTime
}

// Search returns facilities near the origin ranked by label, distance, phone
// availability and preference, optionally reordered by travel time.
func (s *ProximityService) Search(ctx context.Context, req entities.SearchRequest) (*entities.SearchResponse, error) {
	if err := normalizeRequest(&req); err != nil {
		return nil, err
	}
	ds, err := s.current()
	if err != nil {
		return nil, err
	}

	resp := &entities.SearchResponse{
		Results: []entities.ProximityResult{},
		Meta:    entities.SearchMeta{RadiusUsed: req.RadiusKm, DataVersion: ds.Version()},
	}
	if req.RadiusKm == 0 {
		s.logSearch(req, resp)
		return resp, nil
	}

	pool := s.filter(ds, req.Filters)
	within := withinRadius(pool, req, req.RadiusKm)
	if len(within) == 0 && req.Filters.Expand {
		radius := math.Min(req.RadiusKm*2, MaxRadiusKm)
		resp.Meta.RadiusUsed = radius
		resp.Meta.Expanded = true
		within = withinRadius(pool, req, radius)
	}

	rank(within)
	if len(within) > req.Limit {
		within = within[:req.Limit]
	}

	resp.Meta.UsedTravelTime = s.applyTravelTimes(ctx, req, within)
	for _, c := range within {
		resp.Results = append(resp.Results, toResult(c))
	}
	resp.Meta.Count = len(resp.Results)

	observability.RecordSearch(ctx, s.metrics, resp.Meta.Expanded, resp.Meta.UsedTravelTime)
	s.logSearch(req, resp)
	return resp, nil
}

func normalizeRequest(req *entities.SearchRequest) error {
	if math.IsNaN(req.Lat) || math.IsNaN(req.Lon) || req.Lat < -90 || req.Lat > 90 || req.Lon < -180 || req.Lon > 180 {
		return apperrors.NewBadRequestError("lat/lon must be valid WGS84 coordinates")
	}
	if math.IsNaN(req.RadiusKm) || math.IsInf(req.RadiusKm, 0) || req.RadiusKm < 0 {
		return apperrors.NewBadRequestError("raio_km must be a non-negative number")
	}
	if req.RadiusKm > MaxRadiusKm {
		req.RadiusKm = MaxRadiusKm
	}
	switch {
	case req.Limit == 0:
		req.Limit = DefaultLimit
	case req.Limit < 0:
		return apperrors.NewBadRequestError("limite must be between 1 and 50")
	case req.Limit > MaxLimit:
		req.Limit = MaxLimit
	}
	switch req.Filters.Kind {
	case "":
		req.Filters.Kind = entities.KindAny
	case entities.KindAny, entities.KindMaternity, entities.KindMaternityOrProbable:
	default:
		return apperrors.NewBadRequestError("tipo must be any, maternity or maternity_or_probable")
	}
	return nil
}

func (s *ProximityService) effective(f *entities.Facility) candidate {
	c := candidate{f: f, sphere: f.Sphere, sus: f.AcceptsSUS}
	if s.loader == nil {
		return c
	}
	o, ok := s.loader.Get(f.CNESID)
	if !ok {
		return c
	}
	if o.Sphere != nil && *o.Sphere != c.sphere {
		c.sphere = *o.Sphere
		c.overridden = true
	}
	if o.AcceptsSUS != nil && *o.AcceptsSUS != c.sus {
		c.sus = *o.AcceptsSUS
		c.overridden = true
	}
	return c
}

func (s *ProximityService) filter(ds *Dataset, filters entities.SearchFilters) []candidate {
	out := make([]candidate, 0, len(ds.facilities)/4)
	for _, f := range ds.facilities {
		switch filters.Kind {
		case entities.KindMaternity:
			if !f.HasMaternity {
				continue
			}
		case entities.KindMaternityOrProbable:
			if !f.HasMaternity && !f.IsProbable {
				continue
			}
		}
		c := s.effective(f)
		if filters.AcceptsSUS != "" && c.sus != filters.AcceptsSUS {
			continue
		}
		c.preferred = filters.PreferSphere != entities.SphereUnknown && c.sphere == filters.PreferSphere
		out = append(out, c)
	}
	return out
}

func withinRadius(pool []candidate, req entities.SearchRequest, radius float64) []candidate {
	out := make([]candidate, 0)
	for _, c := range pool {
		d := HaversineKm(req.Lat, req.Lon, *c.f.Lat, *c.f.Lon)
		if d > radius {
			continue
		}
		c.distance = d
		out = append(out, c)
	}
	return out
}

// rank sorts by label, then distance, then phone availability, then
// preference. CNES id is the last key so equal candidates keep a fixed order.
func rank(cs []candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if ra, rb := a.f.Label().Rank(), b.f.Label().Rank(); ra != rb {
			return ra < rb
		}
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		if pa, pb := a.f.HasPhone(), b.f.HasPhone(); pa != pb {
			return pa
		}
		if a.preferred != b.preferred {
			return a.preferred
		}
		return a.f.CNESID < b.f.CNESID
	})
}

// applyTravelTimes reorders cs in place within each label tier. It reports
// whether any travel time was applied; routing failures keep the Haversine
// order.
func (s *ProximityService) applyTravelTimes(ctx context.Context, req entities.SearchRequest, cs []candidate) bool {
	if s.routing == nil || len(cs) == 0 || len(cs) > s.routing.MaxDestinations() {
		return false
	}

	origin := providers.Coordinates{Latitude: req.Lat, Longitude: req.Lon}
	dests := make([]providers.Destination, len(cs))
	for i, c := range cs {
		dests[i] = providers.Destination{CNESID: c.f.CNESID, Lat: *c.f.Lat, Lon: *c.f.Lon}
	}

	key := adapters.TravelTimeKey(s.routing.Name(), origin, dests)
	times, ok := s.times.Get(key)
	if ok {
		observability.RecordCacheHit(ctx, s.metrics, "travel_time")
	} else {
		observability.RecordCacheMiss(ctx, s.metrics, "travel_time")
		fetched, err := s.fetchTravelTimes(ctx, origin, dests)
		if err != nil {
			observability.RecordTravelTimeDowngrade(ctx, s.metrics, s.routing.Name())
			log.Warn().
				Err(apperrors.NewRoutingProviderError("travel time lookup failed", err)).
				Str("provider", s.routing.Name()).
				Int("destinations", len(dests)).
				Msg("falling back to straight-line order")
			return false
		}
		times = fetched
		s.times.Set(key, times)
	}

	applied := false
	for i := range cs {
		if tt, ok := times[cs[i].f.CNESID]; ok {
			cs[i].travel = &tt
			applied = true
		}
	}
	if !applied {
		return false
	}

	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if ra, rb := a.f.Label().Rank(), b.f.Label().Rank(); ra != rb {
			return ra < rb
		}
		if (a.travel != nil) != (b.travel != nil) {
			return a.travel != nil
		}
		if a.travel != nil && a.travel.Seconds != b.travel.Seconds {
			return a.travel.Seconds < b.travel.Seconds
		}
		return false
	})
	return true
}

func (s *ProximityService) fetchTravelTimes(ctx context.Context, origin providers.Coordinates, dests []providers.Destination) (map[string]entities.TravelTime, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	list, err := s.routing.TravelTimes(ctx, origin, dests)
	if err != nil {
		return nil, err
	}
	out := make(map[string]entities.TravelTime, len(list))
	for _, tt := range list {
		out[tt.CNESID] = tt
	}
	return out, nil
}

func toResult(c candidate) entities.ProximityResult {
	f := c.f
	r := entities.ProximityResult{
		CNESID:          f.CNESID,
		DisplayName:     f.DisplayName,
		Sphere:          c.sphere,
		SphereLabel:     c.sphere.Label(),
		AcceptsSUS:      c.sus,
		SUSLabel:        c.sus.Label(),
		SUSBadge:        c.sus.Badge(),
		Label:           f.Label(),
		Score:           f.Score,
		PhoneE164:       f.PhoneE164,
		PhoneDisplay:    f.PhoneDisplay,
		Address:         f.CanonicalAddress,
		Municipality:    f.Municipality,
		UF:              f.UF,
		Lat:             *f.Lat,
		Lon:             *f.Lon,
		DistanceKm:      round2(c.distance),
		OverrideApplied: c.overridden,
	}
	if r.PhoneDisplay == "" {
		r.PhoneDisplay = f.PhoneRaw
	}
	if c.travel != nil {
		m := minutes(c.travel.Seconds)
		r.EstimatedMinutes = &m
		if c.travel.Meters > 0 {
			r.DistanceByRoadText = FormatKm(c.travel.Meters / 1000)
		}
	}
	return r
}

func (s *ProximityService) logSearch(req entities.SearchRequest, resp *entities.SearchResponse) {
	log.Info().
		Float64("origin_lat", observability.RoundCoordinate(req.Lat)).
		Float64("origin_lon", observability.RoundCoordinate(req.Lon)).
		Float64("radius_km", req.RadiusKm).
		Str("kind", string(req.Filters.Kind)).
		Str("sus", string(req.Filters.AcceptsSUS)).
		Float64("radius_used", resp.Meta.RadiusUsed).
		Bool("expanded", resp.Meta.Expanded).
		Bool("used_travel_time", resp.Meta.UsedTravelTime).
		Int("count", resp.Meta.Count).
		Msg("proximity search")
}

// Get returns one facility of the loaded dataset with overrides applied.
func (s *ProximityService) Get(ctx context.Context, cnes string) (*entities.ProximityResult, error) {
	ds, err := s.current()
	if err != nil {
		return nil, err
	}
	f, ok := ds.byID[snapshot.NormalizeCNES(cnes)]
	if !ok {
		return nil, apperrors.NewNotFoundError("facility " + cnes + " not found")
	}
	r := toResult(s.effective(f))
	return &r, nil
}

// GetMany resolves ids in order, skipping unknown ones.
func (s *ProximityService) GetMany(ctx context.Context, ids []string) ([]entities.ProximityResult, error) {
	ds, err := s.current()
	if err != nil {
		return nil, err
	}
	out := make([]entities.ProximityResult, 0, len(ids))
	for _, id := range ids {
		if f, ok := ds.byID[snapshot.NormalizeCNES(id)]; ok {
			out = append(out, toResult(s.effective(f)))
		}
	}
	return out, nil
}

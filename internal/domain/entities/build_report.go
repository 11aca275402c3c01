package entities

import "time"

// BuildReport summarizes one Dataset Builder run.
type BuildReport struct {
	BuildID     string    `json:"build_id"`
	Snapshot    string    `json:"snapshot"`
	DataVersion string    `json:"data_version"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	DurationMs  int64     `json:"duration_ms"`
	Published   bool      `json:"published"`

	Facilities         int                  `json:"facilities"`
	WithCoordinates    int                  `json:"with_coordinates"`
	CoordinateCoverage float64              `json:"coordinate_coverage"`
	WithPhone          int                  `json:"with_phone"`
	PhoneCoverage      float64              `json:"phone_coverage"`
	ByUF               map[string]*UFCounts `json:"by_uf"`
	Counters           BuildCounters        `json:"counters"`
	Timings            map[string]int64     `json:"timings_ms"`
	Gates              []GateResult         `json:"gates"`
	Artifacts          map[string]string    `json:"artifacts,omitempty"`
}

// UFCounts counts facilities per maternity label for one state.
type UFCounts struct {
	Confirmed int `json:"confirmed"`
	Probable  int `json:"probable"`
	Other     int `json:"other"`
}

// Add increments the counter for label.
func (c *UFCounts) Add(label MaternityLabel) {
	switch label {
	case LabelConfirmed:
		c.Confirmed++
	case LabelProbable:
		c.Probable++
	default:
		c.Other++
	}
}

// BuildCounters are the raw row counters of a build.
type BuildCounters struct {
	RowsRead         int `json:"rows_read"`
	DroppedEmptyID   int `json:"dropped_empty_id"`
	Malformed        int `json:"malformed"`
	Duplicates       int `json:"duplicates"`
	BedRows          int `json:"bed_rows"`
	ServiceRows      int `json:"service_rows"`
	ConvenioRows     int `json:"convenio_rows"`
	OverrideRows     int `json:"override_rows"`
	GeocodeCacheHits int `json:"geocode_cache_hits"`
	GeocodeProvider  int `json:"geocode_provider_hits"`
	GeocodeFailures  int `json:"geocode_failures"`
	GeocodeSkipped   int `json:"geocode_skipped_budget"`
	Warnings         int `json:"warnings"`
}

// GateResult is the outcome of one quality gate.
type GateResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Passed reports whether every gate passed.
func (r *BuildReport) Passed() bool {
	for _, g := range r.Gates {
		if !g.Passed {
			return false
		}
	}
	return true
}

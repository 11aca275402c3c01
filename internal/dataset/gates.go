package dataset

import (
	"fmt"

	"github.com/zatekoja/maternidades/internal/domain/entities"
)

// Thresholds of the quality gates.
const (
	MinCoordinateCoverage = 0.85
	MaxMalformedRatio     = 0.01
)

// Gate names as written to the build report.
const (
	GateCoordinateCoverage = "coordinate_coverage"
	GateUniqueIDs          = "unique_cnes_id"
	GateSphereDomain       = "sphere_domain"
	GateConfirmedReason    = "confirmed_have_reason"
	GateMalformedRatio     = "malformed_ratio"
	GateMaternityExclusive = "maternity_exclusive"
	GateCoordinatesInBBox  = "coordinates_in_bbox"
)

// evaluateGates checks the built facilities. inputRows counts every
// establishment record read, malformed ones included.
func evaluateGates(facilities []*entities.Facility, inputRows, malformed int) []entities.GateResult {
	withCoords := 0
	seen := make(map[string]bool, len(facilities))
	dupes, badSphere, noReason, bothFlags, outside := 0, 0, 0, 0, 0
	for _, f := range facilities {
		if seen[f.CNESID] {
			dupes++
		}
		seen[f.CNESID] = true
		if f.HasCoordinates() {
			withCoords++
			if !entities.InBrazil(*f.Lat, *f.Lon) {
				outside++
			}
		}
		if !f.Sphere.Valid() {
			badSphere++
		}
		if f.HasMaternity && f.Reason == "" {
			noReason++
		}
		if f.HasMaternity && f.IsProbable {
			bothFlags++
		}
	}

	coverage := ratio(withCoords, len(facilities))
	malformedRatio := ratio(malformed, inputRows)

	return []entities.GateResult{
		{
			Name:   GateCoordinateCoverage,
			Passed: len(facilities) > 0 && coverage >= MinCoordinateCoverage,
			Detail: fmt.Sprintf("%d/%d facilities with coordinates (%.1f%%, minimum %.0f%%)", withCoords, len(facilities), coverage*100, MinCoordinateCoverage*100),
		},
		{Name: GateUniqueIDs, Passed: dupes == 0, Detail: fmt.Sprintf("%d duplicate ids", dupes)},
		{Name: GateSphereDomain, Passed: badSphere == 0, Detail: fmt.Sprintf("%d rows outside {Public, Private, Philanthropic, null}", badSphere)},
		{Name: GateConfirmedReason, Passed: noReason == 0, Detail: fmt.Sprintf("%d confirmed rows without reason", noReason)},
		{Name: GateMaternityExclusive, Passed: bothFlags == 0, Detail: fmt.Sprintf("%d rows both confirmed and probable", bothFlags)},
		{Name: GateCoordinatesInBBox, Passed: outside == 0, Detail: fmt.Sprintf("%d coordinates outside Brazil", outside)},
		{
			Name:   GateMalformedRatio,
			Passed: malformedRatio <= MaxMalformedRatio,
			Detail: fmt.Sprintf("%d/%d malformed rows (%.2f%%, maximum %.0f%%)", malformed, inputRows, malformedRatio*100, MaxMalformedRatio*100),
		},
	}
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

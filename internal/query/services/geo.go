package services

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

var ptBR = message.NewPrinter(language.BrazilianPortuguese)

// FormatKm renders a distance the way pt-BR readers expect, e.g. "12,3 km".
func FormatKm(km float64) string {
	return ptBR.Sprintf("%.1f km", km)
}

// minutes rounds a duration in seconds to whole minutes, at least 1.
func minutes(seconds float64) int {
	m := int(math.Round(seconds / 60))
	if m < 1 {
		return 1
	}
	return m
}

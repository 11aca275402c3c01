package entities

// TravelTime is the driving estimate from a search origin to one facility.
type TravelTime struct {
	CNESID  string  `json:"cnes_id"`
	Seconds float64 `json:"seconds"`
	Meters  float64 `json:"meters"`
}

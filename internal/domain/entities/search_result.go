package entities

// Kind filters candidates by maternity label
type Kind string

const (
	KindAny                 Kind = "any"
	KindMaternity           Kind = "maternity"
	KindMaternityOrProbable Kind = "maternity_or_probable"
)

// SearchFilters narrows the proximity candidate set.
type SearchFilters struct {
	Kind Kind
	// AcceptsSUS is empty for "any".
	AcceptsSUS   SUSAcceptance
	Expand       bool
	PreferSphere Sphere
}

// SearchRequest is a proximity query
type SearchRequest struct {
	Lat      float64
	Lon      float64
	RadiusKm float64
	Limit    int
	Filters  SearchFilters
}

// ProximityResult is one ranked facility returned to the client.
type ProximityResult struct {
	CNESID             string         `json:"cnes_id"`
	DisplayName        string         `json:"display_name"`
	Sphere             Sphere         `json:"sphere"`
	SphereLabel        string         `json:"sphere_label"`
	AcceptsSUS         SUSAcceptance  `json:"accepts_sus"`
	SUSLabel           string         `json:"sus_label"`
	SUSBadge           string         `json:"sus_badge"`
	Label              MaternityLabel `json:"label"`
	Score              float64        `json:"score"`
	PhoneE164          string         `json:"phone_e164,omitempty"`
	PhoneDisplay       string         `json:"phone_display,omitempty"`
	Address            string         `json:"address"`
	Municipality       string         `json:"municipality"`
	UF                 string         `json:"uf"`
	Lat                float64        `json:"lat"`
	Lon                float64        `json:"lon"`
	DistanceKm         float64        `json:"distance_km"`
	EstimatedMinutes   *int           `json:"estimated_minutes,omitempty"`
	DistanceByRoadText string         `json:"distance_by_road_text,omitempty"`
	OverrideApplied    bool           `json:"override_applied,omitempty"`
}

// SearchMeta describes how a search was answered.
type SearchMeta struct {
	RadiusUsed     float64 `json:"radius_used"`
	Expanded       bool    `json:"expanded"`
	UsedTravelTime bool    `json:"used_travel_time"`
	Count          int     `json:"count"`
	DataVersion    string  `json:"data_version,omitempty"`
}

// SearchResponse is the full proximity answer
type SearchResponse struct {
	Results []ProximityResult `json:"results"`
	Meta    SearchMeta        `json:"meta"`
}

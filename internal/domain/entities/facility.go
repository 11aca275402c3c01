package entities

// Brazil bounding box used to validate coordinates.
const (
	MinLatitude  = -35.0
	MaxLatitude  = 5.0
	MinLongitude = -75.0
	MaxLongitude = -30.0
)

// Facility represents one CNES establishment after classification
type Facility struct {
	CNESID           string        `json:"cnes_id"`
	DisplayName      string        `json:"display_name"`
	LegalName        string        `json:"legal_name,omitempty"`
	CanonicalAddress string        `json:"address"`
	Street           string        `json:"street,omitempty"`
	Number           string        `json:"number,omitempty"`
	Neighborhood     string        `json:"neighborhood,omitempty"`
	Municipality     string        `json:"municipality"`
	MunicipalityCode string        `json:"municipality_code,omitempty"`
	UF               string        `json:"uf"`
	Lat              *float64      `json:"lat"`
	Lon              *float64      `json:"lon"`
	CoordSource      string        `json:"coord_source,omitempty"`
	PhoneRaw         string        `json:"phone_raw,omitempty"`
	PhoneE164        string        `json:"phone_e164,omitempty"`
	PhoneDisplay     string        `json:"phone_display,omitempty"`
	Sphere           Sphere        `json:"sphere"`
	AcceptsSUS       SUSAcceptance `json:"accepts_sus"`
	HasMaternity     bool          `json:"has_maternity"`
	IsProbable       bool          `json:"is_probable"`
	Score            float64       `json:"score"`
	Reason           string        `json:"reason"`
	Evidence         string        `json:"evidence,omitempty"`
	NatureCode       string        `json:"nature_code,omitempty"`
	SnapshotTag      string        `json:"snapshot_tag"`
	SourceFile       string        `json:"source_file,omitempty"`
	DataVersion      string        `json:"data_version,omitempty"`
}

// HasCoordinates reports whether both coordinates are set.
func (f *Facility) HasCoordinates() bool {
	return f.Lat != nil && f.Lon != nil
}

// HasPhone reports whether any phone representation is available.
func (f *Facility) HasPhone() bool {
	return f.PhoneE164 != "" || f.PhoneRaw != ""
}

// Label returns the maternity label derived from the classification flags.
func (f *Facility) Label() MaternityLabel {
	return LabelFor(f.HasMaternity, f.IsProbable)
}

// InBrazil reports whether (lat, lon) falls inside the Brazil bounding box.
func InBrazil(lat, lon float64) bool {
	return lat >= MinLatitude && lat <= MaxLatitude && lon >= MinLongitude && lon <= MaxLongitude
}

package entities

import "strings"

// OverrideField names the facility attribute an override replaces
type OverrideField string

const (
	OverrideFieldSphere     OverrideField = "sphere"
	OverrideFieldAcceptsSUS OverrideField = "accepts_sus"
	OverrideFieldConvenio   OverrideField = "convenio"
)

// ParseOverrideField returns the field for a raw column value.
func ParseOverrideField(v string) (OverrideField, bool) {
	switch OverrideField(compactFold(strings.ReplaceAll(v, "_", ""))) {
	case OverrideFieldSphere, "esfera":
		return OverrideFieldSphere, true
	case "acceptssus", "sus", "atendesus":
		return OverrideFieldAcceptsSUS, true
	case OverrideFieldConvenio, "convenios":
		return OverrideFieldConvenio, true
	}
	return "", false
}

// OverrideEntry is a single correction loaded from the snapshot
type OverrideEntry struct {
	CNESID    string        `json:"cnes_id"`
	Field     OverrideField `json:"field"`
	Value     string        `json:"value"`
	SourceTag string        `json:"source_tag"`
}

// Override groups the corrections that apply to one facility. Nil pointers
// mean the field has no override.
type Override struct {
	Sphere           *Sphere        `json:"sphere,omitempty"`
	SphereSource     string         `json:"sphere_source,omitempty"`
	AcceptsSUS       *SUSAcceptance `json:"accepts_sus,omitempty"`
	AcceptsSUSSource string         `json:"accepts_sus_source,omitempty"`
	Convenios        []string       `json:"convenios,omitempty"`
	ConvenioSource   string         `json:"convenio_source,omitempty"`
}

// Empty reports whether no field is overridden.
func (o Override) Empty() bool {
	return o.Sphere == nil && o.AcceptsSUS == nil && len(o.Convenios) == 0
}

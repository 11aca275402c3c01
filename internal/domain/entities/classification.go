package entities

import (
	"strings"

	"github.com/zatekoja/maternidades/pkg/utils"
)

// Sphere is the administrative sphere of a facility. The zero value means
// the legal nature was not informed.
type Sphere string

const (
	SphereUnknown       Sphere = ""
	SpherePublic        Sphere = "Public"
	SpherePrivate       Sphere = "Private"
	SpherePhilanthropic Sphere = "Philanthropic"
)

// Valid reports whether s belongs to the canonical set (empty included).
func (s Sphere) Valid() bool {
	switch s {
	case SphereUnknown, SpherePublic, SpherePrivate, SpherePhilanthropic:
		return true
	}
	return false
}

// Label returns the pt-BR display label.
func (s Sphere) Label() string {
	switch s {
	case SpherePublic:
		return "Público"
	case SpherePrivate:
		return "Privado"
	case SpherePhilanthropic:
		return "Filantrópico"
	}
	return ""
}

// ParseSphere accepts canonical values and the pt-BR labels, case and
// accent insensitive. ok is false for anything else.
func ParseSphere(v string) (Sphere, bool) {
	switch compactFold(v) {
	case "public", "publico", "publica":
		return SpherePublic, true
	case "private", "privado", "privada":
		return SpherePrivate, true
	case "philanthropic", "filantropico", "filantropica":
		return SpherePhilanthropic, true
	}
	return SphereUnknown, false
}

// SUSAcceptance states whether a facility serves SUS patients
type SUSAcceptance string

const (
	SUSYes     SUSAcceptance = "Yes"
	SUSNo      SUSAcceptance = "No"
	SUSUnknown SUSAcceptance = "Unknown"
)

// Valid reports whether a is one of the three canonical values.
func (a SUSAcceptance) Valid() bool {
	switch a {
	case SUSYes, SUSNo, SUSUnknown:
		return true
	}
	return false
}

// Label returns the pt-BR display label.
func (a SUSAcceptance) Label() string {
	switch a {
	case SUSYes:
		return "Atende SUS"
	case SUSNo:
		return "Não atende SUS"
	}
	return "SUS não informado"
}

// Badge returns the short badge text shown next to a result.
func (a SUSAcceptance) Badge() string {
	switch a {
	case SUSYes:
		return "SUS"
	case SUSNo:
		return "Particular"
	}
	return "?"
}

// ParseSUSAcceptance accepts canonical values plus the usual yes/no spellings
// found in CNES exports (S/N, sim/nao, 1/0).
func ParseSUSAcceptance(v string) (SUSAcceptance, bool) {
	switch compactFold(v) {
	case "yes", "sim", "s", "1", "true", "sus":
		return SUSYes, true
	case "no", "nao", "n", "0", "false", "particular":
		return SUSNo, true
	case "unknown", "?":
		return SUSUnknown, true
	}
	return "", false
}

// MaternityLabel is the coarse label used for ranking and display.
type MaternityLabel string

const (
	LabelConfirmed MaternityLabel = "confirmed"
	LabelProbable  MaternityLabel = "probable"
	LabelOther     MaternityLabel = "other"
)

// LabelFor derives the label from the classifier flags.
func LabelFor(hasMaternity, isProbable bool) MaternityLabel {
	switch {
	case hasMaternity:
		return LabelConfirmed
	case isProbable:
		return LabelProbable
	}
	return LabelOther
}

// Rank orders labels: confirmed first, other last.
func (l MaternityLabel) Rank() int {
	switch l {
	case LabelConfirmed:
		return 0
	case LabelProbable:
		return 1
	}
	return 2
}

func compactFold(v string) string {
	return strings.Join(strings.Fields(utils.FoldText(v)), "")
}

package snapshot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zatekoja/maternidades/internal/domain/entities"
	apperrors "github.com/zatekoja/maternidades/pkg/errors"
	"github.com/zatekoja/maternidades/pkg/utils"
)

// Establishment is a typed tbEstabelecimento row
type Establishment struct {
	CNESID           string
	DisplayName      string
	LegalName        string
	Street           string
	Number           string
	Neighborhood     string
	PostalCode       string
	MunicipalityCode string
	UF               string
	Phone            string
	NatureCode       string
	Management       string
	// Philanthropic is nil when the flag column is absent or blank.
	Philanthropic *bool
	// SUSIndicator is nil when the establishment carries no SUS column.
	SUSIndicator *bool
	Lat          *float64
	Lon          *float64
	// CoordsInvalid is set when coordinates were present but unusable.
	CoordsInvalid bool
	Line          int
}

// Name returns the display name, falling back to the legal name.
func (e *Establishment) Name() string {
	if e.DisplayName != "" {
		return e.DisplayName
	}
	return e.LegalName
}

var (
	colDisplayName   = []string{"NO_FANTASIA", "NOME_FANTASIA"}
	colLegalName     = []string{"NO_RAZAO_SOCIAL", "RAZAO_SOCIAL"}
	colStreet        = []string{"NO_LOGRADOURO", "LOGRADOURO"}
	colNumber        = []string{"NU_ENDERECO", "NUMERO"}
	colNeighborhood  = []string{"NO_BAIRRO", "BAIRRO"}
	colPostalCode    = []string{"CO_CEP", "CEP"}
	colMunicipality  = []string{"CO_MUNICIPIO_GESTOR", "CO_MUNICIPIO", "CO_IBGE"}
	colUF            = []string{"SG_UF", "CO_SIGLA_ESTADO", "UF"}
	colStateCode     = []string{"CO_ESTADO_GESTOR", "CO_UF"}
	colPhone         = []string{"NU_TELEFONE", "TELEFONE"}
	colNature        = []string{"CO_NATUREZA_JUR", "CO_NATUREZA_JURIDICA"}
	colManagement    = []string{"TP_GESTAO"}
	colPhilanthropic = []string{"ST_ADESAO_FILANTROP"}
	colSUS           = []string{"ST_ATENDE_SUS", "IN_ATENDE_SUS", "ATENDE_SUS", "ST_SUS"}
	colLat           = []string{"NU_LATITUDE", "LATITUDE"}
	colLon           = []string{"NU_LONGITUDE", "LONGITUDE"}

	colBedType = []string{"CO_TIPO_LEITO", "CO_LEITO", "TP_LEITO"}
	colBedQty  = []string{"QT_EXIST", "QT_EXISTENTE", "QT_LEITO"}

	colServiceCode  = []string{"CO_SERVICO", "CO_SERVICO_ESPECIALIZADO"}
	colServiceClass = []string{"CO_CLASSIFICACAO", "CO_CLASSIFICACAO_SERVICO"}
	colAmbSUS       = []string{"CO_AMBULATORIAL_SUS", "ST_AMBULATORIAL_SUS"}
	colHospSUS      = []string{"CO_HOSPITALAR_SUS", "ST_HOSPITALAR_SUS"}

	colConvenio = []string{"CO_CONVENIO"}

	colOverrideField  = []string{"CAMPO", "FIELD"}
	colOverrideValue  = []string{"VALOR", "VALUE"}
	colOverrideSource = []string{"FONTE", "SOURCE"}
)

// IBGE state codes to UF.
var ufByIBGE = map[string]string{
	"11": "RO", "12": "AC", "13": "AM", "14": "RR", "15": "PA", "16": "AP", "17": "TO",
	"21": "MA", "22": "PI", "23": "CE", "24": "RN", "25": "PB", "26": "PE", "27": "AL", "28": "SE", "29": "BA",
	"31": "MG", "32": "ES", "33": "RJ", "35": "SP",
	"41": "PR", "42": "SC", "43": "RS",
	"50": "MS", "51": "MT", "52": "GO", "53": "DF",
}

// UFFromIBGE maps a two-digit IBGE state code, or any code starting with
// one, to its UF.
func UFFromIBGE(code string) string {
	code = utils.OnlyDigits(code)
	if len(code) < 2 {
		return ""
	}
	return ufByIBGE[code[:2]]
}

// ParseEstablishment converts a tbEstabelecimento row. Coordinates that do
// not parse or fall outside Brazil are left nil and flagged.
func ParseEstablishment(row Row) (*Establishment, error) {
	e := &Establishment{
		CNESID:           row.CNESID(),
		DisplayName:      utils.CollapseSpaces(row.firstOf(colDisplayName...)),
		LegalName:        utils.CollapseSpaces(row.firstOf(colLegalName...)),
		Street:           utils.CollapseSpaces(row.firstOf(colStreet...)),
		Number:           row.firstOf(colNumber...),
		Neighborhood:     utils.CollapseSpaces(row.firstOf(colNeighborhood...)),
		PostalCode:       utils.OnlyDigits(row.firstOf(colPostalCode...)),
		MunicipalityCode: utils.OnlyDigits(row.firstOf(colMunicipality...)),
		Phone:            row.firstOf(colPhone...),
		Management:       strings.ToUpper(row.firstOf(colManagement...)),
		Line:             row.Line(),
	}
	if e.CNESID == "" {
		return nil, malformed(row, "CO_CNES", "empty establishment id")
	}
	if e.Name() == "" {
		return nil, malformed(row, "NO_FANTASIA", "both display and legal name are empty")
	}

	nature := row.firstOf(colNature...)
	if nature != "" {
		digits := strings.ReplaceAll(nature, "-", "")
		if utils.OnlyDigits(digits) != digits {
			return nil, malformed(row, "CO_NATUREZA_JUR", fmt.Sprintf("non-numeric nature code %q", nature))
		}
		e.NatureCode = digits
	}

	e.UF = strings.ToUpper(row.firstOf(colUF...))
	if len(e.UF) != 2 || utils.OnlyDigits(e.UF) != "" {
		e.UF = UFFromIBGE(row.firstOf(colStateCode...))
	}
	if e.UF == "" {
		e.UF = UFFromIBGE(e.MunicipalityCode)
	}

	if row.hasAny(colPhilanthropic...) {
		e.Philanthropic = ParseFlag(row.firstOf(colPhilanthropic...))
	}
	if row.hasAny(colSUS...) {
		e.SUSIndicator = ParseFlag(row.firstOf(colSUS...))
	}

	latRaw, lonRaw := row.firstOf(colLat...), row.firstOf(colLon...)
	if latRaw != "" || lonRaw != "" {
		lat, errLat := ParseDecimal(latRaw)
		lon, errLon := ParseDecimal(lonRaw)
		if errLat == nil && errLon == nil && !(lat == 0 && lon == 0) && entities.InBrazil(lat, lon) {
			e.Lat, e.Lon = &lat, &lon
		} else {
			e.CoordsInvalid = true
		}
	}
	return e, nil
}

// ParseBed converts a bed row. Duplicates are summed by the caller.
func ParseBed(row Row) (*entities.BedRecord, error) {
	code := NormalizeCode(row.firstOf(colBedType...))
	if code == "" {
		return nil, malformed(row, "CO_TIPO_LEITO", "empty bed type")
	}
	raw := row.firstOf(colBedQty...)
	qty := 0
	if raw != "" {
		f, err := ParseDecimal(raw)
		if err != nil || f < 0 || f != float64(int(f)) {
			return nil, malformed(row, "QT_EXIST", fmt.Sprintf("invalid quantity %q", raw))
		}
		qty = int(f)
	}
	return &entities.BedRecord{CNESID: row.CNESID(), BedTypeCode: code, ExistingQty: qty}, nil
}

// ParseService converts a rlEstabServClass row. Both codes are required.
func ParseService(row Row) (*entities.ServiceAssignment, error) {
	service := NormalizeCode(row.firstOf(colServiceCode...))
	if service == "" {
		return nil, malformed(row, "CO_SERVICO", "empty service code")
	}
	class := NormalizeCode(row.firstOf(colServiceClass...))
	if class == "" {
		return nil, malformed(row, "CO_CLASSIFICACAO", "empty classification code")
	}
	return &entities.ServiceAssignment{
		CNESID:             row.CNESID(),
		ServiceCode:        service,
		ClassificationCode: class,
		SUSAmbulatory:      isTrue(ParseFlag(row.firstOf(colAmbSUS...))),
		SUSHospital:        isTrue(ParseFlag(row.firstOf(colHospSUS...))),
	}, nil
}

// ParseConvenio converts a tbEstabPrestConv row.
func ParseConvenio(row Row) (*entities.ConvenioRecord, error) {
	code := NormalizeCode(row.firstOf(colConvenio...))
	if code == "" {
		return nil, malformed(row, "CO_CONVENIO", "empty convenio code")
	}
	return &entities.ConvenioRecord{CNESID: row.CNESID(), ConvenioCode: code}, nil
}

// ParseOverride converts a manual override row and validates the value
// against the field's canonical domain.
func ParseOverride(row Row, sourceTag string) (*entities.OverrideEntry, error) {
	rawField := row.firstOf(colOverrideField...)
	field, ok := entities.ParseOverrideField(rawField)
	if !ok {
		return nil, malformed(row, "CAMPO", fmt.Sprintf("unknown override field %q", rawField))
	}
	value := row.firstOf(colOverrideValue...)
	switch field {
	case entities.OverrideFieldSphere:
		s, ok := entities.ParseSphere(value)
		if !ok {
			return nil, malformed(row, "VALOR", fmt.Sprintf("invalid sphere %q", value))
		}
		value = string(s)
	case entities.OverrideFieldAcceptsSUS:
		a, ok := entities.ParseSUSAcceptance(value)
		if !ok {
			return nil, malformed(row, "VALOR", fmt.Sprintf("invalid accepts_sus %q", value))
		}
		value = string(a)
	case entities.OverrideFieldConvenio:
		value = NormalizeCode(value)
		if value == "" {
			return nil, malformed(row, "VALOR", "empty convenio code")
		}
	}
	if src := row.firstOf(colOverrideSource...); src != "" {
		sourceTag = src
	}
	return &entities.OverrideEntry{CNESID: row.CNESID(), Field: field, Value: value, SourceTag: sourceTag}, nil
}

// ParseDecimal parses a number written with either '.' or ',' as decimal
// separator. When both appear the last one is the decimal separator.
func ParseDecimal(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	dot, comma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case dot >= 0 && comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}
	return strconv.ParseFloat(s, 64)
}

// ParseFlag reads the S/N, 1/0 and SIM/NAO spellings CNES uses. CNES also
// writes 2 for "no" in its SUS service columns. It returns nil for blanks
// and unknown spellings.
func ParseFlag(raw string) *bool {
	t, f := true, false
	switch utils.FoldText(strings.TrimSpace(raw)) {
	case "s", "sim", "1", "true", "y", "yes":
		return &t
	case "n", "nao", "0", "2", "false", "no":
		return &f
	}
	return nil
}

// NormalizeCode trims a numeric code and strips leading zeros so "001" and
// "1" compare equal. Non-numeric codes are returned trimmed and uppercased.
func NormalizeCode(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if utils.OnlyDigits(s) != s {
		return strings.ToUpper(s)
	}
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

func isTrue(b *bool) bool { return b != nil && *b }

func malformed(row Row, column, msg string) error {
	return apperrors.NewSnapshotMalformedError(
		fmt.Sprintf("line %d column %s: %s", row.Line(), column, msg), nil)
}

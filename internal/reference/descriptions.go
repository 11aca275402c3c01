package reference

import (
	"fmt"

	"github.com/zatekoja/maternidades/internal/snapshot"
	"github.com/zatekoja/maternidades/pkg/utils"
)

// Municipality is a tbMunicipio entry
type Municipality struct {
	Name string
	UF   string
}

// Descriptions maps snapshot codes to human-readable text. Used only for
// reason strings and municipality display names.
type Descriptions struct {
	BedTypes       map[string]string
	Services       map[string]string
	Classes        map[string]string
	Natures        map[string]string
	Municipalities map[string]Municipality
}

// NewDescriptions returns empty description maps
func NewDescriptions() *Descriptions {
	return &Descriptions{
		BedTypes:       map[string]string{},
		Services:       map[string]string{},
		Classes:        map[string]string{},
		Natures:        map[string]string{},
		Municipalities: map[string]Municipality{},
	}
}

// LoadDescriptions reads every reference table present in the snapshot.
// Absent tables leave their map empty.
func LoadDescriptions(r *snapshot.Reader) (*Descriptions, error) {
	d := NewDescriptions()

	simple := []struct {
		kind  snapshot.TableKind
		code  []string
		desc  []string
		into  map[string]string
		digit bool
	}{
		{snapshot.TableBedTypes, []string{"CO_TIPO_LEITO", "CO_LEITO"}, []string{"DS_TIPO_LEITO", "DS_LEITO"}, d.BedTypes, false},
		{snapshot.TableServiceTypes, []string{"CO_SERVICO_ESPECIALIZADO", "CO_SERVICO"}, []string{"DS_SERVICO_ESPECIALIZADO", "DS_SERVICO"}, d.Services, false},
		{snapshot.TableLegalNatures, []string{"CO_NATUREZA_JUR", "CO_NATUREZA_JURIDICA"}, []string{"DS_NATUREZA_JUR", "DS_NATUREZA_JURIDICA"}, d.Natures, true},
	}
	for _, t := range simple {
		err := eachRow(r, t.kind, func(row snapshot.Row) {
			code := firstOf(row, t.code)
			if t.digit {
				code = utils.OnlyDigits(code)
			} else {
				code = snapshot.NormalizeCode(code)
			}
			if code != "" {
				t.into[code] = firstOf(row, t.desc)
			}
		})
		if err != nil {
			return nil, err
		}
	}

	// Classifications are scoped by service.
	err := eachRow(r, snapshot.TableServiceClasses, func(row snapshot.Row) {
		service := snapshot.NormalizeCode(firstOf(row, []string{"CO_SERVICO_ESPECIALIZADO", "CO_SERVICO"}))
		class := snapshot.NormalizeCode(firstOf(row, []string{"CO_CLASSIFICACAO_SERVICO", "CO_CLASSIFICACAO"}))
		if class != "" {
			d.Classes[ClassKey(service, class)] = firstOf(row, []string{"DS_CLASSIFICACAO_SERVICO", "DS_CLASSIFICACAO"})
		}
	})
	if err != nil {
		return nil, err
	}

	err = eachRow(r, snapshot.TableMunicipalities, func(row snapshot.Row) {
		code := utils.OnlyDigits(firstOf(row, []string{"CO_MUNICIPIO", "CO_MUNICIPIO_GESTOR"}))
		if code == "" {
			return
		}
		uf := firstOf(row, []string{"CO_SIGLA_ESTADO", "SG_UF", "UF"})
		if uf == "" {
			uf = snapshot.UFFromIBGE(code)
		}
		d.Municipalities[code] = Municipality{
			Name: utils.CollapseSpaces(firstOf(row, []string{"NO_MUNICIPIO", "DS_MUNICIPIO"})),
			UF:   uf,
		}
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ClassKey builds the Classes map key.
func ClassKey(service, class string) string {
	return service + "/" + class
}

// Municipality returns the entry for code; six and seven digit IBGE codes
// are both accepted.
func (d *Descriptions) Municipality(code string) (Municipality, bool) {
	code = utils.OnlyDigits(code)
	if m, ok := d.Municipalities[code]; ok {
		return m, true
	}
	if len(code) == 7 {
		m, ok := d.Municipalities[code[:6]]
		return m, ok
	}
	return Municipality{}, false
}

// BedType returns the description of a bed type, or the code itself.
func (d *Descriptions) BedType(code string) string {
	if v := d.BedTypes[snapshot.NormalizeCode(code)]; v != "" {
		return v
	}
	return code
}

// Nature returns the description of a legal nature, or the code itself.
func (d *Descriptions) Nature(code string) string {
	if v := d.Natures[utils.OnlyDigits(code)]; v != "" {
		return v
	}
	return code
}

func eachRow(r *snapshot.Reader, kind snapshot.TableKind, fn func(snapshot.Row)) error {
	s, err := r.Rows(kind)
	if err != nil {
		return fmt.Errorf("load %s: %w", kind, err)
	}
	defer s.Close()
	for s.Next() {
		fn(s.Row())
	}
	if err := s.Err(); err != nil {
		return fmt.Errorf("load %s: %w", kind, err)
	}
	return nil
}

func firstOf(row snapshot.Row, cols []string) string {
	for _, c := range cols {
		if v := row.Get(c); v != "" {
			return v
		}
	}
	return ""
}

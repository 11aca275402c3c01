package classifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/maternidades/internal/domain/entities"
	"github.com/zatekoja/maternidades/internal/reference"
	"github.com/zatekoja/maternidades/internal/snapshot"
)

func boolPtr(b bool) *bool { return &b }

func estab(cnes, name string) *snapshot.Establishment {
	return &snapshot.Establishment{CNESID: cnes, DisplayName: name}
}

func newClassifier() *Classifier {
	return New(reference.DefaultConfig(), nil)
}

func TestClassify_ConfirmedByBeds(t *testing.T) {
	res := newClassifier().Classify(Input{
		Establishment: estab("1234567", "Hospital Geral"),
		Beds:          map[string]int{"4": 3},
	})

	assert.True(t, res.HasMaternity)
	assert.False(t, res.IsProbable)
	assert.Equal(t, 1.0, res.Score)
	assert.Equal(t, "leito_obstetrico", res.Reason)
	assert.Equal(t, entities.LabelConfirmed, res.Label())
}

func TestClassify_NameHeuristicOnly(t *testing.T) {
	res := newClassifier().Classify(Input{Establishment: estab("7000003", "Hospital da Mulher")})

	assert.False(t, res.HasMaternity)
	assert.True(t, res.IsProbable)
	assert.Equal(t, 0.45, res.Score)
	assert.True(t, strings.HasPrefix(res.Reason, "keyword:"), res.Reason)
}

func TestClassify_ExclusionOverridesName(t *testing.T) {
	res := newClassifier().Classify(Input{
		Establishment: estab("2085569", "Hospital Francisca Júlia CVV — saúde mental"),
	})

	assert.False(t, res.HasMaternity)
	assert.False(t, res.IsProbable)
	assert.Equal(t, 0.0, res.Score)
	assert.True(t, strings.HasPrefix(res.Reason, "excluded:"), res.Reason)
}

func TestClassify_ExclusionBeatsBeds(t *testing.T) {
	res := newClassifier().Classify(Input{
		Establishment: estab("1", "Hospital Psiquiátrico Estadual"),
		Beds:          map[string]int{"4": 10},
	})

	assert.False(t, res.HasMaternity)
	assert.Equal(t, "excluded:psiquiatr", res.Reason)
}

func TestClassify_DevotionalHeartNamesNotExcluded(t *testing.T) {
	c := newClassifier()
	for _, name := range []string{"Hospital Sagrado Coração de Jesus", "Santa Casa Imaculado Coração de Maria"} {
		res := c.Classify(Input{Establishment: estab("1", name), Beds: map[string]int{"4": 20}})
		assert.True(t, res.HasMaternity, name)
		assert.Equal(t, "leito_obstetrico", res.Reason, name)
	}

	res := c.Classify(Input{Establishment: estab("2", "Instituto do Coração - InCor"), Beds: map[string]int{"4": 2}})
	assert.False(t, res.HasMaternity)
	assert.Equal(t, "excluded:instituto do coracao", res.Reason)

	res = c.Classify(Input{Establishment: estab("3", "Hospital Cardiológico Costantini")})
	assert.Equal(t, "excluded:cardiolog", res.Reason)
}

func TestClassify_MaternidadeDefeatsExclusion(t *testing.T) {
	res := newClassifier().Classify(Input{
		Establishment: estab("1", "Hospital e Maternidade do Câncer"),
	})

	assert.True(t, res.IsProbable)
	assert.Equal(t, "keyword:maternidade", res.Reason)
}

func TestClassify_GeneralHospitalDefeatsExclusion(t *testing.T) {
	res := newClassifier().Classify(Input{
		Establishment: estab("1", "Hospital das Clínicas - Instituto de Psiquiatria"),
		Beds:          map[string]int{"4": 12},
	})

	assert.True(t, res.HasMaternity)
	assert.Equal(t, "leito_obstetrico", res.Reason)
}

func TestClassify_TokenExclusionRequiresWholeWord(t *testing.T) {
	c := newClassifier()

	res := c.Classify(Input{Establishment: estab("1", "CAPS AD Centro")})
	assert.Equal(t, "excluded:caps", res.Reason)

	res = c.Classify(Input{Establishment: estab("2", "Hospital Capsula")})
	assert.Equal(t, "none", res.Reason)
}

func TestClassify_ZeroQuantityBedsIgnored(t *testing.T) {
	res := newClassifier().Classify(Input{
		Establishment: estab("1", "Hospital Geral"),
		Beds:          map[string]int{"4": 0, "2": 5},
	})

	assert.False(t, res.HasMaternity)
	assert.Equal(t, "none", res.Reason)
	assert.Equal(t, entities.LabelOther, res.Label())
}

func TestClassify_ConfirmedByService(t *testing.T) {
	res := newClassifier().Classify(Input{
		Establishment: estab("1", "Hospital Municipal"),
		Services: []entities.ServiceAssignment{
			{CNESID: "1", ServiceCode: "141", ClassificationCode: "2"},
			{CNESID: "1", ServiceCode: "141", ClassificationCode: "1"},
		},
	})

	assert.True(t, res.HasMaternity)
	assert.Equal(t, 0.9, res.Score)
	assert.Equal(t, "servico_obstetrico", res.Reason)
}

func TestClassify_BedsTakePriorityOverService(t *testing.T) {
	res := newClassifier().Classify(Input{
		Establishment: estab("1", "Hospital Municipal"),
		Beds:          map[string]int{"4": 1},
		Services:      []entities.ServiceAssignment{{ServiceCode: "141", ClassificationCode: "1"}},
	})

	assert.Equal(t, "leito_obstetrico", res.Reason)
	assert.Equal(t, 1.0, res.Score)
}

func TestClassify_AccentAndCaseInsensitive(t *testing.T) {
	c := newClassifier()
	a := c.Classify(Input{Establishment: estab("1", "MATERNIDADE SAO JOSE")})
	b := c.Classify(Input{Establishment: estab("2", "maternidade são josé")})

	assert.Equal(t, a.Reason, b.Reason)
	assert.Equal(t, a.IsProbable, b.IsProbable)
}

func TestClassify_FirstListedKeywordWins(t *testing.T) {
	cfg, err := reference.ParseConfig([]byte(`{"keywords_maternity": ["hospital da mulher", "maternidade"]}`))
	require.NoError(t, err)

	res := New(cfg, nil).Classify(Input{Establishment: estab("1", "Maternidade Hospital da Mulher")})
	assert.Equal(t, "keyword:hospital da mulher", res.Reason)
}

func TestClassify_LegalNameFallback(t *testing.T) {
	res := newClassifier().Classify(Input{
		Establishment: &snapshot.Establishment{CNESID: "1", LegalName: "MATERNIDADE ESCOLA LTDA"},
	})
	assert.True(t, res.IsProbable)
}

func TestClassify_Sphere(t *testing.T) {
	c := newClassifier()
	cases := []struct {
		name   string
		e      *snapshot.Establishment
		sphere entities.Sphere
		warns  int
	}{
		{"public prefix", &snapshot.Establishment{NatureCode: "1244"}, entities.SpherePublic, 0},
		{"private", &snapshot.Establishment{NatureCode: "2062"}, entities.SpherePrivate, 0},
		{"flagged philanthropic", &snapshot.Establishment{NatureCode: "2062", Philanthropic: boolPtr(true)}, entities.SpherePhilanthropic, 1},
		{"listed nature", &snapshot.Establishment{NatureCode: "3999"}, entities.SpherePhilanthropic, 0},
		{"listed and flagged", &snapshot.Establishment{NatureCode: "3999", Philanthropic: boolPtr(true)}, entities.SpherePhilanthropic, 0},
		{"listed but flag says no", &snapshot.Establishment{NatureCode: "3069", Philanthropic: boolPtr(false)}, entities.SpherePhilanthropic, 1},
		{"other digit", &snapshot.Establishment{NatureCode: "4014"}, entities.SpherePrivate, 0},
		{"empty nature", &snapshot.Establishment{}, entities.SphereUnknown, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.e.DisplayName = "Clinica"
			res := c.Classify(Input{Establishment: tc.e})
			assert.Equal(t, tc.sphere, res.Sphere)
			assert.Len(t, res.Warnings, tc.warns)
		})
	}
}

func TestClassify_AcceptsSUS(t *testing.T) {
	c := newClassifier()
	cases := []struct {
		name string
		in   Input
		want entities.SUSAcceptance
	}{
		{"indicator", Input{Establishment: &snapshot.Establishment{SUSIndicator: boolPtr(true)}}, entities.SUSYes},
		{"sus service", Input{
			Establishment: &snapshot.Establishment{},
			Services:      []entities.ServiceAssignment{{ServiceCode: "100", ClassificationCode: "1", SUSHospital: true}},
		}, entities.SUSYes},
		{"sus convenio", Input{Establishment: &snapshot.Establishment{}, Convenios: []string{"22", "1"}}, entities.SUSYes},
		{"public sphere", Input{Establishment: &snapshot.Establishment{NatureCode: "1023"}}, entities.SUSYes},
		{"explicit negative", Input{Establishment: &snapshot.Establishment{SUSIndicator: boolPtr(false)}}, entities.SUSNo},
		{"no management", Input{Establishment: &snapshot.Establishment{Management: "S"}}, entities.SUSNo},
		{"only private convenios", Input{Establishment: &snapshot.Establishment{}, Convenios: []string{"22"}}, entities.SUSNo},
		{"nothing", Input{Establishment: &snapshot.Establishment{NatureCode: "2062"}}, entities.SUSUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Classify(tc.in).AcceptsSUS)
		})
	}
}

func TestClassify_OverridesSupersede(t *testing.T) {
	phil := entities.SpherePhilanthropic
	no := entities.SUSNo
	res := newClassifier().Classify(Input{
		Establishment: &snapshot.Establishment{CNESID: "1", DisplayName: "Hospital Geral", NatureCode: "1023"},
		Beds:          map[string]int{"4": 2},
		Override:      &entities.Override{Sphere: &phil, AcceptsSUS: &no},
	})

	assert.Equal(t, entities.SpherePhilanthropic, res.Sphere)
	assert.Equal(t, entities.SUSNo, res.AcceptsSUS)
	assert.Equal(t, "leito_obstetrico; sphere_override; sus_override", res.Reason)
}

func TestClassify_OverrideConveniosFeedSUS(t *testing.T) {
	res := newClassifier().Classify(Input{
		Establishment: &snapshot.Establishment{CNESID: "1", DisplayName: "Clinica"},
		Override:      &entities.Override{Convenios: []string{"01"}},
	})
	assert.Equal(t, entities.SUSYes, res.AcceptsSUS)
	assert.Equal(t, "none", res.Reason)
}

func TestClassify_Invariants(t *testing.T) {
	c := newClassifier()
	names := []string{
		"Hospital Geral", "Maternidade Escola", "Hospital da Mulher", "CAPS II",
		"Hospital Infantil", "Hospital de Clínicas", "Santa Casa", "",
	}
	bedSets := []map[string]int{nil, {"4": 1}, {"4": 0}, {"2": 3}}
	services := [][]entities.ServiceAssignment{nil, {{ServiceCode: "141", ClassificationCode: "1"}}}

	for _, name := range names {
		for _, beds := range bedSets {
			for _, svc := range services {
				res := c.Classify(Input{Establishment: estab("1", name), Beds: beds, Services: svc})
				assert.False(t, res.HasMaternity && res.IsProbable, "exclusivity for %q", name)
				assert.True(t, res.Sphere.Valid())
				assert.True(t, res.AcceptsSUS.Valid())
				assert.GreaterOrEqual(t, res.Score, 0.0)
				assert.LessOrEqual(t, res.Score, 1.0)
				if res.HasMaternity {
					assert.NotEmpty(t, res.Reason)
				}
			}
		}
	}
}

func TestClassify_Deterministic(t *testing.T) {
	c := newClassifier()
	in := Input{
		Establishment: estab("1", "Hospital Geral"),
		Beds:          map[string]int{"4": 1, "10": 2, "3": 1},
	}
	first := c.Classify(in)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, c.Classify(in))
	}
}

func TestRuleLabels(t *testing.T) {
	assert.Equal(t, []string{"exclusion", "beds", "service", "keyword"}, RuleLabels())
}

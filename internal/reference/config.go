package reference

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/zatekoja/maternidades/internal/snapshot"
	"github.com/zatekoja/maternidades/pkg/utils"
)

// TokenPrefix marks a keyword that must match whole tokens.
const TokenPrefix = "token:"

// ClassifierConfig enumerates the codes and keywords the classifier uses
type ClassifierConfig struct {
	LeitoCodesObst          []string `json:"leito_codes_obst"`
	LeitoCodesNeonatal      []string `json:"leito_codes_neonatal"`
	ServiceCodesObst        []string `json:"service_codes_obst"`
	ClassCodesObst          []string `json:"class_codes_obst"`
	KeywordsMaternity       []string `json:"keywords_maternity"`
	KeywordsExclusion       []string `json:"keywords_exclusion"`
	NaturePrefixPublic      []string `json:"nature_prefix_public"`
	NaturePhilanthropic     []string `json:"nature_philanthropic"`
	DataVersion             string   `json:"data_version"`
	ConvenioSUSCodes        []string `json:"convenio_sus_codes"`
	GeneralHospitalKeywords []string `json:"general_hospital_keywords"`

	obstBeds       map[string]bool
	neonatalBeds   map[string]bool
	obstServices   map[string]bool
	obstClasses    map[string]bool
	philanthropic  map[string]bool
	susConvenios   map[string]bool
	maternity      []Keyword
	exclusion      []Keyword
	generalHosp    []Keyword
	maternityGuard Keyword
}

// Keyword is a folded matching term
type Keyword struct {
	// Raw is the keyword as written in the config, without the token prefix.
	Raw string
	// Folded is the lowercased, accent-stripped form.
	Folded string
	// Tokens is set when the keyword must match whole tokens.
	Tokens []string
}

// Whole reports whether the keyword requires whole-token matching.
func (k Keyword) Whole() bool { return len(k.Tokens) > 0 }

// Match reports whether k occurs in a name given its folded form and tokens.
func (k Keyword) Match(folded string, tokens []string) bool {
	if k.Folded == "" {
		return false
	}
	if !k.Whole() {
		return strings.Contains(folded, k.Folded)
	}
	n := len(k.Tokens)
	for i := 0; i+n <= len(tokens); i++ {
		hit := true
		for j := 0; j < n; j++ {
			if tokens[i+j] != k.Tokens[j] {
				hit = false
				break
			}
		}
		if hit {
			return true
		}
	}
	return false
}

// DefaultConfig returns the shipped classifier configuration
func DefaultConfig() *ClassifierConfig {
	cfg := &ClassifierConfig{}
	cfg.applyDefaults()
	cfg.compile()
	return cfg
}

// LoadConfig reads a JSON config from path. Fields left out take their
// defaults. An empty path returns DefaultConfig.
func LoadConfig(path string) (*ClassifierConfig, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read classifier config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a JSON config document.
func ParseConfig(data []byte) (*ClassifierConfig, error) {
	var cfg ClassifierConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse classifier config: %w", err)
	}
	cfg.applyDefaults()
	cfg.compile()
	return &cfg, nil
}

func (c *ClassifierConfig) applyDefaults() {
	if c.LeitoCodesObst == nil {
		c.LeitoCodesObst = []string{"4"}
	}
	if c.LeitoCodesNeonatal == nil {
		c.LeitoCodesNeonatal = []string{"2", "3"}
	}
	if c.ServiceCodesObst == nil {
		c.ServiceCodesObst = []string{"141"}
	}
	if c.ClassCodesObst == nil {
		c.ClassCodesObst = []string{"001"}
	}
	if c.KeywordsMaternity == nil {
		c.KeywordsMaternity = []string{
			"maternidade",
			"hospital da mulher",
			"hospital e maternidade",
			"obstetrico",
			"obstetricia",
			"casa de parto",
			"centro de parto",
			"perinatal",
			"materno infantil",
			"materno-infantil",
		}
	}
	if c.KeywordsExclusion == nil {
		c.KeywordsExclusion = []string{
			"psiquiatr",
			"saude mental",
			"token:caps",
			"token:cvv",
			"ortoped",
			"oftalmo",
			"olhos",
			"oncolog",
			"cancer",
			"cardiolog",
			"instituto do coracao",
			"token:incor",
			"hospital infantil",
			"hospital da crianca",
			"pediatric",
			"cirurgia plastica",
			"plastica",
			"reabilitacao",
			"dependencia quimica",
			"dependentes quimicos",
			"token:covid",
			"hospital de campanha",
			"odontolog",
			"veterinar",
		}
	}
	if c.NaturePrefixPublic == nil {
		c.NaturePrefixPublic = []string{"1"}
	}
	if c.NaturePhilanthropic == nil {
		c.NaturePhilanthropic = []string{"3069", "3999"}
	}
	if c.ConvenioSUSCodes == nil {
		c.ConvenioSUSCodes = []string{"01"}
	}
	if c.GeneralHospitalKeywords == nil {
		c.GeneralHospitalKeywords = []string{"hospital das clinicas", "hospital de clinicas"}
	}
}

func (c *ClassifierConfig) compile() {
	c.obstBeds = codeSet(c.LeitoCodesObst)
	c.neonatalBeds = codeSet(c.LeitoCodesNeonatal)
	c.obstServices = codeSet(c.ServiceCodesObst)
	c.obstClasses = codeSet(c.ClassCodesObst)
	c.susConvenios = codeSet(c.ConvenioSUSCodes)
	c.philanthropic = make(map[string]bool, len(c.NaturePhilanthropic))
	for _, n := range c.NaturePhilanthropic {
		c.philanthropic[utils.OnlyDigits(n)] = true
	}
	c.maternity = compileKeywords(c.KeywordsMaternity)
	c.exclusion = compileKeywords(c.KeywordsExclusion)
	c.generalHosp = compileKeywords(c.GeneralHospitalKeywords)
	c.maternityGuard = compileKeyword("maternidade")
}

func codeSet(codes []string) map[string]bool {
	set := make(map[string]bool, len(codes))
	for _, code := range codes {
		if n := snapshot.NormalizeCode(code); n != "" {
			set[n] = true
		}
	}
	return set
}

func compileKeywords(raw []string) []Keyword {
	out := make([]Keyword, 0, len(raw))
	for _, r := range raw {
		if k := compileKeyword(r); k.Folded != "" {
			out = append(out, k)
		}
	}
	return out
}

func compileKeyword(raw string) Keyword {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(raw), TokenPrefix) {
		term := strings.TrimSpace(raw[len(TokenPrefix):])
		return Keyword{Raw: term, Folded: utils.NormalizeKey(term), Tokens: utils.Tokens(term)}
	}
	return Keyword{Raw: raw, Folded: utils.NormalizeKey(raw)}
}

// IsObstetricBed reports whether code is in the obstetric bed set
func (c *ClassifierConfig) IsObstetricBed(code string) bool {
	return c.obstBeds[snapshot.NormalizeCode(code)]
}

// IsNeonatalBed reports whether code is in the neonatal bed set
func (c *ClassifierConfig) IsNeonatalBed(code string) bool {
	return c.neonatalBeds[snapshot.NormalizeCode(code)]
}

// IsObstetricService reports whether the service/classification pair is obstetric
func (c *ClassifierConfig) IsObstetricService(service, class string) bool {
	return c.obstServices[snapshot.NormalizeCode(service)] && c.obstClasses[snapshot.NormalizeCode(class)]
}

// IsSUSConvenio reports whether a convenio code means SUS
func (c *ClassifierConfig) IsSUSConvenio(code string) bool {
	return c.susConvenios[snapshot.NormalizeCode(code)]
}

// IsPhilanthropicNature reports whether the nature code is listed as philanthropic
func (c *ClassifierConfig) IsPhilanthropicNature(nature string) bool {
	return c.philanthropic[utils.OnlyDigits(nature)]
}

// IsPublicNature reports whether the nature code starts with a public prefix
func (c *ClassifierConfig) IsPublicNature(nature string) bool {
	for _, p := range c.NaturePrefixPublic {
		if p != "" && strings.HasPrefix(nature, p) {
			return true
		}
	}
	return false
}

// MaternityKeywords returns the compiled maternity keywords in listed order
func (c *ClassifierConfig) MaternityKeywords() []Keyword { return c.maternity }

// ExclusionKeywords returns the compiled exclusion keywords in listed order
func (c *ClassifierConfig) ExclusionKeywords() []Keyword { return c.exclusion }

// GeneralHospitalKeywordList returns the compiled general-hospital keywords
func (c *ClassifierConfig) GeneralHospitalKeywordList() []Keyword { return c.generalHosp }

// MaternityGuard is the keyword that defeats exclusions
func (c *ClassifierConfig) MaternityGuard() Keyword { return c.maternityGuard }

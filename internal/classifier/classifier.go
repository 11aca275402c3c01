package classifier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zatekoja/maternidades/internal/domain/entities"
	"github.com/zatekoja/maternidades/internal/reference"
	"github.com/zatekoja/maternidades/internal/snapshot"
	"github.com/zatekoja/maternidades/pkg/utils"
)

// Reasons emitted by the rules.
const (
	ReasonBeds         = "leito_obstetrico"
	ReasonService      = "servico_obstetrico"
	ReasonNone         = "none"
	ReasonExcludedPfx  = "excluded:"
	ReasonKeywordPfx   = "keyword:"
	ReasonSphereSuffix = "; sphere_override"
	ReasonSUSSuffix    = "; sus_override"
	ScoreBeds          = 1.0
	ScoreService       = 0.9
	ScoreKeyword       = 0.45
	managementNone     = "S"
)

// Input is everything known about one establishment
type Input struct {
	Establishment *snapshot.Establishment
	// Beds maps bed type code to the summed existing quantity.
	Beds      map[string]int
	Services  []entities.ServiceAssignment
	Convenios []string
	Override  *entities.Override
}

// Result is the classification of one establishment
type Result struct {
	HasMaternity bool
	IsProbable   bool
	Sphere       entities.Sphere
	AcceptsSUS   entities.SUSAcceptance
	Score        float64
	Reason       string
	// Evidence is a human-readable note naming the bed type, service or
	// keyword that fired.
	Evidence string
	Warnings []string
}

// Label returns the maternity label of the result
func (r Result) Label() entities.MaternityLabel {
	return entities.LabelFor(r.HasMaternity, r.IsProbable)
}

type outcome struct {
	hasMaternity bool
	isProbable   bool
	score        float64
	reason       string
	evidence     string
}

// rule is one entry of the ordered maternity rule list. The first rule
// returning ok decides.
type rule struct {
	label string
	eval  func(c *Classifier, in *prepared) (outcome, bool)
}

var rules = []rule{
	{"exclusion", (*Classifier).excluded},
	{"beds", (*Classifier).confirmedByBeds},
	{"service", (*Classifier).confirmedByService},
	{"keyword", (*Classifier).probableByName},
}

type prepared struct {
	Input
	name   string
	folded string
	tokens []string
}

// Classifier applies the maternity, sphere and SUS rules
type Classifier struct {
	cfg  *reference.ClassifierConfig
	desc *reference.Descriptions
}

// New creates a classifier. desc may be nil.
func New(cfg *reference.ClassifierConfig, desc *reference.Descriptions) *Classifier {
	if cfg == nil {
		cfg = reference.DefaultConfig()
	}
	if desc == nil {
		desc = reference.NewDescriptions()
	}
	return &Classifier{cfg: cfg, desc: desc}
}

// Classify computes the classification of one establishment. It is pure:
// the same input always yields the same result.
func (c *Classifier) Classify(in Input) Result {
	p := &prepared{Input: in}
	if in.Establishment != nil {
		p.name = in.Establishment.Name()
	}
	p.folded = utils.NormalizeKey(p.name)
	p.tokens = utils.Tokens(p.name)

	out := outcome{reason: ReasonNone}
	for _, r := range rules {
		if o, ok := r.eval(c, p); ok {
			out = o
			break
		}
	}

	res := Result{
		HasMaternity: out.hasMaternity,
		IsProbable:   out.isProbable,
		Score:        out.score,
		Reason:       out.reason,
		Evidence:     out.evidence,
	}

	res.Sphere = c.sphere(p, &res)
	if in.Override != nil && in.Override.Sphere != nil {
		res.Sphere = *in.Override.Sphere
		res.Reason += ReasonSphereSuffix
	}

	res.AcceptsSUS = c.acceptsSUS(p, res.Sphere)
	if in.Override != nil && in.Override.AcceptsSUS != nil {
		res.AcceptsSUS = *in.Override.AcceptsSUS
		res.Reason += ReasonSUSSuffix
	}
	return res
}

func (c *Classifier) excluded(p *prepared) (outcome, bool) {
	if p.folded == "" {
		return outcome{}, false
	}
	for _, k := range c.cfg.GeneralHospitalKeywordList() {
		if k.Match(p.folded, p.tokens) {
			return outcome{}, false
		}
	}
	if c.cfg.MaternityGuard().Match(p.folded, p.tokens) {
		return outcome{}, false
	}
	for _, k := range c.cfg.ExclusionKeywords() {
		if k.Match(p.folded, p.tokens) {
			return outcome{
				reason:   ReasonExcludedPfx + k.Raw,
				evidence: fmt.Sprintf("nome contém %q", k.Raw),
			}, true
		}
	}
	return outcome{}, false
}

func (c *Classifier) confirmedByBeds(p *prepared) (outcome, bool) {
	codes := make([]string, 0, len(p.Beds))
	for code := range p.Beds {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		qty := p.Beds[code]
		if qty >= 1 && c.cfg.IsObstetricBed(code) {
			return outcome{
				hasMaternity: true,
				score:        ScoreBeds,
				reason:       ReasonBeds,
				evidence:     fmt.Sprintf("%d leito(s) %s", qty, c.desc.BedType(code)),
			}, true
		}
	}
	return outcome{}, false
}

func (c *Classifier) confirmedByService(p *prepared) (outcome, bool) {
	for _, s := range p.Services {
		if c.cfg.IsObstetricService(s.ServiceCode, s.ClassificationCode) {
			ev := fmt.Sprintf("serviço %s/%s", s.ServiceCode, s.ClassificationCode)
			if d := c.desc.Classes[reference.ClassKey(snapshot.NormalizeCode(s.ServiceCode), snapshot.NormalizeCode(s.ClassificationCode))]; d != "" {
				ev += " " + d
			}
			return outcome{
				hasMaternity: true,
				score:        ScoreService,
				reason:       ReasonService,
				evidence:     ev,
			}, true
		}
	}
	return outcome{}, false
}

func (c *Classifier) probableByName(p *prepared) (outcome, bool) {
	for _, k := range c.cfg.MaternityKeywords() {
		if k.Match(p.folded, p.tokens) {
			return outcome{
				isProbable: true,
				score:      ScoreKeyword,
				reason:     ReasonKeywordPfx + k.Raw,
				evidence:   fmt.Sprintf("nome contém %q", k.Raw),
			}, true
		}
	}
	return outcome{}, false
}

func (c *Classifier) sphere(p *prepared, res *Result) entities.Sphere {
	e := p.Establishment
	if e == nil || e.NatureCode == "" {
		return entities.SphereUnknown
	}
	nature := e.NatureCode
	if c.cfg.IsPublicNature(nature) {
		return entities.SpherePublic
	}
	switch nature[0] {
	case '2', '3':
		listed := c.cfg.IsPhilanthropicNature(nature)
		flagged := e.Philanthropic != nil && *e.Philanthropic
		if e.Philanthropic != nil && flagged != listed {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"philanthropic signals disagree: ST_ADESAO_FILANTROP=%t, nature %s (%s) listed=%t",
				flagged, nature, c.desc.Nature(nature), listed))
		}
		if flagged || listed {
			return entities.SpherePhilanthropic
		}
	}
	return entities.SpherePrivate
}

func (c *Classifier) acceptsSUS(p *prepared, sphere entities.Sphere) entities.SUSAcceptance {
	e := p.Establishment
	if e != nil && e.SUSIndicator != nil && *e.SUSIndicator {
		return entities.SUSYes
	}
	for _, s := range p.Services {
		if s.SUSFlagged() {
			return entities.SUSYes
		}
	}
	convenios := c.convenios(p)
	for _, code := range convenios {
		if c.cfg.IsSUSConvenio(code) {
			return entities.SUSYes
		}
	}
	if sphere == entities.SpherePublic {
		return entities.SUSYes
	}

	if e != nil && e.SUSIndicator != nil && !*e.SUSIndicator {
		return entities.SUSNo
	}
	if e != nil && strings.EqualFold(e.Management, managementNone) {
		return entities.SUSNo
	}
	if len(convenios) > 0 {
		// None of them is SUS at this point.
		return entities.SUSNo
	}
	return entities.SUSUnknown
}

func (c *Classifier) convenios(p *prepared) []string {
	if p.Override == nil || len(p.Override.Convenios) == 0 {
		return p.Convenios
	}
	out := make([]string, 0, len(p.Convenios)+len(p.Override.Convenios))
	out = append(out, p.Convenios...)
	return append(out, p.Override.Convenios...)
}

// RuleLabels lists the maternity rules in evaluation order.
func RuleLabels() []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.label
	}
	return out
}

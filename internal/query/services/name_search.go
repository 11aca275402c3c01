package services

import (
	"context"
	"sort"
	"strings"

	"github.com/zatekoja/maternidades/internal/domain/entities"
	apperrors "github.com/zatekoja/maternidades/pkg/errors"
	"github.com/zatekoja/maternidades/pkg/utils"
)

// SearchByName returns facilities whose folded name contains every query
// token. Labels rank first, then earlier token position, then name.
func (s *ProximityService) SearchByName(ctx context.Context, query, uf string, limit int) ([]entities.ProximityResult, error) {
	tokens := utils.Tokens(query)
	if len(tokens) == 0 {
		return nil, apperrors.NewBadRequestError("q is required")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	ds, err := s.current()
	if err != nil {
		return nil, err
	}
	uf = strings.ToUpper(strings.TrimSpace(uf))

	type hit struct {
		f   *entities.Facility
		pos int
	}
	var hits []hit
	for i, f := range ds.facilities {
		if uf != "" && f.UF != uf {
			continue
		}
		name := ds.folded[i]
		first := -1
		matched := true
		for _, t := range tokens {
			idx := strings.Index(name, t)
			if idx < 0 {
				matched = false
				break
			}
			if first < 0 || idx < first {
				first = idx
			}
		}
		if matched {
			hits = append(hits, hit{f: f, pos: first})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if ra, rb := a.f.Label().Rank(), b.f.Label().Rank(); ra != rb {
			return ra < rb
		}
		if a.pos != b.pos {
			return a.pos < b.pos
		}
		if a.f.DisplayName != b.f.DisplayName {
			return a.f.DisplayName < b.f.DisplayName
		}
		return a.f.CNESID < b.f.CNESID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]entities.ProximityResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, toResult(s.effective(h.f)))
	}
	return out, nil
}

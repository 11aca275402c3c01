package dataset

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/zatekoja/maternidades/internal/domain/entities"
	"github.com/zatekoja/maternidades/internal/overrides"
	"github.com/zatekoja/maternidades/internal/snapshot"
)

// auxiliary holds the per-cnes indexes of the companion tables.
type auxiliary struct {
	beds      map[string]map[string]int
	services  map[string][]entities.ServiceAssignment
	overrides *overrides.Table

	bedRows      int
	serviceRows  int
	rejectedRows int
}

// loadAuxiliary reads beds, services and the override sources concurrently.
func loadAuxiliary(ctx context.Context, r *snapshot.Reader) (*auxiliary, error) {
	aux := &auxiliary{
		beds:     map[string]map[string]int{},
		services: map[string][]entities.ServiceAssignment{},
	}
	var bedRejected, serviceRejected int

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scan(ctx, r, snapshot.TableBeds, func(row snapshot.Row) {
			bed, err := snapshot.ParseBed(row)
			if err != nil {
				bedRejected++
				return
			}
			if aux.beds[bed.CNESID] == nil {
				aux.beds[bed.CNESID] = map[string]int{}
			}
			aux.beds[bed.CNESID][bed.BedTypeCode] += bed.ExistingQty
			aux.bedRows++
		})
	})
	g.Go(func() error {
		return scan(ctx, r, snapshot.TableServices, func(row snapshot.Row) {
			svc, err := snapshot.ParseService(row)
			if err != nil {
				serviceRejected++
				return
			}
			aux.services[svc.CNESID] = append(aux.services[svc.CNESID], *svc)
			aux.serviceRows++
		})
	})
	g.Go(func() error {
		t, err := overrides.Build(r)
		if err != nil {
			return err
		}
		aux.overrides = t
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	aux.rejectedRows = bedRejected + serviceRejected + aux.overrides.Stats().Rejected
	if aux.rejectedRows > 0 {
		log.Warn().
			Int("beds", bedRejected).
			Int("services", serviceRejected).
			Int("overrides", aux.overrides.Stats().Rejected).
			Msg("auxiliary rows rejected")
	}
	return aux, nil
}

func scan(ctx context.Context, r *snapshot.Reader, kind snapshot.TableKind, fn func(snapshot.Row)) error {
	s, err := r.Rows(kind)
	if err != nil {
		return fmt.Errorf("open %s: %w", kind, err)
	}
	defer s.Close()
	for s.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(s.Row())
	}
	if err := s.Err(); err != nil {
		return fmt.Errorf("read %s: %w", kind, err)
	}
	return nil
}

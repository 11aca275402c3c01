package overrides

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/maternidades/internal/domain/entities"
	"github.com/zatekoja/maternidades/internal/snapshot"
)

// Table is an immutable cnes id -> override map.
type Table struct {
	tag     string
	entries map[string]entities.Override
	stats   Stats
}

// Stats counts the rows a Table was built from
type Stats struct {
	ConvenioRows int
	ManualRows   int
	Rejected     int
	Facilities   int
}

// Get returns the override for cnes, if any.
func (t *Table) Get(cnes string) (entities.Override, bool) {
	if t == nil {
		return entities.Override{}, false
	}
	o, ok := t.entries[snapshot.NormalizeCNES(cnes)]
	return o, ok
}

// Len returns the number of facilities with at least one override
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Tag returns the snapshot tag the table was built from
func (t *Table) Tag() string { return t.tag }

// Stats returns the build counters
func (t *Table) Stats() Stats { return t.stats }

// Build reads the convenio and manual override tables of r. Convenio rows
// contribute the convenio list; manual rows set sphere and accepts_sus and
// replace any convenio-derived list. When a manual table repeats a
// (cnes, field) pair the last row wins.
func Build(r *snapshot.Reader) (*Table, error) {
	t := &Table{tag: r.Tag(), entries: map[string]entities.Override{}}
	convenioSource := snapshot.TableConvenios.String() + r.Tag()

	convenios := map[string]map[string]bool{}
	err := each(r, snapshot.TableConvenios, func(row snapshot.Row) error {
		rec, err := snapshot.ParseConvenio(row)
		if err != nil {
			t.stats.Rejected++
			return nil
		}
		if convenios[rec.CNESID] == nil {
			convenios[rec.CNESID] = map[string]bool{}
		}
		convenios[rec.CNESID][rec.ConvenioCode] = true
		t.stats.ConvenioRows++
		return nil
	})
	if err != nil {
		return nil, err
	}
	for cnes, set := range convenios {
		o := t.entries[cnes]
		o.Convenios = sortedKeys(set)
		o.ConvenioSource = convenioSource
		t.entries[cnes] = o
	}

	manualSource := snapshot.TableOverrides.String() + r.Tag()
	manualConvenios := map[string]map[string]bool{}
	err = each(r, snapshot.TableOverrides, func(row snapshot.Row) error {
		entry, err := snapshot.ParseOverride(row, manualSource)
		if err != nil {
			t.stats.Rejected++
			log.Warn().Err(err).Str("table", snapshot.TableOverrides.String()).Msg("override row rejected")
			return nil
		}
		t.stats.ManualRows++
		o := t.entries[entry.CNESID]
		switch entry.Field {
		case entities.OverrideFieldSphere:
			s := entities.Sphere(entry.Value)
			o.Sphere, o.SphereSource = &s, entry.SourceTag
		case entities.OverrideFieldAcceptsSUS:
			a := entities.SUSAcceptance(entry.Value)
			o.AcceptsSUS, o.AcceptsSUSSource = &a, entry.SourceTag
		case entities.OverrideFieldConvenio:
			if manualConvenios[entry.CNESID] == nil {
				manualConvenios[entry.CNESID] = map[string]bool{}
			}
			manualConvenios[entry.CNESID][entry.Value] = true
			o.ConvenioSource = entry.SourceTag
		}
		t.entries[entry.CNESID] = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	for cnes, set := range manualConvenios {
		o := t.entries[cnes]
		o.Convenios = sortedKeys(set)
		t.entries[cnes] = o
	}

	t.stats.Facilities = len(t.entries)
	return t, nil
}

func each(r *snapshot.Reader, kind snapshot.TableKind, fn func(snapshot.Row) error) error {
	s, err := r.Rows(kind)
	if err != nil {
		return fmt.Errorf("open %s: %w", kind, err)
	}
	defer s.Close()
	for s.Next() {
		if err := fn(s.Row()); err != nil {
			return err
		}
	}
	if err := s.Err(); err != nil {
		return fmt.Errorf("read %s: %w", kind, err)
	}
	return nil
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

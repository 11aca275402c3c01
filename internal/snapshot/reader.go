package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/zatekoja/maternidades/pkg/errors"
)

// TableKind identifies one CNES table inside a snapshot
type TableKind int

const (
	TableEstablishments TableKind = iota
	TableBeds
	TableServices
	TableConvenios
	TableOverrides
	TableMunicipalities
	TableBedTypes
	TableServiceTypes
	TableServiceClasses
	TableLegalNatures
)

// prefixes lists accepted filename prefixes per table, most specific first.
// The snapshot tag is appended before matching.
var prefixes = map[TableKind][]string{
	TableEstablishments: {"tbEstabelecimento"},
	TableBeds:           {"rlEstabLeito", "rlEstabComplementar", "tbLeito"},
	TableServices:       {"rlEstabServClass"},
	TableConvenios:      {"tbEstabPrestConv"},
	TableOverrides:      {"tbOverride"},
	TableMunicipalities: {"tbMunicipio"},
	TableBedTypes:       {"tbTipoLeito"},
	TableServiceTypes:   {"tbServicoEspecializado"},
	TableServiceClasses: {"tbClassificacaoServico"},
	TableLegalNatures:   {"tbNaturezaJuridica"},
}

var allKinds = []TableKind{
	TableEstablishments, TableBeds, TableServices, TableConvenios, TableOverrides,
	TableMunicipalities, TableBedTypes, TableServiceTypes, TableServiceClasses, TableLegalNatures,
}

func (k TableKind) String() string {
	if p, ok := prefixes[k]; ok {
		return p[0]
	}
	return fmt.Sprintf("TableKind(%d)", int(k))
}

// Reader resolves the table files of one snapshot
type Reader struct {
	tag   string
	dir   string
	files map[TableKind]string
}

// Open looks for the snapshot under each search path, first as a
// <path>/<tag> directory, then as files placed directly in <path>. All
// tables are taken from the first directory holding the establishments file.
func Open(tag string, searchPaths []string) (*Reader, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, apperrors.NewSnapshotMissingError("snapshot tag is empty")
	}

	var candidates []string
	for _, p := range searchPaths {
		if p == "" {
			continue
		}
		candidates = append(candidates, filepath.Join(p, tag), p)
	}

	for _, dir := range candidates {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		files := matchTables(tag, dir, entries)
		if _, ok := files[TableEstablishments]; ok {
			return &Reader{tag: tag, dir: dir, files: files}, nil
		}
	}

	return nil, apperrors.NewSnapshotMissingError(
		fmt.Sprintf("tbEstabelecimento%s not found in %s", tag, strings.Join(searchPaths, ", ")))
}

func matchTables(tag, dir string, entries []os.DirEntry) map[TableKind]string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	files := make(map[TableKind]string)
	for _, kind := range allKinds {
	prefixLoop:
		for _, prefix := range prefixes[kind] {
			want := strings.ToLower(prefix + tag)
			for _, name := range names {
				lower := strings.ToLower(name)
				if strings.HasPrefix(lower, want) && isTableExt(lower) {
					files[kind] = filepath.Join(dir, name)
					break prefixLoop
				}
			}
		}
	}
	return files
}

func isTableExt(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".csv" || ext == ".txt" || ext == ""
}

// Tag returns the snapshot tag
func (r *Reader) Tag() string { return r.tag }

// Dir returns the directory the tables were found in
func (r *Reader) Dir() string { return r.dir }

// Has reports whether the snapshot carries the given table
func (r *Reader) Has(kind TableKind) bool {
	_, ok := r.files[kind]
	return ok
}

// File returns the path of the table file, or "" when absent
func (r *Reader) File(kind TableKind) string {
	return r.files[kind]
}

// Rows opens a stream over the table. A missing optional table yields an
// empty stream.
func (r *Reader) Rows(kind TableKind) (*RowStream, error) {
	path, ok := r.files[kind]
	if !ok {
		if kind == TableEstablishments {
			return nil, apperrors.NewSnapshotMissingError("establishments table not found")
		}
		return emptyStream(kind), nil
	}
	return openStream(kind, path, requiresID(kind))
}

// requiresID reports whether rows of kind are keyed by establishment.
func requiresID(kind TableKind) bool {
	switch kind {
	case TableEstablishments, TableBeds, TableServices, TableConvenios, TableOverrides:
		return true
	}
	return false
}

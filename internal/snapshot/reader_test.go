package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	apperrors "github.com/zatekoja/maternidades/pkg/errors"
)

const tag = "202512"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeLatin1(t *testing.T, dir, name, content string) string {
	t.Helper()
	encoded, err := charmap.ISO8859_1.NewEncoder().String(content)
	require.NoError(t, err)
	return writeFile(t, dir, name, encoded)
}

func collect(t *testing.T, s *RowStream) []Row {
	t.Helper()
	defer s.Close()
	var rows []Row
	for s.Next() {
		rows = append(rows, s.Row())
	}
	require.NoError(t, s.Err())
	return rows
}

func TestOpen_MissingEstablishments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, tag), "rlEstabLeito"+tag+".csv", "CO_CNES;CO_LEITO;QT_EXIST\n")

	_, err := Open(tag, []string{dir})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeSnapshotMissing, apperrors.TypeOf(err))
}

func TestOpen_TagDirectoryAndFlatLayout(t *testing.T) {
	nested := t.TempDir()
	writeFile(t, filepath.Join(nested, tag), "tbEstabelecimento"+tag+".csv", "CO_CNES;NO_FANTASIA\n1;A\n")

	r, err := Open(tag, []string{"/does/not/exist", nested})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(nested, tag), r.Dir())

	flat := t.TempDir()
	writeFile(t, flat, "TBESTABELECIMENTO"+tag+".CSV", "CO_CNES;NO_FANTASIA\n1;A\n")
	r, err = Open(tag, []string{flat})
	require.NoError(t, err)
	assert.True(t, r.Has(TableEstablishments))
	assert.False(t, r.Has(TableBeds))
}

func TestRows_MissingOptionalTableIsEmpty(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tbEstabelecimento"+tag+".csv", "CO_CNES;NO_FANTASIA\n1;A\n")

	r, err := Open(tag, []string{dir})
	require.NoError(t, err)

	s, err := r.Rows(TableConvenios)
	require.NoError(t, err)
	assert.Empty(t, collect(t, s))
}

func TestRows_Latin1AndCNESNormalization(t *testing.T) {
	dir := t.TempDir()
	writeLatin1(t, dir, "tbEstabelecimento"+tag+".csv",
		"CO_UNIDADE;CO_CNES;NO_FANTASIA\n"+
			"3550302077485;2077485;MATERNIDADE SÃO JOSÉ\n"+
			"355030123;123;POSTO\n"+
			";;SEM CODIGO\n"+
			"35503012345678901;;LONGO\n")

	r, err := Open(tag, []string{dir})
	require.NoError(t, err)

	s, err := r.Rows(TableEstablishments)
	require.NoError(t, err)
	assert.Equal(t, EncodingLatin1, s.Encoding())
	assert.Equal(t, ';', s.Separator())

	rows := collect(t, s)
	require.Len(t, rows, 3)
	assert.Equal(t, "2077485", rows[0].CNESID())
	assert.Equal(t, "MATERNIDADE SÃO JOSÉ", rows[0].Get("no_fantasia"))
	assert.Equal(t, "0000123", rows[1].CNESID())
	assert.Equal(t, "5678901", rows[2].CNESID())
	assert.Equal(t, 1, s.Dropped())
	assert.Equal(t, 4, s.Read())
}

func TestRows_UTF8WithBOMAndCommaSeparator(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tbEstabelecimento"+tag+".csv",
		"\xEF\xBB\xBFCO_CNES,NO_FANTASIA,NU_LATITUDE\n"+
			"1234567,\"Hospital da Mulher, Unidade 2\",\"-23,55\"\n")

	r, err := Open(tag, []string{dir})
	require.NoError(t, err)

	s, err := r.Rows(TableEstablishments)
	require.NoError(t, err)
	assert.Equal(t, EncodingUTF8, s.Encoding())
	assert.Equal(t, ',', s.Separator())

	rows := collect(t, s)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"CO_CNES", "NO_FANTASIA", "NU_LATITUDE"}, rows[0].Columns())
	assert.Equal(t, "Hospital da Mulher, Unidade 2", rows[0].Get("NO_FANTASIA"))
	assert.Equal(t, "-23,55", rows[0].Get("NU_LATITUDE"))
}

func TestRows_ReferenceTablesAreNotKeyed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tbEstabelecimento"+tag+".csv", "CO_CNES;NO_FANTASIA\n1;A\n")
	writeFile(t, dir, "tbTipoLeito"+tag+".csv", "CO_TIPO_LEITO\tDS_TIPO_LEITO\n4\tOBSTETRICO\n")

	r, err := Open(tag, []string{dir})
	require.NoError(t, err)

	s, err := r.Rows(TableBedTypes)
	require.NoError(t, err)
	rows := collect(t, s)
	require.Len(t, rows, 1)
	assert.Equal(t, "OBSTETRICO", rows[0].Get("DS_TIPO_LEITO"))
	assert.Equal(t, "", rows[0].CNESID())
}

func TestRows_BedPrefixPreference(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tbEstabelecimento"+tag+".csv", "CO_CNES;NO_FANTASIA\n1;A\n")
	writeFile(t, dir, "tbLeito"+tag+".csv", "CO_CNES;CO_LEITO;QT_EXIST\n1;9;1\n")
	writeFile(t, dir, "rlEstabLeito"+tag+".csv", "CO_CNES;CO_LEITO;QT_EXIST\n1;4;2\n")

	r, err := Open(tag, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "rlEstabLeito"+tag+".csv"), r.File(TableBeds))
}

func TestNormalizeCNES(t *testing.T) {
	assert.Equal(t, "0000042", NormalizeCNES("42"))
	assert.Equal(t, "2077485", NormalizeCNES("2.077.485"))
	assert.Equal(t, "7654321", NormalizeCNES("1234567654321"))
	assert.Equal(t, "", NormalizeCNES("  "))
}

func TestDetectSeparator(t *testing.T) {
	assert.Equal(t, ';', detectSeparator("A;B;C"))
	assert.Equal(t, '\t', detectSeparator("A\tB\tC"))
	assert.Equal(t, '|', detectSeparator("A|B|C"))
	assert.Equal(t, ',', detectSeparator(`"A;1",B,C`))
	assert.Equal(t, ';', detectSeparator("SINGLE"))
}

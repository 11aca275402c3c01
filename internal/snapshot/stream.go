package snapshot

import (
	"bufio"
	"bytes"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/zatekoja/maternidades/pkg/utils"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Candidate separators, in tie-break order.
var separators = []rune{';', ',', '\t', '|'}

// Encoding is the detected text encoding of a table file
type Encoding string

const (
	EncodingUTF8   Encoding = "utf-8"
	EncodingLatin1 Encoding = "latin-1"
)

// Row is one record of a table. Lookups by column name are case-insensitive.
type Row struct {
	header *header
	values []string
	line   int
	cnes   string
}

type header struct {
	names []string
	index map[string]int
}

func newHeader(names []string) *header {
	h := &header{names: names, index: make(map[string]int, len(names))}
	for i, n := range names {
		key := strings.ToUpper(strings.TrimSpace(n))
		if _, dup := h.index[key]; !dup {
			h.index[key] = i
		}
	}
	return h
}

// NewRow builds a row from parallel column names and values.
func NewRow(columns, values []string) Row {
	r := Row{header: newHeader(columns), values: values}
	r.cnes = NormalizeCNES(r.firstOf(idColumns...))
	return r
}

// Lookup returns the trimmed value of col and whether the column exists.
func (r Row) Lookup(col string) (string, bool) {
	if r.header == nil {
		return "", false
	}
	i, ok := r.header.index[strings.ToUpper(col)]
	if !ok || i >= len(r.values) {
		return "", ok
	}
	return strings.TrimSpace(r.values[i]), true
}

// Get returns the trimmed value of col, or "" when absent.
func (r Row) Get(col string) string {
	v, _ := r.Lookup(col)
	return v
}

func (r Row) firstOf(cols ...string) string {
	for _, c := range cols {
		if v := r.Get(c); v != "" {
			return v
		}
	}
	return ""
}

func (r Row) hasAny(cols ...string) bool {
	for _, c := range cols {
		if _, ok := r.Lookup(c); ok {
			return true
		}
	}
	return false
}

// Columns returns the header as found in the source file.
func (r Row) Columns() []string {
	if r.header == nil {
		return nil
	}
	return r.header.names
}

// Line is the 1-based line of the record in its file.
func (r Row) Line() int { return r.line }

// CNESID is the normalized 7-digit establishment id, or "" for tables that
// are not keyed by establishment.
func (r Row) CNESID() string { return r.cnes }

var idColumns = []string{"CO_CNES", "CO_UNIDADE"}

// NormalizeCNES keeps the digits of raw, retains the rightmost seven and
// left-pads with zeros. It returns "" when raw carries no digit.
func NormalizeCNES(raw string) string {
	digits := utils.OnlyDigits(raw)
	if digits == "" {
		return ""
	}
	if len(digits) > 7 {
		digits = digits[len(digits)-7:]
	}
	return strings.Repeat("0", 7-len(digits)) + digits
}

// RowStream is a finite, non-restartable sequence of rows in the style of
// sql.Rows:
//
//	for s.Next() {
//		row := s.Row()
//	}
//	if err := s.Err(); err != nil { ... }
type RowStream struct {
	kind     TableKind
	path     string
	keyed    bool
	encoding Encoding
	sep      rune

	file   *os.File
	csv    *csv.Reader
	header *header

	cur       Row
	err       error
	done      bool
	read      int
	dropped   int
	malformed int
}

func emptyStream(kind TableKind) *RowStream {
	return &RowStream{kind: kind, done: true}
}

func openStream(kind TableKind, path string, keyed bool) (*RowStream, error) {
	enc, err := detectEncoding(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	var src io.Reader = f
	if enc == EncodingLatin1 {
		src = transform.NewReader(f, charmap.ISO8859_1.NewDecoder())
	}
	br := bufio.NewReaderSize(src, 256*1024)

	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, utf8BOM) {
		_, _ = br.Discard(3)
	}

	// Peek returns what is available when the file is shorter than asked.
	first, _ := br.Peek(64 * 1024)
	sep := detectSeparator(firstLine(first))

	reader := csv.NewReader(br)
	reader.Comma = sep
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	s := &RowStream{
		kind:     kind,
		path:     path,
		keyed:    keyed,
		encoding: enc,
		sep:      sep,
		file:     f,
		csv:      reader,
	}

	names, err := reader.Read()
	if err != nil {
		f.Close()
		if stderrors.Is(err, io.EOF) {
			s.done = true
			s.file = nil
			return s, nil
		}
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	if len(names) > 0 {
		names[0] = strings.TrimPrefix(names[0], "\ufeff")
	}
	s.header = newHeader(names)
	if keyed && !s.hasIDColumn() {
		f.Close()
		return nil, fmt.Errorf("%s: no CO_CNES or CO_UNIDADE column", path)
	}
	return s, nil
}

func (s *RowStream) hasIDColumn() bool {
	for _, c := range idColumns {
		if _, ok := s.header.index[c]; ok {
			return true
		}
	}
	return false
}

// Next advances to the next kept row. It returns false at the end of the
// table or on a read error; check Err afterwards.
func (s *RowStream) Next() bool {
	if s.done {
		return false
	}
	for {
		rec, err := s.csv.Read()
		if err != nil {
			var perr *csv.ParseError
			if stderrors.As(err, &perr) {
				s.malformed++
				continue
			}
			if !stderrors.Is(err, io.EOF) {
				s.err = fmt.Errorf("read %s: %w", s.path, err)
			}
			s.done = true
			return false
		}
		s.read++
		line, _ := s.csv.FieldPos(0)
		row := Row{header: s.header, values: rec, line: line}
		if s.keyed {
			row.cnes = NormalizeCNES(row.firstOf(idColumns...))
			if row.cnes == "" {
				s.dropped++
				continue
			}
		}
		s.cur = row
		return true
	}
}

// Row returns the current row
func (s *RowStream) Row() Row { return s.cur }

// Err returns the first read error, if any
func (s *RowStream) Err() error { return s.err }

// Close releases the underlying file. It is safe to call more than once.
func (s *RowStream) Close() error {
	s.done = true
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// Read is the number of records read, dropped rows included
func (s *RowStream) Read() int { return s.read }

// Dropped is the number of rows skipped for an empty CNES id
func (s *RowStream) Dropped() int { return s.dropped }

// Malformed is the number of records the CSV parser rejected
func (s *RowStream) Malformed() int { return s.malformed }

// Encoding returns the detected encoding
func (s *RowStream) Encoding() Encoding { return s.encoding }

// Separator returns the detected field separator
func (s *RowStream) Separator() rune { return s.sep }

// Kind returns the table kind
func (s *RowStream) Kind() TableKind { return s.kind }

// Path returns the source file, "" for an empty stream
func (s *RowStream) Path() string { return s.path }

// detectEncoding validates the whole file as UTF-8 and falls back to Latin-1.
func detectEncoding(path string) (Encoding, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, 64*1024)
	var carry []byte
	for {
		n, err := f.Read(buf)
		chunk := append(carry, buf[:n]...)
		carry = nil
		// Keep an incomplete trailing rune for the next chunk.
		if cut := incompleteTail(chunk); cut > 0 {
			carry = append([]byte(nil), chunk[len(chunk)-cut:]...)
			chunk = chunk[:len(chunk)-cut]
		}
		if !utf8.Valid(chunk) {
			return EncodingLatin1, nil
		}
		if err == io.EOF {
			if len(carry) > 0 {
				return EncodingLatin1, nil
			}
			return EncodingUTF8, nil
		}
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
	}
}

// incompleteTail returns how many trailing bytes of b start a multi-byte
// rune that is not complete yet.
func incompleteTail(b []byte) int {
	for i := 1; i <= 3 && i <= len(b); i++ {
		c := b[len(b)-i]
		if c < 0x80 {
			return 0
		}
		if utf8.RuneStart(c) {
			if !utf8.FullRune(b[len(b)-i:]) {
				return i
			}
			return 0
		}
	}
	return 0
}

func firstLine(b []byte) string {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSuffix(string(b), "\r")
}

// detectSeparator picks the candidate that occurs most often outside quotes
// on the header line. Semicolon wins ties and empty lines.
func detectSeparator(line string) rune {
	counts := make(map[rune]int, len(separators))
	inQuotes := false
	for _, r := range line {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}
	best, bestN := separators[0], 0
	for _, c := range separators {
		if counts[c] > bestN {
			best, bestN = c, counts[c]
		}
	}
	return best
}

package services

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"appointment-notifier/models"
	"appointment-notifier/utils"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// sniffSampleSize is how much of the file the delimiter sniffer looks at.
const sniffSampleSize = 2048

// delimiterCandidates in tie-break order.
var delimiterCandidates = []rune{',', '\t', ';', '|'}

// minDelimiterConsistency is the share of sample lines that must agree on a
// delimiter's per-line count for it to be considered at all.
const minDelimiterConsistency = 0.9

// errUndeterminedDelimiter is returned when candidate delimiters appear in
// the sample but none of them splits its lines consistently.
var errUndeterminedDelimiter = errors.New("could not determine delimiter")

// invalidEncodingError reports the first byte sequence that is not UTF-8.
type invalidEncodingError struct {
	line int
}

func (e *invalidEncodingError) Error() string {
	return fmt.Sprintf("invalid UTF-8 byte sequence on line %d", e.line)
}

// utf8Reader passes bytes through unchanged and fails on the first invalid
// UTF-8 sequence. A sequence split across reads is held until it completes.
type utf8Reader struct {
	r       io.Reader
	line    int
	pending []byte
	err     error
}

func (v *utf8Reader) Read(p []byte) (int, error) {
	if v.err != nil {
		return 0, v.err
	}
	n, err := v.r.Read(p)

	data := append(v.pending, p[:n]...)
	i := 0
	for i < len(data) {
		if c := data[i]; c < utf8.RuneSelf {
			if c == '\n' {
				v.line++
			}
			i++
			continue
		}
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			if err == nil && !utf8.FullRune(data[i:]) {
				break
			}
			v.err = &invalidEncodingError{line: v.line + 1}
			return n, v.err
		}
		i += size
	}
	v.pending = append(v.pending[:0], data[i:]...)
	if errors.Is(err, io.EOF) && len(v.pending) > 0 {
		v.err = &invalidEncodingError{line: v.line + 1}
		return n, v.err
	}
	return n, err
}

// processingError tags err with the line of an encoding failure when there
// is one, and with line otherwise.
func processingError(line int, err error) error {
	var encErr *invalidEncodingError
	if errors.As(err, &encErr) {
		line = encErr.line
	}
	return utils.ProcessingError(line, err)
}

// TableRow is one non-empty data row with its approximate source line.
type TableRow struct {
	Line   int
	Record *models.Appointment
}

// recordSource yields raw records after the header. Next returns io.EOF when done.
type recordSource interface {
	Next() (record []string, line int, err error)
}

// ReadTable reads a delimited text or .xlsx table into normalized rows. A
// missing file yields a CodeNotFound error; anything else that goes wrong
// yields CodeProcessingError tagged with the line it happened at. No rows
// are returned alongside an error.
func ReadTable(path string) ([]TableRow, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return readSheet(path)
	}
	return readDelimited(path)
}

func readDelimited(path string) ([]TableRow, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, utils.NotFound("appointments file "+path, err)
		}
		return nil, utils.ProcessingError(0, err)
	}
	defer file.Close()

	// the input must be UTF-8; a leading BOM is dropped
	reader := bufio.NewReader(transform.NewReader(&utf8Reader{r: file}, unicode.UTF8BOM.NewDecoder()))

	sample, err := reader.Peek(sniffSampleSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, processingError(1, err)
	}
	delimiter, err := sniffDelimiter(string(sample), len(sample) == sniffSampleSize)
	if err != nil {
		return nil, utils.ProcessingError(1, err)
	}

	skipped, header, err := skipBlankLines(reader, delimiter)
	if err != nil {
		return nil, processingError(skipped+1, err)
	}
	if header == "" {
		return []TableRow{}, nil
	}

	r := csv.NewReader(io.MultiReader(strings.NewReader(header), reader))
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	headerRecord, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []TableRow{}, nil
		}
		return nil, processingError(skipped+csvErrorLine(err, 1), err)
	}

	return collectRows(normalizeHeader(headerRecord), &csvSource{reader: r, offset: skipped, last: skipped + 1})
}

// skipBlankLines consumes leading lines that hold nothing but whitespace once
// the delimiter is removed. It returns how many lines it dropped and the first
// substantive line, or "" when the input has none.
func skipBlankLines(reader *bufio.Reader, delimiter rune) (int, string, error) {
	skipped := 0
	for {
		line, err := reader.ReadString('\n')
		if line != "" && strings.TrimSpace(strings.ReplaceAll(line, string(delimiter), "")) != "" {
			return skipped, line, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return skipped, "", nil
			}
			return skipped, "", err
		}
		skipped++
	}
}

// sniffDelimiter picks the candidate whose per-line count is non-zero and the
// most consistent across the sample's non-blank lines. When truncated, the
// last partial line of the sample is ignored. A sample containing no
// candidate at all is a single-column table and reads as comma separated;
// candidates that never reach minDelimiterConsistency yield
// errUndeterminedDelimiter.
func sniffDelimiter(sample string, truncated bool) (rune, error) {
	if truncated {
		if i := strings.LastIndexByte(sample, '\n'); i >= 0 {
			sample = sample[:i]
		}
	}

	var lines []string
	for _, line := range strings.Split(sample, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return ',', nil
	}

	best := ','
	bestConsistency := 0.0
	seen := false
	for _, candidate := range delimiterCandidates {
		frequency := make(map[int]int)
		for _, line := range lines {
			frequency[countOutsideQuotes(line, candidate)]++
		}

		mode, modeLines := 0, 0
		for count, n := range frequency {
			if count > 0 && (n > modeLines || (n == modeLines && count > mode)) {
				mode, modeLines = count, n
			}
		}
		if mode == 0 {
			continue
		}
		seen = true

		consistency := float64(modeLines) / float64(len(lines))
		if consistency >= minDelimiterConsistency && consistency > bestConsistency {
			best, bestConsistency = candidate, consistency
		}
	}
	if seen && bestConsistency == 0 {
		return 0, errUndeterminedDelimiter
	}
	return best, nil
}

func countOutsideQuotes(line string, delimiter rune) int {
	count := 0
	quoted := false
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case r == delimiter && !quoted:
			count++
		}
	}
	return count
}

// normalizeHeader trims and case-folds column names. Empty names stay in place
// as "" so cell positions line up; collectRows drops them.
func normalizeHeader(header []string) []string {
	fold := cases.Fold()
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = fold.String(strings.TrimSpace(h))
	}
	return keys
}

// collectRows maps every record onto the header. Rows whose cells are all
// empty are skipped; short rows leave trailing columns absent and surplus
// cells without a header are dropped.
func collectRows(keys []string, src recordSource) ([]TableRow, error) {
	rows := []TableRow{}
	for {
		record, line, err := src.Next()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, processingError(line, err)
		}
		if allEmpty(record) {
			continue
		}

		apt := models.NewAppointment()
		for i, key := range keys {
			if key == "" || i >= len(record) {
				continue
			}
			apt.Set(key, record[i])
		}
		rows = append(rows, TableRow{Line: line, Record: apt})
	}
}

func allEmpty(record []string) bool {
	for _, cell := range record {
		if cell != "" {
			return false
		}
	}
	return true
}

type csvSource struct {
	reader *csv.Reader
	offset int
	last   int
}

func (s *csvSource) Next() ([]string, int, error) {
	record, err := s.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, s.last, io.EOF
		}
		return nil, s.offset + csvErrorLine(err, s.last-s.offset+1), err
	}
	line, _ := s.reader.FieldPos(0)
	s.last = s.offset + line
	return record, s.last, nil
}

func csvErrorLine(err error, fallback int) int {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) && parseErr.Line > 0 {
		return parseErr.Line
	}
	return fallback
}

func readSheet(path string) ([]TableRow, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, utils.NotFound("appointments file "+path, err)
		}
		return nil, utils.ProcessingError(0, err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, utils.ProcessingError(0, fmt.Errorf("failed to open Excel file: %w", err))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return []TableRow{}, nil
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, utils.ProcessingError(0, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err))
	}

	start := 0
	for start < len(records) && blankRecord(records[start]) {
		start++
	}
	if start == len(records) {
		return []TableRow{}, nil
	}

	return collectRows(normalizeHeader(records[start]), &sheetSource{records: records, next: start + 1})
}

func blankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

type sheetSource struct {
	records [][]string
	next    int
}

func (s *sheetSource) Next() ([]string, int, error) {
	if s.next >= len(s.records) {
		return nil, s.next, io.EOF
	}
	record := s.records[s.next]
	s.next++
	// sheet rows are 1-based
	return record, s.next, nil
}

package services

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"appointment-notifier/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeTable(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name   string
		sample string
		want   rune
	}{
		{"comma", "date,email\n2024-01-15,a@example.com\n", ','},
		{"semicolon", "date;email;time\n2024-01-15;a@example.com;10:30\n", ';'},
		{"tab", "date\temail\n2024-01-15\ta@example.com\n", '\t'},
		{"pipe", "date|email|location\n2024-01-15|a@example.com|Main St, 4\n", '|'},
		{"quoted commas ignored", "date;service\n2024-01-15;\"cut, wash\"\n2024-01-16;\"dye, dry\"\n", ';'},
		{"single column falls back to comma", "date\n2024-01-15\n", ','},
		{"empty sample falls back to comma", "", ','},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sniffDelimiter(tt.sample, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSniffDelimiterIgnoresTruncatedLine(t *testing.T) {
	sample := "date;email\n2024-01-15;a@example.com\n2024-01-16,,,,,,,,"
	got, err := sniffDelimiter(sample, true)
	require.NoError(t, err)
	assert.Equal(t, ';', got)
}

func TestSniffDelimiterInconsistent(t *testing.T) {
	sample := "date;email;client_name\n" +
		strings.Repeat("2024-01-15;a@example.com;Ana\n", 8) +
		"2024-01-15;b@example.com\n" +
		"2024-01-15\n"

	_, err := sniffDelimiter(sample, false)
	assert.ErrorIs(t, err, errUndeterminedDelimiter)
}

func TestReadTableInconsistentDelimiter(t *testing.T) {
	path := writeTable(t, "ragged.csv",
		"date;email;client_name\n"+
			strings.Repeat("2024-01-15;a@example.com;Ana\n", 8)+
			"2024-01-15;b@example.com\n"+
			"2024-01-15\n")

	rows, err := ReadTable(path)
	require.Error(t, err)
	assert.Nil(t, rows)
	assert.True(t, utils.IsCode(err, utils.CodeProcessingError))
	assert.Contains(t, err.Error(), "could not determine delimiter")
}

func TestReadTableRejectsInvalidUTF8(t *testing.T) {
	path := writeTable(t, "latin1.csv", "date,email,client_name\n2024-01-15,a@example.com,Jos\xe9\n")

	rows, err := ReadTable(path)
	require.Error(t, err)
	assert.Nil(t, rows)
	assert.True(t, utils.IsCode(err, utils.CodeProcessingError))

	var appErr *utils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 2, appErr.Line)
}

func TestReadTableInvalidUTF8AfterSample(t *testing.T) {
	content := "date,email,client_name\n" +
		strings.Repeat("2024-02-01,a@example.com,Ana\n", 100) +
		"2024-01-15,b@example.com,Jos\xe9\n"

	_, err := ReadTable(writeTable(t, "late.csv", content))
	var appErr *utils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, utils.CodeProcessingError, appErr.Code)
	assert.Equal(t, 102, appErr.Line)
}

func TestUTF8ReaderSplitRune(t *testing.T) {
	// "é" is split across two reads
	r := &utf8Reader{r: &chunkReader{chunks: [][]byte{[]byte("Jos\xc3"), []byte("\xa9\n")}}}
	buf := make([]byte, 16)

	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	n, err = r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

type chunkReader struct {
	chunks [][]byte
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	c.chunks = c.chunks[1:]
	return n, nil
}

func TestReadTableNormalizesHeaders(t *testing.T) {
	path := writeTable(t, "appointments.csv",
		" Date ;EMAIL;Client_Name ; ;Service\n"+
			"2024-01-15;ana@example.com;Ana;ignored; Haircut \n")

	rows, err := ReadTable(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	apt := rows[0].Record
	assert.Equal(t, []string{"date", "email", "client_name", "service"}, apt.Keys())
	assert.Equal(t, " Haircut ", apt.GetOr("service", ""))
	assert.Equal(t, 2, rows[0].Line)
}

func TestReadTableStripsBOM(t *testing.T) {
	path := writeTable(t, "bom.csv", "\ufeffdate,email\n2024-01-15,ana@example.com\n")

	rows, err := ReadTable(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-01-15", rows[0].Record.GetOr("date", ""))
}

func TestReadTableSkipsBlankLeadingLines(t *testing.T) {
	path := writeTable(t, "leading.csv",
		";;;\n"+
			"   \n"+
			"date;email;client_name;service\n"+
			"2024-01-15;ana@example.com;Ana;Haircut\n"+
			"2024-01-16;bob@example.com;Bob;Shave\n")

	rows, err := ReadTable(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Ana", rows[0].Record.GetOr("client_name", ""))
	assert.Equal(t, 4, rows[0].Line)
	assert.Equal(t, 5, rows[1].Line)
}

func TestReadTableSkipsEmptyRowsKeepingLineNumbers(t *testing.T) {
	path := writeTable(t, "gaps.csv",
		"date,email\n"+
			"2024-01-15,ana@example.com\n"+
			",\n"+
			"\n"+
			"2024-01-16,bob@example.com\n")

	rows, err := ReadTable(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, 5, rows[1].Line)
}

func TestReadTableDuplicateAndShortColumns(t *testing.T) {
	// enough regular rows for the two ragged ones to stay under the sniffer's tolerance
	path := writeTable(t, "dupes.csv",
		"date,email,DATE,location\n"+
			"2024-01-15,ana@example.com,2024-01-16\n"+
			"2024-01-15,bob@example.com,2024-01-17,Downtown,extra\n"+
			strings.Repeat("2024-02-01,pad@example.com,2024-02-02,Uptown\n", 18))

	rows, err := ReadTable(path)
	require.NoError(t, err)
	require.Len(t, rows, 20)

	first := rows[0].Record
	assert.Equal(t, []string{"date", "email"}, first.Keys())
	assert.Equal(t, "2024-01-16", first.GetOr("date", ""))

	second := rows[1].Record
	assert.Equal(t, []string{"date", "email", "location"}, second.Keys())
	assert.Equal(t, "Downtown", second.GetOr("location", ""))
}

func TestReadTableEmptyFile(t *testing.T) {
	rows, err := ReadTable(writeTable(t, "empty.csv", "\n\n"))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadTableNotFound(t *testing.T) {
	_, err := ReadTable(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestReadTableProcessingError(t *testing.T) {
	// a directory opens fine but cannot be read
	_, err := ReadTable(t.TempDir())
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeProcessingError))
}

func TestReadTableXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"Date", " Email ", "Client_Name"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"2024-01-15", "ana@example.com", "Ana"}))
	require.NoError(t, f.SetSheetRow(sheet, "A5", &[]interface{}{"16/01/2024", "bob@example.com", "Bob"}))

	path := filepath.Join(t.TempDir(), "appointments.xlsx")
	require.NoError(t, f.SaveAs(path))

	rows, err := ReadTable(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"date", "email", "client_name"}, rows[0].Record.Keys())
	assert.Equal(t, 3, rows[0].Line)
	assert.Equal(t, "Bob", rows[1].Record.GetOr("client_name", ""))
	assert.Equal(t, 5, rows[1].Line)
}

func TestReadTableXLSXNotFound(t *testing.T) {
	_, err := ReadTable(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

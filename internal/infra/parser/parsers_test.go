package parser

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestTextParser_Parse(t *testing.T) {
	p := &TextParser{}
	result, err := p.Parse(context.Background(), "notes.txt", "text/plain", []byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, "ok", result.Status)
	require.Equal(t, "hello world", result.Text)
	require.Equal(t, "text", result.Tool)
}

func TestTableParser_Parse_CSV(t *testing.T) {
	p := &TableParser{}
	data := []byte("name,age\n\"Smith, John\",42\nJane,30\n")
	result, err := p.Parse(context.Background(), "people.csv", "text/csv", data)
	require.NoError(t, err)
	require.Equal(t, "ok", result.Status)
	require.Contains(t, result.Text, "Smith, John")
	require.Contains(t, result.Text, "| name | age |")
	require.Equal(t, "table", result.Tool)
}

func TestTableParser_Parse_TSV(t *testing.T) {
	p := &TableParser{}
	data := []byte("name\tage\nJane\t30\n")
	result, err := p.Parse(context.Background(), "people.tsv", "text/tab-separated-values", data)
	require.NoError(t, err)
	require.Equal(t, "ok", result.Status)
	require.Contains(t, result.Text, "| name | age |")
}

func TestTableParser_Parse_MalformedCSVErrors(t *testing.T) {
	p := &TableParser{}
	data := []byte("a,b\n\"unterminated")
	_, err := p.Parse(context.Background(), "bad.csv", "text/csv", data)
	require.Error(t, err)
}

func TestTableParser_Parse_Empty(t *testing.T) {
	p := &TableParser{}
	result, err := p.Parse(context.Background(), "empty.csv", "text/csv", []byte(""))
	require.NoError(t, err)
	require.Equal(t, "ok", result.Status)
	require.Empty(t, result.Text)
}

func TestSpreadsheetParser_Parse(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "name"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "age"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "Jane"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "30"))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	p := &SpreadsheetParser{}
	result, err := p.Parse(context.Background(), "book.xlsx",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, "ok", result.Status)
	require.Contains(t, result.Text, "## Sheet1")
	require.Contains(t, result.Text, "| name | age |")
	require.Equal(t, "spreadsheet", result.Tool)
}

func TestSpreadsheetParser_Parse_InvalidData(t *testing.T) {
	p := &SpreadsheetParser{}
	_, err := p.Parse(context.Background(), "book.xlsx", "application/octet-stream", []byte("not a workbook"))
	require.Error(t, err)
}

func TestNativePDFParser_Parse_NotAPDFSkips(t *testing.T) {
	p := &NativePDFParser{}
	result, err := p.Parse(context.Background(), "fake.pdf", "application/pdf", []byte("not a real pdf"))
	require.NoError(t, err)
	require.Equal(t, "skip", result.Status)
	require.Equal(t, "pdf", result.Tool)
}

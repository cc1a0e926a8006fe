package parser

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/polaris/gateway/internal/domain/gateway"
)

// TextParser handles plain-text and source-code formats: decode as UTF-8, pass through.
type TextParser struct{}

func (p *TextParser) SupportedExtensions() []string { return nil }

func (p *TextParser) Parse(ctx context.Context, filename, mime string, data []byte) (gateway.ParseResult, error) {
	return gateway.ParseResult{Status: "ok", Text: string(data), Tool: "text"}, nil
}

// TableParser renders CSV/TSV as a markdown table so downstream chunking and LLM
// context treat tabular data the same way as prose, grounded on the original's
// pandas-to-markdown attachment rendering. Uses encoding/csv rather than a naive
// strings.Split so quoted fields containing the delimiter or embedded newlines survive.
type TableParser struct{}

func (p *TableParser) SupportedExtensions() []string { return nil }

func (p *TableParser) Parse(ctx context.Context, filename, mime string, data []byte) (gateway.ParseResult, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	if strings.HasSuffix(strings.ToLower(filename), ".tsv") {
		reader.Comma = '\t'
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return gateway.ParseResult{}, fmt.Errorf("parse table: %w", err)
	}
	if len(rows) == 0 {
		return gateway.ParseResult{Status: "ok", Text: "", Tool: "table"}, nil
	}

	var b strings.Builder
	writeRow(&b, rows[0])
	sep := make([]string, len(rows[0]))
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(&b, sep)
	for _, row := range rows[1:] {
		writeRow(&b, row)
	}

	return gateway.ParseResult{Status: "ok", Text: b.String(), Tool: "table"}, nil
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, c := range cells {
		b.WriteString(" ")
		b.WriteString(strings.TrimSpace(c))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

// SpreadsheetParser renders every sheet of an XLSX/XLS workbook as a markdown table,
// one section per sheet, grounded on bbiangul-go-reason's XLSXParser.
type SpreadsheetParser struct{}

func (p *SpreadsheetParser) SupportedExtensions() []string { return nil }

func (p *SpreadsheetParser) Parse(ctx context.Context, filename, mime string, data []byte) (gateway.ParseResult, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return gateway.ParseResult{}, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", sheet)
		for _, row := range rows {
			writeRow(&b, row)
		}
		b.WriteString("\n")
	}

	if b.Len() == 0 {
		return gateway.ParseResult{Status: "ok", Text: "", Tool: "spreadsheet"}, nil
	}
	return gateway.ParseResult{Status: "ok", Text: b.String(), Tool: "spreadsheet"}, nil
}

// NativePDFParser extracts a PDF's embedded text layer directly, without a multimodal
// LLM call, grounded on bbiangul-go-reason's PDFParser. Reports a non-ok status (rather
// than an error) on a scanned/image-only PDF with no text layer, so the registry falls
// through to the multimodal document parser instead of failing the whole file.
type NativePDFParser struct{}

func (p *NativePDFParser) SupportedExtensions() []string { return nil }

func (p *NativePDFParser) Parse(ctx context.Context, filename, mime string, data []byte) (gateway.ParseResult, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return gateway.ParseResult{Status: "skip", Tool: "pdf"}, nil
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(strings.TrimSpace(text))
		b.WriteString("\n\n")
	}

	if strings.TrimSpace(b.String()) == "" {
		return gateway.ParseResult{Status: "skip", Tool: "pdf"}, nil
	}
	return gateway.ParseResult{Status: "ok", Text: b.String(), Tool: "pdf"}, nil
}

package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tealeg/xlsx/v2"
)

// xlsxSheetNameMax is the longest sheet name Excel accepts.
const xlsxSheetNameMax = 31

// CSVSink writes CSV. With W set, the report must hold exactly one table,
// which is written to W. Otherwise each table becomes <Dir>/<slug>.csv.
type CSVSink struct {
	Dir string
	W   io.Writer
}

// Write implements Sink.
func (s CSVSink) Write(_ context.Context, r Report) error {
	if s.W != nil {
		if len(r.Tables) != 1 {
			return fmt.Errorf("csv writer output holds one table, report has %d", len(r.Tables))
		}
		return writeCSV(s.W, r.Tables[0])
	}
	if s.Dir == "" {
		return errors.New("csv sink needs a directory or writer")
	}
	if err := os.MkdirAll(s.Dir, 0o750); err != nil {
		return fmt.Errorf("creating %s: %w", s.Dir, err)
	}
	for _, t := range r.Tables {
		path := filepath.Join(s.Dir, Slug(t.Name)+".csv")
		if err := writeCSVFile(path, t); err != nil {
			return err
		}
	}
	return nil
}

func writeCSVFile(path string, t Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err = writeCSV(f, t); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("csv rows: %w", err)
	}
	return nil
}

// XLSXSink writes a workbook with one sheet per table, to W when set and
// to Path otherwise.
type XLSXSink struct {
	Path string
	W    io.Writer
}

// Write implements Sink.
func (s XLSXSink) Write(_ context.Context, r Report) error {
	f := xlsx.NewFile()
	for _, t := range r.Tables {
		name := t.Name
		if len(name) > xlsxSheetNameMax {
			name = name[:xlsxSheetNameMax]
		}
		sheet, err := f.AddSheet(name)
		if err != nil {
			return fmt.Errorf("xlsx sheet %q: %w", t.Name, err)
		}
		addXLSXRow(sheet, t.Columns)
		for _, row := range t.Rows {
			addXLSXRow(sheet, row)
		}
	}

	switch {
	case s.W != nil:
		return f.Write(s.W)
	case s.Path != "":
		return f.Save(s.Path)
	default:
		return errors.New("xlsx sink needs a path or writer")
	}
}

func addXLSXRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, v := range cells {
		row.AddCell().SetString(v)
	}
}

// JSONSink writes the whole report as indented JSON.
type JSONSink struct {
	W io.Writer
}

// Write implements Sink.
func (s JSONSink) Write(_ context.Context, r Report) error {
	if s.W == nil {
		return errors.New("json sink needs a writer")
	}
	enc := json.NewEncoder(s.W)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Slug lower-cases name and joins its words with underscores.
func Slug(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	})
	return strings.Join(fields, "_")
}

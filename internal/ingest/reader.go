package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tealeg/xlsx/v2"

	"github.com/rshade/costlens/internal/logging"
)

// Format identifies an input file format.
type Format string

// Supported input formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// XLSXContentType is the MIME type of Office Open XML workbooks.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Reader errors.
var (
	ErrUnknownFormat = errors.New("unknown input format")
	ErrSheetNotFound = errors.New("sheet not found")
)

// ReadOptions controls how a file is read.
type ReadOptions struct {
	// Format overrides extension-based detection.
	Format Format
	// Sheet selects an XLSX sheet by name; empty means the first sheet.
	Sheet string
}

// ParseFormat parses a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	case "xls", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// DetectFormat picks a format from a file extension.
func DetectFormat(path string) (Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "", fmt.Errorf("%w: %s has no extension", ErrUnknownFormat, path)
	}
	return ParseFormat(ext)
}

// FormatFromContentType maps an HTTP Content-Type to a format.
func FormatFromContentType(contentType string) (Format, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: content type %q", ErrUnknownFormat, contentType)
	}
	switch mediaType {
	case "text/csv", "application/csv", "text/plain":
		return FormatCSV, nil
	case "application/json":
		return FormatJSON, nil
	case XLSXContentType, "application/vnd.ms-excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: content type %q", ErrUnknownFormat, contentType)
	}
}

// ReadFile reads a cost export from disk.
func ReadFile(ctx context.Context, path string, opts ReadOptions) (RawTable, error) {
	format := opts.Format
	if format == "" {
		detected, err := DetectFormat(path)
		if err != nil {
			return RawTable{}, err
		}
		format = detected
	}

	f, err := os.Open(path)
	if err != nil {
		return RawTable{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	opts.Format = format
	table, err := Read(ctx, f, opts)
	if err != nil {
		return RawTable{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return table, nil
}

// Read parses r according to opts.Format, which must be set.
func Read(ctx context.Context, r io.Reader, opts ReadOptions) (RawTable, error) {
	var (
		table RawTable
		err   error
	)
	switch opts.Format {
	case FormatCSV:
		table, err = readCSV(r)
	case FormatXLSX:
		table, err = readXLSX(r, opts.Sheet)
	case FormatJSON:
		table, err = readJSON(r)
	default:
		return RawTable{}, fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}
	if err != nil {
		return RawTable{}, err
	}

	logging.FromContext(ctx).Debug().
		Str("component", "ingest").
		Str("operation", "read").
		Str("format", string(opts.Format)).
		Int("columns", len(table.Columns)).
		Int("rows", len(table.Rows)).
		Msg("read raw cost table")
	return table, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF} //nolint:gochecknoglobals // constant byte sequence

func readCSV(r io.Reader) (RawTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return RawTable{}, fmt.Errorf("csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return RawTable{}, fmt.Errorf("csv: %w", err)
	}
	if len(records) == 0 {
		return RawTable{}, nil
	}
	return RawTable{Columns: records[0], Rows: records[1:]}, nil
}

func readXLSX(r io.Reader, sheetName string) (RawTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return RawTable{}, fmt.Errorf("xlsx: %w", err)
	}
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return RawTable{}, fmt.Errorf("xlsx: open workbook: %w", err)
	}

	var sheet *xlsx.Sheet
	if sheetName != "" {
		s, ok := f.Sheet[sheetName]
		if !ok {
			return RawTable{}, fmt.Errorf("xlsx: %w: %q", ErrSheetNotFound, sheetName)
		}
		sheet = s
	} else {
		if len(f.Sheets) == 0 {
			return RawTable{}, nil
		}
		sheet = f.Sheets[0]
	}

	var table RawTable
	for i, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		blank := true
		for j, c := range row.Cells {
			cells[j] = c.String()
			if strings.TrimSpace(cells[j]) != "" {
				blank = false
			}
		}
		if i == 0 {
			table.Columns = cells
			continue
		}
		if blank {
			continue
		}
		table.Rows = append(table.Rows, cells)
	}
	return table, nil
}

// readJSON reads an array of flat objects. Columns appear in first-seen
// key order.
func readJSON(r io.Reader) (RawTable, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err == io.EOF {
		return RawTable{}, nil
	}
	if err != nil {
		return RawTable{}, fmt.Errorf("json: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return RawTable{}, errors.New("json: expected an array of objects")
	}

	var (
		table   RawTable
		colIdx  = map[string]int{}
		objects []map[string]string
	)
	for dec.More() {
		obj, objErr := readJSONObject(dec, func(key string) {
			if _, ok := colIdx[key]; !ok {
				colIdx[key] = len(table.Columns)
				table.Columns = append(table.Columns, key)
			}
		})
		if objErr != nil {
			return RawTable{}, objErr
		}
		objects = append(objects, obj)
	}
	if _, err = dec.Token(); err != nil {
		return RawTable{}, fmt.Errorf("json: %w", err)
	}

	table.Rows = make([][]string, len(objects))
	for i, obj := range objects {
		row := make([]string, len(table.Columns))
		for k, v := range obj {
			row[colIdx[k]] = v
		}
		table.Rows[i] = row
	}
	return table, nil
}

func readJSONObject(dec *json.Decoder, onKey func(string)) (map[string]string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("json: expected an array of objects")
	}

	obj := map[string]string{}
	for dec.More() {
		keyTok, keyErr := dec.Token()
		if keyErr != nil {
			return nil, fmt.Errorf("json: %w", keyErr)
		}
		key, _ := keyTok.(string)

		var value any
		if err = dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("json: value for %q: %w", key, err)
		}
		onKey(key)
		obj[key] = jsonScalar(value)
	}
	if _, err = dec.Token(); err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	return obj, nil
}

func jsonScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		// Nested values are kept as JSON text; they never parse as a
		// date or cost, so the row is dropped and counted.
		b, _ := json.Marshal(t)
		return string(b)
	}
}

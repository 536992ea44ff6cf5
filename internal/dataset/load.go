package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// InputFormatError reports an upload whose extension no loader accepts.
type InputFormatError struct {
	Name string
}

func (e *InputFormatError) Error() string {
	return fmt.Sprintf("unsupported file format %q: please upload CSV or Excel (.xlsx) files", filepath.Ext(e.Name))
}

// Loader turns file content into a Table.
type Loader interface {
	CanLoad(filename string) bool
	Load(r io.Reader, name string) (*Table, error)
}

var registry []Loader

// Register adds a loader implementation to the registry.
func Register(l Loader) {
	registry = append(registry, l)
}

func init() {
	Register(csvLoader{})
	Register(xlsxLoader{})
}

// LoadFile opens path and loads it with the first matching loader.
func LoadFile(path string) (*Table, error) {
	if _, err := find(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return Load(f, filepath.Base(path))
}

// Load selects a loader by filename and reads r. The extension is checked
// before any content is read.
func Load(r io.Reader, filename string) (*Table, error) {
	l, err := find(filename)
	if err != nil {
		return nil, err
	}
	return l.Load(r, filepath.Base(filename))
}

func find(filename string) (Loader, error) {
	for _, l := range registry {
		if l.CanLoad(filename) {
			return l, nil
		}
	}
	return nil, &InputFormatError{Name: filename}
}

type csvLoader struct{}

func (csvLoader) CanLoad(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".csv"
}

func (csvLoader) Load(r io.Reader, name string) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.Comma = sniffDelimiter(data)

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read csv header: %w", ErrNoColumns)
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", len(rows)+2, err)
		}
		rows = append(rows, rec)
	}
	return New(name, header, rows)
}

// sniffDelimiter picks a semicolon when the header line has more semicolons
// than commas.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

func blankRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

type xlsxLoader struct{}

func (xlsxLoader) CanLoad(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".xlsx"
}

// Load reads the first sheet; its first row is the header.
func (xlsxLoader) Load(r io.Reader, name string) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook %s: %w", name, ErrNoColumns)
	}
	all, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("sheet %q: %w", sheet, ErrNoColumns)
	}
	dates := newDateCells(f, sheet)
	var rows [][]string
	for i, rec := range all[1:] {
		if blankRecord(rec) {
			continue
		}
		for c := range rec {
			rec[c] = dates.normalize(c+1, i+2, rec[c])
		}
		rows = append(rows, rec)
	}
	return New(name, trimTrailingBlank(all[0]), rows)
}

// dateCells rewrites date-formatted cells from their display form (often a
// two-digit year) to ISO dates taken from the stored serial.
type dateCells struct {
	f        *excelize.File
	sheet    string
	date1904 bool
	styles   map[int]bool
}

func newDateCells(f *excelize.File, sheet string) *dateCells {
	d := &dateCells{f: f, sheet: sheet, styles: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		d.date1904 = *props.Date1904
	}
	return d
}

func (d *dateCells) normalize(col, row int, shown string) string {
	if strings.TrimSpace(shown) == "" {
		return shown
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return shown
	}
	idx, err := d.f.GetCellStyle(d.sheet, cell)
	if err != nil || !d.isDateStyle(idx) {
		return shown
	}
	raw, err := d.f.GetCellValue(d.sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		return shown
	}
	if serial, ok := ParseFloat(raw); ok {
		t, err := excelize.ExcelDateToTime(serial, d.date1904)
		if err != nil {
			return shown
		}
		return isoTime(t)
	}
	if t, ok := ParseTime(raw); ok {
		return isoTime(t)
	}
	return shown
}

func (d *dateCells) isDateStyle(idx int) bool {
	if v, ok := d.styles[idx]; ok {
		return v
	}
	v := false
	if st, err := d.f.GetStyle(idx); err == nil && st != nil {
		v = isDateNumFmt(st.NumFmt, st.CustomNumFmt)
	}
	d.styles[idx] = v
	return v
}

var fmtLiteralRe = regexp.MustCompile(`"[^"]*"|\\.|\[[^\]]*\]`)

// isDateNumFmt reports whether a number format renders dates or times:
// one of the built-in date ids, or a custom code with a year, day or hour
// token outside literals.
func isDateNumFmt(id int, custom *string) bool {
	switch {
	case id >= 14 && id <= 22, id >= 27 && id <= 36, id >= 45 && id <= 47, id >= 50 && id <= 58, id >= 71 && id <= 81:
		return true
	}
	if custom == nil {
		return false
	}
	code := strings.ToLower(fmtLiteralRe.ReplaceAllString(*custom, ""))
	return strings.ContainsAny(code, "ydh")
}

func isoTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

// trimTrailingBlank drops empty trailing header cells that excelize reports
// for formatted but unused columns.
func trimTrailingBlank(header []string) []string {
	n := len(header)
	for n > 0 && strings.TrimSpace(header[n-1]) == "" {
		n--
	}
	return header[:n]
}

// WriteCSV writes the table with a header row.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

// WriteXLSX writes the table into a single-sheet workbook. Numeric cells are
// stored as numbers.
func (t *Table) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Sheet1"
	for c, name := range t.Columns {
		cell, err := excelize.CoordinatesToCellName(c+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return fmt.Errorf("set header %q: %w", name, err)
		}
	}
	for r, row := range t.Rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			var val any = v
			if fv, ok := ParseFloat(v); ok {
				val = fv
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

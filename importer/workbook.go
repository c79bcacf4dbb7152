package importer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"erisextract/internal/domain/models"
)

// ErrSheetNotFound is returned when a workbook lacks a requested sheet.
var ErrSheetNotFound = errors.New("sheet not found")

// Date-formatted cells are read as text in these layouts.
const (
	DateTimeLayout = "2006-01-02 15:04:05"
	TimeLayout     = "15:04:05"
)

// SheetNames returns the sheet names of the workbook at path, in workbook order.
func SheetNames(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// ReadSheet reads one sheet of the workbook at path into a table. The first row
// is the header; every following non-empty row becomes a row of the table.
// Rows wider than the header add "Unnamed: <i>" columns, and all rows are
// padded to the widest one. Numeric cells with a date format become text in
// DateTimeLayout.
//
// Each call opens its own handle on the file, so sheets can be read in parallel.
func ReadSheet(path, sheet string) (*models.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(sheet)
	if err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q in %s", ErrSheetNotFound, sheet, path)
	}

	formatted, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows of %q: %w", sheet, err)
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to get raw rows of %q: %w", sheet, err)
	}

	table := &models.Table{Name: sheet}
	if len(formatted) == 0 {
		return table, nil
	}
	width := 0
	for _, rows := range [][][]string{formatted, raw} {
		for _, row := range rows {
			width = max(width, len(row))
		}
	}
	header := make([]string, width)
	copy(header, formatted[0])
	table.Columns = headerNames(header)
	dates := newDateCells(f, sheet)

	for r := 1; r < len(formatted); r++ {
		row := make([]models.Value, len(table.Columns))
		empty := true
		for c := range table.Columns {
			text := cellAt(formatted[r], c)
			rawText := ""
			if r < len(raw) {
				rawText = cellAt(raw[r], c)
			}
			if text == "" && rawText == "" {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, fmt.Errorf("failed to address cell (%d,%d): %w", c+1, r+1, err)
			}
			typ, err := f.GetCellType(sheet, axis)
			if err != nil {
				return nil, fmt.Errorf("failed to get type of %s!%s: %w", sheet, axis, err)
			}
			v := cellValue(typ, text, rawText)
			if v.Kind == models.KindNumber {
				when, ok, err := dates.render(axis, v.Num)
				if err != nil {
					return nil, err
				}
				if ok {
					v = models.Text(when)
				}
			}
			row[c] = v
			empty = false
		}
		if empty {
			continue
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// headerNames names blank header cells "Unnamed: <i>" and suffixes repeated
// names with ".<n>", so every column has a distinct label.
func headerNames(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := h
		if strings.TrimSpace(name) == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n+1)
		} else {
			seen[name] = 0
		}
		names[i] = name
	}
	return names
}

func cellValue(typ excelize.CellType, text, raw string) models.Value {
	switch typ {
	case excelize.CellTypeBool:
		return models.Bool(raw == "1" || strings.EqualFold(raw, "true"))
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString,
		excelize.CellTypeFormula, excelize.CellTypeError:
		return models.Text(text)
	default:
		if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return models.Number(f)
		}
		return models.Text(text)
	}
}

// dateCells tells date-formatted numeric cells apart by their style.
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

// render formats the serial in the cell at axis when the cell carries a date
// or time number format. ok is false for any other cell.
func (d *dateCells) render(axis string, serial float64) (string, bool, error) {
	id, err := d.f.GetCellStyle(d.sheet, axis)
	if err != nil {
		return "", false, fmt.Errorf("failed to get style of %s!%s: %w", d.sheet, axis, err)
	}
	isDate, seen := d.styles[id]
	if !seen {
		// an unreadable style leaves the cell numeric
		if style, err := d.f.GetStyle(id); err == nil {
			isDate = isDateStyle(style)
		}
		d.styles[id] = isDate
	}
	if !isDate {
		return "", false, nil
	}
	when, err := excelize.ExcelDateToTime(serial, d.date1904)
	if err != nil {
		return "", false, nil
	}
	if serial < 1 {
		return when.Format(TimeLayout), true, nil
	}
	return when.Format(DateTimeLayout), true, nil
}

func isDateStyle(style *excelize.Style) bool {
	if style.CustomNumFmt != nil {
		return isDateFormatCode(*style.CustomNumFmt)
	}
	id := style.NumFmt
	return (id >= 14 && id <= 22) || (id >= 27 && id <= 36) ||
		(id >= 45 && id <= 47) || (id >= 50 && id <= 58)
}

// isDateFormatCode reports whether a custom number format shows a date or a
// time. Quoted literals and bracketed sections such as colours, locales and
// elapsed-time markers are ignored.
func isDateFormatCode(code string) bool {
	var inQuote, inBracket, escaped bool
	for _, r := range strings.ToLower(code) {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		case r == 'y' || r == 'd' || r == 'h' || r == 's':
			return true
		}
	}
	return false
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

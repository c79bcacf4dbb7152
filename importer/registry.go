package importer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

// DefaultRegistryHeaderRow is the 1-based row holding the registry header.
const DefaultRegistryHeaderRow = 5

// ErrRegistryColumns is returned when the registry header lacks a required column.
var ErrRegistryColumns = errors.New("required registry columns not found")

// RegistryRow is one registry data row with both a station name and an affiliate.
type RegistryRow struct {
	Row         int // 1-based worksheet row
	StationName string
	Affiliate   string
}

// CellUpdate is a cost-center code to write into a registry row.
type CellUpdate struct {
	Row  int
	Code string
}

// Registry is the canonical station registry workbook. It is read once by
// OpenRegistry and written once by Save.
type Registry struct {
	path  string
	file  *excelize.File
	sheet string

	headerRow     int
	affiliateCol  int // 1-based
	costCenterCol int
	nameCol       int

	rows []RegistryRow
}

// OpenRegistry reads the active sheet of the workbook at path. The header is
// on headerRow and data starts on the next row. Columns are found by
// case-insensitive substring: "affiliate", "cost center"/"cost centre" and
// "name"; a later matching column replaces an earlier one.
func OpenRegistry(path string, headerRow int) (*Registry, error) {
	if headerRow < 1 {
		headerRow = DefaultRegistryHeaderRow
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry %s: %w", path, err)
	}

	reg := &Registry{
		path:      path,
		file:      f,
		sheet:     f.GetSheetName(f.GetActiveSheetIndex()),
		headerRow: headerRow,
	}

	rows, err := f.GetRows(reg.sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to get registry rows: %w", err)
	}

	var header []string
	if len(rows) >= headerRow {
		header = rows[headerRow-1]
	}
	for i, h := range header {
		value := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(value, "affiliate"):
			reg.affiliateCol = i + 1
		case strings.Contains(value, "cost center") || strings.Contains(value, "cost centre"):
			reg.costCenterCol = i + 1
		case strings.Contains(value, "name"):
			reg.nameCol = i + 1
		}
	}
	if reg.affiliateCol == 0 || reg.costCenterCol == 0 || reg.nameCol == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: affiliate=%d cost center=%d name=%d (header row %d)",
			ErrRegistryColumns, reg.affiliateCol, reg.costCenterCol, reg.nameCol, headerRow)
	}

	for r := headerRow; r < len(rows); r++ {
		name := strings.TrimSpace(cellAt(rows[r], reg.nameCol-1))
		affiliate := strings.TrimSpace(cellAt(rows[r], reg.affiliateCol-1))
		if name == "" || affiliate == "" {
			continue
		}
		reg.rows = append(reg.rows, RegistryRow{Row: r + 1, StationName: name, Affiliate: affiliate})
	}

	return reg, nil
}

// Rows returns the data rows that carry both a station name and an affiliate.
func (r *Registry) Rows() []RegistryRow {
	return r.rows
}

// Path returns the workbook path.
func (r *Registry) Path() string {
	return r.path
}

// CostCenterColumn returns the 1-based column receiving codes.
func (r *Registry) CostCenterColumn() int {
	return r.costCenterCol
}

// Apply writes codes into the cost-center column in ascending row order.
// Nothing is persisted until Save.
func (r *Registry) Apply(updates []CellUpdate) error {
	sorted := make([]CellUpdate, len(updates))
	copy(sorted, updates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Row < sorted[j].Row })

	for _, u := range sorted {
		axis, err := excelize.CoordinatesToCellName(r.costCenterCol, u.Row)
		if err != nil {
			return fmt.Errorf("failed to address registry row %d: %w", u.Row, err)
		}
		if err := r.file.SetCellValue(r.sheet, axis, u.Code); err != nil {
			return fmt.Errorf("failed to set %s: %w", axis, err)
		}
	}
	return nil
}

// Save replaces the workbook on disk: it writes a temporary file next to it,
// syncs it and renames it over the original path.
func (r *Registry) Save() error {
	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp registry file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if info, err := os.Stat(r.path); err == nil {
		_ = tmp.Chmod(info.Mode().Perm())
	}
	if err := r.file.Write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write registry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp registry file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("failed to replace registry %s: %w", r.path, err)
	}
	return nil
}

// Close releases the workbook.
func (r *Registry) Close() error {
	return r.file.Close()
}

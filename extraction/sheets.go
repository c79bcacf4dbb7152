package extraction

import (
	"errors"
	"fmt"

	"erisextract/internal/domain/models"
	"erisextract/normalization"
)

// Column names after cleaning.
const (
	ColInspector   = "inspector"
	ColAffiliate   = "affiliate"
	ColCountryCode = "country_code"
	ColStationName = "station name"
	ColStationCode = "station code"
	ColD02         = "d.02"
	ColEP11        = "ep11"
)

// QuestionColumns is the projection kept from the Questions sheet, in output order.
var QuestionColumns = []string{"zone", "sub-zone", ColAffiliate, ColStationName, ColStationCode, ColD02, ColEP11}

// ErrMissingColumn is returned when a sheet lacks a column the pipeline depends on.
var ErrMissingColumn = errors.New("required column not found")

// FilterInspections keeps the per-station summary rows: those whose inspector is "all".
func FilterInspections(t *models.Table) (*models.Table, error) {
	idx := t.ColumnIndex(ColInspector)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q in sheet %q", ErrMissingColumn, ColInspector, t.Name)
	}

	out := &models.Table{Name: t.Name, Columns: t.Columns}
	for _, row := range t.Rows {
		if idx >= len(row) || !row[idx].IsText() {
			continue
		}
		if row[idx].Flag() == "all" {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// AssignCountries replaces the affiliate column with the country found in it
// (Null when none is found or the cell is not text) and sets a country_code
// column from that country.
func AssignCountries(t *models.Table, countries *normalization.CountryTable) (*models.Table, error) {
	affIdx := t.ColumnIndex(ColAffiliate)
	if affIdx < 0 {
		return nil, fmt.Errorf("%w: %q in sheet %q", ErrMissingColumn, ColAffiliate, t.Name)
	}

	columns := append([]string(nil), t.Columns...)
	codeIdx := t.ColumnIndex(ColCountryCode)
	if codeIdx < 0 {
		codeIdx = len(columns)
		columns = append(columns, ColCountryCode)
	}

	out := &models.Table{Name: t.Name, Columns: columns, Rows: make([][]models.Value, len(t.Rows))}
	for r, row := range t.Rows {
		next := make([]models.Value, len(columns))
		copy(next, row)

		country, code := models.Null(), models.Null()
		if v := next[affIdx]; v.IsText() {
			if name, ok := countries.Extract(v.Text); ok {
				country = models.Text(name)
				if c, ok := countries.Code(name); ok {
					code = models.Text(c)
				}
			}
		}
		next[affIdx] = country
		next[codeIdx] = code
		out.Rows[r] = next
	}
	return out, nil
}

// ProjectQuestions keeps QuestionColumns present in t, in that order.
func ProjectQuestions(t *models.Table) *models.Table {
	var (
		columns []string
		source  []int
	)
	for _, c := range QuestionColumns {
		if idx := t.ColumnIndex(c); idx >= 0 {
			columns = append(columns, c)
			source = append(source, idx)
		}
	}

	out := &models.Table{Name: t.Name, Columns: columns, Rows: make([][]models.Value, len(t.Rows))}
	for r, row := range t.Rows {
		next := make([]models.Value, len(columns))
		for i, idx := range source {
			if idx < len(row) {
				next[i] = row[idx]
			}
		}
		out.Rows[r] = next
	}
	return out
}

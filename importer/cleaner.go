package importer

import (
	"strings"

	"erisextract/internal/domain/models"
)

// CleanTable returns a copy of t with trimmed, lower-cased column names and
// trimmed text cells. Other cells are kept as they are. Column lookups in the
// pipeline rely on the lower-cased names.
func CleanTable(t *models.Table) *models.Table {
	out := &models.Table{
		Name:    t.Name,
		Columns: make([]string, len(t.Columns)),
		Rows:    make([][]models.Value, len(t.Rows)),
	}
	for i, c := range t.Columns {
		out.Columns[i] = strings.ToLower(strings.TrimSpace(c))
	}
	for r, row := range t.Rows {
		cleaned := make([]models.Value, len(row))
		for c, v := range row {
			if v.IsText() {
				v = models.Text(strings.TrimSpace(v.Text))
			}
			cleaned[c] = v
		}
		out.Rows[r] = cleaned
	}
	return out
}

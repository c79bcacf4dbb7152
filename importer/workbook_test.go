package importer

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"erisextract/internal/domain/models"
)

// sheetData is one sheet of a test workbook: rows starting at A1.
type sheetData struct {
	name string
	rows [][]interface{}
}

func writeWorkbook(t *testing.T, name string, sheets ...sheetData) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName(f.GetSheetName(0), s.name))
		} else {
			_, err := f.NewSheet(s.name)
			require.NoError(t, err)
		}
		for r, row := range s.rows {
			axis, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			values := row
			require.NoError(t, f.SetSheetRow(s.name, axis, &values))
		}
	}

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadSheetTypesCells(t *testing.T) {
	path := writeWorkbook(t, "report.xlsx", sheetData{
		name: "Questions",
		rows: [][]interface{}{
			{" Station Code ", "EP11", "Score", "Active"},
			{"CI001", "  Yes ", 87.5, true},
			{"CI002", nil, 100, false},
		},
	})

	table, err := ReadSheet(path, "Questions")
	require.NoError(t, err)

	assert.Equal(t, []string{" Station Code ", "EP11", "Score", "Active"}, table.Columns)
	require.Len(t, table.Rows, 2)

	first := table.Rows[0]
	assert.Equal(t, models.Text("CI001"), first[0])
	assert.Equal(t, models.Text("  Yes "), first[1])
	assert.Equal(t, models.KindNumber, first[2].Kind)
	assert.InDelta(t, 87.5, first[2].Num, 1e-9)
	assert.Equal(t, models.Bool(true), first[3])

	second := table.Rows[1]
	assert.True(t, second[1].IsNull())
	assert.Equal(t, "100", second[2].String())
}

func TestReadSheetSkipsEmptyRowsAndNamesBlankHeaders(t *testing.T) {
	path := writeWorkbook(t, "report.xlsx", sheetData{
		name: "Inspections",
		rows: [][]interface{}{
			{"zone", "", "zone"},
			{"AFO", "x", "dup"},
			{nil, nil, nil},
			{"ACE"},
		},
	})

	table, err := ReadSheet(path, "Inspections")
	require.NoError(t, err)

	assert.Equal(t, []string{"zone", "Unnamed: 1", "zone.1"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "ACE", table.Rows[1][0].Text)
	assert.True(t, table.Rows[1][2].IsNull())
}

func TestReadSheetRendersDateCells(t *testing.T) {
	path := writeWorkbook(t, "report.xlsx", sheetData{
		name: "Inspections",
		rows: [][]interface{}{
			{"station code", "inspection date", "started", "serial"},
			{
				"CI001",
				time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC),
				time.Date(2025, 9, 15, 8, 30, 0, 0, time.UTC),
				45915,
			},
		},
	})

	table, err := ReadSheet(path, "Inspections")
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)

	row := table.Rows[0]
	assert.Equal(t, models.Text("2025-09-15 00:00:00"), row[1])
	assert.Equal(t, models.Text("2025-09-15 08:30:00"), row[2])
	// a serial without a date format stays a number
	assert.Equal(t, models.Number(45915), row[3])
}

func TestReadSheetCustomDateFormat(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"inspection date", "ratio"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{45915, 0.5}))
	code := "dd/mm/yyyy"
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &code})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Sheet1", "A2", "A2", dateStyle))
	percent, err := f.NewStyle(&excelize.Style{NumFmt: 10})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Sheet1", "B2", "B2", percent))

	path := filepath.Join(t.TempDir(), "custom.xlsx")
	require.NoError(t, f.SaveAs(path))

	table, err := ReadSheet(path, "Sheet1")
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, models.Text("2025-09-15 00:00:00"), table.Rows[0][0])
	assert.Equal(t, models.KindNumber, table.Rows[0][1].Kind)
	assert.InDelta(t, 0.5, table.Rows[0][1].Num, 1e-9)
}

func TestIsDateFormatCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"dd/mm/yyyy", true},
		{"yyyy-mm-dd hh:mm", true},
		{"[$-409]mmm d, yyyy", true},
		{"General", false},
		{"#,##0.00", false},
		{`0 "days"`, false},
		{`[Red]0.00`, false},
		{`0\d`, false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, isDateFormatCode(tt.code))
		})
	}
}

func TestReadSheetKeepsCellsBeyondHeader(t *testing.T) {
	path := writeWorkbook(t, "report.xlsx", sheetData{
		name: "Questions",
		rows: [][]interface{}{
			{"station code", "EP11"},
			{"CI001", "yes", "late note", nil, 4},
			{"CI002"},
		},
	})

	table, err := ReadSheet(path, "Questions")
	require.NoError(t, err)

	assert.Equal(t, []string{"station code", "EP11", "Unnamed: 2", "Unnamed: 3", "Unnamed: 4"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, models.Text("late note"), table.Rows[0][2])
	assert.True(t, table.Rows[0][3].IsNull())
	assert.Equal(t, models.Number(4), table.Rows[0][4])
	assert.Len(t, table.Rows[1], 5)
}

func TestReadSheetMissingSheet(t *testing.T) {
	path := writeWorkbook(t, "report.xlsx", sheetData{name: "Inspections", rows: [][]interface{}{{"a"}}})

	_, err := ReadSheet(path, "HSE Invariants")
	require.ErrorIs(t, err, ErrSheetNotFound)

	names, err := SheetNames(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Inspections"}, names)
}

func TestReadSheetMissingFile(t *testing.T) {
	_, err := ReadSheet(filepath.Join(t.TempDir(), "absent.xlsx"), "Inspections")
	assert.Error(t, err)
}

func TestCleanTable(t *testing.T) {
	in := &models.Table{
		Name:    "Questions",
		Columns: []string{" Station Name ", "D.02", "EP11"},
		Rows: [][]models.Value{
			{models.Text("  Total Plateau "), models.Text(" yes"), models.Number(3)},
			{models.Null(), models.Text("   "), models.Bool(false)},
		},
	}

	out := CleanTable(in)

	assert.Equal(t, []string{"station name", "d.02", "ep11"}, out.Columns)
	assert.Equal(t, models.Text("Total Plateau"), out.Rows[0][0])
	assert.Equal(t, models.Text("yes"), out.Rows[0][1])
	assert.Equal(t, models.Number(3), out.Rows[0][2])
	assert.True(t, out.Rows[1][0].IsNull())
	assert.Equal(t, models.Text(""), out.Rows[1][1])
	assert.Equal(t, models.Bool(false), out.Rows[1][2])

	// the input is left untouched
	assert.Equal(t, " Station Name ", in.Columns[0])
	assert.Equal(t, "  Total Plateau ", in.Rows[0][0].Text)
}

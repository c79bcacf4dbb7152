package pipeline

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"erisextract/database"
	"erisextract/internal/domain/models"
)

const (
	reportFile   = "ERIS_Report_Extraction_15_09_2025.xlsx"
	registryFile = "Invariants.xlsx"
)

var reportDate = time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sheet struct {
	name  string
	start int // 1-based row of the first entry in rows
	rows  [][]interface{}
}

func saveWorkbook(t *testing.T, path string, sheets ...sheet) {
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
		start := s.start
		if start == 0 {
			start = 1
		}
		for r, row := range s.rows {
			axis, err := excelize.CoordinatesToCellName(1, start+r)
			require.NoError(t, err)
			values := row
			require.NoError(t, f.SetSheetRow(s.name, axis, &values))
		}
	}
	require.NoError(t, f.SaveAs(path))
}

func reportSheets() []sheet {
	return []sheet{
		{name: SheetInspections, rows: [][]interface{}{
			{"Zone", "Sub-Zone", "Affiliate", "Station Name", "Station Code", " Inspector ", "EP01"},
			{"West", "Abidjan", "Total Côte d'Ivoire", "Total Abidjan", "CI001", "All", 80},
			{"West", "Abidjan", "Total Côte d'Ivoire", "Total Abidjan", "CI001", "John", 75},
		}},
		{name: SheetQuestions, rows: [][]interface{}{
			{"Zone", "Sub-Zone", "Affiliate", "Station Name", "Station Code", "D.02", "EP11", "Comment"},
			{"West", "Abidjan", "Total Côte d'Ivoire", "Total Abidjan", "CI001", "", "Yes", "checked"},
			{"West", "Plateau", "Total Côte d'Ivoire", "Total Plateau", "CI002", "yes", "No", nil},
			{"North", "Dakar", "TotalEnergies Sénégal", "Dakar Plateau", "SN010", "No", nil, nil},
		}},
		{name: SheetHSE, rows: [][]interface{}{
			{"Zone", "Affiliate", "Station Code", "ES01"},
			{"West", "Total Côte d'Ivoire", "CI001", "ok"},
		}},
	}
}

func registrySheet() sheet {
	return sheet{name: "Register", rows: [][]interface{}{
		{"HSE Invariants register"},
		{},
		{},
		{},
		{"Affiliate", "Station Name", "Cost Center"},
		{"CI", "Abidjan Total Station", nil},
		{"CI", "Totally Unrelated Name", nil},
		{"SN", "Dakar Plateau Station", nil},
		{"GA", "Libreville Port", nil},
	}}
}

// fixtureDir writes the report and the registry into a fresh uploads directory.
func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	saveWorkbook(t, filepath.Join(dir, reportFile), reportSheets()...)
	saveWorkbook(t, filepath.Join(dir, registryFile), registrySheet())
	return dir
}

func testOptions(dir string) Options {
	return Options{
		UploadsDir:   dir,
		RegistryPath: filepath.Join(dir, registryFile),
		MatchWorkers: 4,
	}
}

func pendingUpload() *database.Upload {
	return &database.Upload{
		ID:          7,
		UserID:      1,
		Filename:    `C:\Users\hse\Downloads\` + reportFile,
		Filetype:    "xlsx",
		FileSize:    "48KB",
		Status:      database.StatusPending,
		DateCreated: reportDate.Format(database.DateLayout),
	}
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) LatestPending(ctx context.Context) (*database.Upload, error) {
	args := m.Called(ctx)
	u, _ := args.Get(0).(*database.Upload)
	return u, args.Error(1)
}

func (m *MockStore) MarkCompleted(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockStore) CreateTableIfNotExists(ctx context.Context, table string, keys []string) error {
	return m.Called(ctx, table, keys).Error(0)
}

func (m *MockStore) InsertRecords(ctx context.Context, table string, records []*models.Record, date time.Time) (*database.InsertResult, error) {
	args := m.Called(ctx, table, records, date)
	res, _ := args.Get(0).(*database.InsertResult)
	return res, args.Error(1)
}

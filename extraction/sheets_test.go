package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erisextract/internal/domain/models"
	"erisextract/normalization"
)

func inspectionsTable() *models.Table {
	return &models.Table{
		Name:    "Inspections",
		Columns: []string{"station code", "affiliate", "inspector", "ep01"},
		Rows: [][]models.Value{
			{models.Text("CI001"), models.Text("Total Côte d'Ivoire"), models.Text("All"), models.Number(80)},
			{models.Text("CI001"), models.Text("Total Côte d'Ivoire"), models.Text("John"), models.Number(75)},
			{models.Text("SN010"), models.Text("TotalEnergies Sénégal"), models.Text("ALL"), models.Null()},
			{models.Text("SN011"), models.Text("Sénégal"), models.Null(), models.Null()},
		},
	}
}

func TestFilterInspectionsKeepsSummaryRows(t *testing.T) {
	out, err := FilterInspections(inspectionsTable())
	require.NoError(t, err)

	require.Len(t, out.Rows, 2)
	assert.Equal(t, "CI001", out.Rows[0][0].Text)
	assert.Equal(t, "SN010", out.Rows[1][0].Text)
}

func TestFilterInspectionsRequiresInspector(t *testing.T) {
	_, err := FilterInspections(&models.Table{Name: "Inspections", Columns: []string{"station code"}})
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestAssignCountries(t *testing.T) {
	table := &models.Table{
		Name:    "Questions",
		Columns: []string{"affiliate", "station code"},
		Rows: [][]models.Value{
			{models.Text("TotalEnergies Marketing Sénégal"), models.Text("SN010")},
			{models.Text("Head Office"), models.Text("HQ001")},
			{models.Number(12), models.Text("XX001")},
		},
	}

	out, err := AssignCountries(table, normalization.DefaultCountryTable())
	require.NoError(t, err)

	assert.Equal(t, []string{"affiliate", "station code", "country_code"}, out.Columns)
	assert.Equal(t, models.Text("Senegal"), out.Rows[0][0])
	assert.Equal(t, models.Text("SN"), out.Rows[0][2])
	assert.True(t, out.Rows[1][0].IsNull())
	assert.True(t, out.Rows[1][2].IsNull())
	assert.True(t, out.Rows[2][0].IsNull())

	// input untouched
	assert.Len(t, table.Columns, 2)
	assert.Equal(t, "TotalEnergies Marketing Sénégal", table.Rows[0][0].Text)
}

func TestAssignCountriesRequiresAffiliate(t *testing.T) {
	_, err := AssignCountries(&models.Table{Name: "HSE Invariants", Columns: []string{"station code"}},
		normalization.DefaultCountryTable())
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestProjectQuestions(t *testing.T) {
	table := &models.Table{
		Name:    "Questions",
		Columns: []string{"ep11", "comment", "station code", "zone", "d.02"},
		Rows: [][]models.Value{
			{models.Text("yes"), models.Text("n/a"), models.Text("CI001"), models.Text("West"), models.Null()},
		},
	}

	out := ProjectQuestions(table)

	assert.Equal(t, []string{"zone", "station code", "d.02", "ep11"}, out.Columns)
	assert.Equal(t, []models.Value{
		models.Text("West"), models.Text("CI001"), models.Null(), models.Text("yes"),
	}, out.Rows[0])
}

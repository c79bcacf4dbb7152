package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erisextract/pipeline"
)

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512B", humanSize(512))
	assert.Equal(t, "48KB", humanSize(48*1024+100))
	assert.Equal(t, "1.5MB", humanSize(3<<19))
}

func TestCopyToUploads(t *testing.T) {
	src := filepath.Join(t.TempDir(), "ERIS_15_09_2025.xlsx")
	require.NoError(t, os.WriteFile(src, []byte("report"), 0o644))
	uploads := filepath.Join(t.TempDir(), "uploads")

	dest, size, err := copyToUploads(src, uploads)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(uploads, "ERIS_15_09_2025.xlsx"), dest)
	assert.Equal(t, int64(6), size)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "report", string(data))

	again, _, err := copyToUploads(dest, uploads)
	require.NoError(t, err)
	assert.Equal(t, dest, again)

	_, _, err = copyToUploads(filepath.Join(uploads, "missing.xlsx"), uploads)
	assert.Error(t, err)
}

func TestPrintReport(t *testing.T) {
	color.NoColor = true

	report := &pipeline.Report{
		RunID:    "run-1",
		UploadID: 7,
		File:     "ERIS_15_09_2025.xlsx",
		Date:     time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC),
		Phases: []pipeline.PhaseTiming{
			{Phase: pipeline.PhaseLoadSheets, Duration: 120 * time.Millisecond},
			{Phase: pipeline.PhaseInsertRows, Duration: time.Second, Err: "disk full"},
		},
		Tables: []pipeline.TableOutcome{
			{Table: pipeline.TableExtractions, Records: 3, Created: true, Inserted: 2, Skipped: 1},
			{Table: pipeline.TableQuestions, Records: 2, Err: "too many columns"},
		},
		RegistryRows: 4,
	}

	var out bytes.Buffer
	printReport(&out, report)

	text := out.String()
	assert.Contains(t, text, "run-1")
	assert.Contains(t, text, "2025-09-15")
	assert.Contains(t, text, "LOAD_SHEETS")
	assert.Contains(t, text, "disk full")
	assert.Contains(t, text, "extraction_questions")
	assert.Contains(t, text, "too many columns")
	assert.Contains(t, text, "Registry rows: 4")
}

func TestPrintPurge(t *testing.T) {
	color.NoColor = true

	var out bytes.Buffer
	printPurge(&out, map[string]int64{"hse_variants": 3, "extractions": 2})

	text := out.String()
	assert.Less(t, bytes.Index(out.Bytes(), []byte("extractions")), bytes.Index(out.Bytes(), []byte("hse_variants")))
	assert.Contains(t, text, "5")
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"erisextract/database"
	"erisextract/extraction"
	"erisextract/importer"
	"erisextract/internal/domain/models"
	"erisextract/normalization"
)

// Source sheets.
const (
	SheetInspections = "Inspections"
	SheetQuestions   = "Questions"
	SheetHSE         = "HSE Invariants"
)

// Persisted tables.
const (
	TableExtractions = "extractions"
	TableQuestions   = "extraction_questions"
	TableHSEVariants = "hse_variants"
)

// Tables lists the persisted tables in load order.
var Tables = []string{TableExtractions, TableQuestions, TableHSEVariants}

// DefaultSheetWorkers bounds the sheet and table fan-out.
const DefaultSheetWorkers = 3

// ErrNoPendingFile is returned when no upload waits for extraction. Nothing else runs.
var ErrNoPendingFile = errors.New("no pending file")

// Store is the relational store the pipeline reads uploads from and loads tables into.
type Store interface {
	LatestPending(ctx context.Context) (*database.Upload, error)
	MarkCompleted(ctx context.Context, id int64) error
	CreateTableIfNotExists(ctx context.Context, table string, keys []string) error
	InsertRecords(ctx context.Context, table string, records []*models.Record, date time.Time) (*database.InsertResult, error)
}

// Options configures a Pipeline.
type Options struct {
	UploadsDir        string
	RegistryPath      string
	RegistryHeaderRow int
	SheetWorkers      int
	MatchWorkers      int
	MatchThreshold    float64
}

// Pipeline extracts the latest pending report into the store and patches the station registry.
type Pipeline struct {
	store     Store
	countries *normalization.CountryTable
	opts      Options
	logger    *slog.Logger
}

// New creates a pipeline. Zero options take their defaults.
func New(store Store, countries *normalization.CountryTable, opts Options, logger *slog.Logger) *Pipeline {
	if opts.SheetWorkers < 1 {
		opts.SheetWorkers = DefaultSheetWorkers
	}
	if opts.MatchWorkers < 1 {
		opts.MatchWorkers = extraction.DefaultMatchWorkers
	}
	if opts.MatchThreshold <= 0 {
		opts.MatchThreshold = extraction.DefaultMatchThreshold
	}
	if opts.RegistryHeaderRow < 1 {
		opts.RegistryHeaderRow = importer.DefaultRegistryHeaderRow
	}
	if countries == nil {
		countries = normalization.DefaultCountryTable()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{store: store, countries: countries, opts: opts, logger: logger}
}

// dataset is what flows between phases.
type dataset struct {
	inspections, questions, hse *models.Table

	extractions []*models.Record
	questionSet []*models.Record
	hseVariants []*models.Record
	scores      map[string]models.Value

	created  [3]bool
	registry *importer.Registry
	updates  []importer.CellUpdate
}

func (ds *dataset) close() {
	if ds.registry != nil {
		ds.registry.Close()
	}
}

// Run processes the most recent pending upload. The report is returned with
// whatever phases ran, also on failure.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), StartedAt: time.Now()}
	logger := p.logger.With("run_id", report.RunID)
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	upload, err := p.store.LatestPending(ctx)
	if err != nil {
		return report, err
	}
	if upload == nil {
		logger.Info("[Run] No pending file, nothing to extract")
		return report, ErrNoPendingFile
	}
	date, err := upload.NominalDate()
	if err != nil {
		return report, fmt.Errorf("failed to read date of upload %d: %w", upload.ID, err)
	}
	path := p.uploadPath(upload.Filename)
	if _, err := os.Stat(path); err != nil {
		return report, fmt.Errorf("failed to find pending file %s: %w", upload.Filename, err)
	}

	report.UploadID, report.File, report.Date = upload.ID, path, date
	logger = logger.With("upload_id", upload.ID)
	logger.Info("[Run] Extraction started", "file", path, "date", date.Format(database.DateLayout))

	ds := &dataset{}
	defer ds.close()
	steps := []struct {
		phase Phase
		run   func() error
	}{
		{PhaseLoadSheets, func() error { return p.loadSheets(path, ds, logger) }},
		{PhaseClean, func() error { return p.clean(ds) }},
		{PhaseScore, func() error { return p.score(ds, report) }},
		{PhaseMerge, func() error { return p.merge(ds) }},
		{PhaseCreateTables, func() error { return p.createTables(ctx, ds, report, logger) }},
		{PhaseInsertRows, func() error { return p.insertRows(ctx, ds, date, report, logger) }},
		{PhaseMatchStations, func() error { return p.matchStations(ctx, ds, report, logger) }},
		{PhasePatchRegistry, func() error { return p.patchRegistry(ds, logger) }},
		{PhaseMarkFileComplete, func() error { return p.store.MarkCompleted(ctx, upload.ID) }},
	}

	for _, step := range steps {
		start := time.Now()
		err := step.run()
		timing := PhaseTiming{Phase: step.phase, Duration: time.Since(start)}
		if err != nil {
			timing.Err = err.Error()
		}
		report.Phases = append(report.Phases, timing)

		if err != nil {
			logger.Error("[Run] Phase failed", "phase", step.phase, "duration", timing.Duration, "error", err)
			return report, fmt.Errorf("%s: %w", step.phase, err)
		}
		logger.Info("[Run] Phase finished", "phase", step.phase, "duration", timing.Duration)
	}

	report.Completed = true
	logger.Info("[Run] Extraction completed", "duration", time.Since(report.StartedAt),
		"registry_matches", report.RegistryMatches)
	return report, nil
}

// uploadPath resolves a stored filename inside the uploads directory. Stored
// names may carry a client path with either separator.
func (p *Pipeline) uploadPath(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	return filepath.Join(p.opts.UploadsDir, name)
}

// fanOut runs task for every index on at most limit goroutines and waits for
// all of them. A panic becomes the task's error.
func fanOut(limit, n int, task func(i int) error) error {
	var g errgroup.Group
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("panic in task %d: %v", i, rec)
				}
			}()
			return task(i)
		})
	}
	return g.Wait()
}

func (p *Pipeline) loadSheets(path string, ds *dataset, logger *slog.Logger) error {
	names, err := importer.SheetNames(path)
	if err != nil {
		return err
	}
	inspections := SheetInspections
	if !slices.Contains(names, inspections) {
		if len(names) == 0 {
			return fmt.Errorf("%w: workbook %s has no sheets", importer.ErrSheetNotFound, path)
		}
		inspections = names[0]
		logger.Warn("[Run] Inspections sheet missing, using the first sheet", "sheet", inspections)
	}

	sheets := []string{inspections, SheetQuestions, SheetHSE}
	tables := make([]*models.Table, len(sheets))
	err = fanOut(p.opts.SheetWorkers, len(sheets), func(i int) error {
		start := time.Now()
		t, err := importer.ReadSheet(path, sheets[i])
		if err != nil {
			return err
		}
		tables[i] = t
		logger.Info("[Run] Sheet loaded", "sheet", sheets[i], "rows", len(t.Rows), "duration", time.Since(start))
		return nil
	})
	if err != nil {
		return err
	}

	ds.inspections, ds.questions, ds.hse = tables[0], tables[1], tables[2]
	return nil
}

func (p *Pipeline) clean(ds *dataset) error {
	inspections, err := extraction.FilterInspections(importer.CleanTable(ds.inspections))
	if err != nil {
		return err
	}
	if inspections, err = extraction.AssignCountries(inspections, p.countries); err != nil {
		return err
	}
	questions, err := extraction.AssignCountries(importer.CleanTable(ds.questions), p.countries)
	if err != nil {
		return err
	}
	hse, err := extraction.AssignCountries(importer.CleanTable(ds.hse), p.countries)
	if err != nil {
		return err
	}

	ds.inspections, ds.questions, ds.hse = inspections, extraction.ProjectQuestions(questions), hse
	ds.extractions = ds.inspections.Records()
	ds.questionSet = ds.questions.Records()
	return nil
}

func (p *Pipeline) score(ds *dataset, report *Report) error {
	ds.scores = extraction.StationScores(ds.questionSet)
	report.Scores = len(ds.scores)
	return nil
}

func (p *Pipeline) merge(ds *dataset) error {
	ds.hseVariants = extraction.MergeHSE(ds.questionSet, ds.hse.Records(), ds.scores)
	return nil
}

func (ds *dataset) records() [][]*models.Record {
	return [][]*models.Record{ds.extractions, ds.questionSet, ds.hseVariants}
}

// createTables never fails the run: a table that cannot be created is
// recorded and its rows are not loaded.
func (p *Pipeline) createTables(ctx context.Context, ds *dataset, report *Report, logger *slog.Logger) error {
	sets := ds.records()
	report.Tables = make([]TableOutcome, len(Tables))
	for i, name := range Tables {
		report.Tables[i] = TableOutcome{Table: name, Records: len(sets[i])}
	}

	return fanOut(p.opts.SheetWorkers, len(Tables), func(i int) error {
		name := Tables[i]
		if len(sets[i]) == 0 {
			report.Tables[i].Err = "no data"
			logger.Warn("[Run] No data to create table", "table", name)
			return nil
		}
		if err := p.store.CreateTableIfNotExists(ctx, name, sets[i][0].Keys()); err != nil {
			report.Tables[i].Err = err.Error()
			logger.Error("[Run] Failed to create table", "table", name, "error", err)
			return nil
		}
		ds.created[i] = true
		report.Tables[i].Created = true
		return nil
	})
}

// insertRows loads every created table. A failing table does not stop its
// siblings; the first failure is returned once all of them are done.
func (p *Pipeline) insertRows(ctx context.Context, ds *dataset, date time.Time, report *Report, logger *slog.Logger) error {
	sets := ds.records()
	return fanOut(p.opts.SheetWorkers, len(Tables), func(i int) error {
		if !ds.created[i] {
			return nil
		}
		name := Tables[i]
		res, err := p.store.InsertRecords(ctx, name, sets[i], date)
		if err != nil {
			report.Tables[i].Err = err.Error()
			logger.Error("[Run] Failed to insert rows", "table", name, "error", err)
			return fmt.Errorf("failed to load %s: %w", name, err)
		}
		report.Tables[i].Inserted = res.Inserted
		report.Tables[i].Skipped = res.Skipped
		report.Tables[i].DroppedKeys = res.DroppedKeys
		logger.Info("[Run] Rows inserted", "table", name, "inserted", res.Inserted, "skipped", res.Skipped)
		return nil
	})
}

func (p *Pipeline) matchStations(ctx context.Context, ds *dataset, report *Report, logger *slog.Logger) error {
	registry, err := importer.OpenRegistry(p.opts.RegistryPath, p.opts.RegistryHeaderRow)
	if err != nil {
		return err
	}
	ds.registry = registry

	index := extraction.NewStationIndex(extraction.StationCodesByName(ds.hseVariants))
	matcher := extraction.NewMatcher(index, p.opts.MatchThreshold, p.opts.MatchWorkers, logger)

	rows := registry.Rows()
	matches, err := matcher.MatchRows(ctx, rows)
	if err != nil {
		return err
	}

	report.RegistryRows = len(rows)
	report.RegistryMatches = len(matches)
	ds.updates = extraction.Updates(matches)
	return nil
}

// patchRegistry writes the matched codes into the registry read by
// matchStations and saves it once, after every match is known.
func (p *Pipeline) patchRegistry(ds *dataset, logger *slog.Logger) error {
	if err := ds.registry.Apply(ds.updates); err != nil {
		return err
	}
	if err := ds.registry.Save(); err != nil {
		return err
	}
	logger.Info("[Run] Registry patched", "path", ds.registry.Path(), "updates", len(ds.updates))
	return nil
}

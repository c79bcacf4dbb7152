package pipeline

import (
	"time"
)

// Phase is a step of an extraction run. Phases run strictly in declaration order.
type Phase string

const (
	PhaseLoadSheets       Phase = "LOAD_SHEETS"
	PhaseClean            Phase = "CLEAN"
	PhaseScore            Phase = "SCORE"
	PhaseMerge            Phase = "MERGE"
	PhaseCreateTables     Phase = "CREATE_TABLES"
	PhaseInsertRows       Phase = "INSERT_ROWS"
	PhaseMatchStations    Phase = "MATCH_STATIONS"
	PhasePatchRegistry    Phase = "PATCH_REGISTRY"
	PhaseMarkFileComplete Phase = "MARK_FILE_COMPLETE"
)

// PhaseTiming is how long a phase took and how it ended.
type PhaseTiming struct {
	Phase    Phase
	Duration time.Duration
	Err      string
}

// TableOutcome is the fate of one persisted table.
type TableOutcome struct {
	Table       string
	Records     int
	Created     bool
	Inserted    int
	Skipped     int
	DroppedKeys []string
	Err         string
}

// Report describes one run.
type Report struct {
	RunID     string
	UploadID  int64
	File      string
	Date      time.Time
	StartedAt time.Time
	Duration  time.Duration

	Phases []PhaseTiming
	Tables []TableOutcome

	Scores          int
	RegistryRows    int
	RegistryMatches int
	Completed       bool
}

// Table returns the outcome recorded for name.
func (r *Report) Table(name string) (TableOutcome, bool) {
	for _, t := range r.Tables {
		if t.Table == name {
			return t, true
		}
	}
	return TableOutcome{}, false
}

// PhaseNames returns the phases that ran, in order.
func (r *Report) PhaseNames() []Phase {
	out := make([]Phase, len(r.Phases))
	for i, p := range r.Phases {
		out[i] = p.Phase
	}
	return out
}

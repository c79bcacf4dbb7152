package extraction

import (
	"strings"

	"erisextract/internal/domain/models"
)

// Station scores. Indeterminate is an empty text value so it is stored as ''
// and stays distinct from NULL.
var (
	ScoreMin           = models.Number(0)
	ScoreMax           = models.Number(100)
	ScoreIndeterminate = models.Text("")
)

// Score derives a station score from the d.02 flag and the ep11 fallback flag.
// A d.02 answer always wins; ep11 is only read when d.02 is absent.
func Score(d02, ep11 models.Value) models.Value {
	switch d02.Flag() {
	case "yes":
		return ScoreMin
	case "no":
		return ScoreMax
	case "":
		switch ep11.Flag() {
		case "yes":
			return ScoreMax
		case "no":
			return ScoreMin
		}
	}
	return ScoreIndeterminate
}

// StationScores scores every question record by station code. Records without
// a station code are left out; a repeated code keeps the last record's score.
func StationScores(questions []*models.Record) map[string]models.Value {
	scores := make(map[string]models.Value, len(questions))
	for _, rec := range questions {
		code := stationKey(rec.Get(ColStationCode))
		if code == "" {
			continue
		}
		scores[code] = Score(rec.Get(ColD02), rec.Get(ColEP11))
	}
	return scores
}

// MergeHSE builds the HSE variant records: a copy of each question record with
// ep11 replaced by the station score (Null when the station has none), plus
// the columns of the HSE row with the same station code that the question
// record does not already carry. When the HSE sheet repeats a station code the
// last row is used.
func MergeHSE(questions, hse []*models.Record, scores map[string]models.Value) []*models.Record {
	lookup := make(map[string]*models.Record, len(hse))
	for _, rec := range hse {
		if code := stationKey(rec.Get(ColStationCode)); code != "" {
			lookup[code] = rec
		}
	}

	merged := make([]*models.Record, 0, len(questions))
	for _, q := range questions {
		rec := q.Clone()
		code := stationKey(rec.Get(ColStationCode))

		score, ok := scores[code]
		if code == "" || !ok {
			score = models.Null()
		}
		rec.Set(ColEP11, score)

		if extra, ok := lookup[code]; ok && code != "" {
			for _, key := range extra.Keys() {
				if !rec.Has(key) {
					rec.Set(key, extra.Get(key))
				}
			}
		}
		merged = append(merged, rec)
	}
	return merged
}

// StationCode is a station name with its code.
type StationCode struct {
	Name string
	Code string
}

// StationCodesByName maps station names to codes in first-seen name order; a
// name seen again takes the later code. Rows with a blank name or code are skipped.
func StationCodesByName(records []*models.Record) []StationCode {
	var out []StationCode
	pos := make(map[string]int)
	for _, rec := range records {
		name := strings.TrimSpace(rec.Get(ColStationName).String())
		code := stationKey(rec.Get(ColStationCode))
		if name == "" || code == "" {
			continue
		}
		if i, ok := pos[name]; ok {
			out[i].Code = code
			continue
		}
		pos[name] = len(out)
		out = append(out, StationCode{Name: name, Code: code})
	}
	return out
}

func stationKey(v models.Value) string {
	if v.IsNull() {
		return ""
	}
	return strings.TrimSpace(v.String())
}

package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"erisextract/importer"
	"erisextract/normalization/algorithms"
)

// Matcher defaults.
const (
	DefaultMatchThreshold = 70.0
	DefaultMatchWorkers   = 8
	matchProgressEvery    = 50
	rowsPerMatchWorker    = 10
)

// StationIndex maps an affiliate code to lower-cased station names and their codes.
type StationIndex map[string]map[string]string

// NewStationIndex groups stations by the upper-cased first two characters of
// their code. A lower-cased name seen again takes the later code.
func NewStationIndex(stations []StationCode) StationIndex {
	idx := make(StationIndex)
	for _, s := range stations {
		aff := affiliateOf(s.Code)
		if idx[aff] == nil {
			idx[aff] = make(map[string]string)
		}
		idx[aff][strings.ToLower(s.Name)] = s.Code
	}
	return idx
}

func affiliateOf(code string) string {
	r := []rune(code)
	if len(r) > 2 {
		r = r[:2]
	}
	return strings.ToUpper(string(r))
}

// Match is an accepted registry match.
type Match struct {
	Row         int
	StationName string
	MatchedName string
	Code        string
	Score       float64
}

// Matcher resolves registry station names to station codes within their affiliate.
// It only reads its index and is safe for concurrent use.
type Matcher struct {
	candidates map[string][]string // sorted names per affiliate
	index      StationIndex
	threshold  float64
	workers    int
	logger     *slog.Logger
}

// NewMatcher creates a matcher accepting scores >= threshold, using up to workers goroutines.
func NewMatcher(index StationIndex, threshold float64, workers int, logger *slog.Logger) *Matcher {
	if workers < 1 {
		workers = DefaultMatchWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Matcher{
		candidates: make(map[string][]string, len(index)),
		index:      index,
		threshold:  threshold,
		workers:    workers,
		logger:     logger.With("component", "station_matcher"),
	}
	for aff, names := range index {
		list := make([]string, 0, len(names))
		for n := range names {
			list = append(list, n)
		}
		sort.Strings(list)
		m.candidates[aff] = list
	}
	return m
}

// Best returns the best scoring station of the affiliate for name. Candidates
// are scored in sorted order and a tie keeps the earlier one. Nothing is
// returned when the affiliate is unknown or no score reaches the threshold.
func (m *Matcher) Best(affiliate, name string) (Match, bool) {
	names := m.candidates[strings.ToUpper(affiliate)]
	if len(names) == 0 {
		return Match{}, false
	}

	query := strings.ToLower(name)
	best, bestScore := "", -1.0
	for _, candidate := range names {
		score := algorithms.TokenSetRatio(query, candidate)
		if score >= m.threshold && score > bestScore {
			best, bestScore = candidate, score
			if score == 100 {
				break
			}
		}
	}
	if bestScore < 0 {
		return Match{}, false
	}
	return Match{
		StationName: name,
		MatchedName: best,
		Code:        m.index[strings.ToUpper(affiliate)][best],
		Score:       bestScore,
	}, true
}

// MatchRows matches every registry row across a bounded pool of workers, sized
// down for small inputs. Matches are returned in ascending row order.
func (m *Matcher) MatchRows(ctx context.Context, rows []importer.RegistryRow) ([]Match, error) {
	results := make([]*Match, len(rows))
	var found atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(min(m.workers, len(rows)/rowsPerMatchWorker+1))

	for i, row := range rows {
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("panic matching registry row %d: %v", row.Row, rec)
				}
			}()
			if err := ctx.Err(); err != nil {
				return err
			}

			match, ok := m.Best(row.Affiliate, row.StationName)
			if !ok {
				return nil
			}
			match.Row = row.Row
			results[i] = &match

			if n := found.Add(1); n%matchProgressEvery == 0 {
				m.logger.Info("[MatchRows] Progress", "matches", n, "rows", len(rows))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to match registry rows: %w", err)
	}

	matches := make([]Match, 0, found.Load())
	for _, r := range results {
		if r != nil {
			matches = append(matches, *r)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Row < matches[j].Row })

	m.logger.Info("[MatchRows] Matching finished", "rows", len(rows), "matches", len(matches))
	return matches, nil
}

// Updates converts matches into registry cell updates.
func Updates(matches []Match) []importer.CellUpdate {
	updates := make([]importer.CellUpdate, len(matches))
	for i, m := range matches {
		updates[i] = importer.CellUpdate{Row: m.Row, Code: m.Code}
	}
	return updates
}

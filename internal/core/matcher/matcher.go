// Package matcher scores a name fragment against the registry's agency names
// and decides whether the best match is clear enough to assert.
package matcher

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync/atomic"

	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/core/schema"
	"hajj-assistant/internal/models"
)

// Config holds the tunable thresholds.
type Config struct {
	Threshold     float64
	AmbiguityGap  float64
	MaxCandidates int
}

// DefaultConfig is 0.55 minimum similarity, 0.05 ambiguity gap, 5 candidates.
func DefaultConfig() Config {
	return Config{Threshold: 0.55, AmbiguityGap: 0.05, MaxCandidates: 5}
}

// MatchOptions narrows one lookup.
type MatchOptions struct {
	// Location is a canonical city or country; agencies elsewhere are
	// penalized, not excluded.
	Location string
}

// locationPenalty scales candidates outside the hinted location.
const locationPenalty = 0.85

type entry struct {
	agency models.Agency
	ar     []string
	en     []string
	place  string
}

// Index is an immutable snapshot of the registry names.
type Index struct {
	entries []entry
}

func NewIndex(agencies []models.Agency) *Index {
	idx := &Index{entries: make([]entry, 0, len(agencies))}
	seen := make(map[string]bool, len(agencies))
	for _, a := range agencies {
		if seen[a.Key()] {
			continue
		}
		seen[a.Key()] = true
		idx.entries = append(idx.entries, entry{
			agency: a,
			ar:     Tokens(a.NameAR),
			en:     Tokens(a.NameEN),
			place:  strings.ToLower(a.City + " " + a.Country),
		})
	}
	return idx
}

// Len is the number of distinct agencies indexed.
func (i *Index) Len() int { return len(i.entries) }

// LoadIndex reads every agency through the read-only handle.
func LoadIndex(ctx context.Context, db *sql.DB, reg *schema.Registry) (*Index, error) {
	cols := reg.ExposedColumns()
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), reg.Table())

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load agency index: %w", err)
	}
	defer rows.Close()

	var agencies []models.Agency
	for rows.Next() {
		values, err := schema.ScanStrings(rows, len(cols))
		if err != nil {
			return nil, err
		}
		agencies = append(agencies, schema.ToAgency(cols, values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load agency index: %w", err)
	}
	return NewIndex(agencies), nil
}

// Matcher ranks candidates. The index can be swapped while lookups run.
type Matcher struct {
	index  atomic.Pointer[Index]
	cfg    Config
	logger logger.Logger
}

func New(index *Index, cfg Config, log logger.Logger) *Matcher {
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultConfig().MaxCandidates
	}
	m := &Matcher{cfg: cfg, logger: log.With(map[string]interface{}{"component": "matcher"})}
	m.index.Store(index)
	return m
}

// Swap replaces the index snapshot.
func (m *Matcher) Swap(index *Index) {
	m.index.Store(index)
	m.logger.Info("agency index refreshed", map[string]interface{}{"agencies": index.Len()})
}

// Match returns candidates at or above the threshold, sorted by score,
// then authorized first, then name. Same input and index give the same list.
func (m *Matcher) Match(fragment string, opts MatchOptions) models.MatchResult {
	result := models.MatchResult{Query: fragment}

	query := Tokens(fragment)
	if len(query) == 0 {
		return result
	}
	arabic, latin := script(fragment)
	if !arabic && !latin {
		arabic, latin = true, true
	}

	var variants []string
	if opts.Location != "" {
		if loc, ok := schema.LookupLocation(opts.Location); ok {
			variants = append([]string{strings.ToLower(loc.Canonical)}, loc.Variants...)
		}
	}

	idx := m.index.Load()
	if idx == nil {
		return result
	}

	var candidates []models.MatchCandidate
	for _, e := range idx.entries {
		score := 0.0
		if arabic || len(e.en) == 0 {
			score = math.Max(score, Similarity(query, e.ar))
		}
		if latin || len(e.ar) == 0 {
			score = math.Max(score, Similarity(query, e.en))
		}
		if len(variants) > 0 && !mentionsAny(e.place, variants) {
			score *= locationPenalty
		}

		score = math.Round(score*10000) / 10000
		if score < m.cfg.Threshold {
			continue
		}
		candidates = append(candidates, models.MatchCandidate{
			Agency:        e.agency,
			Score:         score,
			Authorization: e.agency.Authorization,
		})
	}

	SortCandidates(candidates)
	result.Ambiguous = IsAmbiguous(candidates, m.cfg.AmbiguityGap)
	if len(candidates) > m.cfg.MaxCandidates {
		candidates = candidates[:m.cfg.MaxCandidates]
	}
	result.Candidates = candidates
	return result
}

// IsAmbiguous is true when the top two scores are closer than gap.
func IsAmbiguous(candidates []models.MatchCandidate, gap float64) bool {
	if len(candidates) < 2 {
		return false
	}
	diff := math.Round((candidates[0].Score-candidates[1].Score)*10000) / 10000
	return diff < gap
}

// SortCandidates applies the deterministic ranking order.
func SortCandidates(c []models.MatchCandidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].Score != c[j].Score {
			return c[i].Score > c[j].Score
		}
		ai, aj := c[i].Authorization == models.AuthorizationAuthorized, c[j].Authorization == models.AuthorizationAuthorized
		if ai != aj {
			return ai
		}
		if c[i].Agency.NameEN != c[j].Agency.NameEN {
			return c[i].Agency.NameEN < c[j].Agency.NameEN
		}
		if c[i].Agency.NameAR != c[j].Agency.NameAR {
			return c[i].Agency.NameAR < c[j].Agency.NameAR
		}
		return c[i].Agency.City < c[j].Agency.City
	})
}

func mentionsAny(place string, variants []string) bool {
	for _, v := range variants {
		if v != "" && strings.Contains(place, v) {
			return true
		}
	}
	return false
}

/*
Package factory provides JSON/YAML to Go rule-set conversion.

PURPOSE:
  Converts rule documents into checkin.Rules. This enables tuning the
  program (level thresholds, task goals, prizes, badges) without code
  changes. Fields left out of a document keep their built-in values.

SCHEMA (YAML shown, JSON uses the same names):
  level_thresholds: [0, 100, 250, 500, 900, 1400, 2000, 2800, 3800, 5000]
  max_level_step: 1000
  checkin_points: 5
  daily:
    view_goal: 10
    favorite_goal: 5
  long_term:
    - {key: streak7, title: Check in 7 days in a row, metric: streak, goal: 7, prize: 50}
  badges:
    - {label: "🥉 5 days of growth", metric: total_days, threshold: 5}
  lookback_days: 7
  log_limit: 15

VALIDATION:
  - Level thresholds start at 0 and strictly ascend
  - Goals, thresholds and the check-in prize are positive
  - Long-term task keys are unique and non-empty
  - Metrics are one of streak, total_days, favorites, points

USAGE:
  factory := NewRulesFactory()
  rules, err := factory.ParseFile("rules.yaml")

SEE ALSO:
  - checkin/rules.go: Rules type and the built-in rule set
*/
package factory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/warp/checkin-engine/checkin"
)

// ErrInvalidRules wraps every validation failure.
var ErrInvalidRules = errors.New("invalid rules")

// =============================================================================
// DOCUMENT SCHEMA TYPES
// =============================================================================

// RulesDoc is the document form of checkin.Rules. Nil fields keep the
// built-in value.
type RulesDoc struct {
	LevelThresholds []int                  `json:"level_thresholds,omitempty" yaml:"level_thresholds,omitempty"`
	MaxLevelStep    *int                   `json:"max_level_step,omitempty" yaml:"max_level_step,omitempty"`
	CheckinPoints   *int                   `json:"checkin_points,omitempty" yaml:"checkin_points,omitempty"`
	Daily           *DailyDoc              `json:"daily,omitempty" yaml:"daily,omitempty"`
	LongTerm        []checkin.LongTermTask `json:"long_term,omitempty" yaml:"long_term,omitempty"`
	Badges          []checkin.BadgeRule    `json:"badges,omitempty" yaml:"badges,omitempty"`
	LookbackDays    *int                   `json:"lookback_days,omitempty" yaml:"lookback_days,omitempty"`
	LogLimit        *int                   `json:"log_limit,omitempty" yaml:"log_limit,omitempty"`
}

// DailyDoc represents daily task goals.
type DailyDoc struct {
	ViewGoal     *int `json:"view_goal,omitempty" yaml:"view_goal,omitempty"`
	FavoriteGoal *int `json:"favorite_goal,omitempty" yaml:"favorite_goal,omitempty"`
	ViewPoints   *int `json:"view_points,omitempty" yaml:"view_points,omitempty"`
}

// =============================================================================
// RULES FACTORY
// =============================================================================

// RulesFactory converts rule documents to checkin.Rules.
type RulesFactory struct {
	base checkin.Rules
}

// NewRulesFactory creates a factory layering documents over the built-in
// rule set.
func NewRulesFactory() *RulesFactory {
	return &RulesFactory{base: checkin.DefaultRules()}
}

// ParseJSON parses a JSON rule document.
func (f *RulesFactory) ParseJSON(data []byte) (checkin.Rules, error) {
	var doc RulesDoc
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return checkin.Rules{}, fmt.Errorf("failed to parse rules JSON: %w", err)
	}
	return f.FromDoc(doc)
}

// ParseYAML parses a YAML rule document. An empty document yields the
// built-in rules.
func (f *RulesFactory) ParseYAML(data []byte) (checkin.Rules, error) {
	var doc RulesDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return checkin.Rules{}, fmt.Errorf("failed to parse rules YAML: %w", err)
	}
	return f.FromDoc(doc)
}

// ParseFile reads a rule document, choosing the format by extension.
func (f *RulesFactory) ParseFile(path string) (checkin.Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return checkin.Rules{}, fmt.Errorf("read rules: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return f.ParseJSON(data)
	default:
		return f.ParseYAML(data)
	}
}

// FromDoc merges doc over the base rules and validates the result.
func (f *RulesFactory) FromDoc(doc RulesDoc) (checkin.Rules, error) {
	r := cloneRules(f.base)

	if doc.LevelThresholds != nil {
		r.LevelThresholds = append([]int(nil), doc.LevelThresholds...)
	}
	setInt(&r.MaxLevelStep, doc.MaxLevelStep)
	setInt(&r.CheckinPoints, doc.CheckinPoints)
	if doc.Daily != nil {
		setInt(&r.Daily.ViewGoal, doc.Daily.ViewGoal)
		setInt(&r.Daily.FavoriteGoal, doc.Daily.FavoriteGoal)
		setInt(&r.Daily.ViewPoints, doc.Daily.ViewPoints)
	}
	if doc.LongTerm != nil {
		r.LongTerm = append([]checkin.LongTermTask(nil), doc.LongTerm...)
	}
	if doc.Badges != nil {
		r.Badges = append([]checkin.BadgeRule(nil), doc.Badges...)
	}
	setInt(&r.LookbackDays, doc.LookbackDays)
	setInt(&r.LogLimit, doc.LogLimit)

	if err := Validate(r); err != nil {
		return checkin.Rules{}, err
	}
	return r, nil
}

// ToDoc converts Rules to a fully populated document.
func (f *RulesFactory) ToDoc(r checkin.Rules) RulesDoc {
	return RulesDoc{
		LevelThresholds: append([]int(nil), r.LevelThresholds...),
		MaxLevelStep:    ptr(r.MaxLevelStep),
		CheckinPoints:   ptr(r.CheckinPoints),
		Daily: &DailyDoc{
			ViewGoal:     ptr(r.Daily.ViewGoal),
			FavoriteGoal: ptr(r.Daily.FavoriteGoal),
			ViewPoints:   ptr(r.Daily.ViewPoints),
		},
		LongTerm:     append([]checkin.LongTermTask(nil), r.LongTerm...),
		Badges:       append([]checkin.BadgeRule(nil), r.Badges...),
		LookbackDays: ptr(r.LookbackDays),
		LogLimit:     ptr(r.LogLimit),
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks r for internal consistency.
func Validate(r checkin.Rules) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if len(r.LevelThresholds) == 0 {
		fail("level_thresholds: at least one threshold required")
	} else if r.LevelThresholds[0] != 0 {
		fail("level_thresholds: must start at 0, got %d", r.LevelThresholds[0])
	}
	for i := 1; i < len(r.LevelThresholds); i++ {
		if r.LevelThresholds[i] <= r.LevelThresholds[i-1] {
			fail("level_thresholds: %d at index %d is not above %d", r.LevelThresholds[i], i, r.LevelThresholds[i-1])
		}
	}
	if r.MaxLevelStep <= 0 {
		fail("max_level_step: must be positive")
	}
	if r.CheckinPoints <= 0 {
		fail("checkin_points: must be positive")
	}
	if r.Daily.ViewGoal <= 0 || r.Daily.FavoriteGoal <= 0 {
		fail("daily: goals must be positive")
	}
	if r.LookbackDays <= 0 {
		fail("lookback_days: must be positive")
	}
	if r.LogLimit < 0 {
		fail("log_limit: must not be negative")
	}

	seen := make(map[string]bool, len(r.LongTerm))
	for i, t := range r.LongTerm {
		switch {
		case t.Key == "":
			fail("long_term[%d]: missing key", i)
		case seen[t.Key]:
			fail("long_term[%d]: duplicate key %q", i, t.Key)
		}
		seen[t.Key] = true
		if t.Goal <= 0 {
			fail("long_term %q: goal must be positive", t.Key)
		}
		if t.Prize < 0 {
			fail("long_term %q: prize must not be negative", t.Key)
		}
		if !knownMetric(t.Metric) {
			fail("long_term %q: unknown metric %q", t.Key, t.Metric)
		}
	}
	for i, b := range r.Badges {
		if b.Label == "" {
			fail("badges[%d]: missing label", i)
		}
		if b.Threshold <= 0 {
			fail("badges[%d]: threshold must be positive", i)
		}
		if !knownMetric(b.Metric) {
			fail("badges[%d]: unknown metric %q", i, b.Metric)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRules, errors.Join(errs...))
	}
	return nil
}

func knownMetric(m checkin.Metric) bool {
	switch m {
	case checkin.MetricStreak, checkin.MetricTotalDays, checkin.MetricFavorites, checkin.MetricPoints:
		return true
	default:
		return false
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func ptr(v int) *int { return &v }

func cloneRules(r checkin.Rules) checkin.Rules {
	r.LevelThresholds = append([]int(nil), r.LevelThresholds...)
	r.LongTerm = append([]checkin.LongTermTask(nil), r.LongTerm...)
	r.Badges = append([]checkin.BadgeRule(nil), r.Badges...)
	return r
}

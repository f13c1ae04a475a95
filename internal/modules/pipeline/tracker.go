// Package pipeline records the filtering funnel of a strategy scan so
// the UI can show how candidates narrowed at each step.
package pipeline

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Step is one stage of the scan funnel.
type Step struct {
	Step        int     `json:"step"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	InputCount  int     `json:"input_count"`
	PassedCount int     `json:"passed_count"`
	FilteredOut int     `json:"filtered_count"`
	PassRate    float64 `json:"pass_rate"` // Percent, one decimal
}

// Summary aggregates the whole funnel after finalization.
type Summary struct {
	TotalInput      int     `json:"total_input"`
	FinalOutput     int     `json:"final_output"`
	OverallPassRate float64 `json:"overall_pass_rate"` // Percent, two decimals
	TotalSteps      int     `json:"total_steps"`
	ScanDurationMS  int64   `json:"scan_duration_ms"`
}

// Report is the complete funnel record for one scan.
type Report struct {
	ScanID          string             `json:"scan_id"`
	Symbol          string             `json:"symbol"`
	StockPrice      float64            `json:"stock_price"`
	Strategy        string             `json:"strategy_name"`
	StrategyDisplay string             `json:"strategy_display_name"`
	Timestamp       time.Time          `json:"timestamp"`
	Criteria        map[string]float64 `json:"filter_criteria"`
	Steps           []Step             `json:"steps"`
	Summary         Summary            `json:"summary"`
}

// Store holds the report of the most recent finished scan. Concurrent
// scans race on publication; the last writer wins, which matches the
// single-slot semantics the pipeline view expects.
type Store struct {
	mu     sync.RWMutex
	latest *Report
}

// NewStore creates an empty pipeline store.
func NewStore() *Store {
	return &Store{}
}

// Latest returns the most recent report, or nil when no scan has run.
func (s *Store) Latest() *Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Clear discards the stored report.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = nil
}

func (s *Store) publish(r *Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = r
}

// Tracker accumulates funnel steps for a single scan. It is not safe
// for concurrent use; each scan builds its own.
type Tracker struct {
	scanID   string
	symbol   string
	price    float64
	name     string
	display  string
	criteria map[string]float64
	steps    []Step
	start    time.Time
	store    *Store
}

// NewTracker starts a funnel for one scan. The store may be nil when
// the caller only wants the returned report.
func NewTracker(store *Store, symbol string, price float64, name, display string, criteria map[string]float64) *Tracker {
	return &Tracker{
		scanID:   uuid.NewString(),
		symbol:   symbol,
		price:    price,
		name:     name,
		display:  display,
		criteria: criteria,
		start:    time.Now(),
		store:    store,
	}
}

// AddStep records one filtering stage.
func (t *Tracker) AddStep(name, description string, inputCount, passedCount int) {
	passRate := 0.0
	if inputCount > 0 {
		passRate = float64(passedCount) / float64(inputCount) * 100
	}
	t.steps = append(t.steps, Step{
		Step:        len(t.steps) + 1,
		Name:        name,
		Description: description,
		InputCount:  inputCount,
		PassedCount: passedCount,
		FilteredOut: inputCount - passedCount,
		PassRate:    round1(passRate),
	})
}

// Finalize closes the funnel, publishes the report to the store, and
// returns it.
func (t *Tracker) Finalize(finalCount int) *Report {
	totalInput := 0
	if len(t.steps) > 0 {
		totalInput = t.steps[0].InputCount
	}
	overall := 0.0
	if totalInput > 0 {
		overall = float64(finalCount) / float64(totalInput) * 100
	}

	report := &Report{
		ScanID:          t.scanID,
		Symbol:          t.symbol,
		StockPrice:      t.price,
		Strategy:        t.name,
		StrategyDisplay: t.display,
		Timestamp:       time.Now(),
		Criteria:        t.criteria,
		Steps:           t.steps,
		Summary: Summary{
			TotalInput:      totalInput,
			FinalOutput:     finalCount,
			OverallPassRate: round2(overall),
			TotalSteps:      len(t.steps),
			ScanDurationMS:  time.Since(t.start).Milliseconds(),
		},
	}

	if t.store != nil {
		t.store.publish(report)
	}
	return report
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

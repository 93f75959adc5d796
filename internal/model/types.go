// Package model defines shared data structures.
package model

import "time"

// OperatorProfile describes how a synthetic operator selects and paces work.
type OperatorProfile struct {
	Name             string   `json:"name" yaml:"name"`
	BaseTaskTimeSec  float64  `json:"base_task_time_sec" yaml:"base_task_time_sec"`
	TaskTimeJitter   float64  `json:"task_time_jitter_sec" yaml:"task_time_jitter_sec"`
	Strategy         Strategy `json:"strategy" yaml:"strategy"`
	PreemptThreshold float64  `json:"preempt_threshold" yaml:"preempt_threshold"`
}

// TrialParams holds the fixed parameters shared by every trial of a run.
type TrialParams struct {
	Conditions int        `json:"conditions" yaml:"conditions"`
	HorizonSec int        `json:"horizon_sec" yaml:"horizon_sec"`
	HarmWeight HarmWeight `json:"harm_weight" yaml:"harm_weight"`
	PauseSec   int        `json:"pause_sec" yaml:"pause_sec"`
}

// TrialResult is the immutable outcome of one simulated trial.
type TrialResult struct {
	Operator       string   `json:"operator" yaml:"operator"`
	Policy         Policy   `json:"policy" yaml:"policy"`
	Strategy       Strategy `json:"strategy" yaml:"strategy"`
	Seed           int64    `json:"seed" yaml:"seed"`
	ElapsedSec     int      `json:"elapsed_sec" yaml:"elapsed_sec"`
	FinalFatigue   float64  `json:"final_fatigue" yaml:"final_fatigue"`
	AvgAccuracy    float64  `json:"avg_accuracy" yaml:"avg_accuracy"`
	AvgSpeedFactor float64  `json:"avg_speed_factor" yaml:"avg_speed_factor"`
	Resolved       int      `json:"resolved" yaml:"resolved"`
	Total          int      `json:"total" yaml:"total"`
	Harm           float64  `json:"harm" yaml:"harm"`
	NormalizedHarm float64  `json:"normalized_harm" yaml:"normalized_harm"`
	Score          float64  `json:"score" yaml:"score"`
	Incomplete     bool     `json:"incomplete" yaml:"incomplete"`
}

// MetricSummary is the mean and nearest-rank percentiles of one metric.
type MetricSummary struct {
	Mean float64 `json:"mean" yaml:"mean"`
	P50  float64 `json:"p50" yaml:"p50"`
	P90  float64 `json:"p90" yaml:"p90"`
}

// Summary aggregates the trial results of a single policy.
type Summary struct {
	Policy     Policy        `json:"policy" yaml:"policy"`
	Count      int           `json:"count" yaml:"count"`
	Incomplete int           `json:"incomplete" yaml:"incomplete"`
	ElapsedSec MetricSummary `json:"elapsed_sec" yaml:"elapsed_sec"`
	Fatigue    MetricSummary `json:"fatigue" yaml:"fatigue"`
	Accuracy   MetricSummary `json:"accuracy" yaml:"accuracy"`
	Harm       MetricSummary `json:"harm" yaml:"harm"`
	Score      MetricSummary `json:"score" yaml:"score"`
}

// RunRequest configures a Monte Carlo comparison.
type RunRequest struct {
	Trials   int
	Profile  OperatorProfile
	Params   TrialParams
	Policies []Policy
	Seed     int64
	Workers  int
}

// RunOutput is the full result of a Monte Carlo comparison.
type RunOutput struct {
	ID        string          `json:"id" yaml:"id"`
	StartedAt time.Time       `json:"started_at" yaml:"started_at"`
	Seed      int64           `json:"seed" yaml:"seed"`
	Trials    int             `json:"trials" yaml:"trials"`
	Profile   OperatorProfile `json:"profile" yaml:"profile"`
	Params    TrialParams     `json:"params" yaml:"params"`
	Summaries []Summary       `json:"summaries" yaml:"summaries"`
	Results   []TrialResult   `json:"results,omitempty" yaml:"results,omitempty"`
}

// RunRecord is a persisted run header.
type RunRecord struct {
	ID        string
	CreatedAt time.Time
	Seed      int64
	Trials    int
	Profile   OperatorProfile
	Params    TrialParams
}

// HistoryConfig defines filters for listing saved runs.
type HistoryConfig struct {
	Last   int
	Policy string
}

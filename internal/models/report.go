package models

import "time"

// FilterStats are the per-layer accept/reject counters kept across a run.
type FilterStats struct {
	TotalProcessed   int `json:"total_processed"`
	RejectedPlatform int `json:"rejected_platform"`
	RejectedPronoun  int `json:"rejected_pronoun"`
	RejectedFace     int `json:"rejected_face"`
	Passed           int `json:"passed"`
}

// DiscoveryReport summarizes phase 1 of a run.
type DiscoveryReport struct {
	TrendsProcessed int            `json:"trends_processed"`
	PerTrend        map[string]int `json:"per_trend"`
	Discovered      int            `json:"discovered"`
	RejectedComet   int            `json:"rejected_comet_criteria"`
	Errors          int            `json:"errors"`
}

// RollCallReport summarizes phase 2 of a run. Updated, Failed and
// Skipped are mutually exclusive and sum to RosterSize.
type RollCallReport struct {
	RosterSize int  `json:"roster_size"`
	Updated    int  `json:"updated"`
	Failed     int  `json:"failed"`
	Skipped    int  `json:"skipped"`
	Aborted    bool `json:"aborted"`
}

// RunReport is the aggregate surface handed to the operator at the end
// of every run, including runs where roll call failed wholesale.
type RunReport struct {
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Discovery  DiscoveryReport `json:"discovery"`
	RollCall   RollCallReport  `json:"roll_call"`
	Filter     FilterStats     `json:"filter"`
}

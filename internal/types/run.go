package types

import "time"

// RunSummary describes one completed pipeline run.
type RunSummary struct {
	RunID          string      `json:"run_id"`
	Status         string      `json:"status"`
	StartedAt      time.Time   `json:"started_at"`
	FinishedAt     time.Time   `json:"finished_at"`
	FilesProcessed int         `json:"files_processed"`
	FilesFailed    int         `json:"files_failed"`
	InputRows      int         `json:"input_rows"`
	OutputRows     int         `json:"output_rows"`
	Warnings       []string    `json:"warnings,omitempty"`
	Report         []ReportRow `json:"report,omitempty"`
	Error          string      `json:"error,omitempty"`
}

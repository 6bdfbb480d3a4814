package domain

import "time"

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// CrawlRun is one execution of the orchestrator. Terminal once Status leaves
// RunRunning.
type CrawlRun struct {
	ID           int64
	StartedAt    time.Time
	EndedAt      time.Time
	Status       RunStatus
	PagesFetched int
	RecordsFound int
	RecordsNew   int
	ErrorSummary []string // one entry per skipped record, human readable
}

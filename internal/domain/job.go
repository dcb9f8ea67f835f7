package domain

import "time"

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Job kinds
const (
	JobKindBulkAssign     = "bulk_assign"
	JobKindFineAssessment = "fine_assessment"
	JobKindOverdueNotices = "overdue_reminders"
)

// Job tracks a background run. It lives in the job-status store, never in process memory.
type Job struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Status     JobStatus  `json:"status"`
	Total      int        `json:"total"`
	Processed  int        `json:"processed"`
	Failed     int        `json:"failed"`
	Errors     []string   `json:"errors,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func (j *Job) Done() bool {
	return j.Status == JobStatusSucceeded || j.Status == JobStatusFailed
}

// Record counts one processed unit, noting its failure if any
func (j *Job) Record(err error) {
	j.Processed++
	if err != nil {
		j.Failed++
		j.Errors = append(j.Errors, err.Error())
	}
}

// Finish closes the job; it fails only when every unit failed.
func (j *Job) Finish(at time.Time) {
	j.Status = JobStatusSucceeded
	if j.Total > 0 && j.Failed == j.Total {
		j.Status = JobStatusFailed
	}
	j.UpdatedAt = at
	j.FinishedAt = &at
}

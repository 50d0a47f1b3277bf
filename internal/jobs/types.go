package jobs

import (
	"errors"
	"time"
)

// Status is the lifecycle state of an indexing job.
type Status string

const (
	StatusStarted      Status = "started"
	StatusCloning      Status = "cloning"
	StatusAnalyzingAST Status = "analyzing_ast"
	StatusVectorizing  Status = "vectorizing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// NonTerminalStatuses are the states a live job can be in.
var NonTerminalStatuses = []Status{StatusStarted, StatusCloning, StatusAnalyzingAST, StatusVectorizing}

// transitions is the allowed status-transition table. Failure is reachable
// from every non-terminal state; completed and failed are terminal.
var transitions = map[Status][]Status{
	StatusStarted:      {StatusCloning, StatusFailed},
	StatusCloning:      {StatusAnalyzingAST, StatusFailed},
	StatusAnalyzingAST: {StatusVectorizing, StatusFailed},
	StatusVectorizing:  {StatusCompleted, StatusFailed},
	StatusCompleted:    {},
	StatusFailed:       {},
}

// IsTerminal reports whether no further status writes are permitted.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the transition table allows from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DefaultNamespace partitions jobs that don't name a workspace.
const DefaultNamespace = "default"

// Job is one indexing attempt. A repo may have many historical job records;
// jobs are never deleted individually, only by a bulk reset.
type Job struct {
	IndexID   string    `json:"index_id"`
	Namespace string    `json:"namespace"`
	RepoURL   string    `json:"repo_url"`
	Branch    string    `json:"branch"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RepoSummary is the latest job per distinct (repo, branch, namespace) group.
type RepoSummary struct {
	RepoURL     string    `json:"repo_url"`
	Branch      string    `json:"branch"`
	Namespace   string    `json:"namespace"`
	Status      Status    `json:"status"`
	LastUpdated time.Time `json:"last_updated"`
}

// Counts are the aggregate indexing metrics.
type Counts struct {
	// DistinctCompletedRepos counts unique repo URLs with at least one
	// completed run, regardless of the repo's latest status.
	DistinctCompletedRepos int `json:"indexed_repos"`
	// TotalCompletedRuns counts every job record ever marked completed.
	TotalCompletedRuns int `json:"success_runs"`
}

var (
	// ErrJobExists is returned when creating a job whose index_id is taken.
	ErrJobExists = errors.New("job already exists")
	// ErrJobNotFound is returned when updating a job that doesn't exist.
	ErrJobNotFound = errors.New("job not found")
	// ErrIllegalTransition is returned for a status write the transition
	// table forbids, including any write out of a terminal state.
	ErrIllegalTransition = errors.New("illegal status transition")
)

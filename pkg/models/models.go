package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// CommitRef is a source-control revision hash
type CommitRef string

func (c CommitRef) String() string {
	return string(c)
}

// Short returns the abbreviated hash used in log lines
func (c CommitRef) Short() string {
	if len(c) > 12 {
		return string(c[:12])
	}
	return string(c)
}

const (
	StatusQueued     = "queued"
	StatusInProgress = "in_progress"
	StatusWaiting    = "waiting"
	StatusCompleted  = "completed"

	ConclusionSuccess = "success"
)

// WorkflowRun represents a GitHub Actions workflow run.
// Status is kept raw so a malformed (non-string) value can be told apart from
// an unknown status string.
type WorkflowRun struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Status     json.RawMessage `json:"status"`
	Conclusion string          `json:"conclusion"`
	HeadSHA    string          `json:"head_sha"`
	HeadBranch string          `json:"head_branch"`
	HTMLURL    string          `json:"html_url"`
	CreatedAt  time.Time       `json:"created_at"`
}

// StatusString returns the run status and whether it was a JSON string
func (r *WorkflowRun) StatusString() (string, bool) {
	raw := bytes.TrimSpace(r.Status)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// WorkflowRuns is the run-listing response body
type WorkflowRuns struct {
	TotalCount   int           `json:"total_count"`
	WorkflowRuns []WorkflowRun `json:"workflow_runs"`
}

// Artifact is a named bundle attached to a workflow run
type Artifact struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	SizeInBytes        int64  `json:"size_in_bytes"`
	ArchiveDownloadURL string `json:"archive_download_url"`
	Expired            bool   `json:"expired"`
}

// ArtifactList is the artifact-listing response body
type ArtifactList struct {
	TotalCount int        `json:"total_count"`
	Artifacts  []Artifact `json:"artifacts"`
}

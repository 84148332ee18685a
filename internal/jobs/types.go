package jobs

import (
	"encoding/json"
	"fmt"
)

// IngestScope is the parameter set of an ingest_repository job.
type IngestScope struct {
	Source string `json:"source"`
}

// ParseIngestScope parses the scope JSON from a job.
func ParseIngestScope(scopeJSON string) (*IngestScope, error) {
	if scopeJSON == "" {
		return nil, fmt.Errorf("ingest job has no scope")
	}
	var scope IngestScope
	if err := json.Unmarshal([]byte(scopeJSON), &scope); err != nil {
		return nil, err
	}
	if scope.Source == "" {
		return nil, fmt.Errorf("ingest job has no source")
	}
	return &scope, nil
}

// IngestResult is stored on a completed ingest_repository job.
type IngestResult struct {
	SessionID string   `json:"sessionId"`
	Files     int      `json:"files"`
	Fragments int      `json:"fragments"`
	Duration  string   `json:"duration"`
	Warnings  []string `json:"warnings,omitempty"`
	Instance  string   `json:"instance,omitempty"` // engine instance that owns SessionID
}

// ParseIngestResult parses the result JSON of a completed job. An empty string yields nil.
func ParseIngestResult(resultJSON string) (*IngestResult, error) {
	if resultJSON == "" {
		return nil, nil
	}
	var result IngestResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

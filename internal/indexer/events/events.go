// Package events defines the Kafka payloads exchanged by the index worker:
// jobs it consumes and completion notices it publishes.
package events

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/indexgen/pkg/errors"
)

// IndexJob asks a worker to index the file at InputPath and write the report
// to OutputPath. Workers of zero means the worker's configured default.
type IndexJob struct {
	JobID      string `json:"job_id"`
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
	Workers    int    `json:"workers,omitempty"`
}

// IndexComplete is published after every run, successful or not.
type IndexComplete struct {
	JobID       string    `json:"job_id"`
	Source      string    `json:"source"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	OutputPath  string    `json:"output_path,omitempty"`
	Workers     int       `json:"workers"`
	Lines       int       `json:"lines"`
	Words       int       `json:"words"`
	Occurrences int       `json:"occurrences"`
	Skipped     int       `json:"skipped"`
	DurationMS  int64     `json:"duration_ms"`
	CompletedAt time.Time `json:"completed_at"`
}

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

// Unwrap lets callers match validation failures with ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// Validate checks that the job names both files and a usable worker count.
func (j *IndexJob) Validate() error {
	errs := make(map[string]string)
	if strings.TrimSpace(j.JobID) == "" {
		errs["job_id"] = "job_id is required"
	}
	if strings.TrimSpace(j.InputPath) == "" {
		errs["input_path"] = "input_path is required"
	}
	if strings.TrimSpace(j.OutputPath) == "" {
		errs["output_path"] = "output_path is required"
	} else if j.OutputPath == j.InputPath {
		errs["output_path"] = "output_path must differ from input_path"
	}
	if j.Workers != 0 && (j.Workers < config.MinWorkers || j.Workers > config.MaxWorkers) {
		errs["workers"] = fmt.Sprintf("workers must be between %d and %d", config.MinWorkers, config.MaxWorkers)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

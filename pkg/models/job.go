package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type JobState string

const (
	StatePending    JobState = "pending"
	StateProcessing JobState = "processing"
	StateCompleted  JobState = "completed"
	StateFailed     JobState = "failed"
	StateDead       JobState = "dead"
)

var AllStates = []JobState{
	StatePending,
	StateProcessing,
	StateCompleted,
	StateFailed,
	StateDead,
}

func (s JobState) String() string { return string(s) }

// ParseState maps a user-supplied string to a JobState.
func ParseState(value string) (JobState, error) {
	s := JobState(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range AllStates {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown job state: %s", value)
}

// localTimeLayout is ISO-8601 local date-time without a zone offset,
// with an optional fractional-second part.
const localTimeLayout = "2006-01-02T15:04:05.999999999"

// LocalTime is a time.Time that marshals to local date-time without a
// timezone, matching the on-disk format of the jobs file.
type LocalTime struct {
	time.Time
}

func Now() LocalTime { return LocalTime{time.Now()} }

func At(t time.Time) LocalTime { return LocalTime{t} }

func (t LocalTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.Format(localTimeLayout) + `"`), nil
}

func (t *LocalTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	parsed, err := time.ParseInLocation(localTimeLayout, s, time.Local)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// Job is the single record the queue tracks. The authoritative copy
// lives in the store; the pending channel and workers carry value
// snapshots of it.
type Job struct {
	ID           string     `json:"id"`
	Command      string     `json:"command"`
	State        JobState   `json:"state"`
	Attempts     int        `json:"attempts"`
	MaxRetries   int        `json:"max_retries"`
	CreatedAt    LocalTime  `json:"created_at"`
	UpdatedAt    LocalTime  `json:"updated_at"`
	ErrorMessage *string    `json:"error_message"`
	NextRetryAt  *LocalTime `json:"next_retry_at"`
}

// NewJob creates a pending job with a fresh random id.
func NewJob(command string, maxRetries int) Job {
	now := Now()
	return Job{
		ID:         uuid.NewString(),
		Command:    command,
		State:      StatePending,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (j *Job) MarkProcessing(now time.Time) {
	j.State = StateProcessing
	j.UpdatedAt = At(now)
}

func (j *Job) MarkCompleted(now time.Time) {
	j.State = StateCompleted
	j.UpdatedAt = At(now)
	j.ErrorMessage = nil
	j.NextRetryAt = nil
}

// MarkFailed records a failed attempt that still has retry budget left.
func (j *Job) MarkFailed(reason string, nextRetryAt time.Time, now time.Time) {
	j.State = StateFailed
	j.Attempts++
	j.UpdatedAt = At(now)
	j.ErrorMessage = &reason
	next := At(nextRetryAt)
	j.NextRetryAt = &next
}

// MarkDead records a failed attempt that exhausted the retry budget.
func (j *Job) MarkDead(reason string, now time.Time) {
	j.State = StateDead
	j.Attempts++
	j.UpdatedAt = At(now)
	j.ErrorMessage = &reason
	j.NextRetryAt = nil
}

// ResetForRetry returns a failed job to the pending state. The attempt
// counter is untouched; it counts failures, not attempts started.
func (j *Job) ResetForRetry(now time.Time) {
	j.State = StatePending
	j.UpdatedAt = At(now)
	j.ErrorMessage = nil
	j.NextRetryAt = nil
}

// ReadyForRetry reports whether a failed job's backoff delay has
// elapsed. An unset retry time is treated as immediately ready.
func (j Job) ReadyForRetry(now time.Time) bool {
	if j.State != StateFailed {
		return false
	}
	return j.NextRetryAt == nil || !j.NextRetryAt.After(now)
}

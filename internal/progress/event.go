package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes which crawl milestone an Event records.
type Stage string

// Supported progress stages.
const (
	StageRunStart       Stage = "RUN_START"
	StageRunDone        Stage = "RUN_DONE"
	StageTaskStart      Stage = "TASK_START"
	StageTaskDone       Stage = "TASK_DONE"
	StageFetchFailed    Stage = "FETCH_FAILED"
	StageClaimFailed    Stage = "CLAIM_FAILED"
	StageSubmitRejected Stage = "SUBMIT_REJECTED"
)

// Event captures a single crawl milestone.
type Event struct {
	RunID uuid.UUID
	TS    time.Time
	Stage Stage
	// URL is the task address, or the rejected child address for
	// SUBMIT_REJECTED and CLAIM_FAILED.
	URL   string
	Depth int
	// Links counts candidate links seen on the page (TASK_DONE only).
	Links int
	// Children counts tasks submitted for this page (TASK_DONE only).
	Children int
	Dur      time.Duration
	// Note carries the error text for failure stages.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StageTaskStart, StageTaskDone, StageFetchFailed, StageClaimFailed, StageSubmitRejected:
		if e.URL == "" {
			return fmt.Errorf("%s requires url", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Depth < 0 {
		return errors.New("depth must be >= 0")
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// Failure reports whether the event records a failed or dropped unit of work.
func (e Event) Failure() bool {
	switch e.Stage {
	case StageFetchFailed, StageClaimFailed, StageSubmitRejected:
		return true
	default:
		return false
	}
}

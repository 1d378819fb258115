package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/YusefSaid/Shell-scripting/pkg/platform"
)

// StepResult is one recorded outcome of a step for one resource.
type StepResult struct {
	Step     Step          `json:"step"`
	Resource string        `json:"resource,omitempty"`
	Status   StepStatus    `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Error    *EngineError  `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Failed reports whether the result records a failure.
func (r StepResult) Failed() bool {
	return r.Status == StepStatusFailed
}

// Report is the ordered record of one convergence run.
type Report struct {
	ID          string            `json:"id"`
	Host        HostFacts         `json:"host"`
	Profile     *platform.Profile `json:"profile,omitempty"`
	Users       []string          `json:"users"`
	Groups      []string          `json:"groups"`
	MTU         int               `json:"mtu"`
	Steps       []StepResult      `json:"steps"`
	State       RunState          `json:"state"`
	AbortReason string            `json:"abort_reason,omitempty"`
	Error       *EngineError      `json:"error,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
}

// NewReport creates a running report for desired.
func NewReport(desired DesiredState) *Report {
	return &Report{
		ID:        uuid.New().String(),
		Users:     desired.Users(),
		Groups:    desired.Groups(),
		MTU:       desired.MTU(),
		Steps:     []StepResult{},
		State:     RunStateRunning,
		StartedAt: time.Now().UTC(),
	}
}

// Append records a step result.
func (r *Report) Append(res StepResult) {
	r.Steps = append(r.Steps, res)
}

// Failures returns every failed step result in order.
func (r *Report) Failures() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Failed() {
			out = append(out, s)
		}
	}
	return out
}

// Count returns how many results have status.
func (r *Report) Count(status StepStatus) int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == status {
			n++
		}
	}
	return n
}

// Changed reports whether any result applied a change.
func (r *Report) Changed() bool {
	return r.Count(StepStatusApplied) > 0
}

// ResultsFor returns the results recorded for step.
func (r *Report) ResultsFor(step Step) []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Step == step {
			out = append(out, s)
		}
	}
	return out
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Report) finish(state RunState, err *EngineError) {
	r.State = state
	r.FinishedAt = time.Now().UTC()
	if err != nil {
		r.Error = err
		r.AbortReason = err.Error()
	}
}

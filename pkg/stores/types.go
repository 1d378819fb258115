package stores

import (
	"context"
	"time"

	"github.com/YusefSaid/Shell-scripting/pkg/engine"
)

// Run is one journaled convergence run.
type Run struct {
	ID               string       `json:"id"`
	Hostname         string       `json:"hostname"`
	KernelVersion    string       `json:"kernel_version,omitempty"`
	Profile          string       `json:"profile"`
	State            string       `json:"state"`
	AbortReason      string       `json:"abort_reason,omitempty"`
	ErrorCode        string       `json:"error_code,omitempty"`
	Users            []string     `json:"users"`
	Groups           []string     `json:"groups"`
	MTU              int          `json:"mtu"`
	Applied          int          `json:"applied"`
	AlreadySatisfied int          `json:"already_satisfied"`
	Failed           int          `json:"failed"`
	StartedAt        time.Time    `json:"started_at"`
	FinishedAt       time.Time    `json:"finished_at"`
	Steps            []StepRecord `json:"steps,omitempty"`
}

// Duration returns the wall time of the run.
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// StepRecord is one journaled step result.
type StepRecord struct {
	Seq        int    `json:"seq"`
	Step       string `json:"step"`
	Resource   string `json:"resource,omitempty"`
	Status     string `json:"status"`
	Detail     string `json:"detail,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// ListOptions filters ListRuns.
type ListOptions struct {
	// Limit caps the number of runs returned. Zero means 20.
	Limit int

	// State restricts results to DONE or ABORTED runs.
	State string
}

// Journal is the run history store.
type Journal interface {
	Init(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error

	RecordRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, opts ListOptions) ([]*Run, error)
	PruneRuns(ctx context.Context, keep int) (int64, error)

	HealthCheck(ctx context.Context) error
}

// RunFromReport converts a finished engine report into a journal record.
func RunFromReport(report *engine.Report) *Run {
	run := &Run{
		ID:               report.ID,
		Hostname:         report.Host.Hostname,
		KernelVersion:    report.Host.KernelVersion,
		State:            string(report.State),
		AbortReason:      report.AbortReason,
		Users:            report.Users,
		Groups:           report.Groups,
		MTU:              report.MTU,
		Applied:          report.Count(engine.StepStatusApplied),
		AlreadySatisfied: report.Count(engine.StepStatusAlreadySatisfied),
		Failed:           report.Count(engine.StepStatusFailed),
		StartedAt:        report.StartedAt,
		FinishedAt:       report.FinishedAt,
	}
	if report.Profile != nil {
		run.Profile = report.Profile.Name
	}
	if report.Error != nil {
		run.ErrorCode = report.Error.Code
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}

	for i, s := range report.Steps {
		rec := StepRecord{
			Seq:        i + 1,
			Step:       string(s.Step),
			Resource:   s.Resource,
			Status:     string(s.Status),
			Detail:     s.Detail,
			DurationMS: s.Duration.Milliseconds(),
		}
		if s.Error != nil {
			rec.ErrorCode = s.Error.Code
		}
		run.Steps = append(run.Steps, rec)
	}
	return run
}

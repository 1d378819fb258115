package engine

import "fmt"

// Step names one stage of the convergence sequence.
type Step string

// The fixed convergence sequence, in execution order.
const (
	StepResolveProfile     Step = "RESOLVE_PROFILE"
	StepInstallRuntime     Step = "INSTALL_RUNTIME"
	StepReconcileUsers     Step = "RECONCILE_USERS"
	StepReconcileGroups    Step = "RECONCILE_GROUPS_AND_MEMBERSHIP"
	StepMergeConfigMTU     Step = "MERGE_CONFIG(mtu)"
	StepMergeConfigLogging Step = "MERGE_CONFIG(logging)"
	StepRestartService     Step = "RESTART_SERVICE"
	StepVerifyRuntime      Step = "VERIFY_RUNTIME"
)

// Sequence lists every step in the order Converge runs them.
// StepVerifyRuntime only runs when a verifier is configured.
var Sequence = []Step{
	StepResolveProfile,
	StepInstallRuntime,
	StepReconcileUsers,
	StepReconcileGroups,
	StepMergeConfigMTU,
	StepMergeConfigLogging,
	StepRestartService,
	StepVerifyRuntime,
}

// StepStatus is the outcome recorded for one step result.
type StepStatus string

const (
	// StepStatusApplied indicates the step changed the host.
	StepStatusApplied StepStatus = "APPLIED"

	// StepStatusAlreadySatisfied indicates the host already matched.
	StepStatusAlreadySatisfied StepStatus = "ALREADY_SATISFIED"

	// StepStatusFailed indicates the step failed for this resource.
	StepStatusFailed StepStatus = "FAILED"
)

// Validate checks if the step status is valid.
func (s StepStatus) Validate() error {
	switch s {
	case StepStatusApplied, StepStatusAlreadySatisfied, StepStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid step status: %s", s)
	}
}

// RunState is the state of a convergence run.
type RunState string

const (
	// RunStateRunning indicates the run has not reached a terminal state.
	RunStateRunning RunState = "RUNNING"

	// RunStateDone indicates every step ran; non-fatal failures may be
	// recorded.
	RunStateDone RunState = "DONE"

	// RunStateAborted indicates a fatal error stopped the run.
	RunStateAborted RunState = "ABORTED"
)

// IsTerminal returns true if the run state is final.
func (s RunState) IsTerminal() bool {
	return s == RunStateDone || s == RunStateAborted
}

// Validate checks if the run state is valid.
func (s RunState) Validate() error {
	switch s {
	case RunStateRunning, RunStateDone, RunStateAborted:
		return nil
	default:
		return fmt.Errorf("invalid run state: %s", s)
	}
}

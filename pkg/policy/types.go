package policy

import (
	"time"

	"github.com/YusefSaid/Shell-scripting/pkg/engine"
	"github.com/YusefSaid/Shell-scripting/pkg/resources"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for errors that block the run.
	SeverityError Severity = "error"
)

// Blocking reports whether the severity refuses the run.
func (s Severity) Blocking() bool {
	return s == SeverityError
}

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code. Violations are read from the
	// deny set of its package.
	Rego string `json:"rego,omitempty"`

	// Severity is the default severity for violations that do not set one.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Resource names the offending user, group or setting, if any.
	Resource string `json:"resource,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// Result represents the result of policy evaluation.
type Result struct {
	// Allowed is false when any violation has error severity.
	Allowed bool `json:"allowed"`

	// Violations lists every violation in policy name order.
	Violations []Violation `json:"violations,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Blocking returns the violations that refuse the run.
func (r *Result) Blocking() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity.Blocking() {
			out = append(out, v)
		}
	}
	return out
}

// Warnings returns the violations that do not refuse the run.
func (r *Result) Warnings() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if !v.Severity.Blocking() {
			out = append(out, v)
		}
	}
	return out
}

// Input is the document policies are evaluated against.
type Input struct {
	Users            []string `json:"users"`
	Groups           []string `json:"groups"`
	NormalizedGroups []string `json:"normalized_groups"`
	MTU              int      `json:"mtu"`
	Context          Context  `json:"context"`
}

// Context provides context information for policy evaluation.
type Context struct {
	// Hostname is the host being converged.
	Hostname string `json:"hostname,omitempty"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`
}

// InputFromDesired builds the policy input for a desired state.
func InputFromDesired(desired engine.DesiredState, hostname string) Input {
	groups := desired.Groups()
	normalized := make([]string, len(groups))
	for i, g := range groups {
		normalized[i] = resources.NormalizeGroupName(g)
	}

	users := desired.Users()
	if users == nil {
		users = []string{}
	}
	if groups == nil {
		groups = []string{}
	}

	return Input{
		Users:            users,
		Groups:           groups,
		NormalizedGroups: normalized,
		MTU:              desired.MTU(),
		Context: Context{
			Hostname:  hostname,
			Timestamp: time.Now().UTC(),
		},
	}
}

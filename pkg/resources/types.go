package resources

import (
	"fmt"
	"strings"
)

// Outcome is the non-error result of an idempotent operation.
type Outcome string

const (
	// Applied means the operation changed host state.
	Applied Outcome = "APPLIED"

	// AlreadySatisfied means the host already matched and nothing ran.
	AlreadySatisfied Outcome = "ALREADY_SATISFIED"
)

// Changed reports whether the outcome modified the host.
func (o Outcome) Changed() bool {
	return o == Applied
}

// UserSpec names one desired local account.
type UserSpec struct {
	Name string `json:"name"`
}

// GroupSpec names one desired local group. Build it with NewGroupSpec so the
// name is normalized exactly once.
type GroupSpec struct {
	Name string `json:"name"`
}

// MembershipSpec names one desired user-in-group relation.
type MembershipSpec struct {
	User  string `json:"user"`
	Group string `json:"group"`
}

// String implements fmt.Stringer.
func (m MembershipSpec) String() string {
	return m.User + ":" + m.Group
}

// NewUserSpec creates a UserSpec.
func NewUserSpec(name string) UserSpec {
	return UserSpec{Name: strings.TrimSpace(name)}
}

// NewGroupSpec creates a GroupSpec with a normalized name.
func NewGroupSpec(name string) GroupSpec {
	return GroupSpec{Name: NormalizeGroupName(name)}
}

// NewMembershipSpec pairs a user with an already-normalized group.
func NewMembershipSpec(user UserSpec, group GroupSpec) MembershipSpec {
	return MembershipSpec{User: user.Name, Group: group.Name}
}

// NormalizeGroupName trims name and replaces every internal whitespace run
// with a single underscore. It is total and idempotent.
func NormalizeGroupName(name string) string {
	return strings.Join(strings.Fields(name), "_")
}

// AttemptCause classifies why one candidate primitive did not succeed.
type AttemptCause string

const (
	// CauseUnavailable means the binary is not installed on the host.
	CauseUnavailable AttemptCause = "unavailable"

	// CauseFailed means the binary ran and exited non-zero.
	CauseFailed AttemptCause = "failed"

	// CauseError means the binary could not be started or run.
	CauseError AttemptCause = "error"
)

// Attempt records one failed candidate primitive.
type Attempt struct {
	Command string       `json:"command"`
	Cause   AttemptCause `json:"cause"`
	Detail  string       `json:"detail,omitempty"`
}

// String implements fmt.Stringer.
func (a Attempt) String() string {
	if a.Detail == "" {
		return fmt.Sprintf("%s (%s)", a.Command, a.Cause)
	}
	return fmt.Sprintf("%s (%s: %s)", a.Command, a.Cause, a.Detail)
}

func joinAttempts(attempts []Attempt) string {
	parts := make([]string, len(attempts))
	for i, a := range attempts {
		parts[i] = a.String()
	}
	return strings.Join(parts, "; ")
}

// InstallError reports a failed runtime installation or service start.
type InstallError struct {
	Stage    string
	Attempts []Attempt
	Err      error
}

// Error implements the error interface.
func (e *InstallError) Error() string {
	msg := "runtime installation failed at " + e.Stage
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if len(e.Attempts) > 0 {
		msg += " [" + joinAttempts(e.Attempts) + "]"
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *InstallError) Unwrap() error {
	return e.Err
}

// MembershipError reports that every membership primitive failed.
type MembershipError struct {
	Spec     MembershipSpec
	Attempts []Attempt
}

// Error implements the error interface.
func (e *MembershipError) Error() string {
	return fmt.Sprintf("failed to add %s to group %s: %s", e.Spec.User, e.Spec.Group, joinAttempts(e.Attempts))
}

// AccountError reports a failed user or group creation.
type AccountError struct {
	Kind string
	Name string
	Err  error
}

// Error implements the error interface.
func (e *AccountError) Error() string {
	return fmt.Sprintf("failed to create %s %s: %v", e.Kind, e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *AccountError) Unwrap() error {
	return e.Err
}

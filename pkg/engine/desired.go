package engine

import (
	"fmt"
	"slices"
	"strings"
)

// DefaultMTU is the daemon MTU used when none is requested.
const DefaultMTU = 1500

// DesiredState is the immutable input to one convergence run.
type DesiredState struct {
	users   []string
	groups  []string
	mtu     int
	verbose bool
}

// NewDesiredState builds a desired state. The slices are copied; a zero
// mtu selects DefaultMTU.
func NewDesiredState(users, groups []string, mtu int, verbose bool) DesiredState {
	if mtu == 0 {
		mtu = DefaultMTU
	}
	return DesiredState{
		users:   slices.Clone(users),
		groups:  slices.Clone(groups),
		mtu:     mtu,
		verbose: verbose,
	}
}

// ParseList splits a whitespace-separated name list.
func ParseList(s string) []string {
	return strings.Fields(s)
}

// Users returns the desired user names in input order.
func (d DesiredState) Users() []string { return slices.Clone(d.users) }

// Groups returns the desired group names in input order, unnormalized.
func (d DesiredState) Groups() []string { return slices.Clone(d.groups) }

// MTU returns the desired daemon MTU.
func (d DesiredState) MTU() int {
	if d.mtu == 0 {
		return DefaultMTU
	}
	return d.mtu
}

// Verbose reports whether informational progress should be surfaced.
func (d DesiredState) Verbose() bool { return d.verbose }

// Validate rejects values no dialect can act on.
func (d DesiredState) Validate() error {
	if m := d.MTU(); m < 68 || m > 65535 {
		return fmt.Errorf("mtu %d out of range [68, 65535]", m)
	}
	for _, u := range d.users {
		if strings.TrimSpace(u) == "" || strings.ContainsAny(u, ": \t\n") {
			return fmt.Errorf("invalid user name %q", u)
		}
	}
	for _, g := range d.groups {
		if strings.TrimSpace(g) == "" || strings.Contains(g, ":") {
			return fmt.Errorf("invalid group name %q", g)
		}
	}
	return nil
}

// Package resources implements the idempotent host operations the
// convergence engine performs: runtime package installation, service
// enable-and-start and restart, and local user, group and membership
// management.
//
// Every operation is check-then-act. The check reads the current host state
// (package database, passwd and group files, init-system status) and the act
// step only runs when the state differs, so repeated calls report
// AlreadySatisfied instead of changing anything.
//
// Operations are grouped per platform dialect. NewDialect picks AptDialect,
// DnfDialect or ApkDialect from a resolved platform.Profile; the set is
// closed and callers only see the Dialect interface.
//
// Where more than one command can achieve a goal (membership, dnf repository
// registration) the candidates are tried in order and the first success
// wins. When all fail, the returned error lists every attempt and whether
// the binary was unavailable, could not be started, or ran and failed.
package resources

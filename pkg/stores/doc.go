// Package stores keeps a local journal of convergence runs in SQLite.
// Every run is stored with its ordered step results so operators can see
// what a host looked like before and after each invocation.
package stores

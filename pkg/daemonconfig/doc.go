// Package daemonconfig merges key/value upserts into the container runtime's
// JSON daemon configuration without disturbing keys it does not manage.
//
// The merge is structural: the file is parsed into an ordered Document,
// upserts replace or append top-level keys, and the result is rendered in a
// canonical form (two-space indentation, trailing newline). Existing keys
// keep their position and new keys are appended in upsert order, so merging
// the same upserts twice produces byte-identical output.
//
// Store wraps the file transaction. A missing file is treated as an empty
// document; a file that is not a JSON object is a CorruptError and is never
// overwritten.
package daemonconfig

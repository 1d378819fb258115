// Package config loads the optional desired-state file.
//
// The file is YAML. users and groups accept a list or a single
// whitespace-separated string, matching the --users and --groups flags:
//
//	users: Ed Kelly
//	groups:
//	  - Crew
//	  - Ship Officers
//	mtu: 1442
//	journal:
//	  path: /var/lib/converge/journal.db
//	  keep: 50
//	tracing:
//	  exporter: otlp
//	  endpoint: collector:4317
//	verify_runtime:
//	  enabled: true
//	  timeout: 45s
//
// Unknown keys are rejected. Fields are validated with struct tags; an
// invalid file is reported with every failing key before any host work.
package config

package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the optional desired-state file read with --config.
type File struct {
	// Users are the local accounts to ensure.
	Users NameList `yaml:"users" validate:"dive,username"`

	// Groups are the groups to ensure, before normalization.
	Groups NameList `yaml:"groups" validate:"dive,groupname"`

	// MTU is the daemon MTU. An absent key keeps engine.DefaultMTU.
	MTU int `yaml:"mtu" validate:"min=68,max=65535"`

	// Verbose surfaces informational progress.
	Verbose bool `yaml:"verbose"`

	Logging       LoggingSection `yaml:"logging"`
	Journal       JournalSection `yaml:"journal"`
	Metrics       MetricsSection `yaml:"metrics"`
	Tracing       TracingSection `yaml:"tracing"`
	Policy        PolicySection  `yaml:"policy"`
	VerifyRuntime VerifySection  `yaml:"verify_runtime"`
}

// LoggingSection configures the log output.
type LoggingSection struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=console json"`
	Output string `yaml:"output"`
}

// JournalSection configures the run journal.
type JournalSection struct {
	// Path enables the journal when set.
	Path string `yaml:"path"`

	// Keep prunes all but the newest Keep runs after recording. Zero keeps
	// everything.
	Keep int `yaml:"keep" validate:"min=0"`
}

// MetricsSection configures the metrics textfile.
type MetricsSection struct {
	Textfile string `yaml:"textfile"`
}

// TracingSection configures span export.
type TracingSection struct {
	Exporter string `yaml:"exporter" validate:"omitempty,oneof=none stdout otlp"`
	Endpoint string `yaml:"endpoint" validate:"required_if=Exporter otlp"`

	// Insecure disables TLS for otlp. Unset keeps the default.
	Insecure *bool `yaml:"insecure"`
}

// PolicySection configures admission policies.
type PolicySection struct {
	// Paths are extra .rego or .json files or directories.
	Paths []string `yaml:"paths" validate:"dive,required"`

	// Disable names built-in or loaded policies to skip.
	Disable []string `yaml:"disable" validate:"dive,required"`
}

// VerifySection configures the VERIFY_RUNTIME step.
type VerifySection struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`
}

// NameList accepts either a YAML sequence or a whitespace-separated string.
type NameList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *NameList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*l = strings.Fields(s)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("line %d: expected a list or a string", value.Line)
	}
}

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/YusefSaid/Shell-scripting/pkg/engine"
	"github.com/YusefSaid/Shell-scripting/pkg/telemetry"
)

// Default returns the configuration used when no file is given.
func Default() *File {
	return &File{MTU: engine.DefaultMTU}
}

// Load reads and validates a desired-state file. An empty path returns
// Default(). Unknown keys are rejected.
func Load(path string) (*File, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates desired-state YAML.
func Parse(data []byte) (*File, error) {
	f := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report YAML key names instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s != "" && !strings.ContainsFunc(s, func(r rune) bool {
			return r == ':' || unicode.IsSpace(r)
		})
	})
	_ = v.RegisterValidation("groupname", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return strings.TrimSpace(s) != "" && !strings.Contains(s, ":")
	})

	return v
}

// Validate checks the file against its field constraints.
func (f *File) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "File.")
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("%s must be at least %s, got %v", field, fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s, got %v", field, fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "username", "groupname":
		return fmt.Sprintf("%s: invalid %s %q", field, fe.Tag(), fe.Value())
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// DesiredState converts the file into the immutable engine input.
func (f *File) DesiredState() engine.DesiredState {
	return engine.NewDesiredState(f.Users, f.Groups, f.MTU, f.Verbose)
}

// Telemetry overlays the file's logging, metrics and tracing sections on
// the default telemetry configuration.
func (f *File) Telemetry() *telemetry.Config {
	cfg := telemetry.DefaultConfig()

	if f.Verbose {
		cfg.Logging.Level = "debug"
	}
	if f.Logging.Level != "" {
		cfg.Logging.Level = f.Logging.Level
	}
	if f.Logging.Format != "" {
		cfg.Logging.Format = f.Logging.Format
	}
	if f.Logging.Output != "" {
		cfg.Logging.Output = f.Logging.Output
	}

	cfg.Metrics.TextfilePath = f.Metrics.Textfile

	if f.Tracing.Exporter != "" {
		cfg.Tracing.Exporter = f.Tracing.Exporter
	}
	cfg.Tracing.Endpoint = f.Tracing.Endpoint
	if f.Tracing.Insecure != nil {
		cfg.Tracing.Insecure = *f.Tracing.Insecure
	}

	return cfg
}

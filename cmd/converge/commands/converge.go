package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/YusefSaid/Shell-scripting/pkg/config"
	"github.com/YusefSaid/Shell-scripting/pkg/engine"
	"github.com/YusefSaid/Shell-scripting/pkg/executor"
	"github.com/YusefSaid/Shell-scripting/pkg/policy"
	"github.com/YusefSaid/Shell-scripting/pkg/runtimecheck"
	"github.com/YusefSaid/Shell-scripting/pkg/stores"
	"github.com/YusefSaid/Shell-scripting/pkg/telemetry"
)

type convergeOptions struct {
	users      string
	groups     string
	mtu        int
	verbose    bool
	configPath string
	jsonOutput bool

	journalPath     string
	journalKeep     int
	metricsTextfile string
	traceExporter   string
	traceEndpoint   string
	policyPaths     []string
	verifyRuntime   bool
	verifyTimeout   time.Duration

	// Hidden flags for running against a staged root filesystem.
	root         string
	identityPath string
	daemonConfig string
	logFormat    string
}

func (o *convergeOptions) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&o.users, "users", "", "space-separated user names to ensure")
	flags.StringVar(&o.groups, "groups", "", "space-separated group names to ensure; every user joins every group")
	flags.IntVar(&o.mtu, "mtu", engine.DefaultMTU, "daemon MTU")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "log every step")
	flags.StringVarP(&o.configPath, "config", "c", "", "desired-state YAML file; flags override its values")
	flags.BoolVar(&o.jsonOutput, "json", false, "print the run report as JSON")

	flags.StringVar(&o.journalPath, "journal", "", "record the run in this SQLite journal")
	flags.IntVar(&o.journalKeep, "journal-keep", 0, "prune the journal to the newest N runs (0 keeps all)")
	flags.StringVar(&o.metricsTextfile, "metrics-textfile", "", "write run metrics to this node-exporter textfile")
	flags.StringVar(&o.traceExporter, "trace-exporter", "none", "span exporter: none, stdout or otlp")
	flags.StringVar(&o.traceEndpoint, "trace-endpoint", "", "OTLP collector address (host:port)")
	flags.StringSliceVar(&o.policyPaths, "policy", nil, "extra .rego or .json policy file or directory (repeatable)")
	flags.BoolVar(&o.verifyRuntime, "verify-runtime", false, "check the restarted daemon through its API")
	flags.DurationVar(&o.verifyTimeout, "verify-timeout", runtimecheck.DefaultTimeout, "how long to wait for the daemon API")

	flags.StringVar(&o.root, "root", "/", "filesystem root of the target host")
	flags.StringVar(&o.identityPath, "os-release", "", "host identity file (default <root>/etc/os-release)")
	flags.StringVar(&o.daemonConfig, "daemon-config", "", "daemon configuration file (default <root>/etc/docker/daemon.json)")
	flags.StringVar(&o.logFormat, "log-format", "", "log format: console or json")
	for _, name := range []string{"root", "os-release", "daemon-config", "log-format"} {
		_ = flags.MarkHidden(name)
	}
}

// load reads the config file and overlays every flag the user set.
func (o *convergeOptions) load(cmd *cobra.Command) (*config.File, error) {
	f, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("users") {
		f.Users = engine.ParseList(o.users)
	}
	if flags.Changed("groups") {
		f.Groups = engine.ParseList(o.groups)
	}
	if flags.Changed("mtu") {
		f.MTU = o.mtu
	}
	if flags.Changed("verbose") {
		f.Verbose = o.verbose
	}
	if flags.Changed("journal") {
		f.Journal.Path = o.journalPath
	}
	if flags.Changed("journal-keep") {
		f.Journal.Keep = o.journalKeep
	}
	if flags.Changed("metrics-textfile") {
		f.Metrics.Textfile = o.metricsTextfile
	}
	if flags.Changed("trace-exporter") {
		f.Tracing.Exporter = o.traceExporter
	}
	if flags.Changed("trace-endpoint") {
		f.Tracing.Endpoint = o.traceEndpoint
	}
	f.Policy.Paths = append(f.Policy.Paths, o.policyPaths...)
	if flags.Changed("verify-runtime") {
		f.VerifyRuntime.Enabled = o.verifyRuntime
	}
	if flags.Changed("verify-timeout") || f.VerifyRuntime.Timeout == 0 {
		f.VerifyRuntime.Timeout = o.verifyTimeout
	}
	if flags.Changed("log-format") {
		f.Logging.Format = o.logFormat
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func runConverge(cmd *cobra.Command, env *environment, opts *convergeOptions) error {
	ctx := cmd.Context()

	f, err := opts.load(cmd)
	if err != nil {
		return err
	}
	desired := f.DesiredState()
	if err := desired.Validate(); err != nil {
		return err
	}

	tcfg := f.Telemetry()
	tcfg.ServiceVersion = env.build.Version
	tel, err := telemetry.NewTelemetryWithWriter(tcfg, env.stderr)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(env.stderr, "Error: %v\n", err)
		}
	}()
	logger := tel.Logger.Zerolog()
	ctx = tel.WithContext(ctx)

	if err := admit(ctx, env, f, desired, logger); err != nil {
		return err
	}

	runner := env.runner
	if runner == nil {
		runner = executor.NewLocal(logger, "DEBIAN_FRONTEND=noninteractive")
	}

	engineOpts := engine.Options{
		Root:         opts.root,
		IdentityPath: opts.identityPath,
		ConfigPath:   opts.daemonConfig,
		Runner:       runner,
		Logger:       logger,
		Metrics:      tel.Metrics,
		Tracer:       tel.Tracer,
		Facts:        env.facts,
	}
	if f.VerifyRuntime.Enabled {
		checker, err := runtimecheck.NewFromEnv(logger, runtimecheck.WithTimeout(f.VerifyRuntime.Timeout))
		if err != nil {
			return fmt.Errorf("failed to create runtime checker: %w", err)
		}
		defer checker.Close()
		engineOpts.Verifier = checker
	}

	orch, err := engine.NewOrchestrator(engineOpts)
	if err != nil {
		return err
	}

	report, runErr := orch.Converge(ctx, desired)

	if f.Journal.Path != "" {
		if err := record(ctx, f.Journal, report); err != nil {
			logger.Warn().Err(err).Str("journal", f.Journal.Path).Msg("Failed to record run")
		}
	}

	if opts.jsonOutput {
		err = engine.RenderJSON(env.stdout, report)
	} else {
		err = engine.RenderSummary(env.stdout, report)
	}
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if runErr != nil {
		reportFatal(env.stderr, runErr)
		return errReported
	}
	return nil
}

// admit evaluates admission policies. Error-severity violations refuse the
// run before anything on the host changes.
func admit(ctx context.Context, env *environment, f *config.File, desired engine.DesiredState, logger zerolog.Logger) error {
	pe, err := policy.NewEngine(logger)
	if err != nil {
		return err
	}
	if len(f.Policy.Paths) > 0 {
		if err := pe.LoadPolicies(ctx, f.Policy.Paths); err != nil {
			return err
		}
	}
	for _, name := range f.Policy.Disable {
		if err := pe.DisablePolicy(name); err != nil {
			return err
		}
	}

	hostname, _ := os.Hostname()
	result, err := pe.Evaluate(ctx, policy.InputFromDesired(desired, hostname))
	if err != nil {
		return err
	}

	for _, v := range result.Warnings() {
		ev := logger.Warn()
		if v.Severity == policy.SeverityInfo {
			ev = logger.Info()
		}
		ev.Str("policy", v.Policy).Str("resource", v.Resource).Msg(v.Message)
	}

	if !result.Allowed {
		for _, v := range result.Blocking() {
			fmt.Fprintf(env.stderr, "policy %s denied %s: %s\n", v.Policy, v.Resource, v.Message)
		}
		fmt.Fprintln(env.stderr, "refusing to converge: desired state violates policy")
		return errReported
	}
	return nil
}

func record(ctx context.Context, cfg config.JournalSection, report *engine.Report) error {
	store, err := stores.Open(ctx, cfg.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	// Record even when the run was cancelled.
	ctx = context.WithoutCancel(ctx)
	if err := store.RecordRun(ctx, stores.RunFromReport(report)); err != nil {
		return err
	}
	if cfg.Keep > 0 {
		if _, err := store.PruneRuns(ctx, cfg.Keep); err != nil {
			return err
		}
	}
	return nil
}

// reportFatal prints the cause of an aborted run with its raw diagnostics.
func reportFatal(w io.Writer, err error) {
	var ee *engine.EngineError
	if !errors.As(err, &ee) {
		fmt.Fprintf(w, "fatal: %v\n", err)
		return
	}

	fmt.Fprintf(w, "fatal: %s failed: %s\n", ee.Step, ee.Message)
	if ee.Err != nil {
		fmt.Fprintf(w, "cause: %v\n", ee.Err)
	}

	keys := make([]string, 0, len(ee.Details))
	for k := range ee.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "markers" {
			markers := fmt.Sprint(ee.Details[k])
			if markers == "" {
				markers = "(none)"
			}
			fmt.Fprintf(w, "platform markers:\n%s\n", markers)
			continue
		}
		fmt.Fprintf(w, "%s: %v\n", k, ee.Details[k])
	}
}

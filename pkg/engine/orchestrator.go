package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/YusefSaid/Shell-scripting/pkg/daemonconfig"
	"github.com/YusefSaid/Shell-scripting/pkg/executor"
	"github.com/YusefSaid/Shell-scripting/pkg/platform"
	"github.com/YusefSaid/Shell-scripting/pkg/resources"
	"github.com/YusefSaid/Shell-scripting/pkg/telemetry"
)

// DesiredLogDriver is the logging driver written by MERGE_CONFIG(logging).
const DesiredLogDriver = "json-file"

// LoggingUpserts are the keys written by MERGE_CONFIG(logging).
var LoggingUpserts = []daemonconfig.Upsert{
	{Key: daemonconfig.KeyLogDriver, Value: DesiredLogDriver},
	{Key: daemonconfig.KeyLogOpts, Value: daemonconfig.LogOpts{MaxSize: "10m", MaxFile: "3"}},
}

// Verifier checks the restarted runtime. It returns a human-readable
// detail on success.
type Verifier interface {
	Verify(ctx context.Context, wantLogDriver string) (string, error)
}

// Options configures an Orchestrator.
type Options struct {
	// IdentityPath is the host identity source. Defaults to
	// <Root>/etc/os-release.
	IdentityPath string

	// Root is the filesystem root of the target host. Defaults to "/".
	Root string

	// ConfigPath is the daemon configuration file. Defaults to
	// <Root>/etc/docker/daemon.json.
	ConfigPath string

	// Runner executes system commands. Required.
	Runner executor.Runner

	Logger  zerolog.Logger
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer

	// Verifier enables the VERIFY_RUNTIME step when set.
	Verifier Verifier

	// Facts collects host facts for the report. Defaults to CollectFacts.
	Facts FactsFunc
}

// Orchestrator drives the fixed convergence sequence against one host.
type Orchestrator struct {
	opts   Options
	store  *daemonconfig.Store
	logger zerolog.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if opts.Root == "" {
		opts.Root = "/"
	}
	if opts.IdentityPath == "" {
		opts.IdentityPath = filepath.Join(opts.Root, platform.DefaultIdentityPath)
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = filepath.Join(opts.Root, daemonconfig.DefaultPath)
	}
	if opts.Facts == nil {
		opts.Facts = CollectFacts
	}

	logger := opts.Logger.With().Str("component", "engine").Logger()
	store, err := daemonconfig.NewStore(opts.ConfigPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create config store: %w", err)
	}

	return &Orchestrator{
		opts:   opts,
		store:  store,
		logger: logger,
	}, nil
}

// run holds the state of one Converge call.
type run struct {
	desired DesiredState
	report  *Report
	dialect resources.Dialect
	logger  zerolog.Logger

	installed     bool
	configChanged bool
}

// Converge runs every step in order. A fatal error aborts the run: the
// returned report is in state ABORTED and the error is the *EngineError
// that caused it. Non-fatal failures are recorded in the report and the run
// still reaches DONE with a nil error.
func (o *Orchestrator) Converge(ctx context.Context, desired DesiredState) (*Report, error) {
	logger := o.logger
	if !desired.Verbose() && logger.GetLevel() < zerolog.WarnLevel {
		logger = logger.Level(zerolog.WarnLevel)
	}

	r := &run{
		desired: desired,
		report:  NewReport(desired),
	}
	r.logger = logger.With().Str("run_id", r.report.ID).Logger()
	r.report.Host = o.opts.Facts(ctx)

	ctx, span := o.opts.Tracer.StartRunSpan(ctx, r.report.ID)
	defer span.End()

	r.logger.Info().
		Strs("users", desired.Users()).
		Strs("groups", desired.Groups()).
		Int("mtu", desired.MTU()).
		Msg("Starting convergence run")

	steps := []struct {
		step Step
		fn   func(context.Context, *run) error
	}{
		{StepResolveProfile, o.resolveProfile},
		{StepInstallRuntime, o.installRuntime},
		{StepReconcileUsers, o.reconcileUsers},
		{StepReconcileGroups, o.reconcileGroups},
		{StepMergeConfigMTU, o.mergeMTU},
		{StepMergeConfigLogging, o.mergeLogging},
		{StepRestartService, o.restartService},
	}
	if o.opts.Verifier != nil {
		steps = append(steps, struct {
			step Step
			fn   func(context.Context, *run) error
		}{StepVerifyRuntime, o.verifyRuntime})
	}

	for _, s := range steps {
		if err := o.runStep(ctx, r, s.step, s.fn); err != nil {
			engErr := classify(s.step, "", err)
			r.report.finish(RunStateAborted, engErr)
			o.opts.Metrics.RecordError(string(engErr.Class), engErr.Code)
			o.opts.Metrics.RecordRun(string(RunStateAborted), r.report.Duration())
			span.SetAttributes(telemetry.AttrRunState.String(string(RunStateAborted)))
			telemetry.RecordError(span, engErr)

			r.logger.Error().
				Err(engErr.Err).
				Str("step", string(engErr.Step)).
				Str("code", engErr.Code).
				Msg("Convergence aborted")
			return r.report, engErr
		}
	}

	r.report.finish(RunStateDone, nil)
	o.opts.Metrics.RecordRun(string(RunStateDone), r.report.Duration())
	span.SetAttributes(telemetry.AttrRunState.String(string(RunStateDone)))
	telemetry.RecordSuccess(span)

	r.logger.Info().
		Int("applied", r.report.Count(StepStatusApplied)).
		Int("already_satisfied", r.report.Count(StepStatusAlreadySatisfied)).
		Int("failed", r.report.Count(StepStatusFailed)).
		Dur("duration", r.report.Duration()).
		Msg("Convergence complete")
	return r.report, nil
}

// runStep wraps one step in a span. Cancellation is observed between steps.
func (o *Orchestrator) runStep(ctx context.Context, r *run, step Step, fn func(context.Context, *run) error) error {
	if err := ctx.Err(); err != nil {
		return classify(step, "", err)
	}

	ctx, span := o.opts.Tracer.StartStepSpan(ctx, string(step))
	defer span.End()

	r.logger.Debug().Str("step", string(step)).Msg("Step started")
	if err := fn(ctx, r); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.RecordSuccess(span)
	return nil
}

// record appends a result and emits its log line and metric.
func (o *Orchestrator) record(r *run, res StepResult) {
	r.report.Append(res)
	o.opts.Metrics.RecordStep(string(res.Step), string(res.Status))

	var ev *zerolog.Event
	switch res.Status {
	case StepStatusApplied:
		ev = r.logger.Info()
	case StepStatusFailed:
		ev = r.logger.Warn()
	default:
		ev = r.logger.Debug()
	}
	ev.Str("step", string(res.Step)).
		Str("resource", res.Resource).
		Str("status", string(res.Status)).
		Str("detail", res.Detail).
		Msg("Step result")
}

// outcome records a successful resource outcome.
func (o *Orchestrator) outcome(r *run, step Step, resource string, outcome resources.Outcome, detail string, start time.Time) {
	status := StepStatusAlreadySatisfied
	if outcome.Changed() {
		status = StepStatusApplied
	}
	o.record(r, StepResult{
		Step:     step,
		Resource: resource,
		Status:   status,
		Detail:   detail,
		Duration: time.Since(start),
	})
}

// fail records a failed resource. Non-fatal errors are absorbed and nil is
// returned; fatal errors are returned to abort the run.
func (o *Orchestrator) fail(ctx context.Context, r *run, step Step, resource string, err error, start time.Time) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	engErr := classify(step, resource, err)
	o.record(r, StepResult{
		Step:     step,
		Resource: resource,
		Status:   StepStatusFailed,
		Detail:   rawDetail(err),
		Error:    engErr,
		Duration: time.Since(start),
	})
	if engErr.Class == ErrorClassFatal {
		return engErr
	}
	o.opts.Metrics.RecordError(string(engErr.Class), engErr.Code)
	return nil
}

func rawDetail(err error) string {
	var unsupported *platform.UnsupportedPlatformError
	if errors.As(err, &unsupported) && unsupported.Err == nil {
		return fmt.Sprintf("no profile matches host identity markers %q", unsupported.Markers)
	}
	return err.Error()
}

func (o *Orchestrator) resolveProfile(ctx context.Context, r *run) error {
	start := time.Now()
	profile, err := platform.ResolveFile(o.opts.IdentityPath)
	if err != nil {
		return o.fail(ctx, r, StepResolveProfile, o.opts.IdentityPath, err, start)
	}

	dialect, err := resources.NewDialect(profile, resources.Host{
		Runner: o.opts.Runner,
		Root:   o.opts.Root,
		Logger: r.logger,
	})
	if err != nil {
		return o.fail(ctx, r, StepResolveProfile, profile.Name, err, start)
	}

	r.report.Profile = profile
	r.dialect = dialect
	r.logger = r.logger.With().Str("profile", profile.Name).Logger()
	o.outcome(r, StepResolveProfile, profile.Name, resources.AlreadySatisfied, profile.String(), start)
	return nil
}

func (o *Orchestrator) installRuntime(ctx context.Context, r *run) error {
	start := time.Now()
	outcome, err := r.dialect.EnsureRuntimeInstalled(ctx)
	if err != nil {
		return o.fail(ctx, r, StepInstallRuntime, "package:"+resources.RuntimeService, err, start)
	}
	r.installed = outcome.Changed()
	o.outcome(r, StepInstallRuntime, "package:"+resources.RuntimeService, outcome, "", start)

	start = time.Now()
	outcome, err = r.dialect.EnsureServiceRunning(ctx)
	if err != nil {
		return o.fail(ctx, r, StepInstallRuntime, "service:"+resources.RuntimeService, err, start)
	}
	o.outcome(r, StepInstallRuntime, "service:"+resources.RuntimeService, outcome, "enabled and started", start)
	return nil
}

func (o *Orchestrator) reconcileUsers(ctx context.Context, r *run) error {
	users := r.desired.Users()
	if len(users) == 0 {
		o.outcome(r, StepReconcileUsers, "", resources.AlreadySatisfied, "no users requested", time.Now())
		return nil
	}

	for _, name := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		spec := resources.NewUserSpec(name)
		outcome, err := r.dialect.EnsureUser(ctx, spec)
		if err != nil {
			if err := o.fail(ctx, r, StepReconcileUsers, "user:"+spec.Name, err, start); err != nil {
				return err
			}
			continue
		}
		o.outcome(r, StepReconcileUsers, "user:"+spec.Name, outcome, "", start)
	}
	return nil
}

func (o *Orchestrator) reconcileGroups(ctx context.Context, r *run) error {
	groups := r.desired.Groups()
	if len(groups) == 0 {
		o.outcome(r, StepReconcileGroups, "", resources.AlreadySatisfied, "no groups requested", time.Now())
		return nil
	}

	specs := make([]resources.GroupSpec, 0, len(groups))
	for _, name := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		spec := resources.NewGroupSpec(name)
		specs = append(specs, spec)

		detail := ""
		if spec.Name != name {
			detail = fmt.Sprintf("normalized from %q", name)
		}
		outcome, err := r.dialect.EnsureGroup(ctx, spec)
		if err != nil {
			if err := o.fail(ctx, r, StepReconcileGroups, "group:"+spec.Name, err, start); err != nil {
				return err
			}
			continue
		}
		o.outcome(r, StepReconcileGroups, "group:"+spec.Name, outcome, detail, start)
	}

	for _, group := range specs {
		for _, name := range r.desired.Users() {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			spec := resources.NewMembershipSpec(resources.NewUserSpec(name), group)
			outcome, err := r.dialect.EnsureMembership(ctx, spec)
			if err != nil {
				if err := o.fail(ctx, r, StepReconcileGroups, "membership:"+spec.String(), err, start); err != nil {
					return err
				}
				continue
			}
			o.outcome(r, StepReconcileGroups, "membership:"+spec.String(), outcome, "", start)
		}
	}
	return nil
}

func (o *Orchestrator) mergeMTU(ctx context.Context, r *run) error {
	return o.merge(ctx, r, StepMergeConfigMTU, []daemonconfig.Upsert{
		{Key: daemonconfig.KeyMTU, Value: r.desired.MTU()},
	})
}

func (o *Orchestrator) mergeLogging(ctx context.Context, r *run) error {
	return o.merge(ctx, r, StepMergeConfigLogging, LoggingUpserts)
}

func (o *Orchestrator) merge(ctx context.Context, r *run, step Step, upserts []daemonconfig.Upsert) error {
	start := time.Now()
	keys := make([]string, len(upserts))
	for i, u := range upserts {
		keys[i] = u.Key
	}
	resource := "config:" + strings.Join(keys, ",")

	var opts []daemonconfig.ApplyOption
	if r.configChanged {
		opts = append(opts, daemonconfig.SkipBackup())
	}
	res, err := o.store.Apply(upserts, opts...)
	if err != nil {
		var corrupt *daemonconfig.CorruptError
		if !errors.As(err, &corrupt) {
			err = NewFatalError("failed to write daemon config", err).
				WithCode(ErrCodeConfigWriteFailed).
				WithStep(step).
				WithResource(resource).
				WithDetail("path", o.store.Path())
		}
		return o.fail(ctx, r, step, resource, err, start)
	}

	outcome := resources.AlreadySatisfied
	detail := o.store.Path()
	if res.Changed {
		outcome = resources.Applied
		r.configChanged = true
		if res.BackupPath != "" {
			detail += " (previous saved to " + res.BackupPath + ")"
		}
	}
	o.outcome(r, step, resource, outcome, detail, start)
	return nil
}

func (o *Orchestrator) restartService(ctx context.Context, r *run) error {
	start := time.Now()
	resource := "service:" + resources.RuntimeService

	if !r.installed && !r.configChanged {
		o.outcome(r, StepRestartService, resource, resources.AlreadySatisfied, "no changes require a restart", start)
		return nil
	}

	if err := r.dialect.RestartService(ctx); err != nil {
		return o.fail(ctx, r, StepRestartService, resource,
			NewFatalError("service restart failed", err).
				WithCode(ErrCodeRestartFailed).
				WithStep(StepRestartService).
				WithResource(resource), start)
	}

	reason := "config changed"
	if r.installed {
		reason = "runtime installed"
	}
	o.outcome(r, StepRestartService, resource, resources.Applied, "restarted: "+reason, start)
	return nil
}

func (o *Orchestrator) verifyRuntime(ctx context.Context, r *run) error {
	start := time.Now()
	resource := "daemon:" + resources.RuntimeService

	detail, err := o.opts.Verifier.Verify(ctx, DesiredLogDriver)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return o.fail(ctx, r, StepVerifyRuntime, resource,
			NewNonFatalError("runtime verification failed", err).
				WithCode(ErrCodeVerifyFailed).
				WithStep(StepVerifyRuntime).
				WithResource(resource), start)
	}
	o.outcome(r, StepVerifyRuntime, resource, resources.AlreadySatisfied, detail, start)
	return nil
}

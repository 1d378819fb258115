package resources

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/YusefSaid/Shell-scripting/pkg/executor"
	"github.com/YusefSaid/Shell-scripting/pkg/platform"
)

// RuntimeService is the init-system name of the container runtime service.
const RuntimeService = "docker"

// Host bundles what a dialect needs to act on one machine.
type Host struct {
	// Runner executes system commands.
	Runner executor.Runner

	// Root is the filesystem root for account databases and repository
	// files. Empty means "/".
	Root string

	Logger zerolog.Logger
}

// Dialect is the set of idempotent operations for one platform profile.
// Every method checks current state before acting. The set of
// implementations is closed: AptDialect, DnfDialect and ApkDialect.
type Dialect interface {
	// Profile returns the profile the dialect was built for.
	Profile() platform.Profile

	EnsureRuntimeInstalled(ctx context.Context) (Outcome, error)
	EnsureServiceRunning(ctx context.Context) (Outcome, error)
	RestartService(ctx context.Context) error
	EnsureUser(ctx context.Context, spec UserSpec) (Outcome, error)
	EnsureGroup(ctx context.Context, spec GroupSpec) (Outcome, error)
	EnsureMembership(ctx context.Context, spec MembershipSpec) (Outcome, error)

	sealed()
}

// NewDialect selects the dialect for profile.
func NewDialect(profile *platform.Profile, host Host) (Dialect, error) {
	if profile == nil {
		return nil, fmt.Errorf("profile is required")
	}
	if host.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if host.Root == "" {
		host.Root = "/"
	}

	logger := host.Logger.With().
		Str("component", "resources").
		Str("profile", profile.Name).
		Logger()

	services, err := NewServiceController(profile.InitSystem, host.Runner, logger)
	if err != nil {
		return nil, err
	}

	b := base{
		profile:  *profile,
		runner:   host.Runner,
		root:     host.Root,
		accounts: NewAccounts(host.Root),
		services: services,
		logger:   logger,
	}

	switch profile.PackageManager {
	case platform.PackageManagerAPT:
		return &AptDialect{base: b}, nil
	case platform.PackageManagerDNF:
		return &DnfDialect{base: b}, nil
	case platform.PackageManagerAPK:
		return &ApkDialect{base: b}, nil
	default:
		return nil, fmt.Errorf("unsupported package manager: %s", profile.PackageManager)
	}
}

// base carries the account and service operations shared by every dialect.
type base struct {
	profile  platform.Profile
	runner   executor.Runner
	root     string
	accounts *Accounts
	services ServiceController
	logger   zerolog.Logger
}

func (b *base) sealed() {}

func (b *base) Profile() platform.Profile {
	return b.profile
}

// hostPath maps an absolute host path under the configured root.
func (b *base) hostPath(path string) string {
	return filepath.Join(b.root, path)
}

// run executes one installation command, wrapping failures as InstallError.
func (b *base) run(ctx context.Context, stage, name string, args ...string) (*executor.Result, error) {
	res, err := b.runner.Run(ctx, name, args...)
	if err != nil {
		return nil, &InstallError{Stage: stage, Err: err}
	}
	return res, nil
}

func (b *base) EnsureServiceRunning(ctx context.Context) (Outcome, error) {
	outcome, err := b.services.EnableAndStart(ctx, RuntimeService)
	if err != nil {
		return "", &InstallError{Stage: "enable-and-start", Err: err}
	}
	return outcome, nil
}

func (b *base) RestartService(ctx context.Context) error {
	return b.services.Restart(ctx, RuntimeService)
}

func (b *base) EnsureUser(ctx context.Context, spec UserSpec) (Outcome, error) {
	exists, err := b.accounts.UserExists(spec.Name)
	if err != nil {
		return "", &AccountError{Kind: "user", Name: spec.Name, Err: err}
	}
	if exists {
		b.logger.Debug().Str("user", spec.Name).Msg("User already exists")
		return AlreadySatisfied, nil
	}

	c := cmd("useradd", "-m", spec.Name)
	if b.profile.UserDialect == platform.UserDialectAdduser {
		c = cmd("adduser", "-D", spec.Name)
	}
	if _, err := b.runner.Run(ctx, c.name, c.args...); err != nil {
		return "", &AccountError{Kind: "user", Name: spec.Name, Err: err}
	}

	b.logger.Info().Str("user", spec.Name).Msg("User created")
	return Applied, nil
}

func (b *base) EnsureGroup(ctx context.Context, spec GroupSpec) (Outcome, error) {
	exists, err := b.accounts.GroupExists(spec.Name)
	if err != nil {
		return "", &AccountError{Kind: "group", Name: spec.Name, Err: err}
	}
	if exists {
		b.logger.Debug().Str("group", spec.Name).Msg("Group already exists")
		return AlreadySatisfied, nil
	}

	c := cmd("groupadd", spec.Name)
	if b.profile.UserDialect == platform.UserDialectAdduser {
		c = cmd("addgroup", spec.Name)
	}
	if _, err := b.runner.Run(ctx, c.name, c.args...); err != nil {
		return "", &AccountError{Kind: "group", Name: spec.Name, Err: err}
	}

	b.logger.Info().Str("group", spec.Name).Msg("Group created")
	return Applied, nil
}

// membershipCandidates lists the primitives in preference order: the
// shadow-utils usermod first, then the dialect-native tool.
func (b *base) membershipCandidates(spec MembershipSpec) []candidate {
	primary := cmd("usermod", "-aG", spec.Group, spec.User)
	if b.profile.UserDialect == platform.UserDialectAdduser {
		return []candidate{primary, cmd("addgroup", spec.User, spec.Group)}
	}
	return []candidate{primary, cmd("gpasswd", "-a", spec.User, spec.Group)}
}

func (b *base) EnsureMembership(ctx context.Context, spec MembershipSpec) (Outcome, error) {
	member, err := b.accounts.IsMember(spec.User, spec.Group)
	if err != nil {
		return "", &MembershipError{Spec: spec, Attempts: []Attempt{{Command: "lookup", Cause: CauseFailed, Detail: err.Error()}}}
	}
	if member {
		b.logger.Debug().Str("membership", spec.String()).Msg("Membership already present")
		return AlreadySatisfied, nil
	}

	attempts, ok, err := runCandidates(ctx, b.runner, b.membershipCandidates(spec))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &MembershipError{Spec: spec, Attempts: attempts}
	}

	for _, a := range attempts {
		b.logger.Debug().Str("membership", spec.String()).Str("attempt", a.String()).Msg("Membership primitive skipped")
	}
	b.logger.Info().Str("membership", spec.String()).Msg("Membership added")
	return Applied, nil
}

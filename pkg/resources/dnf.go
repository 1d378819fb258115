package resources

import (
	"context"
	"fmt"
	"os"
)

const dnfRepoPath = "/etc/yum.repos.d/docker-ce.repo"

// DnfDialect manages Fedora and RHEL family hosts with rpm/dnf.
type DnfDialect struct {
	base
}

// RepoURL returns the upstream repository definition for the host family.
// RHEL derivatives share the centos repository.
func (d *DnfDialect) RepoURL() string {
	distro := "centos"
	switch d.profile.Family {
	case "fedora", "rhel":
		distro = d.profile.Family
	}
	return fmt.Sprintf("%s/%s/docker-ce.repo", dockerDownloadBase, distro)
}

// EnsureRuntimeInstalled adds the upstream repository with whichever
// config-manager syntax the installed dnf accepts, then installs the runtime
// packages.
func (d *DnfDialect) EnsureRuntimeInstalled(ctx context.Context) (Outcome, error) {
	if _, err := d.runner.Run(ctx, "rpm", "-q", "docker-ce"); err == nil {
		d.logger.Debug().Msg("Runtime package already installed")
		return AlreadySatisfied, nil
	}

	if _, err := d.run(ctx, "prerequisites", "dnf", "-y", "install", "dnf-plugins-core"); err != nil {
		return "", err
	}
	if err := d.ensureRepo(ctx); err != nil {
		return "", err
	}

	args := append([]string{"-y", "install"}, RuntimePackages...)
	if _, err := d.run(ctx, "install", "dnf", args...); err != nil {
		return "", err
	}

	d.logger.Info().Strs("packages", RuntimePackages).Msg("Runtime installed")
	return Applied, nil
}

func (d *DnfDialect) ensureRepo(ctx context.Context) error {
	if _, err := os.Stat(d.hostPath(dnfRepoPath)); err == nil {
		return nil
	}

	url := d.RepoURL()
	candidates := []candidate{
		cmd("dnf", "config-manager", "addrepo", "--from-repofile="+url),
		cmd("dnf", "config-manager", "--add-repo", url),
	}
	attempts, ok, err := runCandidates(ctx, d.runner, candidates)
	if err != nil {
		return &InstallError{Stage: "repository", Err: err}
	}
	if !ok {
		return &InstallError{Stage: "repository", Attempts: attempts}
	}
	return nil
}

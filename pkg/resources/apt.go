package resources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/moby/sys/atomicwriter"
)

// RuntimePackages are the packages that make up the runtime on APT and DNF
// hosts.
var RuntimePackages = []string{
	"docker-ce",
	"docker-ce-cli",
	"containerd.io",
	"docker-buildx-plugin",
	"docker-compose-plugin",
}

const (
	dockerDownloadBase = "https://download.docker.com/linux"
	aptKeyringPath     = "/etc/apt/keyrings/docker.asc"
	aptSourcesPath     = "/etc/apt/sources.list.d/docker.list"
)

// AptDialect manages Debian family hosts with dpkg/apt.
type AptDialect struct {
	base
}

func (d *AptDialect) installed(ctx context.Context) bool {
	res, err := d.runner.Run(ctx, "dpkg-query", "-W", "-f=${Status}", "docker-ce")
	if err != nil {
		return false
	}
	return strings.Contains(res.Stdout, "install ok installed")
}

// EnsureRuntimeInstalled registers the upstream signing key and repository,
// then installs the runtime packages.
func (d *AptDialect) EnsureRuntimeInstalled(ctx context.Context) (Outcome, error) {
	if d.installed(ctx) {
		d.logger.Debug().Msg("Runtime package already installed")
		return AlreadySatisfied, nil
	}

	codename := d.profile.RepoCodename()
	if codename == "" {
		return "", &InstallError{Stage: "repository", Err: errors.New("release codename is unknown")}
	}

	if _, err := d.run(ctx, "prerequisites", "apt-get", "update"); err != nil {
		return "", err
	}
	if _, err := d.run(ctx, "prerequisites", "apt-get", "install", "-y", "ca-certificates", "curl"); err != nil {
		return "", err
	}
	if err := d.ensureKeyring(ctx); err != nil {
		return "", err
	}
	if err := d.ensureSources(ctx, codename); err != nil {
		return "", err
	}

	if _, err := d.run(ctx, "install", "apt-get", "update"); err != nil {
		return "", err
	}
	args := append([]string{"install", "-y"}, RuntimePackages...)
	if _, err := d.run(ctx, "install", "apt-get", args...); err != nil {
		return "", err
	}

	d.logger.Info().Strs("packages", RuntimePackages).Str("codename", codename).Msg("Runtime installed")
	return Applied, nil
}

func (d *AptDialect) ensureKeyring(ctx context.Context) error {
	keyring := d.hostPath(aptKeyringPath)
	if _, err := os.Stat(keyring); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(keyring), 0o755); err != nil {
		return &InstallError{Stage: "signing-key", Err: err}
	}

	url := fmt.Sprintf("%s/%s/gpg", dockerDownloadBase, d.profile.Family)
	if _, err := d.run(ctx, "signing-key", "curl", "-fsSL", url, "-o", keyring); err != nil {
		return err
	}
	if err := os.Chmod(keyring, 0o644); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &InstallError{Stage: "signing-key", Err: err}
	}
	return nil
}

// SourcesLine renders the repository entry for an architecture and codename.
func (d *AptDialect) SourcesLine(arch, codename string) string {
	return fmt.Sprintf("deb [arch=%s signed-by=%s] %s/%s %s stable\n",
		arch, aptKeyringPath, dockerDownloadBase, d.profile.Family, codename)
}

func (d *AptDialect) ensureSources(ctx context.Context, codename string) error {
	res, err := d.run(ctx, "repository", "dpkg", "--print-architecture")
	if err != nil {
		return err
	}
	arch := strings.TrimSpace(res.Stdout)
	if arch == "" {
		return &InstallError{Stage: "repository", Err: errors.New("dpkg reported no architecture")}
	}

	line := []byte(d.SourcesLine(arch, codename))
	path := d.hostPath(aptSourcesPath)
	if current, err := os.ReadFile(path); err == nil && bytes.Equal(current, line) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &InstallError{Stage: "repository", Err: err}
	}
	if err := atomicwriter.WriteFile(path, line, 0o644); err != nil {
		return &InstallError{Stage: "repository", Err: err}
	}
	return nil
}

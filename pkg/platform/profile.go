package platform

import "fmt"

// PackageManager identifies the package-management dialect of a host.
type PackageManager string

const (
	// PackageManagerAPT is the Debian family dpkg/apt toolchain.
	PackageManagerAPT PackageManager = "apt"

	// PackageManagerDNF is the Fedora/RHEL family rpm/dnf toolchain.
	PackageManagerDNF PackageManager = "dnf"

	// PackageManagerAPK is the Alpine apk toolchain.
	PackageManagerAPK PackageManager = "apk"
)

// InitSystem identifies the service supervisor of a host.
type InitSystem string

const (
	// InitSystemd is systemd, driven through systemctl.
	InitSystemd InitSystem = "systemd"

	// InitOpenRC is OpenRC, driven through rc-update and rc-service.
	InitOpenRC InitSystem = "openrc"
)

// UserDialect identifies the account-management command style of a host.
type UserDialect string

const (
	// UserDialectUseradd is the shadow-utils style (useradd, groupadd, usermod).
	UserDialectUseradd UserDialect = "useradd"

	// UserDialectAdduser is the busybox style (adduser, addgroup).
	UserDialectAdduser UserDialect = "adduser"
)

// Release holds the parsed key/value fields of the identity source.
// Fields are empty when the source is not in os-release format.
type Release struct {
	ID              string `json:"id,omitempty"`
	IDLike          string `json:"id_like,omitempty"`
	VersionID       string `json:"version_id,omitempty"`
	VersionCodename string `json:"version_codename,omitempty"`
	PrettyName      string `json:"pretty_name,omitempty"`
}

// Profile is the resolved dialect of one host. It is a value type and is
// never modified after Resolve returns it.
type Profile struct {
	// Name identifies the matched rule, e.g. "ubuntu-jammy" or "alpine".
	Name string `json:"name"`

	// Family is the distribution family token that matched, e.g. "ubuntu".
	Family string `json:"family"`

	// Codename is set only when an exact distro+version rule matched.
	Codename string `json:"codename,omitempty"`

	PackageManager PackageManager `json:"package_manager"`
	InitSystem     InitSystem     `json:"init_system"`
	UserDialect    UserDialect    `json:"user_dialect"`

	// Release carries the parsed identity fields for diagnostics.
	Release Release `json:"release"`
}

// Exact reports whether the profile came from a distro+version rule.
func (p Profile) Exact() bool {
	return p.Codename != ""
}

// RepoCodename returns the release codename used for repository
// registration: the matched codename, or the one the host advertises.
func (p Profile) RepoCodename() string {
	if p.Codename != "" {
		return p.Codename
	}
	return p.Release.VersionCodename
}

// String implements fmt.Stringer.
func (p Profile) String() string {
	return fmt.Sprintf("%s (%s/%s/%s)", p.Name, p.PackageManager, p.InitSystem, p.UserDialect)
}

// UnsupportedPlatformError is returned when no rule matches the identity
// markers. Markers holds the raw input for diagnostics.
type UnsupportedPlatformError struct {
	Markers string
	Err     error
}

// Error implements the error interface.
func (e *UnsupportedPlatformError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unsupported platform: %v", e.Err)
	}
	if e.Markers == "" {
		return "unsupported platform: host identity source is empty"
	}
	return fmt.Sprintf("unsupported platform: no profile matches markers %q", e.Markers)
}

// Unwrap returns the underlying read error, if any.
func (e *UnsupportedPlatformError) Unwrap() error {
	return e.Err
}

package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-ini/ini"
)

// DefaultIdentityPath is the host identity source consulted by the CLI.
const DefaultIdentityPath = "/etc/os-release"

// rule is one entry of the resolution table. A rule with a codename matches
// only when both tokens are present in the markers.
type rule struct {
	name     string
	family   string
	codename string
	pm       PackageManager
	init     InitSystem
	users    UserDialect
}

func aptRule(family, codename string) rule {
	name := family
	if codename != "" {
		name = family + "-" + codename
	}
	return rule{name: name, family: family, codename: codename, pm: PackageManagerAPT, init: InitSystemd, users: UserDialectUseradd}
}

func dnfRule(family string) rule {
	return rule{name: family, family: family, pm: PackageManagerDNF, init: InitSystemd, users: UserDialectUseradd}
}

// rules is evaluated top to bottom and the first match wins. Exact rules
// come first. Family rules list derivatives before the family they name in
// ID_LIKE, since the parent token also appears in the derivative's markers.
var rules = []rule{
	aptRule("ubuntu", "focal"),
	aptRule("ubuntu", "jammy"),
	aptRule("ubuntu", "noble"),
	aptRule("debian", "bullseye"),
	aptRule("debian", "bookworm"),
	aptRule("debian", "trixie"),

	aptRule("ubuntu", ""),
	aptRule("debian", ""),
	dnfRule("rocky"),
	dnfRule("almalinux"),
	dnfRule("centos"),
	dnfRule("rhel"),
	dnfRule("fedora"),
	{name: "alpine", family: "alpine", pm: PackageManagerAPK, init: InitOpenRC, users: UserDialectAdduser},
}

func (r rule) matches(haystack string) bool {
	if !strings.Contains(haystack, r.family) {
		return false
	}
	return r.codename == "" || strings.Contains(haystack, r.codename)
}

// Resolve maps raw identity markers to a Profile. Matching is a
// case-insensitive substring test over the whole text.
func Resolve(markers string) (*Profile, error) {
	haystack := strings.ToLower(markers)
	if strings.TrimSpace(haystack) == "" {
		return nil, &UnsupportedPlatformError{Markers: markers}
	}

	for _, r := range rules {
		if !r.matches(haystack) {
			continue
		}
		return &Profile{
			Name:           r.name,
			Family:         r.family,
			Codename:       r.codename,
			PackageManager: r.pm,
			InitSystem:     r.init,
			UserDialect:    r.users,
			Release:        parseRelease(markers),
		}, nil
	}

	return nil, &UnsupportedPlatformError{Markers: markers}
}

// ResolveFile reads the identity source at path and resolves it. A missing
// file resolves as empty markers.
func ResolveFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Resolve("")
		}
		return nil, &UnsupportedPlatformError{Err: fmt.Errorf("failed to read %s: %w", path, err)}
	}
	return Resolve(string(data))
}

// parseRelease extracts os-release fields. Text that is not key=value is
// tolerated and yields an empty Release.
func parseRelease(markers string) Release {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		Loose:                   true,
		Insensitive:             false,
		IgnoreInlineComment:     true,
		SkipUnrecognizableLines: true,
	}, []byte(markers))
	if err != nil {
		return Release{}
	}

	section := cfg.Section(ini.DefaultSection)
	value := func(key string) string {
		return strings.Trim(section.Key(key).String(), `"'`)
	}

	return Release{
		ID:              value("ID"),
		IDLike:          value("ID_LIKE"),
		VersionID:       value("VERSION_ID"),
		VersionCodename: value("VERSION_CODENAME"),
		PrettyName:      value("PRETTY_NAME"),
	}
}

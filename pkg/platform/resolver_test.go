package platform

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const ubuntuJammy = `PRETTY_NAME="Ubuntu 22.04.4 LTS"
NAME="Ubuntu"
VERSION_ID="22.04"
VERSION="22.04.4 LTS (Jammy Jellyfish)"
VERSION_CODENAME=jammy
ID=ubuntu
ID_LIKE=debian
UBUNTU_CODENAME=jammy
`

const rockyNine = `NAME="Rocky Linux"
VERSION="9.3 (Blue Onyx)"
ID="rocky"
ID_LIKE="rhel centos fedora"
VERSION_ID="9.3"
PRETTY_NAME="Rocky Linux 9.3 (Blue Onyx)"
`

const alpine = `NAME="Alpine Linux"
ID=alpine
VERSION_ID=3.19.1
PRETTY_NAME="Alpine Linux v3.19"
`

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		markers string
		want    string
		pm      PackageManager
		init    InitSystem
		users   UserDialect
	}{
		{"ubuntu jammy exact", ubuntuJammy, "ubuntu-jammy", PackageManagerAPT, InitSystemd, UserDialectUseradd},
		{"ubuntu unknown codename", "ID=ubuntu\nVERSION_CODENAME=oracular\n", "ubuntu", PackageManagerAPT, InitSystemd, UserDialectUseradd},
		{"debian bookworm", "ID=debian\nVERSION_CODENAME=bookworm\n", "debian-bookworm", PackageManagerAPT, InitSystemd, UserDialectUseradd},
		{"debian family", "ID=debian\n", "debian", PackageManagerAPT, InitSystemd, UserDialectUseradd},
		{"rocky before rhel and fedora", rockyNine, "rocky", PackageManagerDNF, InitSystemd, UserDialectUseradd},
		{"almalinux", "ID=\"almalinux\"\nID_LIKE=\"rhel centos fedora\"\n", "almalinux", PackageManagerDNF, InitSystemd, UserDialectUseradd},
		{"rhel", "ID=\"rhel\"\nID_LIKE=\"fedora\"\n", "rhel", PackageManagerDNF, InitSystemd, UserDialectUseradd},
		{"fedora", "ID=fedora\n", "fedora", PackageManagerDNF, InitSystemd, UserDialectUseradd},
		{"alpine", alpine, "alpine", PackageManagerAPK, InitOpenRC, UserDialectAdduser},
		{"case insensitive", "UBUNTU JAMMY", "ubuntu-jammy", PackageManagerAPT, InitSystemd, UserDialectUseradd},
		{"free text", "this host runs debian trixie", "debian-trixie", PackageManagerAPT, InitSystemd, UserDialectUseradd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.markers)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got.Name != tt.want {
				t.Errorf("Name = %q, want %q", got.Name, tt.want)
			}
			if got.PackageManager != tt.pm || got.InitSystem != tt.init || got.UserDialect != tt.users {
				t.Errorf("dialect = %s/%s/%s, want %s/%s/%s",
					got.PackageManager, got.InitSystem, got.UserDialect, tt.pm, tt.init, tt.users)
			}
		})
	}
}

func TestResolveExactBeforeFamily(t *testing.T) {
	// A family-only rule for ubuntu also matches, but the exact rule wins.
	got, err := Resolve("ID=ubuntu\nVERSION_CODENAME=noble\n")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !got.Exact() || got.Codename != "noble" {
		t.Errorf("expected exact noble profile, got %+v", got)
	}
	if got.RepoCodename() != "noble" {
		t.Errorf("RepoCodename() = %q, want noble", got.RepoCodename())
	}
}

func TestResolveParsesRelease(t *testing.T) {
	got, err := Resolve(ubuntuJammy)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	want := Release{
		ID:              "ubuntu",
		IDLike:          "debian",
		VersionID:       "22.04",
		VersionCodename: "jammy",
		PrettyName:      "Ubuntu 22.04.4 LTS",
	}
	if diff := cmp.Diff(want, got.Release); diff != "" {
		t.Errorf("Release mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveFamilyProfileUsesAdvertisedCodename(t *testing.T) {
	got, err := Resolve("ID=ubuntu\nVERSION_CODENAME=oracular\n")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Exact() {
		t.Errorf("family profile reported as exact")
	}
	if got.RepoCodename() != "oracular" {
		t.Errorf("RepoCodename() = %q, want oracular", got.RepoCodename())
	}
}

func TestResolveUnsupported(t *testing.T) {
	tests := []struct {
		name    string
		markers string
	}{
		{"empty", ""},
		{"whitespace", "  \n\t"},
		{"unknown distro", "ID=gentoo\nNAME=Gentoo\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.markers)
			if got != nil {
				t.Errorf("expected no profile, got %+v", got)
			}
			var unsupported *UnsupportedPlatformError
			if !errors.As(err, &unsupported) {
				t.Fatalf("expected UnsupportedPlatformError, got %v", err)
			}
			if unsupported.Markers != tt.markers {
				t.Errorf("Markers = %q, want %q", unsupported.Markers, tt.markers)
			}
		})
	}
}

func TestResolveFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("present", func(t *testing.T) {
		path := filepath.Join(dir, "os-release")
		if err := os.WriteFile(path, []byte(alpine), 0o644); err != nil {
			t.Fatal(err)
		}
		got, err := ResolveFile(path)
		if err != nil {
			t.Fatalf("ResolveFile() error = %v", err)
		}
		if got.Name != "alpine" {
			t.Errorf("Name = %q, want alpine", got.Name)
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := ResolveFile(filepath.Join(dir, "absent"))
		var unsupported *UnsupportedPlatformError
		if !errors.As(err, &unsupported) {
			t.Fatalf("expected UnsupportedPlatformError, got %v", err)
		}
		if unsupported.Markers != "" {
			t.Errorf("Markers = %q, want empty", unsupported.Markers)
		}
	})
}

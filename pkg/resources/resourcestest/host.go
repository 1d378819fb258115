// Package resourcestest provides a simulated host for exercising resource
// operations without touching the real system.
package resourcestest

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/YusefSaid/Shell-scripting/pkg/executor/fake"
)

// Host simulates the package database, init system and account files of one
// machine. Account commands edit <Root>/etc/passwd and <Root>/etc/group.
type Host struct {
	Root   string
	Runner *fake.Runner

	mu        sync.Mutex
	nextID    int
	installed bool
	active    bool
	enabled   bool
	restarts  int
	repoAdded bool
	dnf5      bool
}

// NewHost creates a host with minimal passwd and group files.
func NewHost(t testing.TB) *Host {
	t.Helper()

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "etc"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, "etc", "passwd"), "root:x:0:0:root:/root:/bin/sh\n")
	writeFile(t, filepath.Join(root, "etc", "group"), "root:x:0:\n")

	h := &Host{Root: root, Runner: fake.NewRunner(), nextID: 1000, dnf5: true}
	h.register()
	return h
}

func writeFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// SetInstalled marks the runtime package as present.
func (h *Host) SetInstalled(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.installed = v
}

// SetRunning marks the runtime service as enabled and active.
func (h *Host) SetRunning(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active, h.enabled = v, v
}

// UseDNF4 makes "dnf config-manager addrepo" fail like dnf4 does.
func (h *Host) UseDNF4() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dnf5 = false
}

// Installed reports whether the runtime package is present.
func (h *Host) Installed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.installed
}

// Running reports whether the runtime service is enabled and active.
func (h *Host) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active && h.enabled
}

// Restarts returns how many times the service was restarted.
func (h *Host) Restarts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.restarts
}

// RepoAdded reports whether a dnf repository was registered.
func (h *Host) RepoAdded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.repoAdded
}

// WithoutBinaries removes the named commands from the host.
func (h *Host) WithoutBinaries(names ...string) {
	for _, n := range names {
		h.Runner.Remove(n)
	}
}

// AddUser creates a user and its private group.
func (h *Host) AddUser(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.addUserLocked(name)
}

// AddGroup creates a group with optional members.
func (h *Host) AddGroup(name string, members ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.addGroupLocked(name, members...)
}

// Users returns every user name in passwd order.
func (h *Host) Users() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var names []string
	for _, line := range h.lines("passwd") {
		names = append(names, strings.SplitN(line, ":", 2)[0])
	}
	return names
}

// Groups returns every group name in group-file order.
func (h *Host) Groups() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var names []string
	for _, line := range h.lines("group") {
		names = append(names, strings.SplitN(line, ":", 2)[0])
	}
	return names
}

// Members returns the supplementary members of group.
func (h *Host) Members(group string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, line := range h.lines("group") {
		parts := strings.SplitN(line, ":", 4)
		if parts[0] == group && len(parts) == 4 && parts[3] != "" {
			return strings.Split(parts[3], ",")
		}
	}
	return nil
}

func (h *Host) path(db string) string {
	return filepath.Join(h.Root, "etc", db)
}

func (h *Host) lines(db string) []string {
	data, err := os.ReadFile(h.path(db))
	if err != nil {
		return nil
	}
	var out []string
	for _, l := range strings.Split(string(data), "\n") {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

func (h *Host) save(db string, lines []string) {
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(h.path(db), []byte(content), 0o644); err != nil {
		panic(err)
	}
}

func (h *Host) exists(db, name string) bool {
	for _, line := range h.lines(db) {
		if strings.SplitN(line, ":", 2)[0] == name {
			return true
		}
	}
	return false
}

func (h *Host) addUserLocked(name string) {
	id := h.nextID
	h.nextID++
	h.save("passwd", append(h.lines("passwd"), fmt.Sprintf("%s:x:%d:%d::/home/%s:/bin/sh", name, id, id, name)))
	h.save("group", append(h.lines("group"), fmt.Sprintf("%s:x:%d:", name, id)))
}

func (h *Host) addGroupLocked(name string, members ...string) {
	id := h.nextID
	h.nextID++
	h.save("group", append(h.lines("group"), fmt.Sprintf("%s:x:%d:%s", name, id, strings.Join(members, ","))))
}

// addMemberLocked returns false when the user or group does not exist.
func (h *Host) addMemberLocked(user, group string) bool {
	if !h.exists("passwd", user) {
		return false
	}
	lines := h.lines("group")
	for i, line := range lines {
		parts := strings.SplitN(line, ":", 4)
		if parts[0] != group {
			continue
		}
		for len(parts) < 4 {
			parts = append(parts, "")
		}
		var members []string
		if parts[3] != "" {
			members = strings.Split(parts[3], ",")
		}
		if !slices.Contains(members, user) {
			members = append(members, user)
		}
		parts[3] = strings.Join(members, ",")
		lines[i] = strings.Join(parts, ":")
		h.save("group", lines)
		return true
	}
	return false
}

func (h *Host) locked(fn func(args []string) (string, int, error)) fake.Handler {
	return func(args []string) (string, int, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		return fn(args)
	}
}

func (h *Host) register() {
	r := h.Runner

	// Accounts.
	r.Handle("useradd", h.locked(func(args []string) (string, int, error) {
		name := args[len(args)-1]
		if h.exists("passwd", name) {
			return "", 9, nil
		}
		h.addUserLocked(name)
		return "", 0, nil
	}))
	r.Handle("adduser", h.locked(func(args []string) (string, int, error) {
		name := args[len(args)-1]
		if h.exists("passwd", name) {
			return "", 1, nil
		}
		h.addUserLocked(name)
		return "", 0, nil
	}))
	r.Handle("groupadd", h.locked(func(args []string) (string, int, error) {
		name := args[len(args)-1]
		if h.exists("group", name) {
			return "", 9, nil
		}
		h.addGroupLocked(name)
		return "", 0, nil
	}))
	r.Handle("addgroup", h.locked(func(args []string) (string, int, error) {
		switch len(args) {
		case 1:
			if h.exists("group", args[0]) {
				return "", 1, nil
			}
			h.addGroupLocked(args[0])
			return "", 0, nil
		case 2:
			if !h.addMemberLocked(args[0], args[1]) {
				return "", 1, nil
			}
			return "", 0, nil
		}
		return "", 1, nil
	}))
	r.Handle("usermod", h.locked(func(args []string) (string, int, error) {
		// usermod -aG GROUP USER
		if len(args) != 3 || !h.addMemberLocked(args[2], args[1]) {
			return "", 6, nil
		}
		return "", 0, nil
	}))
	r.Handle("gpasswd", h.locked(func(args []string) (string, int, error) {
		// gpasswd -a USER GROUP
		if len(args) != 3 || !h.addMemberLocked(args[1], args[2]) {
			return "", 3, nil
		}
		return "", 0, nil
	}))

	// Packages.
	r.Handle("dpkg-query", h.locked(func([]string) (string, int, error) {
		if h.installed {
			return "install ok installed", 0, nil
		}
		return "", 1, nil
	}))
	r.Succeed("dpkg", "amd64\n")
	r.Handle("apt-get", h.locked(func(args []string) (string, int, error) {
		if len(args) > 0 && args[0] == "install" && slices.Contains(args, "docker-ce") {
			h.installed = true
		}
		return "", 0, nil
	}))
	r.Handle("curl", func(args []string) (string, int, error) {
		for i, a := range args {
			if a == "-o" && i+1 < len(args) {
				if err := os.WriteFile(args[i+1], []byte("-----BEGIN PGP PUBLIC KEY BLOCK-----\n"), 0o644); err != nil {
					return "", 23, nil
				}
			}
		}
		return "", 0, nil
	})
	r.Handle("rpm", h.locked(func([]string) (string, int, error) {
		if h.installed {
			return "docker-ce-27.0.0-1.fc40.x86_64", 0, nil
		}
		return "package docker-ce is not installed", 1, nil
	}))
	r.Handle("dnf", h.locked(func(args []string) (string, int, error) {
		if len(args) >= 2 && args[0] == "config-manager" {
			if args[1] == "addrepo" && !h.dnf5 {
				return "", 2, nil
			}
			h.repoAdded = true
			return "", 0, nil
		}
		if slices.Contains(args, "docker-ce") {
			h.installed = true
		}
		return "", 0, nil
	}))
	r.Handle("apk", h.locked(func(args []string) (string, int, error) {
		if len(args) > 0 && args[0] == "info" {
			if h.installed {
				return "docker", 0, nil
			}
			return "", 1, nil
		}
		if len(args) > 0 && args[0] == "add" {
			h.installed = true
		}
		return "", 0, nil
	}))

	// Services.
	r.Handle("systemctl", h.locked(func(args []string) (string, int, error) {
		switch args[0] {
		case "is-active":
			if h.active {
				return "active\n", 0, nil
			}
			return "inactive\n", 3, nil
		case "is-enabled":
			if h.enabled {
				return "enabled\n", 0, nil
			}
			return "disabled\n", 1, nil
		case "enable":
			if !h.installed {
				return "", 5, nil
			}
			h.enabled, h.active = true, true
			return "", 0, nil
		case "restart":
			if !h.installed {
				return "", 5, nil
			}
			h.restarts++
			h.active = true
			return "", 0, nil
		}
		return "", 1, nil
	}))
	r.Handle("rc-update", h.locked(func(args []string) (string, int, error) {
		switch args[0] {
		case "show":
			out := " networking | default\n"
			if h.enabled {
				out += "     docker | default\n"
			}
			return out, 0, nil
		case "add":
			h.enabled = true
			return "", 0, nil
		}
		return "", 1, nil
	}))
	r.Handle("rc-service", h.locked(func(args []string) (string, int, error) {
		if len(args) < 2 {
			return "", 1, nil
		}
		switch args[1] {
		case "status":
			if h.active {
				return " * status: started\n", 0, nil
			}
			return " * status: stopped\n", 3, nil
		case "start":
			h.active = true
			return "", 0, nil
		case "restart":
			h.restarts++
			h.active = true
			return "", 0, nil
		}
		return "", 1, nil
	}))
}

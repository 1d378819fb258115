package resources

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// accountEntry is one parsed line of passwd or group.
type accountEntry struct {
	name    string
	gid     string
	members []string
}

// Accounts reads the local user and group databases under a filesystem root.
type Accounts struct {
	root string
}

// NewAccounts creates an Accounts reader for root ("/" on a live host).
func NewAccounts(root string) *Accounts {
	if root == "" {
		root = "/"
	}
	return &Accounts{root: root}
}

// PasswdPath returns the passwd database path.
func (a *Accounts) PasswdPath() string {
	return filepath.Join(a.root, "etc", "passwd")
}

// GroupPath returns the group database path.
func (a *Accounts) GroupPath() string {
	return filepath.Join(a.root, "etc", "group")
}

// UserExists reports whether name has a passwd entry.
func (a *Accounts) UserExists(name string) (bool, error) {
	_, ok, err := a.lookup(a.PasswdPath(), name, parsePasswdLine)
	return ok, err
}

// GroupExists reports whether name has a group entry.
func (a *Accounts) GroupExists(name string) (bool, error) {
	_, ok, err := a.lookup(a.GroupPath(), name, parseGroupLine)
	return ok, err
}

// IsMember reports whether user belongs to group, either as a listed
// supplementary member or through its primary group id.
func (a *Accounts) IsMember(user, group string) (bool, error) {
	g, ok, err := a.lookup(a.GroupPath(), group, parseGroupLine)
	if err != nil || !ok {
		return false, err
	}
	if slices.Contains(g.members, user) {
		return true, nil
	}

	u, ok, err := a.lookup(a.PasswdPath(), user, parsePasswdLine)
	if err != nil || !ok {
		return false, err
	}
	return u.gid != "" && u.gid == g.gid, nil
}

func (a *Accounts) lookup(path, name string, parse func(string) (accountEntry, bool)) (accountEntry, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return accountEntry{}, false, nil
		}
		return accountEntry{}, false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entry, ok := parse(line)
		if ok && entry.name == name {
			return entry, true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return accountEntry{}, false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return accountEntry{}, false, nil
}

// parsePasswdLine parses "name:x:uid:gid:gecos:home:shell".
func parsePasswdLine(line string) (accountEntry, bool) {
	parts := strings.SplitN(line, ":", 7)
	if len(parts) < 4 {
		return accountEntry{}, false
	}
	return accountEntry{name: parts[0], gid: parts[3]}, true
}

// parseGroupLine parses "name:x:gid:member1,member2".
func parseGroupLine(line string) (accountEntry, bool) {
	parts := strings.SplitN(line, ":", 4)
	if len(parts) < 3 {
		return accountEntry{}, false
	}
	entry := accountEntry{name: parts[0], gid: parts[2]}
	if len(parts) == 4 && parts[3] != "" {
		for _, m := range strings.Split(parts[3], ",") {
			if m = strings.TrimSpace(m); m != "" {
				entry.members = append(entry.members, m)
			}
		}
	}
	return entry, true
}

package policy

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		reservedAccountsPolicy(),
		mtuRangePolicy(),
		duplicateNamesPolicy(),
		groupNormalizationPolicy(),
	}
}

// reservedAccountsPolicy refuses to manage root and flags other system
// accounts and administrative groups.
func reservedAccountsPolicy() Policy {
	return Policy{
		Name:        "reserved-accounts",
		Description: "Denies the root user; warns on reserved system users and administrative groups",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"accounts", "security"},
		Rego: `package converge.policies.accounts

import rego.v1

reserved_users := {"daemon", "bin", "sys", "sync", "games", "man", "mail", "news", "nobody", "systemd-network"}

privileged_groups := {"root", "wheel", "sudo", "adm", "shadow", "disk"}

deny contains violation if {
	some name in input.users
	lower(name) == "root"
	violation := {
		"message": sprintf("user '%s' is the superuser and cannot be managed", [name]),
		"severity": "error",
		"resource": sprintf("user:%s", [name]),
	}
}

deny contains violation if {
	some name in input.users
	lower(name) in reserved_users
	violation := {
		"message": sprintf("user '%s' is a reserved system account", [name]),
		"severity": "warning",
		"resource": sprintf("user:%s", [name]),
	}
}

deny contains violation if {
	some name in input.normalized_groups
	lower(name) in privileged_groups
	violation := {
		"message": sprintf("group '%s' grants administrative privileges", [name]),
		"severity": "warning",
		"resource": sprintf("group:%s", [name]),
	}
}
`,
	}
}

// mtuRangePolicy warns about MTU values outside the common range.
func mtuRangePolicy() Policy {
	return Policy{
		Name:        "mtu-range",
		Description: "Warns when the daemon MTU is outside 576..9216",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"network"},
		Rego: `package converge.policies.network

import rego.v1

min_mtu := 576

max_mtu := 9216

deny contains violation if {
	input.mtu < min_mtu
	violation := {
		"message": sprintf("mtu %d is below %d and may break IPv4 traffic", [input.mtu, min_mtu]),
		"severity": "warning",
		"resource": "config:mtu",
	}
}

deny contains violation if {
	input.mtu > max_mtu
	violation := {
		"message": sprintf("mtu %d exceeds the usual jumbo frame size %d", [input.mtu, max_mtu]),
		"severity": "warning",
		"resource": "config:mtu",
	}
}
`,
	}
}

// duplicateNamesPolicy warns about names listed more than once.
func duplicateNamesPolicy() Policy {
	return Policy{
		Name:        "duplicate-names",
		Description: "Warns when a user or normalized group name is listed more than once",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"accounts"},
		Rego: `package converge.policies.duplicates

import rego.v1

deny contains violation if {
	some i, j
	input.users[i] == input.users[j]
	i < j
	name := input.users[i]
	violation := {
		"message": sprintf("user '%s' is listed more than once", [name]),
		"severity": "warning",
		"resource": sprintf("user:%s", [name]),
	}
}

deny contains violation if {
	some i, j
	input.normalized_groups[i] == input.normalized_groups[j]
	i < j
	name := input.normalized_groups[i]
	violation := {
		"message": sprintf("group '%s' is listed more than once after normalization", [name]),
		"severity": "warning",
		"resource": sprintf("group:%s", [name]),
	}
}
`,
	}
}

// groupNormalizationPolicy reports group names that will be rewritten.
func groupNormalizationPolicy() Policy {
	return Policy{
		Name:        "group-normalization",
		Description: "Reports group names containing whitespace",
		Severity:    SeverityInfo,
		Enabled:     true,
		Tags:        []string{"accounts"},
		Rego: `package converge.policies.normalization

import rego.v1

deny contains violation if {
	some i, name in input.groups
	name != input.normalized_groups[i]
	violation := {
		"message": sprintf("group '%s' will be created as '%s'", [name, input.normalized_groups[i]]),
		"severity": "info",
		"resource": sprintf("group:%s", [input.normalized_groups[i]]),
	}
}
`,
	}
}

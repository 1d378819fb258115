// Package policy evaluates Rego admission policies against a desired state
// before any host mutation happens.
//
// Every policy is a Rego module whose package defines a deny set. Each
// element is either a string message or an object with message, severity
// and resource keys:
//
//	package site.naming
//
//	import rego.v1
//
//	deny contains violation if {
//	    some name in input.users
//	    startswith(name, "svc-")
//	    violation := {"message": "service accounts are managed elsewhere", "severity": "error"}
//	}
//
// The input document carries users, groups, normalized_groups, mtu and a
// context object with hostname and timestamp.
//
// # Built-in policies
//
//   - reserved-accounts: system users and privileged groups (error)
//   - mtu-range: MTU outside 576..9216 (warning)
//   - duplicate-names: repeated users or normalized groups (warning)
//   - group-normalization: group names that will be rewritten (info)
//
// Any error-severity violation makes Result.Allowed false. Extra policies
// are loaded from .rego or .json files with Engine.LoadPolicies.
package policy

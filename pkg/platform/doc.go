// Package platform resolves the host's system-management dialect from its
// distribution identity markers.
//
// A Profile names the package manager, init system and account-command
// style for one supported distribution family. Resolution is strict: the
// rule table is evaluated in order and the first match wins. Exact
// distribution+codename rules are evaluated before family-only rules, and a
// host that matches no rule is rejected with an UnsupportedPlatformError
// rather than falling back to a default.
//
// Example:
//
//	profile, err := platform.ResolveFile(platform.DefaultIdentityPath)
//	if err != nil {
//	    var unsupported *platform.UnsupportedPlatformError
//	    if errors.As(err, &unsupported) {
//	        fmt.Println("unrecognized host:", unsupported.Markers)
//	    }
//	    return err
//	}
//	fmt.Println(profile.PackageManager, profile.InitSystem)
package platform

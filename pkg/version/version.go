// Package version reports which build of queenbee is running.
//
// The commit is resolved lazily, once: an -ldflags override wins (container
// builds have no .git directory to stamp from), then the VCS revision in
// debug.BuildInfo, then "dev".
package version

import (
	"runtime/debug"
	"sync"
)

const appName = "queenbee"

// commitOverride is injected with
// -ldflags "-X .../pkg/version.commitOverride=<sha>".
var commitOverride string

var resolveCommit = sync.OnceValue(func() string {
	if commitOverride != "" {
		return short(commitOverride)
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return short(s.Value)
			}
		}
	}
	return "dev"
})

func short(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

// Commit returns the short git revision of this build, or "dev" when no
// build metadata is available (go test, non-git builds).
func Commit() string { return resolveCommit() }

// Full returns "queenbee/<commit>" for startup logs and the health endpoint.
func Full() string { return appName + "/" + Commit() }

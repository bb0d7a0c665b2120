// Package buildinfo reports the version stamped at link time:
//
//	go build -ldflags "-X salesops/internal/buildinfo.Version=1.4.0" ./cmd/api
package buildinfo

import (
    "runtime"
    "runtime/debug"
)

const Service = "salesops"

var (
    Version = "dev"
    Commit  = ""
    BuiltAt = ""
)

// Info falls back to the VCS stamp the go tool embeds when ldflags were not set.
func Info() map[string]string {
    commit, builtAt := Commit, BuiltAt
    if bi, ok := debug.ReadBuildInfo(); ok {
        for _, s := range bi.Settings {
            switch s.Key {
            case "vcs.revision":
                if commit == "" { commit = s.Value }
            case "vcs.time":
                if builtAt == "" { builtAt = s.Value }
            }
        }
    }
    return map[string]string{
        "service": Service,
        "version": Version,
        "commit":  commit,
        "builtAt": builtAt,
        "go":      runtime.Version(),
    }
}

// Package buildinfo carries version data stamped in with -ldflags.
package buildinfo

import "github.com/rs/zerolog"

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

// Info returns the build data as a map.
func Info() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"builtAt": BuiltAt,
	}
}

// String is the one-line version banner.
func String() string {
	s := "vrpils " + Version
	if Commit != "" {
		s += " (" + Commit + ")"
	}
	if BuiltAt != "" {
		s += " built " + BuiltAt
	}
	return s
}

// Log adds the build data to a log event.
func Log(e *zerolog.Event) *zerolog.Event {
	return e.Str("version", Version).Str("commit", Commit).Str("built_at", BuiltAt)
}

// Package version exposes build metadata of the alarm-monitor daemon and
// the alarm-ctl control tool.
//
// Version, Commit and BuildTime are injected at build time via Go ldflags
// and default to placeholders for local builds.
package version

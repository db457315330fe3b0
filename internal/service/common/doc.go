// Package common holds helpers shared by the daemon and the ctl tool.
//
// It provides a lightweight MonitorService client wrapper with timeouts and a
// helper to detect the current system actor (hostname/username) that is sent
// along with every command for the audit log.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

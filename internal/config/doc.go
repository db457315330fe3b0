// Package config defines the settings shared by the monitoring daemon and the
// control CLI and provides helpers to load, validate and save them.
//
// Settings come from a YAML file, then from a .env file next to it, then from
// the process environment; later sources win.
package config

// Package server runs the alarm-monitor daemon: it loads the settings, builds
// the sensor driver, the store, the action bus and every worker, and hands
// them to the supervisor until the process is interrupted or a worker dies.
package server

// Package checker implements `alarm-ctl status` and `alarm-ctl watch`.
package checker

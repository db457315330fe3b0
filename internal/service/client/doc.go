// Package client implements `alarm-ctl send`.
//
// The command submits an action to the monitor daemon and, for arming and
// disarming, keeps polling until the daemon reports the requested arm state.
package client

// Package monitor is the alarm state machine.
//
// A Monitor owns the arm state, the monitoring phase and the loaded sensor
// set. Every tick it waits for at most one action, samples the calibrated
// sensors, schedules or clears escalations and commits the tick's mutations
// to the store in one batch. Escalation timers run in their own goroutines
// and report back when their delay elapses; everything else happens on the
// goroutine running Run.
package monitor

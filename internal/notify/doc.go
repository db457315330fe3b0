// Package notify holds the outbound side of the daemon: state publishers for
// the push/UI channel (log, NATS, fan-out), the actuator the monitor calls when
// an escalation fires, and the notification dispatcher worker that delivers
// alert messages with a bounded retry policy.
package notify

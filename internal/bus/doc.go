// Package bus implements the action bus: a non-blocking fan-out of control
// actions to independent, unbounded worker inboxes with per-inbox FIFO order.
package bus

// Package alarm implements the gRPC transport of the monitor.
//
// The MonitorService is described by hand on top of protobuf well-known
// types, so neither the daemon nor the ctl tool needs generated code:
// SendAction takes a StringValue holding the action name and GetState
// returns the state snapshot as a Struct.
package alarm

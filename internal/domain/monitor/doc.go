// Package monitor contains the core domain types of the monitoring daemon:
// arm and monitoring states, actions travelling over the action bus, sensors,
// zones, alert records and the read-only Snapshot other workers consume.
package monitor

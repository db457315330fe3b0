package monitor

// Actor identifies who issued a command, for the audit log.
type Actor struct {
	// Hostname is the machine the command came from.
	Hostname string
	// Username is the local account that ran the command.
	Username string
}

// String formats the actor as user@host.
func (a *Actor) String() string {
	if a == nil {
		return "unknown"
	}

	return a.Username + "@" + a.Hostname
}

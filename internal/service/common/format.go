package common

import (
	"fmt"
	"strings"
	"time"

	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
)

// FormatSnapshot renders a snapshot on one line for logs and the terminal.
func FormatSnapshot(snapshot *domain.Snapshot) string {
	if snapshot == nil {
		return "<nil state>"
	}

	// Extract timestamp with fallback for missing data.
	timestamp := "<unknown>"
	if !snapshot.Timestamp.IsZero() {
		timestamp = snapshot.Timestamp.Format(time.RFC3339)
	}

	var alerting []string

	for _, s := range snapshot.Sensors {
		if s.Alert {
			alerting = append(alerting, fmt.Sprintf("%s(%d)", s.Name, s.Channel))
		}
	}

	alerts := "none"
	if len(alerting) > 0 {
		alerts = strings.Join(alerting, ",")
	}

	return fmt.Sprintf("arm=%s monitoring=%s sensors=%d alerting=%s syren=%s (%s)",
		snapshot.ArmState,
		snapshot.MonitoringState,
		len(snapshot.Sensors),
		alerts,
		onOff(snapshot.SyrenOn),
		timestamp,
	)
}

func onOff(v bool) string {
	if v {
		return "on"
	}

	return "off"
}

package alarm

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
)

// ErrMalformedState is returned by StructToSnapshot for unexpected payloads.
var ErrMalformedState = errors.New("malformed state")

// SnapshotToStruct converts a snapshot to the GetState payload.
func SnapshotToStruct(snapshot *domain.Snapshot) (*structpb.Struct, error) {
	sensors := make([]any, 0, len(snapshot.Sensors))

	for _, s := range snapshot.Sensors {
		sensors = append(sensors, map[string]any{
			"id":         float64(s.ID),
			"name":       s.Name,
			"channel":    float64(s.Channel),
			"alert":      s.Alert,
			"enabled":    s.Enabled,
			"escalating": s.Escalating,
		})
	}

	result, err := structpb.NewStruct(map[string]any{
		"timestamp":        snapshot.Timestamp.UTC().Format(time.RFC3339Nano),
		"arm_state":        string(snapshot.ArmState),
		"monitoring_state": string(snapshot.MonitoringState),
		"sensors_alerting": snapshot.SensorsAlerting,
		"syren_on":         snapshot.SyrenOn,
		"sensors":          sensors,
	})
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}

	return result, nil
}

// StructToSnapshot converts a GetState payload back to a snapshot.
func StructToSnapshot(payload *structpb.Struct) (*domain.Snapshot, error) {
	fields := payload.GetFields()

	timestamp, err := time.Parse(time.RFC3339Nano, fields["timestamp"].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %w", ErrMalformedState, err)
	}

	snapshot := &domain.Snapshot{
		Timestamp:       timestamp,
		ArmState:        domain.ArmState(fields["arm_state"].GetStringValue()),
		MonitoringState: domain.MonitoringState(fields["monitoring_state"].GetStringValue()),
		SensorsAlerting: fields["sensors_alerting"].GetBoolValue(),
		SyrenOn:         fields["syren_on"].GetBoolValue(),
	}

	for i, value := range fields["sensors"].GetListValue().GetValues() {
		sensor := value.GetStructValue().GetFields()
		if sensor == nil {
			return nil, fmt.Errorf("%w: sensor %d is not an object", ErrMalformedState, i)
		}

		snapshot.Sensors = append(snapshot.Sensors, domain.SensorStatus{
			ID:         int64(sensor["id"].GetNumberValue()),
			Name:       sensor["name"].GetStringValue(),
			Channel:    int(sensor["channel"].GetNumberValue()),
			Alert:      sensor["alert"].GetBoolValue(),
			Enabled:    sensor["enabled"].GetBoolValue(),
			Escalating: sensor["escalating"].GetBoolValue(),
		})
	}

	return snapshot, nil
}

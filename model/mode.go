package model

// InteractionMode describes who owns pointer clicks on the map.
type InteractionMode int

const (
	// ModeIdle lets the interaction dispatcher handle clicks.
	ModeIdle InteractionMode = iota
	// ModeMeasurementActive hands every click to the measurement tool.
	ModeMeasurementActive
)

func (m InteractionMode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeMeasurementActive:
		return "measurement_active"
	default:
		return "unknown"
	}
}

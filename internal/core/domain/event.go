package domain

type StateUpdateEvent interface {
	StateUpdateEventId() string
}

type FloatStateUpdateEvent struct {
	Id       string
	Value    float64
	Decimals int
}

func (e FloatStateUpdateEvent) StateUpdateEventId() string { return e.Id }

type BinaryStateUpdateEvent struct {
	Id    string
	Value bool
}

func (e BinaryStateUpdateEvent) StateUpdateEventId() string { return e.Id }

type TextStateUpdateEvent struct {
	Id    string
	Value string
}

func (e TextStateUpdateEvent) StateUpdateEventId() string { return e.Id }

// ClimateStateUpdateEvent carries a whole zone climate state. Nil fields
// mean "sensor absent" and are published as empty payloads, never as a
// bogus value.
type ClimateStateUpdateEvent struct {
	Id          string
	CurrentTemp *float64
	Setpoint    *float64
	Mode        OperationMode
	Preset      string
}

func (e ClimateStateUpdateEvent) StateUpdateEventId() string { return e.Id }

type LockStateUpdateEvent struct {
	Id     string
	Locked bool
}

func (e LockStateUpdateEvent) StateUpdateEventId() string { return e.Id }

type BridgeStateUpdateEvent struct {
	Value bool
}

func (e BridgeStateUpdateEvent) StateUpdateEventId() string { return SENSOR_ID_BRIDGE_STATE }

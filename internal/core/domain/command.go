package domain

import (
	"time"
)

type CommandState string

const (
	CommandStatePending         CommandState = "pending"
	CommandStateConfirmed       CommandState = "confirmed"
	CommandStateRejected        CommandState = "rejected"
	CommandStateTimeoutNoChange CommandState = "timeout_no_change"
)

func (s CommandState) Terminal() bool {
	return s == CommandStateConfirmed || s == CommandStateRejected || s == CommandStateTimeoutNoChange
}

type CommandType string

const (
	CommandSetTemperature CommandType = "set_temperature"
	CommandSetMode        CommandType = "set_mode"
	CommandSetEnergyLevel CommandType = "set_energy_level"
	CommandSetLock        CommandType = "set_lock"
)

// Command tracks one requested change from issue to terminal state.
// PreviousValue is captured at issue time: the vendor broker silently drops
// commands that would change nothing, and PreviousValue == NewValue is the
// only way to tell that silence apart from a genuinely lost command.
type Command struct {
	ID             string
	InstallationID string
	ZoneID         string
	Type           CommandType
	Payload        string

	IssuedAt      time.Time
	PreviousValue string
	NewValue      string

	State       CommandState
	ConfirmedAt *time.Time
}

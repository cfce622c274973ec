package domain

import (
	"time"
)

// SessionExpiryMargin is subtracted from the token expiry when deciding
// whether a token is still usable. The vendor rejects tokens a short while
// before their nominal expiry, so the margin errs on the early side.
const SessionExpiryMargin = 5 * time.Minute

// Session is the authenticated state against the vendor cloud. Owned by the
// token manager; everything else gets read-only copies.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	ClientID     string
	CreatedAt    time.Time
}

func (s Session) UsableAt(now time.Time) bool {
	return s.AccessToken != "" && now.Before(s.ExpiresAt.Add(-SessionExpiryMargin))
}

func (s Session) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

type OperationMode string

const (
	OperationModeHeat   OperationMode = "heat"
	OperationModeCool   OperationMode = "cool"
	OperationModeAuto   OperationMode = "auto"
	OperationModeManual OperationMode = "manual"
)

// Installation is an immutable snapshot of one vendor installation. A new
// fetch produces a whole new value; nothing mutates a published snapshot.
//
// Zones and controllers live in flat maps keyed by their vendor database ID
// (resp. controller number). Cross-references between them are ID fields,
// never pointers.
type Installation struct {
	ID          string
	Name        string
	OutsideTemp *float64
	Mode        OperationMode

	Groups        []Group
	Zones         map[string]*Zone
	Controllers   map[int]*Controller
	MixedCircuits []MixedCircuit

	FetchedAt time.Time
}

// Zone returns the zone for a database ID, or nil.
func (i *Installation) Zone(id string) *Zone {
	if i == nil {
		return nil
	}
	return i.Zones[id]
}

type Group struct {
	ID      string
	Name    string
	ZoneIDs []string
}

type Controller struct {
	Number  int
	Name    string
	ZoneIDs []string
}

// Zone is a controllable heating area. ID is the vendor database ID and is
// globally unique. Number is the display zone number and is NOT unique:
// zones on different controllers routinely share a number, so Number must
// never leak into topics or entity IDs.
type Zone struct {
	ID      string
	Number  int
	Name    string
	GroupID string

	CurrentTemp *float64
	Humidity    *float64
	Setpoint    *float64
	Mode        OperationMode
	EnergyLevel string
	Locked      bool

	Channels []Channel
}

// CommandAddress resolves the channelZone/controllerNumber pair used to
// address vendor commands for this zone.
func (z *Zone) CommandAddress() (channelZone int, controllerNumber int, ok bool) {
	if z == nil || len(z.Channels) == 0 {
		return 0, 0, false
	}
	ch := z.Channels[0]
	return ch.ChannelZone, ch.ControllerNumber, true
}

// Channel is a physical thermostat/sensor unit reporting into a zone.
type Channel struct {
	ID               string
	ChannelZone      int
	ControllerNumber int
	Type             string
}

// MixedCircuit is a hydraulic heating/cooling loop. Temperatures are nil
// when the corresponding sensor is absent.
type MixedCircuit struct {
	ID       string
	Name     string
	Setpoint *float64
	Supply   *float64
	Return   *float64
	PumpOn   bool
}

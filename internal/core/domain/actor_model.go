package domain

import "time"

const (
	ACTOR_ID_MASTER     = "master"
	ACTOR_ID_FETCHER    = "fetcher"
	ACTOR_ID_LOCAL_MQTT = "localmqtt"
	ACTOR_ID_CLOUD_MQTT = "cloudmqtt"
	ACTOR_ID_POLLER     = "poller"
	ACTOR_ID_TRACKER    = "tracker"
)

// Fetcher

type GetInstallationRequest struct {
	ActorRequestMixIn
}

type GetInstallationResponse struct {
	ActorResponseMixIn
	Installation *Installation
}

// Local MQTT

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishStateUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  StateUpdateEvent
}

type PublishStateUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors  []GenericSensor
	Climates []GenericClimate
	Locks    []GenericLock
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

// Cloud MQTT

type VendorCommandRequest struct {
	ActorRequestMixIn
	CommandID        string
	InstallationID   string
	ChannelZone      int
	ControllerNumber int
	Type             CommandType
	Payload          string
}

type VendorCommandResponse struct {
	ActorResponseMixIn
	CommandID string
	Rejected  bool
	Reason    string
}

// VendorRejectionEvent carries an explicit command refusal pushed by the
// vendor broker.
type VendorRejectionEvent struct {
	ZoneID string
	Type   CommandType
	Reason string
}

// VendorZoneUpdate is a live change pushed by the vendor broker. Echoes
// feed the command tracker; any update also hints the poller to reload.
type VendorZoneUpdate struct {
	Echoes []StateEcho
}

// Command tracker

type IssueCommandRequest struct {
	ActorRequestMixIn
	InstallationID string
	ZoneID         string
	Type           CommandType
	Payload        string
}

type IssueCommandResponse struct {
	ActorResponseMixIn
	CommandID string
}

type CommandStatusRequest struct {
	ActorRequestMixIn
	CommandID string
}

type CommandStatusResponse struct {
	ActorResponseMixIn
	Command *Command
}

// StateEcho carries an observed zone value back into the tracker so pending
// commands can be confirmed against it.
type StateEcho struct {
	ZoneID string
	Type   CommandType
	Value  string
}

// CommandOutcomeEvent is published on the event stream when a command
// reaches a terminal state.
type CommandOutcomeEvent struct {
	CommandID   string
	ZoneID      string
	State       CommandState
	ConfirmedAt *time.Time
}

// Health

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}

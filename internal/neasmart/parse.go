package neasmart

import (
	"encoding/json"
	"fmt"
	"time"

	"neasmart2mqtt/internal/core/domain"
)

var operationModes = map[int]domain.OperationMode{
	0: domain.OperationModeAuto,
	1: domain.OperationModeHeat,
	2: domain.OperationModeCool,
	3: domain.OperationModeManual,
}

var energyLevels = map[int]string{
	0: "normal",
	1: "reduced",
	2: "standby",
	3: "timed",
	4: "party",
	5: "vacation",
}

// ParseInstallations decodes the raw payload of the installation endpoint
// into typed snapshots. Zones are keyed by database ID throughout:
// (group, zoneNumber) is NOT unique, two zones on different controllers can
// share a number, and keying by number silently merges distinct rooms.
func ParseInstallations(data []byte) ([]*domain.Installation, error) {
	var raw []rawInstallation
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, validationErr("$", "not a JSON array of installations: %s", err)
	}

	installs := make([]*domain.Installation, 0, len(raw))
	for i := range raw {
		inst, err := parseInstallation(&raw[i])
		if err != nil {
			return nil, err
		}
		installs = append(installs, inst)
	}
	return installs, nil
}

func parseInstallation(raw *rawInstallation) (*domain.Installation, error) {
	if raw.Unique == "" {
		return nil, validationErr("installation", "missing unique id")
	}

	inst := &domain.Installation{
		ID:          raw.Unique,
		Name:        raw.Name,
		OutsideTemp: CelsiusOfPtr(raw.OutsideTemp),
		Mode:        OperationModeOf(raw.OperationMode),
		Zones:       map[string]*domain.Zone{},
		Controllers: map[int]*domain.Controller{},
		FetchedAt:   time.Now(),
	}

	for _, rc := range raw.Controllers {
		inst.Controllers[rc.Number] = &domain.Controller{
			Number: rc.Number,
			Name:   rc.Name,
		}
	}

	for gi, rg := range raw.Groups {
		path := fmt.Sprintf("installation[%s].groups[%d]", raw.Unique, gi)
		if rg.ID == "" {
			return nil, validationErr(path, "missing group id")
		}
		group := domain.Group{ID: rg.ID, Name: rg.Name}

		for zi, rz := range rg.Zones {
			zonePath := fmt.Sprintf("%s.zones[%d]", path, zi)
			if rz.ID == "" {
				return nil, validationErr(zonePath, "missing zone database id")
			}
			if _, dup := inst.Zones[rz.ID]; dup {
				return nil, validationErr(zonePath, "duplicate zone database id %s", rz.ID)
			}
			zone, err := parseZone(zonePath, &rz, rg.ID)
			if err != nil {
				return nil, err
			}
			inst.Zones[zone.ID] = zone
			group.ZoneIDs = append(group.ZoneIDs, zone.ID)

			for _, ch := range zone.Channels {
				if ctrl, ok := inst.Controllers[ch.ControllerNumber]; ok {
					ctrl.ZoneIDs = append(ctrl.ZoneIDs, zone.ID)
				}
			}
		}
		inst.Groups = append(inst.Groups, group)
	}

	for mi, rm := range raw.MixedCircuits {
		path := fmt.Sprintf("installation[%s].mixedCircuits[%d]", raw.Unique, mi)
		if rm.ID == "" {
			return nil, validationErr(path, "missing mixed circuit id")
		}
		inst.MixedCircuits = append(inst.MixedCircuits, domain.MixedCircuit{
			ID:       rm.ID,
			Name:     rm.Name,
			Setpoint: CelsiusOfPtr(rm.Setpoint),
			Supply:   CelsiusOfPtr(rm.Supply),
			Return:   CelsiusOfPtr(rm.Return),
			PumpOn:   rm.PumpOn,
		})
	}

	if err := validateInstallation(inst); err != nil {
		return nil, err
	}
	return inst, nil
}

func parseZone(path string, rz *rawZone, groupID string) (*domain.Zone, error) {
	zone := &domain.Zone{
		ID:      rz.ID,
		Number:  rz.Number,
		Name:    rz.Name,
		GroupID: groupID,
	}
	if zone.Name == "" {
		zone.Name = fmt.Sprintf("Zone %d", rz.Number)
	}

	for ci, rc := range rz.Channels {
		if rc.ID == "" {
			return nil, validationErr(fmt.Sprintf("%s.channels[%d]", path, ci), "missing channel id")
		}
		zone.Channels = append(zone.Channels, domain.Channel{
			ID:               rc.ID,
			ChannelZone:      rc.ChannelZone,
			ControllerNumber: rc.ControllerNumber,
			Type:             rc.Type,
		})
		// zone-level state comes from the first channel that reports it
		if zone.CurrentTemp == nil {
			zone.CurrentTemp = CelsiusOfPtr(rc.CurrentTemp)
		}
		if zone.Setpoint == nil {
			zone.Setpoint = CelsiusOfPtr(rc.Setpoint)
		}
		if zone.Humidity == nil && rc.Humidity != nil {
			h := float64(*rc.Humidity)
			zone.Humidity = &h
		}
		if zone.Mode == "" {
			zone.Mode = OperationModeOf(rc.OperationMode)
		}
		if zone.EnergyLevel == "" {
			zone.EnergyLevel = EnergyLevelOf(rc.EnergyLevel)
		}
		zone.Locked = zone.Locked || rc.Locked
	}
	return zone, nil
}

// validateInstallation re-walks the typed snapshot. It guards the contract
// the rest of the bridge relies on: zones resolvable by database ID, all
// cross-references by ID valid, command addresses present.
func validateInstallation(inst *domain.Installation) error {
	seen := map[string]bool{}
	for _, g := range inst.Groups {
		for _, zid := range g.ZoneIDs {
			zone, ok := inst.Zones[zid]
			if !ok {
				return validationErr("group "+g.ID, "references unknown zone %s", zid)
			}
			if zone.GroupID != g.ID {
				return validationErr("zone "+zid, "group back-reference mismatch")
			}
			if seen[zid] {
				return validationErr("zone "+zid, "zone referenced by multiple groups")
			}
			seen[zid] = true
		}
	}
	for zid, zone := range inst.Zones {
		if zone.ID != zid {
			return validationErr("zone "+zid, "map key does not match zone id")
		}
		if !seen[zid] {
			return validationErr("zone "+zid, "zone not referenced by any group")
		}
		if _, _, ok := zone.CommandAddress(); !ok {
			return validationErr("zone "+zid, "no channel to address commands to")
		}
	}
	return nil
}

func OperationModeOf(raw int) domain.OperationMode {
	if m, ok := operationModes[raw]; ok {
		return m
	}
	return domain.OperationModeAuto
}

func EnergyLevelOf(raw int) string {
	if l, ok := energyLevels[raw]; ok {
		return l
	}
	return "normal"
}

// OperationModeRaw is the inverse of the mode decoding, used when encoding
// commands back to the vendor.
func OperationModeRaw(mode domain.OperationMode) (int, bool) {
	for raw, m := range operationModes {
		if m == mode {
			return raw, true
		}
	}
	return 0, false
}

// EnergyLevelRaw is the inverse of the energy level decoding.
func EnergyLevelRaw(level string) (int, bool) {
	for raw, l := range energyLevels {
		if l == level {
			return raw, true
		}
	}
	return 0, false
}

package tracking

import (
	"strings"

	"github.com/google/uuid"

	"github.com/unklstewy/radarfusion/pkg/adsb"
)

// mergeField assigns src to dst when src is set and dst is either unset or
// held by a source of strictly lower priority (larger rank). A holder of
// equal or higher priority keeps its value.
func mergeField[T comparable](dst *T, dstPrio *int, src T, srcPrio int) {
	var zero T
	if src == zero {
		return
	}
	if *dst != zero && *dstPrio <= srcPrio {
		return
	}
	*dst = src
	*dstPrio = srcPrio
}

func normalizeID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Identifier is the identity of one physical aircraft as seen by every feed
// that reported it. Equality is a prioritized partial match, see Equals.
type Identifier struct {
	// ID is generated once per tracked aircraft and only keeps renderers
	// attached to the same target between snapshots.
	ID uuid.UUID

	Registration      string
	Address           string
	Callsign          string
	CompetitionNumber string
	FlightNumber      string
	Squawk            string

	prio identifierPriority
}

// identifierPriority holds, per field, the rank of the source that set it.
type identifierPriority struct {
	registration      int
	address           int
	callsign          int
	competitionNumber int
	flightNumber      int
	squawk            int
}

// NewIdentifier builds an identifier whose fields all carry the given source
// rank. Values are trimmed and upper-cased.
func NewIdentifier(registration, address, callsign, competitionNumber, flightNumber, squawk string, priority int) Identifier {
	return Identifier{
		ID:                uuid.New(),
		Registration:      normalizeID(registration),
		Address:           normalizeID(address),
		Callsign:          normalizeID(callsign),
		CompetitionNumber: normalizeID(competitionNumber),
		FlightNumber:      normalizeID(flightNumber),
		Squawk:            normalizeID(squawk),
		prio: identifierPriority{
			registration:      priority,
			address:           priority,
			callsign:          priority,
			competitionNumber: priority,
			flightNumber:      priority,
			squawk:            priority,
		},
	}
}

// IsUsable reports whether any field that takes part in matching is set.
func (id Identifier) IsUsable() bool {
	return id.Address != "" || id.Callsign != "" || id.Registration != "" ||
		id.Squawk != "" || id.FlightNumber != ""
}

// Combine merges other into id field by field. A field is taken from other
// when other has it and its source ranks strictly higher than the one that
// set the current value. The render ID is kept.
func (id *Identifier) Combine(other Identifier) {
	mergeField(&id.Registration, &id.prio.registration, other.Registration, other.prio.registration)
	mergeField(&id.Address, &id.prio.address, other.Address, other.prio.address)
	mergeField(&id.Callsign, &id.prio.callsign, other.Callsign, other.prio.callsign)
	mergeField(&id.CompetitionNumber, &id.prio.competitionNumber, other.CompetitionNumber, other.prio.competitionNumber)
	mergeField(&id.FlightNumber, &id.prio.flightNumber, other.FlightNumber, other.prio.flightNumber)
	mergeField(&id.Squawk, &id.prio.squawk, other.Squawk, other.prio.squawk)
}

// Equals reports whether id and other denote the same aircraft, render ID
// included. It is meant for lookups of already resolved aircraft.
//
// near is consulted only when the decision falls to the squawk and must
// report whether the two aircraft are spatially close. A nil near never
// matches on squawk.
func (id Identifier) Equals(other Identifier, near func() bool) bool {
	return id.matches(other, near, true)
}

// SameAircraft is Equals without the render ID step. It is used when
// merging raw identities, where every new record carries a fresh ID.
func (id Identifier) SameAircraft(other Identifier, near func() bool) bool {
	return id.matches(other, near, false)
}

// matches walks the fields in order of reliability; the first one set on
// both sides decides. When none is, an identity that consists of a squawk
// alone joins a nearby aircraft that carries no squawk. The relation is not
// transitive.
func (id Identifier) matches(other Identifier, near func() bool, useID bool) bool {
	if useID && id.ID != uuid.Nil && other.ID != uuid.Nil {
		return id.ID == other.ID
	}
	if id.Address != "" && other.Address != "" {
		return id.Address == other.Address
	}
	if id.FlightNumber != "" && other.FlightNumber != "" {
		return id.FlightNumber == other.FlightNumber
	}
	if id.Callsign != "" && other.Callsign != "" {
		return id.Callsign == other.Callsign
	}
	// squawk codes are reused by simultaneous flights
	if id.Squawk != "" && other.Squawk != "" {
		return id.Squawk == other.Squawk && near != nil && near()
	}
	if id.Registration != "" && other.Registration != "" {
		return id.Registration == other.Registration
	}
	if id.squawkOnly() || other.squawkOnly() {
		return near != nil && near()
	}
	return false
}

// squawkOnly reports whether the squawk is the only matching field set.
func (id Identifier) squawkOnly() bool {
	return id.Squawk != "" && id.Address == "" && id.FlightNumber == "" &&
		id.Callsign == "" && id.Registration == ""
}

// Label returns the most human-friendly identity available.
func (id Identifier) Label() string {
	for _, s := range []string{id.Callsign, id.Registration, id.CompetitionNumber, id.FlightNumber, id.Address, id.Squawk} {
		if s != "" {
			return s
		}
	}
	return id.ID.String()
}

// AircraftInfo is descriptive metadata merged from every feed.
type AircraftInfo struct {
	Model            string
	Operator         string
	Route            string
	CompetitionClass string
	PilotName        string
	Type             adsb.AircraftType

	prio infoPriority
}

type infoPriority struct {
	model            int
	operator         int
	route            int
	competitionClass int
	pilotName        int
	aircraftType     int
}

// NewAircraftInfo builds info whose fields all carry the given source rank.
func NewAircraftInfo(model, operator, route, competitionClass, pilotName string, typ adsb.AircraftType, priority int) AircraftInfo {
	return AircraftInfo{
		Model:            strings.TrimSpace(model),
		Operator:         strings.TrimSpace(operator),
		Route:            strings.TrimSpace(route),
		CompetitionClass: strings.TrimSpace(competitionClass),
		PilotName:        strings.TrimSpace(pilotName),
		Type:             typ,
		prio: infoPriority{
			model:            priority,
			operator:         priority,
			route:            priority,
			competitionClass: priority,
			pilotName:        priority,
			aircraftType:     priority,
		},
	}
}

// Combine merges other into info with the same rule as Identifier.Combine.
func (info *AircraftInfo) Combine(other AircraftInfo) {
	mergeField(&info.Model, &info.prio.model, other.Model, other.prio.model)
	mergeField(&info.Operator, &info.prio.operator, other.Operator, other.prio.operator)
	mergeField(&info.Route, &info.prio.route, other.Route, other.prio.route)
	mergeField(&info.CompetitionClass, &info.prio.competitionClass, other.CompetitionClass, other.prio.competitionClass)
	mergeField(&info.PilotName, &info.prio.pilotName, other.PilotName, other.prio.pilotName)
	mergeField(&info.Type, &info.prio.aircraftType, other.Type, other.prio.aircraftType)
}

// Package events defines the telemetry event vocabulary shared by every
// component that can observe something telemetry-worthy (spec.md §6). It
// exists so that neighbor, routing, stratum, relay, gateway and scheduler can
// each emit events without importing the telemetry package's MQTT/queueing
// machinery directly — they only depend on the small Sink interface here,
// mirroring how the teacher's cmd/mqttradio modules depend on a narrow
// pubFunc/LogPrintf pair rather than the concrete *mq type.
package events

// Kind is one of the event kinds recognised by the reference tooling
// (spec.md §6).
type Kind string

const (
	NeighborAdded   Kind = "NEIGHBOR_ADDED"
	NeighborRemoved Kind = "NEIGHBOR_REMOVED"
	BidirLink       Kind = "BIDIR_LINK"
	RSSILow         Kind = "RSSI_LOW"
	CycleSync       Kind = "CYCLE_SYNC"
	CycleVal        Kind = "CYCLE_VAL"
	HopChange       Kind = "HOP_CHANGE"
	ForwardEnqueue  Kind = "FORWARD_ENQUEUE"
	GWRxData        Kind = "GW_RX_DATA"
	Latency         Kind = "LATENCY"
	PDRNetwork      Kind = "PDR_NETWORK"
	PDRNode         Kind = "PDR_NODE"
	PktRx           Kind = "PKT_RX"
	Status          Kind = "STATUS"
	CmdExecuted     Kind = "CMD_EXECUTED"

	// Capacity/validation failures have no kinds of their own: they are
	// emitted under the kinds above with an "ok": false and/or "reason"
	// field (e.g. FORWARD_ENQUEUE with reason "full"), so a telemetry
	// consumer can filter on Fields["reason"].
)

// Fields is a small, allocation-light bag of event attributes. Components
// pass concrete values (NodeId, dBm, counts); Sink implementations decide how
// to encode them (telemetry's Event.ToWire packs the numeric ones with varint).
type Fields map[string]any

// Sink receives telemetry events. Emit must never block the caller (spec.md
// §5): a bounded-queue Sink drops on overflow rather than backing up the
// core event loop. Calling Emit on a nil Sink panics, so the core
// components' constructors substitute Discard for a nil Sink; after that
// they call sink.Emit without a nil check at every call site — mirroring the
// teacher's `debug LogPrintf` pattern where a no-op logger function is
// installed when debug logging is off.
type Sink interface {
	Emit(kind Kind, fields Fields)
}

// Discard is a Sink that drops every event; used where telemetry is not
// wired up (e.g. unit tests of routing/stratum logic in isolation).
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(Kind, Fields) {}

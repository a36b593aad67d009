// Package upstream is the gateway's external handoff: batches of delivered
// payloads leave the core through the Sink interface, with an MQTT
// implementation grounded in the teacher's broker-connection wiring.
package upstream

import "github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/meshconst"

// Message is one delivered payload, ready to leave the core.
type Message struct {
	Origin    meshconst.NodeID
	MessageID uint16
	Payload   []byte
	Path      []meshconst.NodeID
}

// Sink accepts a bounded batch of delivered messages. Delivery is
// best-effort; implementations must not block the caller indefinitely and
// the core never retries a failed batch.
type Sink interface {
	PublishBatch(msgs []Message)
}

// Discard drops every batch. It is the zero-configuration default for
// nodes (and tests) with no upstream collector attached.
var Discard Sink = discardSink{}

type discardSink struct{}

func (discardSink) PublishBatch([]Message) {}

package telemetry

import (
	"encoding/hex"

	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/events"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/radioio"
)

// RawRelay implements radioio.RawSink by forwarding every raw frame capture
// onto an events.Sink as a hex-encoded field, the verbose-telemetry
// counterpart to the decoded PKT_RX event. It exists so cmd/meshnode only
// wires a scheduler.RawSink when the node's configured Mode asks for it
// (mode 2, "verbose telemetry" per config.NodeConfig.Mode's doc comment).
type RawRelay struct {
	Sink events.Sink
}

func (r RawRelay) OnRawRx(pkt radioio.RawRxPacket) {
	r.Sink.Emit(events.PktRx, events.Fields{
		"raw":  hex.EncodeToString(pkt.Packet),
		"rssi": pkt.RSSI,
		"snr":  pkt.SNR,
	})
}

func (r RawRelay) OnRawTx(pkt radioio.RawTxPacket) {
	r.Sink.Emit(events.Status, events.Fields{
		"raw_tx": hex.EncodeToString(pkt.Packet),
	})
}

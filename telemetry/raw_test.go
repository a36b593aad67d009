package telemetry

import (
	"testing"

	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/radioio"
)

func TestRawRelayForwardsRxAsHex(t *testing.T) {
	q := NewQueue()
	relay := RawRelay{Sink: q}
	relay.OnRawRx(radioio.RawRxPacket{Packet: []byte{0xDE, 0xAD}, RSSI: -80, SNR: 4})

	drained := q.Drain()
	if len(drained) != 1 {
		t.Fatalf("drained %d events, want 1", len(drained))
	}
	if drained[0].Fields["raw"] != "dead" {
		t.Fatalf("raw field = %v, want hex-encoded packet", drained[0].Fields["raw"])
	}
}

func TestRawRelayForwardsTxAsHex(t *testing.T) {
	q := NewQueue()
	relay := RawRelay{Sink: q}
	relay.OnRawTx(radioio.RawTxPacket{Packet: []byte{0xBE, 0xEF}})

	drained := q.Drain()
	if len(drained) != 1 {
		t.Fatalf("drained %d events, want 1", len(drained))
	}
	if drained[0].Fields["raw_tx"] != "beef" {
		t.Fatalf("raw_tx field = %v", drained[0].Fields["raw_tx"])
	}
}

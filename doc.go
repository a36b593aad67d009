// Package meshtdma is the TDMA mesh protocol core: a slotted scheduler,
// neighbour table and distance-vector routing, stratum time-sync
// propagation, and store-and-forward relay/gateway delivery for a low-power
// LoRa sensor mesh. The packages below this one implement the core; the
// radio driver, UI, persisted configuration, and host-side tooling are
// external collaborators reached only through the interfaces in radioio,
// config, control, telemetry and upstream. See cmd/meshnode for the
// firmware entrypoint that wires them together.
package meshtdma

// Package config loads the node's persisted configuration record (spec.md
// §6): ssid/password/server_ip/debug_mode/rssi thresholds/tx power, plus
// the node/slot/network sizing a deployment must pin. It follows the
// teacher's cmd/mqttradio/main.go pattern exactly: a TOML file unmarshalled
// with github.com/BurntSushi/toml into a tagged struct, with compiled-in
// defaults substituted whenever the file is absent or a field is out of its
// documented range.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/meshconst"
)

// NodeConfig is the persisted record described in spec.md §6. Fields not
// named there (NodeID, Slot, NSlots, AutoSendIntervalCycles) are the static
// network-sizing inputs spec.md §3 says are externally assigned.
type NodeConfig struct {
	SSID       string `toml:"ssid"`
	Password   string `toml:"password"`
	ServerIP   string `toml:"server_ip"`
	DebugMode  bool   `toml:"debug_mode"`
	RSSIMin    int    `toml:"rssi_min"`
	RSSIGood   int    `toml:"rssi_good"`
	TxPowerDBm int    `toml:"tx_power_dbm"`

	// Mode is the control channel's SET_MODE <0|1|2> target: spec.md §6
	// names the verb but not its payload shape, so this repository treats
	// it as a three-level operating mode (0=normal, 1=debug, 2=verbose
	// telemetry) layered onto DebugMode rather than a second boolean.
	Mode int `toml:"mode"`

	NodeID                 uint16 `toml:"node_id"`
	IsGateway              bool   `toml:"is_gateway"`
	Slot                   uint8  `toml:"slot"`
	NSlots                 uint8  `toml:"n_slots"`
	AutoSendIntervalCycles int    `toml:"auto_send_interval_cycles"`

	// ControlAddr is the UDP address control.ServePacketConn listens on
	// for the command grammar (spec.md §6).
	ControlAddr string `toml:"control_addr"`

	MQTT  MQTTConfig  `toml:"mqtt"`
	Radio RadioConfig `toml:"radio"`
}

// RadioConfig names the SPI/GPIO wiring for the node's SX1276, mirroring
// the fields the teacher's RadioConfig carries per-radio (SpiBus/SpiCS/
// IntrPin/Freq), trimmed to the single radio one node drives.
type RadioConfig struct {
	SpiBus  int    `toml:"spi_bus"`
	SpiCS   int    `toml:"spi_cs"`
	IntrPin string `toml:"intr_pin"`
	FreqHz  uint32 `toml:"freq_hz"`
}

// MQTTConfig names the broker used by both the telemetry mirror and (on the
// gateway) the upstream sink, mirroring the teacher's MqttConfig struct.
type MQTTConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Topic    string `toml:"topic"`
}

// Default is the compiled-in record substituted whenever the file is
// absent or invalid, naming exactly the operating defaults spec.md §6
// states (SF7/BW125/CR4-5/preamble 8/fixed-length/CRC-on/915MHz live in
// radioio.DefaultConfig; this record covers the rest).
var Default = NodeConfig{
	RSSIMin:                meshconst.RSSIMin,
	RSSIGood:               meshconst.RSSIGood,
	TxPowerDBm:             14,
	NodeID:                 meshconst.GatewayID,
	IsGateway:              true,
	Slot:                   0,
	NSlots:                 6,
	AutoSendIntervalCycles: meshconst.AutoSendIntervalCycles,
	ControlAddr:            ":7777",
	MQTT: MQTTConfig{
		Host:  "localhost",
		Port:  1883,
		Topic: "mesh",
	},
	Radio: RadioConfig{
		SpiBus:  0,
		SpiCS:   0,
		IntrPin: "GPIO25",
		FreqHz:  915_000_000,
	},
}

// Load reads and validates path, falling back to Default for the whole
// record if the file cannot be read, and to Default's individual fields for
// any out-of-range value the file does supply (spec.md §6: "an invalid or
// absent record yields compiled-in defaults").
func Load(path string) (NodeConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Default, nil
	}

	cfg := Default
	if _, err := toml.Decode(string(raw), &cfg); err != nil {
		return Default, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return sanitize(cfg), nil
}

// sanitize replaces any field outside its documented range with the
// compiled-in default rather than rejecting the whole record.
func sanitize(cfg NodeConfig) NodeConfig {
	if cfg.NodeID == meshconst.Broadcast {
		cfg.NodeID = Default.NodeID
	}
	if cfg.NSlots == 0 {
		cfg.NSlots = Default.NSlots
	}
	if cfg.Slot >= cfg.NSlots {
		cfg.Slot = Default.Slot
	}
	if cfg.RSSIMin > 0 || cfg.RSSIMin < -200 {
		cfg.RSSIMin = Default.RSSIMin
	}
	if cfg.RSSIGood > 0 || cfg.RSSIGood < -200 {
		cfg.RSSIGood = Default.RSSIGood
	}
	if cfg.TxPowerDBm <= 0 || cfg.TxPowerDBm > 20 {
		cfg.TxPowerDBm = Default.TxPowerDBm
	}
	if cfg.AutoSendIntervalCycles <= 0 || cfg.AutoSendIntervalCycles > int(meshconst.CycleMax) {
		cfg.AutoSendIntervalCycles = Default.AutoSendIntervalCycles
	}
	if cfg.Mode < 0 || cfg.Mode > 2 {
		cfg.Mode = Default.Mode
	}
	if cfg.Radio.FreqHz == 0 {
		cfg.Radio.FreqHz = Default.Radio.FreqHz
	}
	if cfg.Radio.IntrPin == "" {
		cfg.Radio.IntrPin = Default.Radio.IntrPin
	}
	if cfg.ControlAddr == "" {
		cfg.ControlAddr = Default.ControlAddr
	}
	return cfg
}

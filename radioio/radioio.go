// Package radioio is the external radio collaborator: a synchronous
// begin/configure/transmit/receive interface the scheduler drives directly,
// plus a concrete SX1276 adapter built on periph.io/x/periph's SPI and GPIO
// conn types the way the teacher's sx1276 driver does register access.
package radioio

import "time"

// Radio is the boundary the core depends on. Begin, Configure and Transmit
// may block; ReceiveOnce and PacketStatus must not.
type Radio interface {
	Begin(freqHz uint32, txPowerDBm int8) error
	Configure(cfg Config) error
	// Transmit blocks until the packet is fully on-air and reports success.
	Transmit(buf []byte) bool
	// ReceiveOnce is non-blocking: it returns the frame length and true if a
	// complete packet is sitting in the receive buffer, else false.
	ReceiveOnce(buf []byte) (int, bool)
	// PacketStatus reports RSSI/SNR for the most recently received packet.
	PacketStatus() (rssiDBm int8, snrDB int8)
}

// Config holds the modem parameters the wire format's operating defaults
// name. The control channel's SHOW/SET commands do not read or change it.
type Config struct {
	SpreadingFactor int
	BandwidthHz     int
	CodingRate      int // denominator of 4/N
	Preamble        int
	FixedLength     bool
	CRCEnabled      bool
	InvertIQ        bool
}

// DefaultConfig matches the defaults named for the wire format: SF7,
// BW125kHz, CR 4/5, preamble 8, fixed length on, CRC on, non-inverted IQ.
var DefaultConfig = Config{
	SpreadingFactor: 7,
	BandwidthHz:     125000,
	CodingRate:      5,
	Preamble:        8,
	FixedLength:     true,
	CRCEnabled:      true,
	InvertIQ:        false,
}

// DefaultFrequencyHz is the 915 MHz ISM-band default center frequency.
const DefaultFrequencyHz = 915_000_000

// Clock is the monotonic microsecond clock the scheduler uses for all
// timing math.
type Clock interface {
	NowUs() uint64
	// EpochNowUs reports wall-clock microseconds since epoch, when an
	// external wall-clock source (e.g. NTP) is available.
	EpochNowUs() (int64, bool)
}

// SystemClock is a Clock backed by the OS monotonic and wall clocks.
type SystemClock struct{ start time.Time }

// NewSystemClock returns a Clock whose NowUs is relative to construction
// time, matching a firmware's power-on monotonic counter.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) NowUs() uint64 {
	return uint64(time.Since(c.start).Microseconds())
}

func (c *SystemClock) EpochNowUs() (int64, bool) {
	return time.Now().UnixMicro(), true
}

// RawRxPacket is a raw-frame debug capture, lifted from the teacher's
// cmd/mqttradio/raw.go RawRxPacket (packet bytes, RSSI/SNR, arrival time).
// It carries no decoded mesh semantics; scheduler forwards one of these to
// an optional RawSink whenever verbose telemetry (config.NodeConfig.Mode==2)
// wants the bytes on the wire, not just the decoded fields.
type RawRxPacket struct {
	Packet []byte
	RSSI   int8
	SNR    int8
	At     time.Time
}

// RawTxPacket mirrors RawRxPacket for the transmit side, lifted from the
// same source.
type RawTxPacket struct {
	Packet []byte
	At     time.Time
}

// RawSink receives raw packet captures. A nil RawSink is never invoked;
// scheduler checks for nil before calling either method.
type RawSink interface {
	OnRawRx(RawRxPacket)
	OnRawTx(RawTxPacket)
}

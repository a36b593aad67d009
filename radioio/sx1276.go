package radioio

import (
	"fmt"
	"time"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/spi"
)

const txTimeout = time.Second

// Register addresses used by the SX1276/77/78/79 LoRa modem, named the way
// the teacher's driver names them.
const (
	regFifo         = 0x00
	regOpMode       = 0x01
	regFrfMSB       = 0x06
	regFifoAddrPtr  = 0x0d
	regFifoTxBase   = 0x0e
	regFifoRxBase   = 0x0f
	regFifoRxCurrent = 0x10
	regIRQFlags     = 0x12
	regRxNbBytes    = 0x13
	regPktSnrValue  = 0x19
	regPktRssiValue = 0x1a
	regModemConfig1 = 0x1d
	regModemConfig2 = 0x1e
	regPreambleMSB  = 0x20
	regPayloadLen   = 0x22
	regModemConfig3 = 0x26
	regPaConfig     = 0x09
	regVersion      = 0x42
)

const (
	modeSleep    = 0x00
	modeStandby  = 0x01
	modeTx       = 0x03
	modeRxCont   = 0x05
	modeLongRangeMode = 0x80
)

// SX1276 drives a Semtech SX1276-family radio over SPI, polled
// synchronously rather than interrupt-driven: the scheduler calls
// ReceiveOnce itself within its RX windows, so there is no internal
// worker goroutine or channel pair here.
type SX1276 struct {
	conn    spi.Conn
	intrPin gpio.PinIn
}

// NewSX1276 wraps an already-opened SPI connection and interrupt pin.
func NewSX1276(conn spi.Conn, intrPin gpio.PinIn) *SX1276 {
	return &SX1276{conn: conn, intrPin: intrPin}
}

func (r *SX1276) readReg(addr byte) byte {
	tx := []byte{addr & 0x7f, 0}
	rx := make([]byte, 2)
	r.conn.Tx(tx, rx)
	return rx[1]
}

func (r *SX1276) writeReg(addr byte, v byte) {
	r.conn.Tx([]byte{addr | 0x80, v}, make([]byte, 2))
}

func (r *SX1276) setMode(mode byte) {
	r.writeReg(regOpMode, modeLongRangeMode|mode)
}

// Begin resets the chip into LoRa standby mode, checks the version
// register, and applies the frequency and power.
func (r *SX1276) Begin(freqHz uint32, txPowerDBm int8) error {
	r.setMode(modeSleep)
	if v := r.readReg(regVersion); v == 0x00 || v == 0xff {
		return fmt.Errorf("radioio: no response from radio (version=%#x)", v)
	}
	r.setMode(modeStandby)
	r.setFrequency(freqHz)
	r.setPower(txPowerDBm)
	r.writeReg(regFifoTxBase, 0)
	r.writeReg(regFifoRxBase, 0)
	r.setMode(modeRxCont)
	return nil
}

func (r *SX1276) setFrequency(freqHz uint32) {
	frf := (uint64(freqHz) << 19) / 32_000_000
	r.writeReg(regFrfMSB, byte(frf>>16))
	r.writeReg(regFrfMSB+1, byte(frf>>8))
	r.writeReg(regFrfMSB+2, byte(frf))
}

func (r *SX1276) setPower(dBm int8) {
	if dBm < 2 {
		dBm = 2
	}
	if dBm > 20 {
		dBm = 20
	}
	r.writeReg(regPaConfig, 0x80|byte(dBm-2)) // PA_BOOST pin, matches RFM9x wiring
}

// Configure applies the modem configuration named by cfg. Bandwidth and
// coding rate are encoded the way the datasheet's ModemConfig1 register
// packs them; spreading factor and CRC live in ModemConfig2.
func (r *SX1276) Configure(cfg Config) error {
	bwCode, err := bandwidthCode(cfg.BandwidthHz)
	if err != nil {
		return err
	}
	crCode := byte(cfg.CodingRate-4) & 0x07

	r.setMode(modeStandby)
	conf1 := bwCode<<4 | crCode<<1
	if cfg.FixedLength {
		conf1 |= 0x01 // implicit header
	}
	r.writeReg(regModemConfig1, conf1)

	conf2 := byte(cfg.SpreadingFactor&0x0f) << 4
	if cfg.CRCEnabled {
		conf2 |= 0x04
	}
	r.writeReg(regModemConfig2, conf2)
	r.writeReg(regModemConfig3, 0x04) // AGC on

	r.writeReg(regPreambleMSB, byte(cfg.Preamble>>8))
	r.writeReg(regPreambleMSB+1, byte(cfg.Preamble))
	r.setMode(modeRxCont)
	return nil
}

func bandwidthCode(hz int) (byte, error) {
	switch hz {
	case 125000:
		return 0x07, nil
	case 250000:
		return 0x08, nil
	case 500000:
		return 0x09, nil
	default:
		return 0, fmt.Errorf("radioio: unsupported bandwidth %d Hz", hz)
	}
}

// Transmit writes buf into the FIFO and blocks until the TxDone IRQ flag
// is observed.
func (r *SX1276) Transmit(buf []byte) bool {
	r.setMode(modeStandby)
	r.writeReg(regFifoAddrPtr, 0)
	for _, b := range buf {
		r.writeReg(regFifo, b)
	}
	r.writeReg(regPayloadLen, byte(len(buf)))
	r.setMode(modeTx)

	if !r.intrPin.WaitForEdge(txTimeout) {
		return false
	}
	r.writeReg(regIRQFlags, 0xff)
	r.setMode(modeRxCont)
	return true
}

// ReceiveOnce checks the IRQ flags for a completed RX and, if present,
// copies the FIFO contents into buf.
func (r *SX1276) ReceiveOnce(buf []byte) (int, bool) {
	flags := r.readReg(regIRQFlags)
	const rxDone = 0x40
	const crcErr = 0x20
	if flags&rxDone == 0 {
		return 0, false
	}
	defer r.writeReg(regIRQFlags, 0xff)
	if flags&crcErr != 0 {
		return 0, false
	}

	n := int(r.readReg(regRxNbBytes))
	if n > len(buf) {
		n = len(buf)
	}
	addr := r.readReg(regFifoRxCurrent)
	r.writeReg(regFifoAddrPtr, addr)
	for i := 0; i < n; i++ {
		buf[i] = r.readReg(regFifo)
	}
	return n, true
}

// PacketStatus decodes the last packet's SNR and RSSI registers per the
// datasheet's documented formulas.
func (r *SX1276) PacketStatus() (rssiDBm int8, snrDB int8) {
	snrRaw := int8(r.readReg(regPktSnrValue))
	snrDB = snrRaw / 4
	rssiRaw := int(r.readReg(regPktRssiValue))
	rssiDBm = int8(rssiRaw - 157)
	return rssiDBm, snrDB
}

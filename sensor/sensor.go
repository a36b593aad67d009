// Package sensor is a stub payload source standing in for whatever sensor a
// deployment actually carries (spec.md §1 explicitly scopes real sensor
// acquisition out). It is structurally adapted from max31855.Dev: a
// constructor and a single Read-style accessor, but with no transport handle
// and no SPI transaction, since there is no real chip behind it.
package sensor

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/meshconst"
)

// Dev is a stub sensor producing a six-byte payload each call,
// matching meshconst.MaxPayloadLen so it drops straight into
// scheduler.PayloadSource without padding or truncation.
type Dev struct {
	seq uint32 // atomic; included in the payload so samples are distinguishable
}

// New returns a ready stub device. It takes no transport handle, unlike
// max31855.New(port), because there is nothing to configure, and its error
// is always nil for the same reason; the error result is kept so the
// signature has the same shape as a real device constructor.
func New() (*Dev, error) {
	return &Dev{}, nil
}

// Read returns the next six-byte sample: a 2-byte sequence counter and a
// 4-byte synthetic millidegree reading derived from wall-clock time, so
// repeated calls are distinguishable without a real thermocouple behind
// them. It implements scheduler.PayloadSource.
func (d *Dev) Read() []byte {
	n := atomic.AddUint32(&d.seq, 1)
	if n > 0xFFFF {
		atomic.StoreUint32(&d.seq, 1)
		n = 1
	}

	buf := make([]byte, meshconst.MaxPayloadLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(n))
	millideg := int32(20000 + (time.Now().UnixNano()/1_000_000)%500)
	binary.BigEndian.PutUint32(buf[2:6], uint32(millideg))
	return buf
}

// String identifies the stub for logging, mirroring the teacher's devices
// exposing a human-readable name alongside their accessor methods.
func (d *Dev) String() string {
	return fmt.Sprintf("sensor.Dev(stub, seq=%d)", atomic.LoadUint32(&d.seq))
}

// Package frame implements the node-to-node wire format shared by every
// node in the mesh (spec.md §4.1). Multi-byte fields are big-endian; the
// three packed byte fields (offsets 6, 7 and 11) are implemented as explicit
// shift/mask helpers rather than language bitfields, in the style of the
// parity-bit packing in sx1231.JLEncode/JLDecode from the retrieval pack's
// tve-devices driver collection.
//
// Layout note: spec.md's byte table (offsets 0-33, then a packed
// "path[3]"/timestamp tail) only balances to 48 bytes if the up-to-6-byte
// sensor payload and the up-to-3-entry relay path never need to be on the
// wire at the same time. Scenario 4 in spec.md §8 requires exactly that: a
// full 6-byte payload ("T25H80") riding alongside a fully populated 3-entry
// path at the gateway. This package keeps every offset through byte 33
// (destination .. payload_len) exactly as tabulated, then lays out payload,
// path and timestamp as three separate trailing regions instead of
// overlapping two of them into one 6-byte slot, for a 54-byte frame. This
// is recorded as a resolved spec inconsistency in DESIGN.md, not a guess on
// one of spec.md's three flagged Open Questions.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/meshconst"
)

// Size is the fixed on-air length of every frame (see package doc for why
// this is 54, not the 48 spec.md's byte table alone would suggest).
const Size = 54

// CommandIDNeighbours is the only command this core emits or accepts.
const CommandIDNeighbours = 0x00

// ErrUnknownCommand is returned by Decode for any command byte other than
// CommandIDNeighbours; the caller must drop such a frame silently (spec.md
// §4.1, §7).
var ErrUnknownCommand = errors.New("frame: unknown command")

// ErrShortBuffer is returned by Decode when the buffer is not exactly Size
// bytes, modelling the "length mismatch" transient radio failure (spec.md §7).
var ErrShortBuffer = errors.New("frame: buffer is not the fixed frame size")

// DataMode tags the frame's data section variant (spec.md §9 design note).
type DataMode uint8

const (
	DataNone DataMode = iota
	DataOwn
	DataForward
)

// NeighbourSummary is one of up to four neighbour entries a sender advertises
// about itself (spec.md §4.1 bytes 12-27).
type NeighbourSummary struct {
	ID          meshconst.NodeID
	Slot        uint8
	IsLocalized bool
	Hop         uint8 // 0..0x7F, same packing as the frame header's hop field
}

// DataSection carries the payload data fields, present (non-zero) only when
// Mode != DataNone.
type DataSection struct {
	OriginID          meshconst.NodeID
	MessageID         uint16
	HopCount          uint8
	Payload           []byte // len <= MaxPayloadLen
	Path              [meshconst.MaxPathHops]meshconst.NodeID
	OriginTxTimestamp uint64 // microseconds since epoch, 0 if unsynced
}

// Frame is the decoded representation of one on-air packet.
type Frame struct {
	Destination       meshconst.NodeID
	Command           uint8
	SenderID          meshconst.NodeID
	SenderSlot        uint8
	IsLocalized       bool
	Hop               uint8
	Cycle             uint8
	Neighbours        []NeighbourSummary // len <= MaxFrameNeighbours
	Mode              DataMode
	HopDecisionTarget meshconst.NodeID
	Stratum           meshconst.Stratum
	TimeSynced        bool
	Data              DataSection
}

func packByte6(isLocalized bool, hop uint8) byte {
	b := hop & 0x7f
	if isLocalized {
		b |= 0x80
	}
	return b
}

func unpackByte6(b byte) (isLocalized bool, hop uint8) {
	return b&0x80 != 0, b & 0x7f
}

func packByte7(cycle uint8, neighbourCount uint8) byte {
	return (cycle&0x1f)<<3 | (neighbourCount & 0x07)
}

func unpackByte7(b byte) (cycle uint8, neighbourCount uint8) {
	return (b >> 3) & 0x1f, b & 0x07
}

func packByte11(stratum meshconst.Stratum, timeSynced bool) byte {
	b := (byte(stratum) & 0x03) << 6
	if timeSynced {
		b |= 0x01
	}
	return b
}

func unpackByte11(b byte) (stratum meshconst.Stratum, timeSynced bool) {
	return meshconst.Stratum((b >> 6) & 0x03), b&0x01 != 0
}

// Encode packs f into a fresh Size-byte buffer. Unused regions (fewer than
// four neighbours, no data section) are zero-filled before the used fields
// are written, so Encode(Decode(b)) == b for any buffer Decode can produce
// (spec.md I6).
func (f *Frame) Encode() []byte {
	buf := make([]byte, Size)

	binary.BigEndian.PutUint16(buf[0:2], f.Destination)
	buf[2] = f.Command
	binary.BigEndian.PutUint16(buf[3:5], f.SenderID)
	buf[5] = f.SenderSlot
	buf[6] = packByte6(f.IsLocalized, f.Hop)

	n := len(f.Neighbours)
	if n > meshconst.MaxFrameNeighbours {
		n = meshconst.MaxFrameNeighbours
	}
	buf[7] = packByte7(f.Cycle, uint8(n))
	buf[8] = uint8(f.Mode)
	binary.BigEndian.PutUint16(buf[9:11], f.HopDecisionTarget)
	buf[11] = packByte11(f.Stratum, f.TimeSynced)

	for i := 0; i < n; i++ {
		ns := f.Neighbours[i]
		off := 12 + i*4
		binary.BigEndian.PutUint16(buf[off:off+2], ns.ID)
		buf[off+2] = ns.Slot
		buf[off+3] = packByte6(ns.IsLocalized, ns.Hop)
	}

	if f.Mode != DataNone {
		d := f.Data
		binary.BigEndian.PutUint16(buf[28:30], d.OriginID)
		binary.BigEndian.PutUint16(buf[30:32], d.MessageID)
		buf[32] = d.HopCount
		pl := len(d.Payload)
		if pl > meshconst.MaxPayloadLen {
			pl = meshconst.MaxPayloadLen
		}
		buf[33] = uint8(pl)
		copy(buf[34:34+meshconst.MaxPayloadLen], d.Payload[:pl])
		for i := 0; i < meshconst.MaxPathHops; i++ {
			off := 34 + meshconst.MaxPayloadLen + i*2
			binary.BigEndian.PutUint16(buf[off:off+2], d.Path[i])
		}
		tsOff := 34 + meshconst.MaxPayloadLen + meshconst.MaxPathHops*2
		binary.BigEndian.PutUint64(buf[tsOff:tsOff+8], d.OriginTxTimestamp)
	}

	return buf
}

// Decode parses a Size-byte buffer into a Frame. It returns ErrShortBuffer
// for any buffer not exactly Size bytes and ErrUnknownCommand for any
// command byte other than CommandIDNeighbours; callers must drop both cases
// silently per spec.md §4.1/§7 without touching any other state.
func Decode(buf []byte) (Frame, error) {
	var f Frame
	if len(buf) != Size {
		return f, ErrShortBuffer
	}

	f.Command = buf[2]
	if f.Command != CommandIDNeighbours {
		return f, fmt.Errorf("%w: %#02x", ErrUnknownCommand, f.Command)
	}

	f.Destination = binary.BigEndian.Uint16(buf[0:2])
	f.SenderID = binary.BigEndian.Uint16(buf[3:5])
	f.SenderSlot = buf[5]
	f.IsLocalized, f.Hop = unpackByte6(buf[6])

	cycle, neighbourCount := unpackByte7(buf[7])
	f.Cycle = cycle
	if neighbourCount > meshconst.MaxFrameNeighbours {
		neighbourCount = meshconst.MaxFrameNeighbours
	}

	f.Mode = DataMode(buf[8])
	f.HopDecisionTarget = binary.BigEndian.Uint16(buf[9:11])
	f.Stratum, f.TimeSynced = unpackByte11(buf[11])

	f.Neighbours = make([]NeighbourSummary, neighbourCount)
	for i := 0; i < int(neighbourCount); i++ {
		off := 12 + i*4
		id := binary.BigEndian.Uint16(buf[off : off+2])
		slot := buf[off+2]
		isLocalized, hop := unpackByte6(buf[off+3])
		f.Neighbours[i] = NeighbourSummary{ID: id, Slot: slot, IsLocalized: isLocalized, Hop: hop}
	}

	if f.Mode != DataNone {
		d := &f.Data
		d.OriginID = binary.BigEndian.Uint16(buf[28:30])
		d.MessageID = binary.BigEndian.Uint16(buf[30:32])
		d.HopCount = buf[32]
		payloadLen := buf[33]
		if payloadLen > meshconst.MaxPayloadLen {
			payloadLen = meshconst.MaxPayloadLen
		}
		d.Payload = make([]byte, payloadLen)
		copy(d.Payload, buf[34:34+int(payloadLen)])
		for i := 0; i < meshconst.MaxPathHops; i++ {
			off := 34 + meshconst.MaxPayloadLen + i*2
			d.Path[i] = binary.BigEndian.Uint16(buf[off : off+2])
		}
		tsOff := 34 + meshconst.MaxPayloadLen + meshconst.MaxPathHops*2
		d.OriginTxTimestamp = binary.BigEndian.Uint64(buf[tsOff : tsOff+8])
	}

	return f, nil
}

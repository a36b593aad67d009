// Package neighbor implements the fixed-capacity neighbour table (spec.md
// §3, §4.2). Entries are keyed by NodeId and looked up through a map, never
// through in-memory pointers between entries, so the neighbour graph is
// expressed purely by lookup as spec.md §9's design note requires.
package neighbor

import (
	"errors"
	"sort"

	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/events"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/frame"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/meshconst"
)

// ErrBelowRSSIFloor and ErrTableFull are the two rejection reasons Observe
// can return (spec.md §4.2, §7).
var (
	ErrBelowRSSIFloor = errors.New("neighbor: rssi below floor")
	ErrTableFull      = errors.New("neighbor: table full")
)

// Entry is one neighbour's state (spec.md §3).
type Entry struct {
	ID               meshconst.NodeID
	Slot             uint8
	Hop              uint8
	IsLocalized      bool
	LastCycle        uint8
	CycleHistory     [3]uint8
	cycleHistoryLen  int
	CyclesSequential bool
	Stratum          meshconst.Stratum
	RSSI             int8
	SNR              int8
	AmIListed        bool
	IsBidirectional  bool
	InactiveCounter  int
	Neighbours       []frame.NeighbourSummary // the sender's own one-hop list
}

// Table is the bounded set of known neighbours for one node.
type Table struct {
	MyID  meshconst.NodeID
	byID  map[meshconst.NodeID]*Entry
	index []meshconst.NodeID // sorted ascending by Hop, rebuilt by Tick
	Sink  events.Sink
}

// New returns an empty table for the given node. A nil Sink is fine (see
// events.Sink).
func New(myID meshconst.NodeID, sink events.Sink) *Table {
	if sink == nil {
		sink = events.Discard
	}
	return &Table{MyID: myID, byID: make(map[meshconst.NodeID]*Entry), Sink: sink}
}

// Len reports the current neighbour count.
func (t *Table) Len() int { return len(t.byID) }

// Get returns the entry for id, if any.
func (t *Table) Get(id meshconst.NodeID) (*Entry, bool) {
	e, ok := t.byID[id]
	return e, ok
}

// Index returns the NodeIds in ascending-hop order, as rebuilt by the last
// Tick call.
func (t *Table) Index() []meshconst.NodeID { return t.index }

// Observe folds one accepted frame into the table (spec.md §4.2). If rssi is
// below RSSIMin the frame must not influence any other state: Observe
// returns ErrBelowRSSIFloor immediately, before any upsert. If the sender is
// new and the table has no room, it returns ErrTableFull.
func (t *Table) Observe(f frame.Frame, rssi, snr int8) (*Entry, error) {
	if rssi < meshconst.RSSIMin {
		t.Sink.Emit(events.RSSILow, events.Fields{"sender": f.SenderID, "rssi": rssi})
		return nil, ErrBelowRSSIFloor
	}

	e, existed := t.byID[f.SenderID]
	if !existed {
		if len(t.byID) >= meshconst.MaxNeighbours {
			return nil, ErrTableFull
		}
		e = &Entry{ID: f.SenderID}
		t.byID[f.SenderID] = e
		t.Sink.Emit(events.NeighborAdded, events.Fields{"id": f.SenderID})
	}

	e.Slot = f.SenderSlot
	e.Hop = f.Hop
	e.IsLocalized = f.IsLocalized
	e.Stratum = f.Stratum
	e.RSSI = rssi
	e.SNR = snr
	e.InactiveCounter = 0
	e.Neighbours = f.Neighbours

	wasBidir := e.IsBidirectional
	e.AmIListed = false
	for _, n := range f.Neighbours {
		if n.ID == t.MyID {
			e.AmIListed = true
			break
		}
	}
	e.IsBidirectional = e.AmIListed
	if e.IsBidirectional && !wasBidir {
		t.Sink.Emit(events.BidirLink, events.Fields{"id": e.ID})
	}

	t.pushCycle(e, f.Cycle)

	return e, nil
}

// pushCycle maintains the 3-slot cycle ring buffer and recomputes
// CyclesSequential (spec.md §4.2).
func (t *Table) pushCycle(e *Entry, cycle uint8) {
	if e.cycleHistoryLen < 3 {
		e.CycleHistory[e.cycleHistoryLen] = cycle
		e.cycleHistoryLen++
	} else {
		e.CycleHistory[0] = e.CycleHistory[1]
		e.CycleHistory[1] = e.CycleHistory[2]
		e.CycleHistory[2] = cycle
	}
	e.LastCycle = cycle

	if e.cycleHistoryLen < 3 {
		e.CyclesSequential = false
		return
	}
	m := uint8(meshconst.AutoSendIntervalCycles)
	c0, c1, c2 := e.CycleHistory[0], e.CycleHistory[1], e.CycleHistory[2]
	e.CyclesSequential = c1 == (c0+1)%m && c2 == (c0+2)%m
}

// Tick runs the once-per-cycle maintenance described in spec.md §4.2: age
// every entry, evict stale or too-weak ones, and rebuild the hop-sorted
// index. It must run before scheduling in each cycle's processing phase.
func (t *Table) Tick() {
	for id, e := range t.byID {
		e.InactiveCounter++
		if e.InactiveCounter >= meshconst.MaxInactiveCycles || e.RSSI < meshconst.RSSIMin {
			delete(t.byID, id)
			t.Sink.Emit(events.NeighborRemoved, events.Fields{"id": id})
		}
	}

	t.index = t.index[:0]
	for id := range t.byID {
		t.index = append(t.index, id)
	}
	sort.Slice(t.index, func(i, j int) bool {
		return t.byID[t.index[i]].Hop < t.byID[t.index[j]].Hop
	})
}

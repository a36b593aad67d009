// Package routing implements the distance-vector hop recomputation and
// next-hop selection described in spec.md §4.3. Both operations are pure
// functions over a neighbour table snapshot plus the local node's identity,
// matching the teacher's preference for small, side-effect-free helpers
// around its stateful device structs (e.g. sx1276's Config table lookups).
package routing

import (
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/events"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/meshconst"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/neighbor"
)

// RecomputeHop implements spec.md §4.3's recompute_hop(). The gateway's hop
// is always pinned to 0 by its caller (scheduler.processingPhase never calls
// this for the gateway); this function handles only the non-gateway case.
func RecomputeHop(table *neighbor.Table, sink events.Sink, currentHop uint8) uint8 {
	best := uint8(meshconst.HopUnreachable)
	for _, id := range table.Index() {
		n, ok := table.Get(id)
		if !ok {
			continue
		}
		if n.RSSI < meshconst.RSSIMin || n.Hop == meshconst.HopUnreachable {
			continue
		}
		if n.Hop+1 < best {
			best = n.Hop + 1
		}
	}
	if sink == nil {
		sink = events.Discard
	}
	if best != currentHop {
		sink.Emit(events.HopChange, events.Fields{"from": currentHop, "to": best})
	}
	return best
}

// SelectNextHop implements spec.md §4.3's select_next_hop(). It returns 0 if
// no candidate qualifies.
func SelectNextHop(table *neighbor.Table, myHop uint8) meshconst.NodeID {
	var best *neighbor.Entry
	var bestID meshconst.NodeID

	for _, id := range table.Index() {
		n, ok := table.Get(id)
		if !ok {
			continue
		}
		if n.RSSI < meshconst.RSSIMin || !n.AmIListed || n.Hop == meshconst.HopUnreachable {
			continue
		}
		if n.Hop >= myHop {
			continue
		}
		if best == nil || better(n, best) {
			best = n
			bestID = id
		}
	}

	if best == nil {
		return 0
	}
	return bestID
}

// better reports whether candidate beats incumbent under spec.md §4.3's
// ordered tiebreak rules:
//  1. good RSSI (> RSSIGood) beats poor RSSI regardless of hop
//  2. within the same RSSI class, lower hop wins
//  3. within the same hop, higher RSSI wins
//  4. within the same RSSI, higher SNR wins
func better(candidate, incumbent *neighbor.Entry) bool {
	cGood := candidate.RSSI > meshconst.RSSIGood
	iGood := incumbent.RSSI > meshconst.RSSIGood
	if cGood != iGood {
		return cGood
	}
	if candidate.Hop != incumbent.Hop {
		return candidate.Hop < incumbent.Hop
	}
	if candidate.RSSI != incumbent.RSSI {
		return candidate.RSSI > incumbent.RSSI
	}
	return candidate.SNR > incumbent.SNR
}

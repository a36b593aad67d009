// Package control implements the command grammar spec.md §6 names for the
// serial/UDP control channel: STOP/TDMA_OFF, START/TDMA_ON [delay_ms],
// STATUS, PING, and the SET_*/SAVE/SHOW/RESET_CONFIG configuration verbs.
// It is adapted from the teacher's modules.go registry-of-handlers pattern
// (RegisterModule/hookModule), generalized from MQTT-topic dispatch to
// command-verb dispatch: a fixed grammar needs no reflection, so dispatch
// here is a plain map lookup instead of modules.go's runtime type checks.
package control

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/config"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/events"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/gateway"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/node"
)

// StatusReport is the STATUS verb's reply payload. spec.md §6 requires the
// verb but does not shape its payload; this shape is this repository's
// supplement (node id, hop, stratum, slot, neighbor count, queue depth,
// PDR summary).
type StatusReport struct {
	NodeID            uint16
	IsGateway         bool
	Hop               uint8
	Stratum           string
	Slot              uint8
	Cycle             uint8
	NeighborCount     int
	ForwardQueueDepth int
	SchedulerEnabled  bool
	PDRByOrigin       map[uint16]float64 // gateway only; nil otherwise
}

// Handler executes one parsed control command against a node's live state
// and its mutable configuration record. State, Config and Events must be
// non-nil; Persist, Reboot and Delay are optional.
type Handler struct {
	State  *node.State
	Config *config.NodeConfig
	Events events.Sink

	// Persist is the SAVE hook: writing the config record to on-chip NVM is
	// explicitly out of scope (spec.md §1), so this is an interface-shaped
	// callback the embedder supplies.
	Persist func(config.NodeConfig) error
	// Reboot is invoked after a successful SAVE or RESET_CONFIG, per
	// spec.md §6 ("SAVE and RESET_CONFIG persist and reboot").
	Reboot func()
	// Delay schedules a START's optional delay_ms before re-enabling the
	// scheduler; if nil, a goroutine sleeps for the delay and then runs it.
	Delay func(d time.Duration, f func())
}

func (h *Handler) delay(d time.Duration, f func()) {
	if d <= 0 {
		f()
		return
	}
	if h.Delay != nil {
		h.Delay(d, f)
		return
	}
	go func() {
		time.Sleep(d)
		f()
	}()
}

// Execute parses one line of the command grammar and returns the reply
// text to send back over the channel it arrived on.
func (h *Handler) Execute(line string) string {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return "ERR empty command"
	}
	verb := strings.ToUpper(fields[0])
	args := fields[1:]

	reply := h.dispatch(verb, args)
	h.Events.Emit(events.CmdExecuted, events.Fields{"verb": verb})
	return reply
}

func (h *Handler) dispatch(verb string, args []string) string {
	switch verb {
	case "STOP", "TDMA_OFF":
		h.State.SetEnabled(false)
		return "OK stopped"

	case "START", "TDMA_ON":
		delayMs := 0
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return "ERR bad delay_ms"
			}
			delayMs = n
		}
		h.delay(time.Duration(delayMs)*time.Millisecond, func() { h.State.SetEnabled(true) })
		return "OK starting"

	case "STATUS":
		return formatStatus(h.status())

	case "PING":
		return "PONG"

	case "SET_SSID":
		if len(args) != 1 {
			return "ERR usage: SET_SSID <s>"
		}
		h.Config.SSID = args[0]
		return "OK"

	case "SET_PASS":
		if len(args) != 1 {
			return "ERR usage: SET_PASS <s>"
		}
		h.Config.Password = args[0]
		return "OK"

	case "SET_SERVER":
		if len(args) != 1 {
			return "ERR usage: SET_SERVER <ip>"
		}
		h.Config.ServerIP = args[0]
		return "OK"

	case "SET_MODE":
		if len(args) != 1 {
			return "ERR usage: SET_MODE <0|1|2>"
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 || n > 2 {
			return "ERR mode must be 0, 1 or 2"
		}
		h.Config.Mode = n
		h.Config.DebugMode = n >= 1
		return "OK"

	case "SAVE":
		if h.Persist != nil {
			if err := h.Persist(*h.Config); err != nil {
				return fmt.Sprintf("ERR save failed: %v", err)
			}
		}
		if h.Reboot != nil {
			h.Reboot()
		}
		return "OK saved"

	case "SHOW":
		return formatConfig(*h.Config)

	case "RESET_CONFIG":
		*h.Config = config.Default
		if h.Reboot != nil {
			h.Reboot()
		}
		return "OK reset"

	default:
		return fmt.Sprintf("ERR unknown command %q", verb)
	}
}

func (h *Handler) status() StatusReport {
	st := h.State
	r := StatusReport{
		NodeID:            st.MyID,
		IsGateway:         st.IsGateway,
		Hop:               st.Hop,
		Stratum:           st.Stratum.Stratum.String(),
		Slot:              st.MySlot,
		Cycle:             st.Cycle,
		NeighborCount:     st.Neighbors.Len(),
		ForwardQueueDepth: st.ForwardQueue.Len(),
		SchedulerEnabled:  st.Enabled(),
	}
	if st.IsGateway && st.Gateway != nil {
		r.PDRByOrigin = gatewayPDRSummary(st.Gateway)
	}
	return r
}

// gatewayPDRSummary is a small seam so StatusReport doesn't need to reach
// into gateway.Sink's unexported map directly.
func gatewayPDRSummary(g *gateway.Sink) map[uint16]float64 {
	origins := g.Origins()
	out := make(map[uint16]float64, len(origins))
	for _, id := range origins {
		if e, ok := g.PDRFor(id); ok {
			out[uint16(id)] = e.PDR()
		}
	}
	return out
}

func formatStatus(r StatusReport) string {
	out := fmt.Sprintf(
		"OK node=%d gateway=%v hop=%d stratum=%s slot=%d cycle=%d neighbors=%d fwdq=%d enabled=%v",
		r.NodeID, r.IsGateway, r.Hop, r.Stratum, r.Slot, r.Cycle, r.NeighborCount, r.ForwardQueueDepth, r.SchedulerEnabled)
	ids := make([]int, 0, len(r.PDRByOrigin))
	for id := range r.PDRByOrigin {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	for _, id := range ids {
		out += fmt.Sprintf(" pdr[%d]=%.2f", id, r.PDRByOrigin[uint16(id)])
	}
	return out
}

func formatConfig(c config.NodeConfig) string {
	return fmt.Sprintf(
		"OK ssid=%q server=%q debug=%v mode=%d rssi_min=%d rssi_good=%d tx_power=%d",
		c.SSID, c.ServerIP, c.DebugMode, c.Mode, c.RSSIMin, c.RSSIGood, c.TxPowerDBm)
}

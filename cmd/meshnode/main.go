// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

// Command meshnode runs one TDMA mesh node: it loads a TOML configuration
// record, brings up the radio (or an in-memory fake under -sim), wires the
// telemetry and upstream MQTT sidechannels, starts the control listener,
// and runs the scheduler loop forever, adapted from cmd/mqttradio/main.go's
// flag/config/radio/module bring-up sequence.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"

	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/config"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/control"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/meshconst"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/node"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/radioio"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/scheduler"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/sensor"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/telemetry"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/upstream"
)

func main() {
	help := flag.Bool("help", false, "print usage help")
	configFile := flag.String("config", "meshnode.toml", "path to config file")
	sim := flag.Bool("sim", false, "run against an in-memory fake radio instead of real hardware")
	flag.Parse()

	if *help {
		fmt.Fprintf(os.Stderr, "Usage: %s:\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot parse config file: %s\n", err)
		os.Exit(1)
	}

	if cfg.DebugMode {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	}
	meshconst.AutoSendIntervalCycles = cfg.AutoSendIntervalCycles

	telemetryQueue := telemetry.NewQueue()

	var upSink upstream.Sink = upstream.Discard
	if cfg.IsGateway && cfg.MQTT.Host != "" {
		sink, err := upstream.NewMQTTSink(upstream.MQTTConfig{
			Host: cfg.MQTT.Host, Port: cfg.MQTT.Port,
			User: cfg.MQTT.User, Password: cfg.MQTT.Password,
			Topic: cfg.MQTT.Topic,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to connect upstream MQTT: %s\n", err)
			os.Exit(2)
		}
		upSink = sink
	}

	st := node.New(cfg.NodeID, cfg.IsGateway, cfg.Slot, cfg.NSlots, upSink, telemetryQueue)

	radio, clock, err := buildRadio(cfg, *sim)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure radio: %s\n", err)
		os.Exit(1)
	}

	payload, err := sensor.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open sensor: %s\n", err)
		os.Exit(1)
	}

	sched := scheduler.New(radio, clock, payload, st)
	sched.PinRealtime = !*sim
	if cfg.Mode == 2 {
		sched.RawSink = telemetry.RawRelay{Sink: telemetryQueue}
	}

	stop := make(chan struct{})

	if cfg.MQTT.Host != "" {
		mirror, err := telemetry.NewMQTTMirror(telemetry.MQTTConfig{
			Host: cfg.MQTT.Host, Port: cfg.MQTT.Port,
			User: cfg.MQTT.User, Topic: cfg.MQTT.Topic,
		})
		if err != nil {
			log.Printf("telemetry: MQTT connect failed, running without a mirror: %v", err)
		} else {
			go mirror.Run(telemetryQueue, time.Second, stop)
		}
	}

	if cfg.ControlAddr != "" {
		pc, err := net.ListenPacket("udp", cfg.ControlAddr)
		if err != nil {
			log.Printf("control: listen %s failed, control channel disabled: %v", cfg.ControlAddr, err)
		} else {
			h := &control.Handler{
				State:   st,
				Config:  &cfg,
				Events:  telemetryQueue,
				Persist: func(config.NodeConfig) error { return nil },
				Reboot:  func() { log.Printf("control: reboot requested, ignored (no NVM persistence configured)") },
			}
			go control.ServePacketConn(pc, h, stop)
			log.Printf("control channel listening on %s", cfg.ControlAddr)
		}
	}

	log.Printf("node %d ready (gateway=%v slot=%d/%d)", cfg.NodeID, cfg.IsGateway, cfg.Slot, cfg.NSlots)
	sched.Run(stop)
}

// buildRadio opens the real SX1276 over periph.io/x/periph's SPI and GPIO
// registries, following the teacher's startRadio/spireg.Open/gpioreg.ByName
// sequence, or an in-memory FakeRadio under -sim.
func buildRadio(cfg config.NodeConfig, sim bool) (radioio.Radio, radioio.Clock, error) {
	if sim {
		return radioio.NewFakeRadio(), radioio.NewSystemClock(), nil
	}

	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("periph host init: %w", err)
	}

	dev, err := spireg.Open(fmt.Sprintf("SPI%d.%d", cfg.Radio.SpiBus, cfg.Radio.SpiCS))
	if err != nil {
		return nil, nil, fmt.Errorf("open spi: %w", err)
	}
	conn, err := dev.Connect(1*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, nil, fmt.Errorf("configure spi: %w", err)
	}

	intrPin := gpioreg.ByName(cfg.Radio.IntrPin)
	if intrPin == nil {
		return nil, nil, fmt.Errorf("cannot open interrupt pin %s", cfg.Radio.IntrPin)
	}

	radio := radioio.NewSX1276(conn, intrPin)
	if err := radio.Begin(cfg.Radio.FreqHz, int8(cfg.TxPowerDBm)); err != nil {
		return nil, nil, fmt.Errorf("radio begin: %w", err)
	}
	if err := radio.Configure(radioio.DefaultConfig); err != nil {
		return nil, nil, fmt.Errorf("radio configure: %w", err)
	}
	return radio, radioio.NewSystemClock(), nil
}

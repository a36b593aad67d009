package telemetry

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig names the broker the telemetry mirror publishes drained
// events to. It is a distinct connection from upstream.MQTTSink's: the
// gateway's delivered-payload batches and the network-wide telemetry
// stream are independent sidechannels (spec.md §1, §6).
type MQTTConfig struct {
	Host  string
	Port  int
	User  string
	Topic string // events publish to Topic + "/events"
}

// MQTTMirror periodically drains a Queue and publishes its WireEvents to a
// broker, following the teacher's persistent mq.Publish connection pattern
// (cmd/mqttradio/mqtt.go's newMQ) rather than reconnecting per batch.
type MQTTMirror struct {
	conn  mqtt.Client
	topic string
}

// NewMQTTMirror connects to conf.Host:conf.Port and returns a ready mirror.
func NewMQTTMirror(conf MQTTConfig) (*MQTTMirror, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", conf.Host, conf.Port))
	opts.ClientID = "meshnode-telemetry"
	opts.Username = conf.User

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("telemetry: MQTT connect to %s:%d timed out", conf.Host, conf.Port)
	}
	if err := token.Error(); err != nil {
		return nil, err
	}
	log.Printf("telemetry: MQTT connected to %s:%d", conf.Host, conf.Port)
	return &MQTTMirror{conn: client, topic: conf.Topic}, nil
}

// Run drains q every interval and publishes whatever it finds until stop
// is closed. Delivery is best-effort, matching the core's tolerance for
// dropped telemetry (spec.md §5): a publish error is logged, never retried.
func (m *MQTTMirror) Run(q *Queue, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.publishOnce(q)
		}
	}
}

func (m *MQTTMirror) publishOnce(q *Queue) {
	events := q.Drain()
	if len(events) == 0 {
		return
	}
	wire := make([]WireEvent, len(events))
	for i, e := range events {
		wire[i] = e.ToWire()
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		log.Printf("telemetry: marshal batch: %v", err)
		return
	}
	token := m.conn.Publish(m.topic+"/events", 0, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		log.Printf("telemetry: publish batch: %v", err)
	}
}

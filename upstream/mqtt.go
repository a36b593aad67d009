package upstream

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig names the broker a gateway publishes delivered payloads to.
type MQTTConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Topic    string // base topic; batches publish to Topic + "/batch"
}

// MQTTSink publishes delivered batches to a broker as a JSON array. The
// connection is persistent and reconnects on its own, following the
// teacher's mq handle: a single long-lived client wrapped behind a small
// Go-facing API instead of exposing the paho client directly.
type MQTTSink struct {
	conn  mqtt.Client
	topic string
}

// NewMQTTSink connects to conf.Host:conf.Port and returns a ready Sink.
func NewMQTTSink(conf MQTTConfig) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", conf.Host, conf.Port))
	opts.ClientID = "meshnode-gateway"
	opts.Username = conf.User
	opts.Password = conf.Password

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("upstream: MQTT connect to %s:%d timed out", conf.Host, conf.Port)
	}
	if err := token.Error(); err != nil {
		return nil, err
	}
	log.Printf("upstream: MQTT connected to %s:%d", conf.Host, conf.Port)
	return &MQTTSink{conn: client, topic: conf.Topic}, nil
}

// PublishBatch marshals msgs as a JSON array and publishes it at QoS 1.
// Errors are logged, not returned: the core treats upstream delivery as
// best-effort and never retries.
func (s *MQTTSink) PublishBatch(msgs []Message) {
	if len(msgs) == 0 {
		return
	}
	payload, err := json.Marshal(msgs)
	if err != nil {
		log.Printf("upstream: marshal batch: %v", err)
		return
	}
	token := s.conn.Publish(s.topic+"/batch", 1, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		log.Printf("upstream: publish batch: %v", err)
	}
}

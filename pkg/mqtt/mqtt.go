// Package mqtt publishes decoded POST codes to an mqtt broker.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	mqttlib "github.com/eclipse/paho.mqtt.golang"
	"github.com/womat/debug"
	"siodbg/pkg/postcode"
)

const (
	// quiesce is the specified number of milliseconds to wait for existing work to be completed.
	quiesce = 250
	// queueSize is the count of messages buffered while the broker is slow.
	queueSize = 64
)

// Handler contains the handler of the mqtt broker.
type Handler struct {
	client mqttlib.Client
	// topic is the topic of the POST codes, no codes are published if it is empty.
	topic string
	// C is the channel to service the mqtt message
	// sending a message to channel C will send the message.
	C chan Message
}

// Message contains the properties of the mqtt message.
type Message struct {
	Topic    string
	Payload  []byte
	Qos      byte
	Retained bool
}

// CodeMessage is the payload of a published POST code.
type CodeMessage struct {
	Index     int    `json:"index"`
	Time      string `json:"time"`
	Value     string `json:"value"`
	Width     int    `json:"width"`
	Refreshed []int  `json:"refreshed"`
	Received  string `json:"received"`
}

// New generates a new mqtt broker client publishing to topic.
func New(topic string) *Handler {
	return &Handler{
		topic: topic,
		C:     make(chan Message, queueSize),
	}
}

// Connect connects to the mqtt broker.
// If no broker is defined, no mqtt message are send.
func (m *Handler) Connect(broker string) error {
	if broker == "" {
		return nil
	}

	opts := mqttlib.NewClientOptions().AddBroker(broker).SetAutoReconnect(true)
	m.client = mqttlib.NewClient(opts)
	return m.ReConnect()
}

// ReConnect reconnects to the defined mqtt broker.
func (m *Handler) ReConnect() error {
	t := m.client.Connect()
	<-t.Done()
	return t.Error()
}

// Disconnect will end the connection to the broker.
func (m *Handler) Disconnect() error {
	if m.client == nil {
		return nil
	}

	m.client.Disconnect(quiesce)
	return nil
}

// Code queues a POST code for publishing. It never blocks the decoder,
// if the queue is full the code is dropped.
func (m *Handler) Code(c postcode.Code) {
	if m.topic == "" {
		return
	}

	b, err := json.Marshal(NewCodeMessage(c, time.Now()))
	if err != nil {
		debug.ErrorLog.Printf("marshal post code: %v", err)
		return
	}

	select {
	case m.C <- Message{Topic: m.topic, Payload: b, Retained: true}:
	default:
		debug.ErrorLog.Printf("mqtt queue is full, drop post code %v", c)
	}
}

// NewCodeMessage converts a POST code to its payload.
func NewCodeMessage(c postcode.Code, received time.Time) CodeMessage {
	msg := CodeMessage{
		Index:     c.Index,
		Time:      c.Time.String(),
		Value:     c.String(),
		Width:     c.Width,
		Refreshed: []int{},
		Received:  received.Format(time.RFC3339),
	}

	for lane := 0; lane < postcode.MaxLanes; lane++ {
		if c.Refreshed&(1<<uint(lane)) != 0 {
			msg.Refreshed = append(msg.Refreshed, lane)
		}
	}
	return msg
}

// Service listen to a message on the channel C and send the message to mqtt.
// If no client or topic is defined, the message will be ignored.
// Service returns if C is closed.
func (m *Handler) Service() {
	for msg := range m.C {
		if m.client == nil || msg.Topic == "" {
			continue
		}

		if !m.client.IsConnected() {
			debug.DebugLog.Printf("mqtt broker isn't connected, reconnect it")

			if err := m.ReConnect(); err != nil {
				debug.ErrorLog.Printf("can't reconnect to mqtt broker %v", err)
				continue
			}
		}

		debug.TraceLog.Printf("publishing %v bytes to topic %v", len(msg.Payload), msg.Topic)
		t := m.client.Publish(msg.Topic, msg.Qos, msg.Retained, msg.Payload)

		// the asynchronous nature of this library makes it easy to forget to check for errors.
		go func(topic string) {
			<-t.Done()
			if err := t.Error(); err != nil {
				debug.ErrorLog.Printf("publishing topic %v: %v", topic, err)
			}
		}(msg.Topic)
	}
}

// Close stops the Service.
func (m *Handler) Close() error {
	close(m.C)
	return nil
}

func (m Message) String() string {
	return fmt.Sprintf("%s: %s", m.Topic, m.Payload)
}

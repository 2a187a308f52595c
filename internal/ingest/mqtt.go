// Package ingest feeds live power readings from an MQTT broker into the advisor.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// Recorder receives parsed readings and prices them. advisor.Advisor
// satisfies it.
type Recorder interface {
	RecordValue(v any) bool
	PriceAt(t time.Time) float64
}

// SampleSink persists accepted readings. store.Store satisfies it.
type SampleSink interface {
	AddSample(t time.Time, watts, price float64) error
}

// Observer is told about every message outcome. Used for metrics.
type Observer interface {
	SampleAccepted(watts float64)
	SampleDropped()
}

// Options configures the MQTT connection
type Options struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
}

// Subscriber listens on one topic for power readings
type Subscriber struct {
	client   mqtt.Client
	opts     Options
	recorder Recorder
	sink     SampleSink
	observer Observer
	logger   zerolog.Logger
	now      func() time.Time
}

// NewSubscriber builds a subscriber. sink and observer may be nil.
func NewSubscriber(opts Options, recorder Recorder, sink SampleSink, observer Observer, logger zerolog.Logger) *Subscriber {
	s := &Subscriber{
		opts:     opts,
		recorder: recorder,
		sink:     sink,
		observer: observer,
		logger:   logger.With().Str("component", "ingest").Logger(),
		now:      time.Now,
	}

	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.Broker)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetUsername(opts.Username)
	clientOpts.SetPassword(opts.Password)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetConnectRetry(true)
	clientOpts.SetConnectRetryInterval(5 * time.Second)
	clientOpts.SetKeepAlive(60 * time.Second)

	clientOpts.SetConnectionLostHandler(s.onConnectionLost)
	clientOpts.SetOnConnectHandler(s.onConnect)

	s.client = mqtt.NewClient(clientOpts)
	return s
}

// Connect dials the broker. Subscription happens in the on-connect handler so
// it is renewed after every reconnect.
func (s *Subscriber) Connect() error {
	s.logger.Info().Str("broker", s.opts.Broker).Msg("connecting to MQTT broker")

	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}
	return nil
}

// Disconnect closes the connection, waiting up to 250ms for in-flight work
func (s *Subscriber) Disconnect() {
	s.logger.Info().Msg("disconnecting from MQTT broker")
	s.client.Disconnect(250)
}

func (s *Subscriber) onConnect(client mqtt.Client) {
	if token := client.Subscribe(s.opts.Topic, 1, s.handleMessage); token.Wait() && token.Error() != nil {
		s.logger.Error().Err(token.Error()).Str("topic", s.opts.Topic).Msg("subscribe failed")
		return
	}
	s.logger.Info().Str("topic", s.opts.Topic).Msg("subscribed to power topic")
}

func (s *Subscriber) onConnectionLost(_ mqtt.Client, err error) {
	s.logger.Warn().Err(err).Msg("MQTT connection lost")
}

func (s *Subscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	s.Handle(msg.Payload())
}

// Handle processes one payload. It is exported so other transports can reuse it.
func (s *Subscriber) Handle(payload []byte) bool {
	watts, ok := ParsePayload(payload)
	if !ok || !s.recorder.RecordValue(watts) {
		s.logger.Debug().Bytes("payload", payload).Msg("dropping malformed power reading")
		if s.observer != nil {
			s.observer.SampleDropped()
		}
		return false
	}

	if s.observer != nil {
		s.observer.SampleAccepted(watts)
	}
	if s.sink != nil {
		now := s.now()
		if err := s.sink.AddSample(now, watts, s.recorder.PriceAt(now)); err != nil {
			s.logger.Error().Err(err).Msg("saving power sample")
		}
	}
	return true
}

// powerMessage is the JSON shape published by most smart meters and plugs
type powerMessage struct {
	Power  *json.Number `json:"power"`
	PowerW *json.Number `json:"power_w"`
	Watts  *json.Number `json:"watts"`
}

// ParsePayload extracts watts from a bare number or a JSON object carrying
// power, power_w or watts
func ParsePayload(payload []byte) (float64, bool) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return 0, false
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	if payload[0] == '{' {
		var msg powerMessage
		if err := dec.Decode(&msg); err != nil {
			return 0, false
		}
		for _, n := range []*json.Number{msg.Power, msg.PowerW, msg.Watts} {
			if n != nil {
				f, err := n.Float64()
				return f, err == nil
			}
		}
		return 0, false
	}

	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

package ingest

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/awaistahir/smart-save/internal/advisor"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		payload string
		want    float64
		ok      bool
	}{
		{`1234.5`, 1234.5, true},
		{`  42 `, 42, true},
		{`"850"`, 850, true},
		{`{"power": 300}`, 300, true},
		{`{"power_w": 12.5, "voltage": 230}`, 12.5, true},
		{`{"watts": 7}`, 7, true},
		{`{"voltage": 230}`, 0, false},
		{`{"power": null}`, 0, false},
		{`"12abc"`, 0, false},
		{`not json`, 0, false},
		{``, 0, false},
		{`[1,2]`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, ok := ParsePayload([]byte(tt.payload))
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

type fakeSink struct {
	samples []float64
	prices  []float64
	err     error
}

func (f *fakeSink) AddSample(_ time.Time, watts, price float64) error {
	f.samples = append(f.samples, watts)
	f.prices = append(f.prices, price)
	return f.err
}

type fakeObserver struct {
	accepted, dropped int
}

func (f *fakeObserver) SampleAccepted(float64) { f.accepted++ }
func (f *fakeObserver) SampleDropped()         { f.dropped++ }

func TestHandle(t *testing.T) {
	adv := advisor.New(advisor.DefaultSettings())
	sink := &fakeSink{}
	obs := &fakeObserver{}
	sub := NewSubscriber(Options{Broker: "tcp://127.0.0.1:1883", Topic: "home/power", ClientID: "test"},
		adv, sink, obs, zerolog.New(io.Discard))

	assert.True(t, sub.Handle([]byte(`{"power": 1000}`)))
	assert.True(t, sub.Handle([]byte(`2000`)))
	assert.False(t, sub.Handle([]byte(`{"power": -5}`)))
	assert.False(t, sub.Handle([]byte(`oops`)))

	assert.Equal(t, []float64{1000, 2000}, sink.samples)
	assert.Len(t, sink.prices, 2)
	assert.Equal(t, 2, obs.accepted)
	assert.Equal(t, 2, obs.dropped)

	est := adv.Estimate()
	require.Equal(t, 2, est.Samples)
	assert.InDelta(t, 36.0, est.DailyKWh, 1e-9)
}

func TestHandleSinkErrorStillRecords(t *testing.T) {
	adv := advisor.New(advisor.DefaultSettings())
	sink := &fakeSink{err: errors.New("disk full")}
	sub := NewSubscriber(Options{Broker: "tcp://127.0.0.1:1883", Topic: "t"}, adv, sink, nil, zerolog.New(io.Discard))

	assert.True(t, sub.Handle([]byte(`500`)))
	assert.Equal(t, 1, adv.Estimate().Samples)
}

func TestHandleStoresPriceInForce(t *testing.T) {
	tests := []struct {
		name string
		hour int
		want float64
	}{
		{"day rate", 12, 4.32},
		{"night rate", 2, 2.59},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adv := advisor.New(advisor.DefaultSettings())
			sink := &fakeSink{}
			sub := NewSubscriber(Options{Broker: "tcp://127.0.0.1:1883", Topic: "t"}, adv, sink, nil, zerolog.New(io.Discard))
			sub.now = func() time.Time { return time.Date(2024, 12, 10, tt.hour, 0, 0, 0, time.UTC) }

			require.True(t, sub.Handle([]byte(`750`)))
			assert.Equal(t, []float64{tt.want}, sink.prices)
		})
	}
}

package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/dht-sensor/internal/dht"
)

func TestNewTopics(t *testing.T) {
	tests := []struct {
		prefix      string
		wantReading string
		wantSystem  string
	}{
		{"", "environment/dht/reading", "environment/dht/system"},
		{"home/attic", "home/attic/reading", "home/attic/system"},
		{"home/attic/", "home/attic/reading", "home/attic/system"},
	}
	for _, tt := range tests {
		got := NewTopics(tt.prefix)
		if got.Reading != tt.wantReading {
			t.Errorf("NewTopics(%q).Reading: got %s, want %s", tt.prefix, got.Reading, tt.wantReading)
		}
		if got.System != tt.wantSystem {
			t.Errorf("NewTopics(%q).System: got %s, want %s", tt.prefix, got.System, tt.wantSystem)
		}
	}
}

func TestFormatReadingPayloadExactJSON(t *testing.T) {
	at := time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC)
	payload, err := FormatReadingPayload(dht.Reading{Temperature: 21.5, Humidity: 40}, at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"reading":{"timestamp":"2026-02-03T10:30:45Z","temperature_c":21.5,"humidity_pct":40}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatReadingPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	at := time.Date(2026, 2, 3, 11, 30, 45, 0, loc)

	payload, _ := FormatReadingPayload(dht.Reading{Temperature: -5.5, Humidity: 80}, at)

	var parsed ReadingPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Reading.Timestamp != "2026-02-03T10:30:45Z" {
		t.Errorf("timestamp should be UTC: got %s", parsed.Reading.Timestamp)
	}
	if parsed.Reading.TemperatureC != -5.5 {
		t.Errorf("TemperatureC: got %v, want -5.5", parsed.Reading.TemperatureC)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadWill(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Event:     "LWT",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"LWT"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("expected raw payload passthrough, got %s", payload)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := f.PublishReading(dht.Reading{Temperature: 20, Humidity: 50}, at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.ReadingCount() != 1 {
		t.Fatalf("expected 1 reading, got %d", f.ReadingCount())
	}
	if f.Readings[0].Reading.Temperature != 20 || !f.Readings[0].Time.Equal(at) {
		t.Errorf("recorded reading: got %+v", f.Readings[0])
	}
	if len(f.Payloads) != 1 {
		t.Errorf("expected 1 payload, got %d", len(f.Payloads))
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")

	if err := f.PublishReading(dht.Reading{}, time.Now()); err == nil {
		t.Error("expected error")
	}
	if f.ReadingCount() != 0 {
		t.Error("failed publish should not be recorded")
	}
}

func TestFakePublisherSystemEvents(t *testing.T) {
	f := NewFakePublisher()

	f.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "STARTUP", Retained: true})
	f.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "HEARTBEAT"})

	names := f.SystemEventNames()
	if len(names) != 2 || names[0] != "STARTUP" || names[1] != "HEARTBEAT" {
		t.Errorf("SystemEventNames: got %v", names)
	}
	if !f.SystemEvents[0].Retained || f.SystemEvents[1].Retained {
		t.Error("Retained flag not recorded")
	}

	f.PublishSystemError = errors.New("nope")
	if err := f.PublishSystem(SystemEvent{Event: "SHUTDOWN"}); err == nil {
		t.Error("expected PublishSystemError")
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.PublishReading(dht.Reading{}, time.Now())
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.Connected = true
	f.Close()

	f.Reset()

	if f.ReadingCount() != 0 || len(f.SystemEvents) != 0 || len(f.Payloads) != 0 || len(f.SystemPayloads) != 0 {
		t.Error("Reset should clear recorded messages")
	}
	if f.Closed || f.IsConnected() {
		t.Error("Reset should clear Closed and Connected")
	}
}

func TestClientIDUnique(t *testing.T) {
	a, b := clientID(), clientID()
	if a == b {
		t.Errorf("expected distinct client IDs, got %q twice", a)
	}
	if len(a) != len("dht-sensor-")+8 {
		t.Errorf("unexpected client ID format: %q", a)
	}
}

func TestConnectTiming(t *testing.T) {
	if connectRetryInterval <= 0 || connectRetryInterval >= connectTimeout {
		t.Errorf("connectRetryInterval %v should be positive and below connectTimeout %v", connectRetryInterval, connectTimeout)
	}
	if publishTimeout >= connectTimeout {
		t.Errorf("publishTimeout %v should be below connectTimeout %v", publishTimeout, connectTimeout)
	}
}

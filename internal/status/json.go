package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Reading       *ReadingJSON `json:"reading,omitempty"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Sensor        SensorJSON   `json:"sensor"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ReadingJSON is the JSON representation of the latest reading.
type ReadingJSON struct {
	TemperatureC float32 `json:"temperature_c"`
	HumidityPct  float32 `json:"humidity_pct"`
	Timestamp    string  `json:"timestamp"`
	AgeSeconds   int64   `json:"age_seconds"`
	Stale        bool    `json:"stale"`
}

// SensorJSON reports sample outcome counters.
type SensorJSON struct {
	Successes           int    `json:"successes"`
	Failures            int    `json:"failures"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	Timeout             int    `json:"timeout"`
	Checksum            int    `json:"checksum"`
	Protocol            int    `json:"protocol"`
	Other               int    `json:"other"`
	LastError           string `json:"last_error,omitempty"`
	LastErrorTime       string `json:"last_error_time,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	IntervalMs   int64  `json:"interval_ms"`
	RetryMs      int64  `json:"retry_ms"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	StaleAfterMs int64  `json:"stale_after_ms"`
	Driver       string `json:"driver"`
	Pin          int    `json:"pin"`
	Broker       string `json:"broker"`
	HTTPAddr     string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Ready:         snap.HasReading,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Sensor: SensorJSON{
			Successes:           snap.Counts.Successes,
			Failures:            snap.Counts.Failures,
			ConsecutiveFailures: snap.ConsecutiveFailures,
			Timeout:             snap.Counts.Timeout,
			Checksum:            snap.Counts.Checksum,
			Protocol:            snap.Counts.Protocol,
			Other:               snap.Counts.Other,
			LastError:           snap.LastError,
		},
		MQTT: MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			IntervalMs:   snap.Config.IntervalMs,
			RetryMs:      snap.Config.RetryMs,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			StaleAfterMs: snap.Config.StaleAfterMs,
			Driver:       snap.Config.Driver,
			Pin:          snap.Config.Pin,
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
		},
	}
	if !snap.LastErrorTime.IsZero() {
		inner.Sensor.LastErrorTime = snap.LastErrorTime.UTC().Format(time.RFC3339)
	}

	if snap.HasReading {
		stale := time.Duration(snap.Config.StaleAfterMs) * time.Millisecond
		inner.Reading = &ReadingJSON{
			TemperatureC: snap.Reading.Temperature,
			HumidityPct:  snap.Reading.Humidity,
			Timestamp:    snap.ReadingTime.UTC().Format(time.RFC3339),
			AgeSeconds:   int64(snap.Age().Truncate(time.Second).Seconds()),
			Stale:        snap.Stale(stale),
		}
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

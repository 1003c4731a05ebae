package main

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/dht-sensor/internal/dht"
	"github.com/sweeney/dht-sensor/internal/logic"
	"github.com/sweeney/dht-sensor/internal/mqtt"
	"github.com/sweeney/dht-sensor/internal/poller"
	"github.com/sweeney/dht-sensor/internal/status"
	"github.com/sweeney/dht-sensor/internal/web"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants, not the other way around.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo("")
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}

	want := status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}
	if *info != want {
		t.Errorf("got %+v, want %+v", *info, want)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	if info := readNetworkInfo(""); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestReadNetworkInfoPartial(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "")

	info := readNetworkInfo("")
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo when NETWORK_STATUS is set")
	}
	if info.Status != "connected" {
		t.Errorf("Status: got %q, want %q", info.Status, "connected")
	}
	if info.IP != "" {
		t.Errorf("IP: got %q, want empty", info.IP)
	}
}

func TestReadNetworkInfoEnvFile(t *testing.T) {
	t.Setenv(envNetworkStatus, "disconnected")
	t.Setenv(envNetworkGateway, "10.0.0.1")

	path := filepath.Join(t.TempDir(), "pi-helper.env")
	content := "NETWORK_TYPE=ethernet\nNETWORK_IP=10.0.0.42\nNETWORK_STATUS=connected\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	info := readNetworkInfo(path)
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}
	if info.Status != "connected" || info.IP != "10.0.0.42" || info.Type != "ethernet" {
		t.Errorf("file values not used: %+v", *info)
	}
	if info.Gateway != "10.0.0.1" {
		t.Errorf("Gateway: got %q, want fallback to environment", info.Gateway)
	}
}

func TestReadNetworkInfoMissingEnvFile(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")

	info := readNetworkInfo(filepath.Join(t.TempDir(), "absent.env"))
	if info == nil || info.Status != "connected" {
		t.Errorf("expected environment fallback, got %+v", info)
	}
}

func TestWaitNetworkImmediate(t *testing.T) {
	calls := 0
	up := func() (bool, error) { calls++; return true, nil }

	if err := waitNetwork(context.Background(), up, time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}

func TestWaitNetworkEventuallyUp(t *testing.T) {
	calls := 0
	up := func() (bool, error) {
		calls++
		if calls < 3 {
			return false, errors.New("no route")
		}
		return true, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := waitNetwork(ctx, up, time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
}

func TestWaitNetworkTimeout(t *testing.T) {
	up := func() (bool, error) { return false, nil }

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := waitNetwork(ctx, up, time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestStartSensorWaitsForNetworkFirst(t *testing.T) {
	var order []string
	up := func() (bool, error) {
		order = append(order, "network")
		return true, nil
	}
	open := func() (dht.Source, error) {
		order = append(order, "open")
		return dht.NewFakeSource(), nil
	}

	if _, err := startSensor(time.Second, up, open); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != "network" || order[1] != "open" {
		t.Errorf("startup order: got %v, want [network open]", order)
	}
}

func TestStartSensorNetworkTimeoutSkipsOpen(t *testing.T) {
	opened := false
	up := func() (bool, error) { return false, nil }
	open := func() (dht.Source, error) {
		opened = true
		return dht.NewFakeSource(), nil
	}

	_, err := startSensor(20*time.Millisecond, up, open)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
	if opened {
		t.Error("sensor opened before the network was up")
	}
}

func TestStartSensorNoNetworkWait(t *testing.T) {
	up := func() (bool, error) {
		t.Error("network checked with a zero timeout")
		return false, nil
	}
	open := func() (dht.Source, error) { return nil, errors.New("no such chip") }

	_, err := startSensor(0, up, open)
	if err == nil || !strings.Contains(err.Error(), "init sensor") {
		t.Errorf("expected wrapped open error, got %v", err)
	}
}

func TestOpenSourceUnknownDriver(t *testing.T) {
	if _, err := openSource("bitbang", "gpiochip0", 4); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestPeriphPinName(t *testing.T) {
	if got := periphPinName(4); got != "GPIO4" {
		t.Errorf("got %q, want GPIO4", got)
	}
}

func TestSignalName(t *testing.T) {
	if signalName(syscall.SIGINT) != "SIGINT" {
		t.Error("SIGINT")
	}
	if signalName(syscall.SIGTERM) != "SIGTERM" {
		t.Error("SIGTERM")
	}
	if signalName(syscall.SIGHUP) != "UNKNOWN" {
		t.Error("SIGHUP should map to UNKNOWN")
	}
}

func TestStartHTTPBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	tr := status.NewTracker(time.Now(), status.Config{})
	srv := web.New(ln.Addr().String(), tr, nil)
	_, err = startHTTP(ln.Addr().String(), srv)
	if err == nil {
		t.Fatal("expected bind error on an occupied port")
	}
	if !strings.Contains(err.Error(), "bind http") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunLoopStopsOnSignal(t *testing.T) {
	src := dht.NewFakeSource(dht.FakeSample{Err: dht.ErrTimeout})
	tr := status.NewTracker(time.Now(), status.Config{})
	loop := poller.New(poller.Options{
		Source:  src,
		Sink:    tr,
		Cadence: logic.Cadence{Steady: dht.MinSampleGap, Retry: dht.MinSampleGap, Floor: dht.MinSampleGap},
	})

	sig := make(chan os.Signal, 1)
	sig <- syscall.SIGTERM

	done := make(chan string, 1)
	go func() { done <- runLoop(context.Background(), loop, sig) }()

	select {
	case reason := <-done:
		if reason != "SIGTERM" {
			t.Errorf("reason: got %q, want SIGTERM", reason)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runLoop did not stop on signal")
	}
	if len(src.Calls()) == 0 {
		t.Error("expected at least one sample before shutdown")
	}
}

func TestSystemEventsDisabled(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	s := &systemEvents{tracker: tr}

	// Must not panic without a publisher.
	s.publish("STARTUP", "", true)
	s.heartbeat(logic.HeartbeatData{Timestamp: time.Now()})
}

func TestSystemEventsPublish(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{Broker: "tcp://localhost:1883"})
	tr.SetReading(dht.Reading{Temperature: 21.5, Humidity: 40}, time.Now())
	pub := mqtt.NewFakePublisher()
	pub.Connected = true
	s := &systemEvents{publisher: pub, status: pub, tracker: tr}

	s.publish("STARTUP", "", true)
	s.heartbeat(logic.HeartbeatData{Timestamp: time.Now(), Uptime: time.Minute})
	s.publish("SHUTDOWN", "SIGTERM", true)

	names := pub.SystemEventNames()
	if len(names) != 3 || names[0] != "STARTUP" || names[1] != "HEARTBEAT" || names[2] != "SHUTDOWN" {
		t.Fatalf("events: got %v", names)
	}
	if pub.SystemEvents[1].Retained {
		t.Error("HEARTBEAT should not be retained")
	}
	if !strings.Contains(string(pub.SystemPayloads[2]), `"reason":"SIGTERM"`) {
		t.Errorf("SHUTDOWN payload: %s", pub.SystemPayloads[2])
	}
	if !strings.Contains(string(pub.SystemPayloads[0]), `"temperature_c":21.5`) {
		t.Errorf("STARTUP payload should carry the reading: %s", pub.SystemPayloads[0])
	}
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected tracker MQTTConnected=true")
	}
}

// Command dht-sensor samples a DHT22 humidity/temperature sensor and serves
// the latest reading over HTTP, optionally publishing it to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sweeney/dht-sensor/internal/dht"
	"github.com/sweeney/dht-sensor/internal/logic"
	"github.com/sweeney/dht-sensor/internal/mqtt"
	"github.com/sweeney/dht-sensor/internal/poller"
	"github.com/sweeney/dht-sensor/internal/status"
	"github.com/sweeney/dht-sensor/internal/web"
)

type config struct {
	httpAddr       string
	driver         string
	chip           string
	pin            int
	interval       time.Duration
	retry          time.Duration
	broker         string
	topicPrefix    string
	heartbeat      time.Duration
	networkTimeout time.Duration
	staleAfter     time.Duration
	accessLog      bool
	envFile        string
	printReading   bool
}

func main() {
	var cfg config
	flag.StringVar(&cfg.httpAddr, "http", ":4000", "HTTP listen address")
	flag.StringVar(&cfg.driver, "driver", "gpiocdev", `Sensor transport: "gpiocdev" or "periph"`)
	flag.StringVar(&cfg.chip, "chip", "gpiochip0", "GPIO chip (gpiocdev driver only)")
	flag.IntVar(&cfg.pin, "pin", dht.DefaultPin, "BCM pin number of the sensor data line")
	flag.DurationVar(&cfg.interval, "interval", 2*time.Second, "Sampling interval after a successful read")
	flag.DurationVar(&cfg.retry, "retry", 250*time.Millisecond, "Sampling interval after a failed read")
	flag.StringVar(&cfg.broker, "broker", "", "MQTT broker address (empty to disable)")
	flag.StringVar(&cfg.topicPrefix, "topic-prefix", mqtt.DefaultTopicPrefix, "MQTT topic prefix")
	flag.DurationVar(&cfg.heartbeat, "heartbeat", 15*time.Minute, "MQTT heartbeat interval (0 to disable)")
	flag.DurationVar(&cfg.networkTimeout, "network-timeout", 30*time.Second, "How long to wait for the network at startup (0 to skip)")
	flag.DurationVar(&cfg.staleAfter, "stale-after", 30*time.Second, "Age after which the status page flags the reading stale (0 to disable)")
	flag.BoolVar(&cfg.accessLog, "access-log", false, "Log HTTP requests")
	flag.StringVar(&cfg.envFile, "env-file", defaultEnvFile, "pi-helper env file re-read for network info (empty to use the process environment only)")
	flag.BoolVar(&cfg.printReading, "print-reading", false, "Print one reading and exit")

	flag.Parse()

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config) error {
	cadence := logic.Cadence{Steady: cfg.interval, Retry: cfg.retry, Floor: dht.MinSampleGap}
	if err := cadence.Validate(); err != nil {
		return fmt.Errorf("invalid intervals: %w", err)
	}

	// Print reading mode; the network is not needed.
	if cfg.printReading {
		source, err := openSource(cfg.driver, cfg.chip, cfg.pin)
		if err != nil {
			return fmt.Errorf("init sensor: %w", err)
		}
		defer source.Close()
		r, err := source.Sample()
		if err != nil {
			return fmt.Errorf("read sensor: %w", err)
		}
		fmt.Println(r)
		return nil
	}

	source, err := startSensor(cfg.networkTimeout, hostNetworkUp, func() (dht.Source, error) {
		return openSource(cfg.driver, cfg.chip, cfg.pin)
	})
	if err != nil {
		return err
	}
	defer source.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		IntervalMs:   cfg.interval.Milliseconds(),
		RetryMs:      cfg.retry.Milliseconds(),
		HeartbeatMs:  cfg.heartbeat.Milliseconds(),
		StaleAfterMs: cfg.staleAfter.Milliseconds(),
		Driver:       cfg.driver,
		Pin:          cfg.pin,
		Broker:       cfg.broker,
		HTTPAddr:     cfg.httpAddr,
	})
	if info := readNetworkInfo(cfg.envFile); info != nil {
		tracker.SetNetwork(info)
	}

	// Start HTTP server; a bind failure aborts startup.
	var accessLog = log.Writer()
	if !cfg.accessLog {
		accessLog = nil
	}
	srv := web.New(cfg.httpAddr, tracker, accessLog)
	ln, err := startHTTP(cfg.httpAddr, srv)
	if err != nil {
		return err
	}
	defer srv.Shutdown(context.Background())
	log.Printf("http server listening on %s", ln.Addr())

	// Initialize MQTT
	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.broker != "" {
		p := mqtt.NewRealPublisher(cfg.broker, mqtt.NewTopics(cfg.topicPrefix))
		defer p.Close()
		publisher, mqttStatus = p, p
	}

	sysEvents := &systemEvents{publisher: publisher, status: mqttStatus, tracker: tracker, envFile: cfg.envFile}
	sysEvents.publish("STARTUP", "", true)

	loop := poller.New(poller.Options{
		Source:      source,
		Sink:        tracker,
		Cadence:     cadence,
		Publisher:   publisher,
		Heartbeat:   cfg.heartbeat,
		OnHeartbeat: sysEvents.heartbeat,
	})

	log.Printf("started: driver=%s pin=%d interval=%v retry=%v broker=%q heartbeat=%v",
		cfg.driver, cfg.pin, cfg.interval, cfg.retry, cfg.broker, cfg.heartbeat)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	reason := runLoop(context.Background(), loop, sigCh)
	log.Printf("received %s, shutting down", reason)
	sysEvents.publish("SHUTDOWN", reason, true)
	return nil
}

// startSensor waits up to networkTimeout for the network, then opens the
// sensor. A zero timeout skips the wait.
func startSensor(networkTimeout time.Duration, up func() (bool, error), open func() (dht.Source, error)) (dht.Source, error) {
	if networkTimeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), networkTimeout)
		err := waitNetwork(ctx, up, time.Second)
		cancel()
		if err != nil {
			return nil, err
		}
	}

	source, err := open()
	if err != nil {
		return nil, fmt.Errorf("init sensor: %w", err)
	}
	return source, nil
}

// openSource opens the sensor transport named by driver.
func openSource(driver, chip string, pin int) (dht.Source, error) {
	switch driver {
	case "gpiocdev":
		s, err := dht.NewCdevSensor(chip, pin)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "periph":
		s, err := dht.NewPeriphSensor(periphPinName(pin))
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown driver %q", driver)
	}
}

func periphPinName(pin int) string {
	return fmt.Sprintf("GPIO%d", pin)
}

// startHTTP binds addr synchronously so a port conflict is reported before
// the loop starts, then serves in the background.
func startHTTP(addr string, srv *web.Server) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind http %s: %w", addr, err)
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()
	return ln, nil
}

// runLoop runs the sampling loop on the calling goroutine until a signal
// arrives or ctx ends. It returns the name of the signal, or "" if ctx ended.
func runLoop(ctx context.Context, loop *poller.Loop, sig <-chan os.Signal) string {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reason := make(chan string, 1)
	go func() {
		select {
		case s := <-sig:
			reason <- signalName(s)
			cancel()
		case <-ctx.Done():
		}
	}()

	loop.Run(ctx)

	select {
	case r := <-reason:
		return r
	default:
		return ""
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

// systemEvents publishes lifecycle events carrying a full status snapshot.
// All methods are no-ops when MQTT is disabled.
type systemEvents struct {
	publisher mqtt.Publisher
	status    mqtt.ConnectionStatus
	tracker   *status.Tracker
	envFile   string
}

func (s *systemEvents) publish(event, reason string, retained bool) {
	if s.publisher == nil {
		return
	}
	if s.status != nil {
		s.tracker.SetMQTTConnected(s.status.IsConnected())
	}
	snap := s.tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := s.publisher.PublishSystem(ev); err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
	} else {
		log.Printf("published %s event", event)
	}
}

func (s *systemEvents) heartbeat(hb logic.HeartbeatData) {
	// Refresh network info for heartbeat
	if info := readNetworkInfo(s.envFile); info != nil {
		s.tracker.SetNetwork(info)
	}
	snap := s.tracker.Snapshot()
	log.Printf("heartbeat: uptime=%v successes=%d failures=%d", hb.Uptime.Truncate(time.Second), snap.Counts.Successes, snap.Counts.Failures)
	s.publish("HEARTBEAT", "", false)
}

// waitNetwork polls up until it reports a usable network or ctx ends.
func waitNetwork(ctx context.Context, up func() (bool, error), poll time.Duration) error {
	logged := false
	for {
		ok, err := up()
		if ok {
			return nil
		}
		if !logged {
			if err != nil {
				log.Printf("waiting for network: %v", err)
			} else {
				log.Printf("waiting for network")
			}
			logged = true
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("network not available: %w", ctx.Err())
		case <-time.After(poll):
		}
	}
}

// hostNetworkUp reports whether any non-loopback interface is up with an
// address assigned.
func hostNetworkUp() (bool, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false, fmt.Errorf("list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		if len(addrs) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

const defaultEnvFile = "/run/pi-helper.env"

// readNetworkInfo returns the network state pi-helper last wrote. The env
// file wins over the process environment, which systemd only populates at
// start. Returns nil when NETWORK_STATUS is not set anywhere.
func readNetworkInfo(envFile string) *status.NetworkInfo {
	get := os.Getenv
	if envFile != "" {
		if vals, err := godotenv.Read(envFile); err == nil {
			get = func(key string) string {
				if v, ok := vals[key]; ok {
					return v
				}
				return os.Getenv(key)
			}
		}
	}

	s := get(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       get(envNetworkType),
		IP:         get(envNetworkIP),
		Status:     s,
		Gateway:    get(envNetworkGateway),
		WifiStatus: get(envNetworkWifiStatus),
		SSID:       get(envNetworkWifiSSID),
	}
}

// Command relay-controller drives four GPIO relays and exposes them as
// properties on an MQTT bus.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/relay-controller/internal/bus"
	"github.com/sweeney/relay-controller/internal/config"
	"github.com/sweeney/relay-controller/internal/gpio"
	"github.com/sweeney/relay-controller/internal/logging"
	"github.com/sweeney/relay-controller/internal/relay"
	"github.com/sweeney/relay-controller/internal/status"
	"github.com/sweeney/relay-controller/internal/web"
)

// statusInterval is how often the status page refreshes broker and network state.
const statusInterval = 5 * time.Second

type options struct {
	configPath  string
	chip        string
	broker      string
	clientID    string
	prefix      string
	poll        time.Duration
	httpAddr    string
	consumer    string
	autoConnect bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", config.DefaultPath, "Settings file (pins, active state, labels)")
	flag.StringVar(&opts.chip, "chip", gpio.DefaultChip, "GPIO chip name or path")
	flag.StringVar(&opts.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address (empty to disable)")
	flag.StringVar(&opts.clientID, "client-id", "relay-controller", "MQTT client id")
	flag.StringVar(&opts.prefix, "prefix", bus.DefaultPrefix, "MQTT topic prefix")
	flag.DurationVar(&opts.poll, "poll", relay.DefaultPollInterval, "Line reconciliation interval")
	flag.StringVar(&opts.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	flag.StringVar(&opts.consumer, "consumer", relay.DefaultConsumer, "GPIO consumer tag prefix")
	flag.BoolVar(&opts.autoConnect, "connect", false, "Connect to the relays at startup")
	logLevel := flag.String("log-level", "info", "Log level (trace, debug, info, warn, error)")

	flag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logging.Setup(logging.Options{Level: level})

	if err := run(opts); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

func run(opts options) error {
	if opts.poll <= 0 {
		return fmt.Errorf("invalid poll interval %v", opts.poll)
	}

	store := config.NewFileStore(opts.configPath)
	settings, err := store.Load()
	if err != nil {
		log.Warn().Err(err).Str("path", store.Path()).Msg("Using default settings")
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:     opts.poll.Milliseconds(),
		Chip:       opts.chip,
		ConfigPath: store.Path(),
		Broker:     opts.broker,
		Prefix:     opts.prefix,
		HTTPAddr:   opts.httpAddr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	var (
		publisher  bus.Publisher = tracker
		mqttStatus bus.ConnectionStatus
		mqttBus    *bus.MQTTBus
	)
	if opts.broker != "" {
		mqttBus = bus.NewMQTTBus(opts.broker, opts.clientID, opts.prefix)
		defer mqttBus.Close()
		publisher = bus.Tee(mqttBus, tracker)
		mqttStatus = mqttBus
	}

	ctrl := relay.New(relay.Options{
		Opener:       gpio.NewChipOpener(),
		Chip:         opts.chip,
		Consumer:     opts.consumer,
		Publisher:    publisher,
		Store:        store,
		PollInterval: opts.poll,
		Settings:     settings,
	})
	ctrl.DefineProperties()

	if mqttBus != nil {
		if err := mqttBus.Subscribe(ctrl.Dispatch); err != nil {
			// Retried by the bus on every reconnect.
			log.Warn().Err(err).Msg("Subscribe failed")
		}
	}

	if opts.autoConnect {
		if err := ctrl.Connect(); err != nil {
			log.Error().Err(err).Msg("Auto-connect failed; waiting for a connect command")
		}
	}

	if opts.httpAddr != "" {
		srv := web.New(opts.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("HTTP server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info().Str("addr", opts.httpAddr).Msg("HTTP status server listening")
	}

	log.Info().
		Str("chip", opts.chip).
		Ints("pins", settings.Pins[:]).
		Str("active_state", string(settings.Polarity)).
		Str("broker", opts.broker).
		Str("prefix", opts.prefix).
		Dur("poll", opts.poll).
		Msg("Started")

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctrl, mqttStatus, tracker, ticker.C, sigCh)
}

// runLoop refreshes the status mirror until a signal arrives, then releases
// the relays. Relay commands and polling run on their own goroutines.
func runLoop(ctrl *relay.Controller, mqttStatus bus.ConnectionStatus, tracker *status.Tracker, tick <-chan time.Time, sig <-chan os.Signal) error {
	refresh := func() {
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
		if net := readNetworkInfo(); net != nil {
			tracker.SetNetwork(net)
		}
	}
	refresh()

	for {
		select {
		case s := <-sig:
			log.Info().Str("signal", signalName(s)).Msg("Shutting down")
			if err := ctrl.Close(); err != nil {
				log.Error().Err(err).Msg("Releasing relays failed")
				return err
			}
			return nil

		case <-tick:
			refresh()
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
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

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldprobe/gaussd/internal/config"
	"github.com/fieldprobe/gaussd/internal/gauss"
	"github.com/fieldprobe/gaussd/internal/gpib"
	"github.com/fieldprobe/gaussd/internal/logging"
	"github.com/fieldprobe/gaussd/internal/ls460"
	"github.com/fieldprobe/gaussd/internal/messaging"
	"github.com/fieldprobe/gaussd/internal/poller"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	mqttURL := getenv("MQTT_URL", "tcp://localhost:1883")
	path := getenv("GAUSSD_CONFIG_PATH", "/etc/gaussd/config.json")

	logging.Init()
	cfg, err := config.Load(path)
	if err != nil {
		logging.Fatal("Config error", "error", err)
	}
	cfg.Instrument = getenv("INSTRUMENT_NAME", cfg.Instrument)

	logging.Info("Loaded config",
		"instrument", cfg.Instrument,
		"mode", cfg.Mode,
		"pollMs", cfg.PollIntervalMs,
	)

	// An unreachable or unidentified instrument is a fatal startup condition:
	// no partial service, exit 255.
	link, err := gpib.Open(cfg.Link)
	if err != nil {
		logging.Fault("Bus connection failed", "error", err)
	}
	defer link.Close()

	if err := link.Clear(); err != nil {
		logging.Fault("Bus clear failed", "error", err)
	}

	dev := ls460.New(link)
	idn, err := dev.Identify()
	if err != nil {
		logging.Fault("Instrument identification failed", "idn", idn, "error", err)
	}
	logging.Info("Instrument identified", "idn", idn)

	if err := dev.Configure(); err != nil {
		logging.Fault("Instrument configuration failed", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	info := gauss.InstrumentInfo{
		Name:     cfg.Instrument,
		Identity: idn,
		LinkType: cfg.Link.Type,
		Address:  link.Address(),
		Mode:     cfg.Mode,
	}
	broker := messaging.NewInstrumentBroker(messaging.BrokerConfig{
		BrokerURL:        mqttURL,
		ClientName:       cfg.Instrument,
		TopicPrefix:      "gauss/" + cfg.Instrument,
		ConnectTimeout:   10 * time.Second,
		PublishTimeout:   5 * time.Second,
		SubscribeTimeout: 5 * time.Second,
	}, func() (messaging.PublishRequest, error) {
		return messaging.PublishRequest{
			Topic:   "gauss/" + cfg.Instrument + "/info",
			Qos:     messaging.AtLeastOnce,
			Retain:  true,
			Payload: info,
		}, nil
	}, cfg.Heartbeat())

	if err := broker.Connect(ctx); err != nil {
		logging.Fatal("MQTT connect failed", "url", mqttURL, "error", err)
	}
	defer broker.Close(ctx)

	p := poller.New(cfg, dev, broker)
	if err := broker.StartCommandSubscriber(ctx, p); err != nil {
		logging.Fatal("Command subscription failed", "error", err)
	}
	go p.Start(ctx)

	// Wait for SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	logging.Info("Shutting down", "signal", s)

	// Give the poll loop a moment to exit cleanly (it honors ctx)
	cancel()
	time.Sleep(200 * time.Millisecond)
	logging.Info("bye")
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/fieldprobe/gaussd/internal/gauss"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  gaussctl range   --instrument NAME --value {HIGHEST|HIGH|LOW|LOWEST|AUTO}
  gaussctl enable  --instrument NAME --axis {X|Y|Z} --value {on|off}
  gaussctl reset   --instrument NAME
  gaussctl refresh --instrument NAME

Common flags:
  --instrument (string)  Instrument name as configured in gaussd (required)
  --broker     (string)  MQTT broker address (default: tcp://localhost:1883)

`)
	flag.PrintDefaults()
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Missing command (range, enable, reset, refresh)\n")
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]

	flags := flag.NewFlagSet(cmd, flag.ExitOnError)
	instrument := flags.String("instrument", "", "Instrument name (required)")
	broker := flags.String("broker", "tcp://localhost:1883", "MQTT broker address")
	axis := flags.String("axis", "", "Channel axis for 'enable' (X, Y or Z)")
	value := flags.String("value", "", "Value to send")
	flags.Usage = usage

	if err := flags.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	if *instrument == "" {
		fmt.Fprintf(os.Stderr, "--instrument is required\n")
		usage()
		os.Exit(2)
	}

	payload := gauss.IncomingCommand{Instrument: *instrument}
	switch cmd {
	case "range":
		if *value == "" {
			fmt.Fprintf(os.Stderr, "--value is required for 'range'\n")
			os.Exit(2)
		}
		payload.Action = "setRange"
		payload.Value = *value
	case "enable":
		if *axis == "" || *value == "" {
			fmt.Fprintf(os.Stderr, "--axis and --value are required for 'enable'\n")
			os.Exit(2)
		}
		payload.Action = "setEnable"
		payload.Axis = *axis
		payload.Value = *value
	case "reset":
		payload.Action = "reset"
	case "refresh":
		payload.Action = "refresh"
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(2)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(*broker)
	opts.SetClientID(fmt.Sprintf("gaussctl-%d", time.Now().UnixNano()))
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		fmt.Fprintf(os.Stderr, "MQTT connect error: %v\n", token.Error())
		os.Exit(1)
	}
	defer client.Disconnect(250)

	topic := fmt.Sprintf("gauss/%s/cmd", *instrument)
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "JSON marshal error: %v\n", err)
		os.Exit(1)
	}
	token := client.Publish(topic, 1, false, payloadBytes)
	token.Wait()
	if token.Error() != nil {
		fmt.Fprintf(os.Stderr, "MQTT publish error: %v\n", token.Error())
		os.Exit(1)
	}

	fmt.Printf("Published %s to %s\n", payload.Action, topic)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/robotalks/servotree/pkg/hostlink/mqtt"
)

//go-build: CGO_ENABLED=0

var (
	mqttURL = "mqtt://localhost:1883/servotree/"
	timeout = mqtt.DefaultTimeout
)

func init() {
	if val := os.Getenv("SERVOTREE_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.DurationVar(&timeout, "timeout", timeout, "Reply timeout.")
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] roots | do ROOT COMMAND... | inventory ROOT\n", os.Args[0])
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	client, err := mqtt.NewClient(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	defer client.Close()
	client.Timeout = timeout
	ctx := context.Background()

	switch args[0] {
	case "roots":
		roots, err := client.Roots(ctx)
		if err != nil {
			log.Fatalln(err)
		}
		for _, meta := range roots {
			fmt.Printf("%s: %s branches, version %s\n", meta.ID, meta.Topology, meta.Version)
		}
	case "do":
		if len(args) < 3 {
			usage()
		}
		reply, err := client.Do(ctx, args[1], strings.Join(args[2:], " "))
		if err == mqtt.ErrNoReply {
			return
		}
		if err != nil {
			log.Fatalln(err)
		}
		fmt.Println(reply)
	case "inventory":
		if len(args) < 2 {
			usage()
		}
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		inv, err := client.Inventory(ctx, args[1])
		if err != nil {
			log.Fatalln(err)
		}
		if inv.Error != "" {
			fmt.Printf("error: %s\n", inv.Error)
		}
		fmt.Printf("branch %d, %d rollbacks\n", inv.Branch, inv.Rollbacks)
		for _, m := range inv.Modules {
			fmt.Printf("%d: by %s status %q\n", m.Address, m.How, m.Status)
		}
	default:
		usage()
	}
}

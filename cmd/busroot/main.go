package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"go.bug.st/serial"

	fx "github.com/robotalks/servotree/pkg/framework"
	"github.com/robotalks/servotree/pkg/hostlink"
	"github.com/robotalks/servotree/pkg/hostlink/mqtt"
	"github.com/robotalks/servotree/pkg/hostlink/websocket"
	"github.com/robotalks/servotree/pkg/l0/periph/serialport"
	"github.com/robotalks/servotree/pkg/l0/root"
	"github.com/robotalks/servotree/pkg/trace"
)

//go-build: CGO_ENABLED=0

const version = "0.1.0"

var (
	busDevice  = "/dev/ttyUSB0"
	branchDevs = ""
	busBaud    = serialport.DefaultBaudRate
	hostAddr   = "stdio"
	hostBaud   = 115200
)

func init() {
	if val := os.Getenv("SERVOTREE_BUS"); val != "" {
		busDevice = val
	}
	if val := os.Getenv("SERVOTREE_HOST"); val != "" {
		hostAddr = val
	}
	flag.StringVar(&busDevice, "bus", busDevice, "Serial device of the downstream line")
	flag.StringVar(&branchDevs, "branch-devs", branchDevs, "Comma separated receive devices, one per branch")
	flag.IntVar(&busBaud, "baud", busBaud, "Bus baud rate")
	flag.StringVar(&hostAddr, "host", hostAddr, "Host link: stdio, serial:DEVICE, ws:ADDR or mqtt://BROKER/PREFIX")
	flag.IntVar(&hostBaud, "host-baud", hostBaud, "Baud rate of a serial host link")
	root.SetupFlags()
}

type stdio struct {
	io.Reader
	io.Writer
}

type hostLink interface {
	hostlink.Link
	fx.Runnable
}

func openHost(addr string, conf *root.Config) (hostLink, error) {
	switch {
	case addr == "stdio":
		return hostlink.NewLineLink(stdio{os.Stdin, os.Stdout}), nil
	case strings.HasPrefix(addr, "serial:"):
		dev := strings.TrimPrefix(addr, "serial:")
		port, err := serial.Open(dev, &serial.Mode{
			BaudRate: hostBaud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		if err != nil {
			return nil, fmt.Errorf("open host %s: %w", dev, err)
		}
		return hostlink.NewLineLink(port), nil
	case strings.HasPrefix(addr, "ws:"):
		return websocket.New(strings.TrimPrefix(addr, "ws:")), nil
	case strings.HasPrefix(addr, "mqtt://"), strings.HasPrefix(addr, "tcp://"):
		return mqtt.NewLink(addr, mqtt.RootMeta{
			Topology: strconv.Itoa(conf.Bus.Topology.Branches),
			Version:  version,
		})
	}
	return nil, fmt.Errorf("unknown host link %q", addr)
}

func main() {
	flag.Parse()

	conf := root.NewConfig()
	var branches []string
	if branchDevs != "" {
		branches = strings.Split(branchDevs, ",")
	}
	port, err := serialport.Open(serialport.Config{Device: busDevice, Branches: branches, BaudRate: busBaud})
	if err != nil {
		log.Fatalln(err)
	}
	defer port.Close()

	link, err := openHost(hostAddr, conf)
	if err != nil {
		log.Fatalln(err)
	}
	r, err := root.New(port, link, conf)
	if err != nil {
		log.Fatalln(err)
	}
	if conf.TracePath != "" {
		sink, err := trace.Create(conf.TracePath)
		if err != nil {
			log.Fatalln(err)
		}
		defer sink.Close()
		r.Trace(trace.NewRecorder(sink))
	}

	err = fx.NewRunner().HandleSignals().Go(
		fx.NamedRun("root", r),
		fx.NamedRun("host", link),
	).Wait()
	if err != nil {
		log.Fatalln(err)
	}
}

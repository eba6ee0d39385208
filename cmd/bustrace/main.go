package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/robotalks/servotree/pkg/l0/bus"
	"github.com/robotalks/servotree/pkg/trace"
)

//go-build: CGO_ENABLED=0

var (
	direction = ""
	kind      = ""
	session   = ""
)

func init() {
	flag.StringVar(&direction, "dir", direction, "Only frames in this direction: in or out")
	flag.StringVar(&kind, "kind", kind, "Only events of this kind: frame, mode, discovery or error")
	flag.StringVar(&session, "session", session, "Only events of this session")
}

func parseFilter() (trace.Filter, error) {
	f := trace.Filter{Session: session}
	switch direction {
	case "":
	case "in", "out":
		dir := bus.DirOut
		if direction == "in" {
			dir = bus.DirIn
		}
		f.Direction = &dir
	default:
		return f, fmt.Errorf("invalid direction %q", direction)
	}
	if kind != "" {
		k, err := trace.ParseKind(kind)
		if err != nil {
			return f, err
		}
		f.Kind = &k
	}
	return f, nil
}

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] FILE\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	filter, err := parseFilter()
	if err != nil {
		log.Fatalln(err)
	}
	rd, err := trace.Open(flag.Arg(0), filter)
	if err != nil {
		log.Fatalln(err)
	}
	defer rd.Close()
	for {
		e, err := rd.Next()
		if err == io.EOF {
			return
		}
		if err != nil {
			log.Fatalln(err)
		}
		fmt.Println(e.String())
	}
}

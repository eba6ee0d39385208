package main

import (
	"flag"
	"log"

	"github.com/robotalks/servotree/pkg/cli/sh"
	"github.com/robotalks/servotree/pkg/l0/periph"
	"github.com/robotalks/servotree/pkg/l0/root"
	"github.com/robotalks/servotree/pkg/trace"
)

//go-build: CGO_ENABLED=0

var (
	modules = 0
	branch  = 1
)

func init() {
	flag.IntVar(&modules, "modules", modules, "Blank modules attached at start")
	flag.IntVar(&branch, "attach", branch, "Branch the start modules are attached to")
	root.SetupFlags()
}

func main() {
	flag.Parse()

	conf := root.NewConfig()
	s, err := sh.NewSim(conf)
	if err != nil {
		log.Fatalln(err)
	}
	if conf.TracePath != "" {
		sink, err := trace.Create(conf.TracePath)
		if err != nil {
			log.Fatalln(err)
		}
		defer sink.Close()
		s.Root.Trace(trace.NewRecorder(sink))
	}
	if err := s.Attach(periph.Branch(branch), modules); err != nil {
		log.Fatalln(err)
	}
	sh.New(s).Run(flag.Args()...)
}

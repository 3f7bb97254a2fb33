package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
)

const (
	help = `Requirements:
- a cdft input file specifying the cell, grid, geometry, fragments,
  and at least one constraint block
- a reference density cube file per element, given with the rhoatom
  keyword
- a running engine in server mode in enginedir, or the -launch flag to
  start one
Flags:
`
)

// set by -ldflags at build time
var (
	VERSION   = "dev"
	COMP_TIME = "unknown"
)

var (
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
	launch     = flag.String("launch", "", "engine command to launch in server mode; empty attaches to a running session")
	version    = flag.Bool("version", false, "print the version and exit")
)

// ParseFlags parses command line flags and returns a slice of
// the remaining arguments
func ParseFlags() []string {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), help)
		flag.PrintDefaults()
	}
	flag.Parse()
	if *version {
		fmt.Printf("cdft version: %s\ncompiled at %s\n", VERSION, COMP_TIME)
		os.Exit(0)
	}
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
	}
	return flag.Args()
}

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"pimaster/core"
	"pimaster/sim"
)

var (
	scenario  = flag.String("scenario", "", "Run a YAML scenario file and exit")
	threshold = flag.Uint("threshold", 0, "Watchdog threshold in raw counts (0 = default)")
	tickHz    = flag.Uint("tick", 0, "Sampler tick rate in Hz (0 = default)")
	vrefCal   = flag.Uint("vrefcal", 0, "Reference calibration counts (0 = nominal supply)")
	manual    = flag.Bool("manual", false, "Do not start the sampler at boot")
)

const (
	boardKey = "$board"
	prompt   = "pimaster > "
)

func main() {
	flag.Parse()
	defer glog.Flush()

	core.SetDebugWriter(func(s string) { fmt.Println(s) })
	core.SetDebugEnabled(true)

	if *scenario != "" {
		os.Exit(runScenario(*scenario))
	}

	autostart := !*manual
	b, err := sim.NewBoard(sim.BoardConfig{
		TickHz:    uint32(*tickHz),
		Threshold: uint16(*threshold),
		VrefCal:   uint16(*vrefCal),
		Autostart: &autostart,
	})
	if err != nil {
		glog.Errorf("board: %v", err)
		os.Exit(1)
	}
	glog.Infof("board up, sampler %s, threshold %#04x", b.Sampler.State(), b.Samples.Threshold())

	shell := ishell.New()
	shell.Set(boardKey, b)
	shell.SetPrompt(prompt)
	for _, cmd := range commands {
		shell.AddCmd(cmd)
	}

	if args := flag.Args(); len(args) > 0 {
		if err := shell.Process(args...); err != nil {
			glog.Errorf("%v", err)
			os.Exit(1)
		}
		return
	}
	shell.Run()
}

func runScenario(path string) int {
	sc, err := sim.LoadScenario(path)
	if err != nil {
		glog.Errorf("load %s: %v", path, err)
		return 2
	}
	rep, err := sc.Run()
	if err != nil {
		glog.Errorf("run %s: %v", path, err)
		return 2
	}
	for i, step := range rep.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step %d", i)
		}
		if step.Passed() {
			fmt.Printf("PASS %s\n", name)
			continue
		}
		fmt.Printf("FAIL %s\n", name)
		for _, f := range step.Failures {
			fmt.Printf("     %s\n", f)
		}
	}
	if !rep.Passed() {
		return 1
	}
	return 0
}

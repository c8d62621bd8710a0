// Command haasoctl is the host-side control and acquisition daemon for
// the oscilloscope: it discovers boards, runs the acquisition cycle,
// and drains the diagnostic bus to a structured logger (spec §6).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/haasoctl/haasoctl/internal/controller"
	"github.com/haasoctl/haasoctl/internal/diag"
	flag "github.com/spf13/pflag"
)

const (
	exitClean     = 0
	exitProtocol  = 1
	exitConfigErr = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	var sockets []string
	var maxDevices int
	var testing bool

	fs := flag.NewFlagSet("haasoctl", flag.ContinueOnError)
	fs.StringArrayVar(&sockets, "socket", nil, "host:port TCP endpoint (repeatable)")
	fs.IntVar(&maxDevices, "max-devices", 100, "maximum USB devices to enumerate")
	fs.BoolVar(&testing, "testing", false, "freeze status fields for reproducible screenshots")
	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigErr
	}

	bus := diag.NewBus(0)
	sink := diag.NewSink()
	stop := make(chan struct{})
	go sink.Run(bus, stop)
	defer close(stop)

	ctrl := controller.New(controller.Options{
		Sockets:    sockets,
		MaxDevices: maxDevices,
		Testing:    testing,
	}, bus)

	endpoints, err := ctrl.Discover()
	if err != nil {
		bus.Emitf("main", diag.LevelError, "discovery failed", map[string]any{"error": err.Error()})
		return exitConfigErr
	}
	if err := ctrl.Connect(endpoints); err != nil {
		bus.Emitf("main", diag.LevelError, "connect failed", map[string]any{"error": err.Error()})
		return exitProtocol
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	for {
		select {
		case <-ctx.Done():
			return exitClean
		default:
		}

		cycleCtx, cycleCancel := context.WithTimeout(ctx, controller.DefaultCycleTimeout+time.Second)
		state, err := ctrl.RunCycle(cycleCtx)
		cycleCancel()
		if err != nil {
			bus.Emitf("main", diag.LevelError, "acquisition cycle failed", map[string]any{
				"state": state.String(), "error": err.Error(),
			})
			return exitProtocol
		}
	}
}

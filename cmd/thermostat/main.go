package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facebookgo/inject"
	"github.com/facebookgo/startstop"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	_ "go.uber.org/automaxprocs"

	"github.com/tieredmem/thermostat/app"
	"github.com/tieredmem/thermostat/collect"
	"github.com/tieredmem/thermostat/config"
	"github.com/tieredmem/thermostat/hardware"
	"github.com/tieredmem/thermostat/internal/health"
	"github.com/tieredmem/thermostat/logger"
	"github.com/tieredmem/thermostat/metrics"
	"github.com/tieredmem/thermostat/service/debug"
)

// set by the build.
var BuildID string
var version string

type graphLogger struct{}

func (g graphLogger) Debugf(format string, v ...interface{}) {
	fmt.Printf(format, v...)
	fmt.Println()
}

func main() {
	opts, err := config.NewCmdEnvOptions(os.Args)
	if err != nil {
		fmt.Printf("Command line parsing error '%s' -- call with --help for usage.\n", err)
		os.Exit(1)
	}

	if BuildID == "" {
		version = "dev"
	} else {
		version = BuildID
	}

	if opts.Version {
		fmt.Println("Version: " + version)
		os.Exit(0)
	}

	c, err := config.NewConfig(opts)
	if err != nil {
		fmt.Printf("%+v\n", err)
		os.Exit(1)
	}
	if opts.Validate {
		fmt.Println("Config validated successfully.")
		os.Exit(0)
	}

	// get desired implementation for each dependency to inject
	lgr, err := logger.GetLoggerImplementation(c)
	if err != nil {
		fmt.Printf("unable to set up logger: %v\n", err)
		os.Exit(1)
	}
	metricsSingleton, err := metrics.GetMetricsImplementation(c)
	if err != nil {
		fmt.Printf("unable to set up metrics: %v\n", err)
		os.Exit(1)
	}
	if err := lgr.SetLevel(c.GetLoggerLevel()); err != nil {
		fmt.Printf("unable to set logging level: %v\n", err)
		os.Exit(1)
	}

	a := app.App{
		Version: version,
	}
	orchestrator := &collect.Orchestrator{}

	var g inject.Graph
	if opts.Debug {
		g.Logger = graphLogger{}
	}
	objects := []*inject.Object{
		{Value: c},
		{Value: lgr},
		{Value: metricsSingleton},
		{Value: clockwork.NewRealClock()},
		{Value: &hardware.LoggingSetter{}},
		{Value: &health.Health{}},
		{Value: orchestrator},
		{Value: &a},
	}
	if err := g.Provide(objects...); err != nil {
		fmt.Printf("failed to provide injection graph. error: %+v\n", err)
		os.Exit(1)
	}

	if opts.Debug {
		if err := g.Provide(&inject.Object{Value: &debug.DebugService{}}); err != nil {
			fmt.Printf("failed to provide injection graph. error: %+v\n", err)
			os.Exit(1)
		}
	}

	if err := g.Populate(); err != nil {
		fmt.Printf("failed to populate injection graph. error: %+v\n", err)
		os.Exit(1)
	}

	// the logger provided to startstop must be valid before any service is
	// started, meaning it can't rely on injected configs. make a custom
	// logger just for this step
	ststLogger := logrus.New()
	ststLogger.SetLevel(logrus.DebugLevel)

	defer startstop.Stop(g.Objects(), ststLogger)
	if err := startstop.Start(g.Objects(), ststLogger); err != nil {
		fmt.Printf("failed to start injected dependencies. error: %+v\n", err)
		os.Exit(1)
	}

	// set up signal channel to exit
	sigsToExit := make(chan os.Signal, 1)
	signal.Notify(sigsToExit, syscall.SIGINT, syscall.SIGTERM)

	// block on our signal handler to exit
	sig := <-sigsToExit
	time.Sleep(100 * time.Millisecond)
	a.Logger.Error().WithField("signal", sig.String()).Logf("caught signal, shutting down")
}

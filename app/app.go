package app

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/facebookgo/startstop"

	"github.com/tieredmem/thermostat/collect"
	"github.com/tieredmem/thermostat/config"
	"github.com/tieredmem/thermostat/logger"
)

// App is the top of the object graph. By the time it starts, the whole
// pipeline below it is already running; App itself only owns the config
// reload signal and the shutdown log lines.
type App struct {
	Config       config.Config         `inject:""`
	Logger       logger.Logger         `inject:""`
	Orchestrator *collect.Orchestrator `inject:""`

	// Version is the build ID so the running process can answer for which
	// build it is
	Version string

	done chan struct{}

	startstop.Starter
	startstop.Stopper
}

func (a *App) Start() error {
	a.Logger.Info().WithField("version", a.Version).Logf("starting sampling controller")

	a.done = make(chan struct{})
	sigsToReload := make(chan os.Signal, 1)
	signal.Notify(sigsToReload, syscall.SIGUSR1)
	go a.listenForReload(sigsToReload)

	return nil
}

func (a *App) listenForReload(sigs chan os.Signal) {
	for {
		select {
		case <-a.done:
			return
		case sig := <-sigs:
			a.Logger.Info().WithField("signal", sig.String()).Logf("reloading config")
			if err := a.Config.Reload(); err != nil {
				a.Logger.Error().WithField("error", err.Error()).Logf("config reload failed")
			}
		}
	}
}

func (a *App) Stop() error {
	a.Logger.Info().Logf("shutting down sampling controller")
	close(a.done)
	return nil
}

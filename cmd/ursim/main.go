// Package main runs the UR controller simulator used for development and
// integration tests. It records every payload sent to the control and
// program ports.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/cam-andersen/InventorySystemV3/internal/adapter/ur"
	"github.com/cam-andersen/InventorySystemV3/internal/adapter/ursim"
)

func main() {
	host := pflag.String("host", "127.0.0.1", "address to listen on")
	controlPort := pflag.Int("control-port", ur.DefaultControlPort, "control (dashboard) port")
	programPort := pflag.Int("program-port", ur.DefaultProgramPort, "program port")
	fault := pflag.String("fault", ursim.FaultNone, "fault mode: RefuseControl or RefuseProgram")
	debug := pflag.Bool("debug", false, "log every received payload")
	pflag.Parse()

	logger := newLogger(*debug)
	defer func() { _ = logger.Sync() }()

	sim := ursim.NewServer(ursim.Config{
		Host:        *host,
		ControlPort: *controlPort,
		ProgramPort: *programPort,
	}, logger)

	if err := sim.Start(); err != nil {
		logger.Fatal("failed to start simulator", zap.Error(err))
	}
	if *fault != ursim.FaultNone {
		if err := sim.SetFaultMode(*fault); err != nil {
			logger.Fatal("invalid fault mode", zap.String("fault", *fault), zap.Error(err))
		}
	}

	logger.Info("ur simulator listening",
		zap.String("control", sim.ControlAddr()),
		zap.String("program", sim.ProgramAddr()),
		zap.String("fault", sim.FaultMode()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := sim.Close(); err != nil {
		logger.Warn("simulator shutdown error", zap.Error(err))
	}
	logger.Info("ur simulator stopped", zap.Int("messages", len(sim.Messages())))
}

func newLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

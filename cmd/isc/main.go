// Package main implements the Item Sorter Container entry point: order API,
// ledger, dispatcher and robot adapter in one process.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cam-andersen/InventorySystemV3/internal/adapter"
	"github.com/cam-andersen/InventorySystemV3/internal/adapter/fake"
	"github.com/cam-andersen/InventorySystemV3/internal/adapter/ur"
	"github.com/cam-andersen/InventorySystemV3/internal/api"
	"github.com/cam-andersen/InventorySystemV3/internal/audit"
	"github.com/cam-andersen/InventorySystemV3/internal/auth"
	"github.com/cam-andersen/InventorySystemV3/internal/command"
	"github.com/cam-andersen/InventorySystemV3/internal/config"
	"github.com/cam-andersen/InventorySystemV3/internal/ledger"
	"github.com/cam-andersen/InventorySystemV3/internal/telemetry"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting item sorter container", zap.String("version", api.Version))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	cat, err := cfg.BuildCatalog()
	if err != nil {
		logger.Fatal("failed to build catalog", zap.Error(err))
	}
	logger.Info("catalog loaded", zap.Int("items", cat.Len()))

	orders := ledger.New(nil)
	customers := ledger.NewCustomers()

	hub := telemetry.NewHub(&cfg.Timing,
		telemetry.WithLogger(logger.Named("telemetry")),
		telemetry.WithSnapshot(func() map[string]interface{} {
			s := orders.Snapshot()
			return map[string]interface{}{
				"queued":       len(s.Queued),
				"processed":    len(s.Processed),
				"totalRevenue": s.TotalRevenue.String(),
			}
		}))

	orders.SetChangeFunc(func(kind ledger.ChangeKind, order ledger.OrderView) {
		_ = hub.PublishOrder(order.ID, telemetry.Event{
			Type: string(kind),
			Data: map[string]interface{}{
				"orderId":     order.ID,
				"customer":    order.Customer,
				"totalPrice":  order.TotalPrice.String(),
				"fulfillment": order.Fulfillment.String(),
				"picksDone":   order.PicksDone,
			},
		})
	})

	auditLogger, err := audit.NewLogger(cfg.Audit)
	if err != nil {
		logger.Fatal("failed to initialize audit logger", zap.Error(err))
	}

	robot := newRobot(cfg, logger)

	dispatcher := command.NewDispatcher(orders, robot, &cfg.Timing,
		command.WithEventSink(hub),
		command.WithAuditLogger(auditLogger),
		command.WithLogger(logger.Named("dispatcher")))

	verifier, err := auth.NewVerifierFromSettings(cfg.Auth.JWTSecret, cfg.Auth.PublicKeyFile)
	if err != nil {
		logger.Fatal("failed to initialize token verifier", zap.Error(err))
	}

	// Background dispatches run under baseCtx; cancelling it stops the robot
	// between picks.
	baseCtx, cancelDispatch := context.WithCancel(context.Background())
	defer cancelDispatch()

	server := api.NewServer(cat, orders, customers, dispatcher, hub, cfg.Server,
		api.WithAuth(auth.NewMiddleware(verifier)),
		api.WithAuditLogger(auditLogger),
		api.WithLogger(logger.Named("api")),
		api.WithBaseContext(baseCtx))

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErr <- err
		}
	}()

	logger.Info("item sorter container started",
		zap.String("addr", cfg.Server.Addr),
		zap.String("robot", cfg.Robot.ID),
		zap.String("adapter", cfg.Robot.Adapter))

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		logger.Warn("error stopping HTTP server", zap.Error(err))
	}

	cancelDispatch()
	dispatcher.Wait()

	hub.Stop()

	if err := auditLogger.Close(); err != nil {
		logger.Warn("error closing audit logger", zap.Error(err))
	}

	logger.Info("item sorter container shutdown complete")
}

func newRobot(cfg *config.Config, logger *zap.Logger) adapter.IRobotAdapter {
	if cfg.Robot.Adapter == "fake" {
		logger.Warn("using in-memory robot; no motion commands leave the process")
		return fake.NewRobot(cfg.Robot.ID)
	}
	return ur.New(cfg.Robot.ID, ur.Config{
		Host:        cfg.Robot.Host,
		ControlPort: cfg.Robot.ControlPort,
		ProgramPort: cfg.Robot.ProgramPort,
		SendTimeout: cfg.Timing.SendTimeout,
	}, ur.WithLogger(logger.Named("robot")))
}

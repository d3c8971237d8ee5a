// Package main is the entry point for the UNS bridge MCP server.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/unklstewy/uns-bridge/internal/bridge"
	"github.com/unklstewy/uns-bridge/internal/config"
	"github.com/unklstewy/uns-bridge/internal/mcpserver"
	"github.com/unklstewy/uns-bridge/internal/statusapi"
	"github.com/unklstewy/uns-bridge/pkg/mqtt"
)

// statusSource joins the connection state and the cache size for the
// status API.
type statusSource struct {
	*mqtt.Client
	*bridge.Engine
}

func main() {
	logLevel := flag.String("log-level", os.Getenv("UNS_LOG_LEVEL"), "Log level (debug, info, warn, error)")
	flag.Parse()

	// Logs go to stderr; stdout carries the MCP stdio transport.
	var logger *zap.Logger
	var err error
	switch *logLevel {
	case "debug":
		logger, err = zap.NewDevelopment()
	default:
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting UNS bridge")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	client, err := mqtt.NewClient(&mqtt.Config{
		BrokerURL:            cfg.BrokerURL(),
		ClientIDBase:         cfg.ClientID,
		Username:             cfg.Username,
		Password:             cfg.Password,
		ConnectTimeout:       cfg.ConnectTimeout,
		PublishTimeout:       cfg.PublishTimeout,
		MaxReconnectInterval: cfg.MaxReconnectInterval,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create MQTT client", zap.Error(err))
	}

	logger.Info("MQTT broker configured",
		zap.String("broker", cfg.BrokerURL()),
		zap.String("client_id", client.ClientID()))

	// A broker that is down at startup is not fatal: every tool call
	// reconnects on demand.
	if err := client.Connect(); err != nil {
		logger.Warn("Initial MQTT connection failed, will connect on demand", zap.Error(err))
	}

	engine := bridge.New(client, logger)

	var status *statusapi.Server
	if cfg.StatusPort > 0 {
		status = statusapi.NewServer(cfg.StatusPort, cfg.BrokerURL(),
			&statusSource{client, engine}, logger)
		status.Start()
	}

	srv := mcpserver.NewServer(engine, logger)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			logger.Error("MCP server stopped", zap.Error(err))
		} else {
			logger.Info("MCP server stopped")
		}
	}

	if status != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := status.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Status API shutdown failed", zap.Error(err))
		}
	}

	client.Disconnect()
	logger.Info("UNS bridge stopped")
}

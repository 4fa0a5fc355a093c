// ABOUTME: Main entry point for the rbus JSON-RPC WebSocket gateway
// ABOUTME: Loads configuration, wires the bus client, and serves until signalled

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/harper/rbus-gateway/internal/config"
	"github.com/harper/rbus-gateway/internal/db"
	"github.com/harper/rbus-gateway/internal/dispatch"
	"github.com/harper/rbus-gateway/internal/logger"
	"github.com/harper/rbus-gateway/internal/management"
	"github.com/harper/rbus-gateway/internal/notify"
	"github.com/harper/rbus-gateway/internal/rbus"
	"github.com/harper/rbus-gateway/internal/subscription"
	"github.com/harper/rbus-gateway/internal/websocket"
)

const busComponent = "rbus-jsonrpc"

func main() {
	// .env is optional; real env vars win over file values.
	_ = godotenv.Load()

	defaultConfig := os.Getenv("GATEWAY_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "config.yaml"
	}

	configPath := flag.String("config", defaultConfig, "path to config file")
	host := flag.String("host", "", "listen host (overrides config)")
	port := flag.Int("port", 0, "listen port (overrides config)")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	logger.SetVerbose(*verbose)

	cfg := config.Load(*configPath)
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		if *port < 0 || *port > 65535 {
			logger.Error("invalid port %d", *port)
			os.Exit(1)
		}
		cfg.Server.Port = *port
	}
	cfg.Logging.Verbose = cfg.Logging.Verbose || *verbose
	logger.SetVerbose(cfg.Logging.Verbose)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config: %v", err)
		os.Exit(1)
	}

	client, err := rbus.Open(busComponent)
	if err != nil {
		logger.Error("failed to open bus client: %v", err)
		os.Exit(1)
	}

	var database *db.DB
	if cfg.Database.Path != "" {
		database, err = db.Open(cfg.Database.Path)
		if err != nil {
			logger.Error("failed to open database: %v", err)
			os.Exit(1)
		}
		defer database.Close()
	}

	// The subscription manager delivers through the notifier, which hands
	// frames back to the websocket server; the notifier is bound last.
	notifier := notify.NewNotifier()
	subs := subscription.NewManager(client, notifier, cfg.Subscriptions.Limit)
	dispatcher := dispatch.NewDispatcher(client, subs)
	wsServer := websocket.NewServer(dispatcher, subs, database)
	notifier.Bind(wsServer)

	mux := http.NewServeMux()
	mux.Handle("/api/", management.NewServer(cfg, subs, wsServer))
	mux.Handle("/", wsServer)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		scheme := "ws"
		if cfg.Server.SSLEnabled {
			scheme = "wss"
		}
		logger.Info("JSON-RPC WebSocket server running on %s://%s", scheme, cfg.Addr())
		if cfg.Server.SSLEnabled {
			errCh <- srv.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("server shutdown: %v", err)
	}

	// Every live subscription is released before the bus client goes away.
	subs.Close()

	logger.Info("server shutdown complete")
}

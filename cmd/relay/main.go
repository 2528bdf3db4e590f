package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"go.uber.org/zap"

	"github.com/omochice/relay-chat/internal/config"
	"github.com/omochice/relay-chat/internal/logging"
	"github.com/omochice/relay-chat/internal/relay"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	addr := flag.String("addr", "", "Address to listen on for both TCP and WebSocket (default :8080)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Relay.Addr = *addr
	}
	if *debug {
		cfg.Log.Level = "debug"
	}
	if len(cfg.Log.Outputs) == 0 {
		cfg.Log.Outputs = []string{"stderr"}
	}

	logger, err := logging.Setup(cfg.Log)
	if err != nil {
		pterm.Error.Printfln("failed to set up logging: %v", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := relay.New(cfg.Relay.Addr, relay.WithLogger(logger))
	if err := srv.Start(); err != nil {
		logger.Error("relay failed", zap.Error(err))
		os.Exit(1)
	}
	pterm.Info.Printfln("relay listening on %s (TCP and WebSocket at %s)", srv.Addr(), relay.WSPath)

	select {
	case <-ctx.Done():
		logger.Info("signal received, stopping")
	case <-srv.Done():
	}
	srv.Stop()
	logger.Info("relay stopped")
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"go.uber.org/zap"

	"github.com/omochice/relay-chat/internal/config"
	"github.com/omochice/relay-chat/internal/console"
	"github.com/omochice/relay-chat/internal/input"
	"github.com/omochice/relay-chat/internal/logging"
	"github.com/omochice/relay-chat/internal/poll"
	"github.com/omochice/relay-chat/internal/session"
	"github.com/omochice/relay-chat/internal/transport/tcp"
	"github.com/omochice/relay-chat/internal/transport/ws"
)

const defaultLogFile = "client.log"

// transport is what the client needs from either backend.
type transport interface {
	session.Transport
	poll.Source
	Connect(ctx context.Context, host string, port int) error
	SetWriteSlice(d time.Duration)
}

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	host := flag.String("host", "", "Relay host (default 127.0.0.1)")
	port := flag.Int("port", 0, "Relay port, 1~65535 (default 8080)")
	transportName := flag.String("transport", "", "Transport: tcp or ws (default tcp)")
	budget := flag.Duration("budget", 0, "Maximum wait per loop iteration (default 50ms)")
	name := flag.String("name", "", "Name prefixed to every chat line")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Client.Host = *host
		case "port":
			cfg.Client.Port = *port
		case "transport":
			cfg.Client.Transport = *transportName
		case "budget":
			cfg.Client.Budget = *budget
		case "name":
			cfg.Client.Name = *name
		}
	})
	if *debug {
		cfg.Log.Level = "debug"
	}
	if len(cfg.Log.Outputs) == 0 {
		cfg.Log.Outputs = []string{defaultLogFile}
	}

	if err := cfg.Validate(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg.Log)
	if err != nil {
		pterm.Error.Printfln("failed to set up logging: %v", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("client stopped", zap.Error(err))
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	tr := newTransport(cfg.Client.Transport)
	if cfg.Client.WriteSlice > 0 {
		tr.SetWriteSlice(cfg.Client.WriteSlice)
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Client.DialTimeout)
	err := tr.Connect(dialCtx, cfg.Client.Host, cfg.Client.Port)
	cancel()
	if err != nil {
		return fmt.Errorf("connect %s:%d: %w", cfg.Client.Host, cfg.Client.Port, err)
	}
	logger.Info("connected",
		zap.String("host", cfg.Client.Host),
		zap.Int("port", cfg.Client.Port),
		zap.String("transport", cfg.Client.Transport))

	display := console.New()
	display.Banner(
		fmt.Sprintf("connected to %s:%d over %s", cfg.Client.Host, cfg.Client.Port, cfg.Client.Transport),
		strings.Split(session.Help(), "\n")...,
	)

	in := input.NewStream(os.Stdin, input.WithEOFLine(session.CommandExit))
	engine, err := session.New(session.Config{
		Transport:   tr,
		Input:       in,
		Multiplexer: poll.New(in, tr),
		Display:     display,
		Interpreter: session.Interpreter{SenderTag: cfg.Client.SenderTag()},
		Logger:      logger,
	})
	if err != nil {
		tr.Close()
		return err
	}

	runErr := engine.Run(ctx, cfg.Client.Budget)
	closeErr := engine.Close()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	return errors.Join(runErr, closeErr)
}

func newTransport(name string) transport {
	if name == config.TransportWS {
		return ws.New()
	}
	return tcp.New()
}

// Command vncd runs a standalone ramfb device plus single-viewer VNC
// server: the daemon this module packages as an alternative to embedding
// the pairing directly inside a bhyve VMM process.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/tinyrange/bhyve-vnc/internal/config"
	"github.com/tinyrange/bhyve-vnc/internal/guestmem"
	"github.com/tinyrange/bhyve-vnc/internal/ps2"
	"github.com/tinyrange/bhyve-vnc/internal/ramfb"
	"github.com/tinyrange/bhyve-vnc/internal/vncserver"
)

// demoRAMSize backs the in-process guestmem.RAM this binary attaches when
// run standalone (spec §6 guest memory collaborator); a real VMM would
// attach a mapping of actual guest pages instead.
const (
	demoRAMBase = 0x1_0000_0000
	demoRAMSize = ramfb.MaxWidth * ramfb.MaxHeight * 4
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "vncd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath := fs.String("config", "", "path to the vncd YAML configuration file")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	if *configPath == "" {
		fs.Usage()
		return errors.New("vncd: -config is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log := newLogger(cfg)
	slog.SetDefault(log)

	device := ramfb.New()
	device.Attach(guestmem.New(demoRAMBase, demoRAMSize))

	if cfg.MigrationStatePath != "" {
		if err := importMigrationState(device, cfg.MigrationStatePath, log); err != nil {
			return err
		}
	}

	devices := &vncserver.Devices{
		Display:  device,
		Keyboard: ps2.New(log.With("component", "ps2")),
	}
	server := vncserver.New(devices, log.With("component", "vncserver"))
	acceptor := vncserver.NewAcceptor(server, log.With("component", "acceptor"))

	if err := acceptor.ListenTCP(cfg.ListenAddr); err != nil {
		return err
	}
	log.Info("listening", "transport", "tcp", "addr", cfg.ListenAddr)

	if cfg.WebSocketListenAddr != "" {
		if err := acceptor.ListenWebSocket(cfg.WebSocketListenAddr); err != nil {
			return err
		}
		log.Info("listening", "transport", "websocket", "addr", cfg.WebSocketListenAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		server.Stop()
		acceptor.Halt()

		if cfg.MigrationStatePath != "" {
			if err := exportMigrationState(device, cfg.MigrationStatePath); err != nil {
				log.Error("exporting migration state", "error", err)
			}
		}
		return nil
	})

	return g.Wait()
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	// AddSource helps a human watching an interactive terminal; it's
	// noise once logs are shipped to a piped sink or journal.
	opts := &slog.HandlerOptions{Level: level, AddSource: term.IsTerminal(int(os.Stderr.Fd()))}

	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func importMigrationState(device *ramfb.Device, path string, log *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("vncd: reading migration state %s: %w", path, err)
	}
	if err := device.Import(data); err != nil {
		return fmt.Errorf("vncd: importing migration state %s: %w", path, err)
	}
	log.Info("imported migration state", "path", path)
	return nil
}

func exportMigrationState(device *ramfb.Device, path string) error {
	data := device.Export()
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("vncd: writing migration state %s: %w", path, err)
	}
	return nil
}

// Command saned is the SANE net backend daemon: it binds the control
// connection listener (or, under inetd/systemd, serves the one connection
// it was handed) and dispatches each connection to a local scanner driver
// via internal/saned.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/saneproj/sane-net/internal/logger"
	"github.com/saneproj/sane-net/internal/metrics"
	"github.com/saneproj/sane-net/internal/saned"
	"github.com/saneproj/sane-net/internal/supervisor"
	"github.com/saneproj/sane-net/pkg/config"

	// Register every backend driver this binary can expose through
	// GET_DEVICES (spec §4.2); each backend's init() call registers
	// itself with internal/backend's registry.
	_ "github.com/saneproj/sane-net/internal/backend/testbackend"
)

const usage = `saned - SANE net backend daemon

Usage:
  saned [ -a username | -d level | -s level | -h ]

Flags:
  -a string   run standalone, binding and accepting connections directly,
              dropping privileges to the named user (the value is required;
              standalone mode without a user is set by saned.standalone in
              the configuration file)
  -d int      run in the foreground, serve one connection, log at DEBUG
              level to stderr (any level >= 0 selects this mode; the
              number does not otherwise change the log level)
  -s int      alias for -d
  -h          print this help and exit
  --config    path to the configuration file (default: $XDG_CONFIG_HOME/sane-net/config.yaml)

With none of -a/-d/-s given, saned assumes it was launched inetd-style:
fd 0 (or fd 3, under systemd socket activation with --systemd-fd) already
holds the accepted client connection, and it serves that one connection
then exits.
`

func main() {
	standalone := flag.String("a", "", "standalone mode, optionally naming the privilege-drop user")
	debugLevel := flag.Int("d", -1, "debug/foreground mode: serve one connection at this log level")
	sLevel := flag.Int("s", -1, "alias for -d")
	help := flag.Bool("h", false, "print usage")
	configPath := flag.String("config", "", "path to configuration file")
	systemdFd := flag.Int("systemd-fd", 0, "file descriptor holding the client connection in inetd mode")
	flag.Parse()

	if *help {
		fmt.Print(usage)
		return
	}

	cfg, err := config.MustLoad(*configPath)
	if err != nil {
		log.Fatalf("saned: %v", err)
	}

	debugMode := *debugLevel >= 0 || *sLevel >= 0
	if debugMode {
		cfg.Logging.Level = "DEBUG"
		cfg.Logging.Output = "stderr"
	}
	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		log.Fatalf("saned: initializing logger: %v", err)
	}

	if *standalone != "" {
		cfg.Server.Standalone = true
		cfg.Server.RunAsUser = *standalone
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		go func() {
			if err := metrics.Serve(context.Background(), fmt.Sprintf(":%d", cfg.Metrics.Port), reg); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	sanedSrv, err := saned.NewServer(cfg, m)
	if err != nil {
		log.Fatalf("saned: %v", err)
	}

	switch {
	case cfg.Server.Standalone:
		runStandalone(cfg, sanedSrv)
	case debugMode:
		runDebug(cfg, sanedSrv)
	default:
		runInetd(sanedSrv, *systemdFd)
	}
}

// runStandalone binds ListenAddr and serves connections until SIGINT or
// SIGTERM, per spec §4.6's "standalone" mode and the bring-up sequence
// the teacher's cmd/dittofs/main.go uses for its own server: a cancellable
// context, the server run in a background goroutine, and a select between
// the termination signal and the server's own completion channel.
func runStandalone(cfg *config.Config, sanedSrv *saned.Server) {
	sv := supervisor.New(cfg, sanedSrv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverDone := make(chan error, 1)
	go func() { serverDone <- sv.Serve(ctx) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("saned running", "listen_addr", cfg.Server.ListenAddr)

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received")
		cancel()
		if err := <-serverDone; err != nil {
			logger.Error("saned shutdown error", "error", err)
			os.Exit(1)
		}
		logger.Info("saned stopped gracefully")
	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("saned error", "error", err)
			os.Exit(1)
		}
	}
}

// runDebug serves exactly one connection in the foreground (spec §4.6
// "debug": "foreground, one connection, logs to stderr").
func runDebug(cfg *config.Config, sanedSrv *saned.Server) {
	sv := supervisor.New(cfg, sanedSrv)
	if err := sv.ServeOnce(context.Background()); err != nil {
		logger.Error("saned debug connection failed", "error", err)
		os.Exit(1)
	}
}

// runInetd serves the single connection already waiting on fd (spec §4.6
// "inetd").
func runInetd(sanedSrv *saned.Server, fd int) {
	if err := supervisor.ServeInetd(context.Background(), sanedSrv, fd); err != nil {
		logger.Error("saned inetd connection failed", "error", err)
		os.Exit(1)
	}
}

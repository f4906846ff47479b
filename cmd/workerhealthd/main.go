// Command workerhealthd serves aggregated component health for a set of
// worker contexts and checks client certificates for revocation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonwraymond/workerhealth/bus"
	"github.com/jonwraymond/workerhealth/config"
	"github.com/jonwraymond/workerhealth/observe"
)

var errFailedToLoadConfig = errors.New("failed to load config")

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to YAML config file")
	threadLabel := flag.String("thread", "main", "Thread this process represents on a NATS bus (main or worker-N)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	self, err := bus.ParseLabel(*threadLabel)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	inst, err := observe.NewInstrumentation(obs)
	if err != nil {
		return err
	}

	d, err := newDaemon(ctx, cfg, inst, self)
	if err != nil {
		return err
	}
	defer d.Close()

	return d.serve(ctx)
}

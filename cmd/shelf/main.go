// cmd/shelf/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/shelf/internal/cli"
)

// shutdownGrace bounds how long in-flight pages may take after an interrupt.
const shutdownGrace = 30 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	// First signal stops scheduling new work; a second one, or an expired
	// grace period, exits immediately.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Warn().Str("signal", sig.String()).Msg("Interrupt received, finishing pages in flight")
		cancel()

		select {
		case <-sigCh:
			log.Warn().Msg("Second interrupt, exiting now")
		case <-time.After(shutdownGrace):
			log.Warn().Dur("grace", shutdownGrace).Msg("Shutdown grace period exceeded, exiting now")
		}
		os.Exit(130)
	}()

	code := cli.Execute(ctx)
	signal.Stop(sigCh)
	cancel()
	os.Exit(code)
}

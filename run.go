package cortexos

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

// Run boots a runtime from a config file and blocks until SIGINT/SIGTERM.
// Agents from the config are created concurrently; any creation failure
// aborts the boot with every already-created agent stopped by Close.
func Run(configPath string) error {
	config, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	return RunWithConfig(*config)
}

// RunWithConfig boots a runtime from an in-memory config.
func RunWithConfig(config Config) error {
	rt := New(WithConfig(config))
	if err := rt.Init(); err != nil {
		return err
	}
	defer rt.Close()

	if err := CreateAgents(context.Background(), rt, config); err != nil {
		return err
	}

	log.Printf("[runtime] %d agents running on node %s. Press Ctrl+C to stop.",
		rt.AgentCount(), rt.NodeID())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("[runtime] shutting down...")
	return rt.Close()
}

// CreateAgents creates every configured agent concurrently and fails fast
// on the first error.
func CreateAgents(ctx context.Context, rt *Runtime, config Config) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, def := range config.Agents {
		def := def
		g.Go(func() error {
			a, err := rt.CreateAgent(ctx, def)
			if err != nil {
				return fmt.Errorf("create agent %q: %w", def.Name, err)
			}
			log.Printf("[runtime] created agent %s (%s, kind: %s)", a.Name(), a.ID(), a.Kind())
			return nil
		})
	}
	return g.Wait()
}

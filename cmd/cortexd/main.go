package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	cortexos "github.com/therenansimoes/cortexOS"
)

// Version is set via ldflags.
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "cortexd",
		Short: "CortexOS agent runtime daemon",
		Long:  "cortexd hosts a CortexOS agent runtime: heartbeat, logger, and inference agents wired to an event bus, with LAN peer discovery and dataset export.",
	}

	root.AddCommand(serveCmd(), replCmd(), discoverCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the runtime from a config file until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Printf("cortexd v%s", Version)
			return cortexos.Run(configFile)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", getEnv("CORTEX_CONFIG", "cortex.yaml"), "runtime configuration file")
	return cmd
}

func discoverCmd() *cobra.Command {
	var (
		window time.Duration
		port   int
	)
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Broadcast a discovery announcement and print discovered peers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cortexos.Config{}
			cfg.Discovery.Port = port

			rt := cortexos.New(cortexos.WithConfig(cfg))
			if err := rt.Init(); err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), window)
			defer cancel()

			report, err := rt.BroadcastDiscovery(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("node %s announced (%d agents)\n", report.NodeID, report.Agents)

			// Keep listening for the rest of the window before reporting.
			<-ctx.Done()
			peers := rt.Peers()
			if len(peers) == 0 {
				fmt.Println("no peers found")
				return nil
			}
			for _, p := range peers {
				fmt.Printf("  %s  %s  (%s, last seen %s)\n",
					p.NodeID, p.Address, p.Protocol, p.LastSeen.Format(time.TimeOnly))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&window, "window", 5*time.Second, "how long to listen for peer announcements")
	cmd.Flags().IntVar(&port, "port", getEnvInt("CORTEX_DISCOVERY_PORT", 0), "discovery port override")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cortexd v%s\n", Version)
		},
	}
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("marshal: %v\n", err)
		return
	}
	fmt.Println(string(out))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

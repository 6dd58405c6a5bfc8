package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	cortexos "github.com/therenansimoes/cortexOS"
	"github.com/therenansimoes/cortexOS/agent"
)

var replCommands = []string{
	"agents", "create", "send", "publish", "subscribe", "export",
	"peers", "discover", "stats", "log", "stop", "remove", "help", "quit",
}

func replCmd() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive console over a live runtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cortexos.Config{}
			if configFile != "" {
				loaded, err := cortexos.LoadConfig(configFile)
				if err != nil {
					return err
				}
				cfg = *loaded
			}

			rt := cortexos.New(cortexos.WithConfig(cfg))
			if err := rt.Init(); err != nil {
				return err
			}
			defer rt.Close()

			if err := cortexos.CreateAgents(cmd.Context(), rt, cfg); err != nil {
				return err
			}

			return runREPL(cmd.Context(), rt)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "optional config file to boot agents from")
	return cmd
}

func runREPL(ctx context.Context, rt *cortexos.Runtime) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) (out []string) {
		for _, c := range replCommands {
			if strings.HasPrefix(c, prefix) {
				out = append(out, c)
			}
		}
		return out
	})

	historyPath := filepath.Join(os.TempDir(), ".cortexd_history")
	if f, err := os.Open(historyPath); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyPath); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Printf("cortexd repl, node %s. Type 'help' for commands.\n", rt.NodeID())

	for {
		input, err := line.Prompt("cortex> ")
		if err != nil { // io.EOF or liner.ErrPromptAborted
			fmt.Println()
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if input == "quit" || input == "exit" {
			return nil
		}
		if err := dispatch(ctx, rt, input); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func dispatch(ctx context.Context, rt *cortexos.Runtime, input string) error {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		fmt.Println("commands:")
		fmt.Println("  agents                          list agents")
		fmt.Println("  create <name> <kind> [args]     create an agent (heartbeat interval, remote endpoint+model)")
		fmt.Println("  send <id> <message>             direct message an agent")
		fmt.Println("  publish <kind> <payload>        broadcast an event")
		fmt.Println("  subscribe <id> <kind>           subscribe an agent to an event kind")
		fmt.Println("  export <id> [file]              export an agent's conversation as JSONL")
		fmt.Println("  peers                           list discovered peers")
		fmt.Println("  discover                        broadcast a discovery announcement")
		fmt.Println("  stats                           runtime statistics")
		fmt.Println("  log                             recent published events")
		fmt.Println("  stop <id> | remove <id>         lifecycle control")
		fmt.Println("  quit                            exit")
		return nil

	case "agents":
		agents := rt.Agents()
		if len(agents) == 0 {
			fmt.Println("no agents")
			return nil
		}
		for _, s := range agents {
			fmt.Printf("  %s  %-16s %-18s %s\n", s.ID, s.Name, s.Kind, s.State)
		}
		return nil

	case "create":
		return replCreate(ctx, rt, args)

	case "send":
		if len(args) < 2 {
			return fmt.Errorf("usage: send <id> <message>")
		}
		resp, err := rt.Send(ctx, args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Println(resp)
		return nil

	case "publish":
		if len(args) < 2 {
			return fmt.Errorf("usage: publish <kind> <payload>")
		}
		return rt.Publish(args[0], strings.Join(args[1:], " "), "repl")

	case "subscribe":
		if len(args) != 2 {
			return fmt.Errorf("usage: subscribe <id> <kind>")
		}
		return rt.Subscribe(args[0], args[1])

	case "export":
		if len(args) < 1 {
			return fmt.Errorf("usage: export <id> [file]")
		}
		if len(args) >= 2 {
			f, err := os.Create(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			return rt.ExportDataset(args[0], f)
		}
		return rt.ExportDataset(args[0], os.Stdout)

	case "peers":
		peers := rt.Peers()
		if len(peers) == 0 {
			fmt.Println("no peers")
			return nil
		}
		for _, p := range peers {
			fmt.Printf("  %s  %s  (%s, last seen %s)\n",
				p.NodeID, p.Address, p.Protocol, p.LastSeen.Format(time.TimeOnly))
		}
		return nil

	case "discover":
		report, err := rt.BroadcastDiscovery(ctx)
		if err != nil {
			return err
		}
		printJSON(report)
		return nil

	case "stats":
		printJSON(rt.Stats())
		return nil

	case "log":
		events := rt.EventLog()
		if len(events) == 0 {
			fmt.Println("no events")
			return nil
		}
		for _, ev := range events {
			fmt.Printf("  %s  [%s] %s\n", ev.PublishedAt.Format(time.TimeOnly), ev.Kind, ev.Payload)
		}
		return nil

	case "stop":
		if len(args) != 1 {
			return fmt.Errorf("usage: stop <id>")
		}
		return rt.StopAgent(ctx, args[0])

	case "remove":
		if len(args) != 1 {
			return fmt.Errorf("usage: remove <id>")
		}
		return rt.RemoveAgent(ctx, args[0])

	default:
		return fmt.Errorf("unknown command %q (try 'help')", cmd)
	}
}

func replCreate(ctx context.Context, rt *cortexos.Runtime, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: create <name> <kind> [interval|endpoint model]")
	}
	def := agent.Def{Name: args[0], Kind: agent.Kind(args[1])}

	switch def.Kind {
	case agent.KindHeartbeat:
		interval := 5 * time.Second
		if len(args) >= 3 {
			d, err := time.ParseDuration(args[2])
			if err != nil {
				return fmt.Errorf("bad interval: %w", err)
			}
			interval = d
		}
		def.Interval = agent.Duration{Duration: interval}
	case agent.KindRemoteInference:
		if len(args) < 4 {
			return fmt.Errorf("usage: create <name> remote-inference <endpoint> <model>")
		}
		def.Endpoint = args[2]
		def.Model = args[3]
	}

	a, err := rt.CreateAgent(ctx, def)
	if err != nil {
		return err
	}
	fmt.Printf("created %s (%s)\n", a.ID(), a.Kind())
	return nil
}

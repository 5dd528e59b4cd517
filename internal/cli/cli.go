// ============================================================================
// Overseer CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: Provides user-friendly command line interface based on Cobra framework
//
// Command Structure:
//   overseerctl                      # Root command
//   ├── run                          # Start an overseer and block for signals
//   │   └── --config, -c            # Specify config file
//   ├── start-child                  # Spawn one labor
//   ├── terminate-child <name>       # Terminate one labor
//   ├── count                        # Print active labor count
//   └── debug                        # Print a JSON state snapshot
//
// Configuration Management:
//   Uses YAML format config file (default: configs/default.yaml), parsed
//   by overseer.LoadFileConfig into an overseer.Spec.
//
// run Command:
//   1. Load config file
//   2. Build the configured Adapter (Local or EC2)
//   3. StartLink the overseer
//   4. Start the pairing transport server (if listen_addr is set)
//   5. Start Metrics HTTP server (if enabled)
//   6. Listen for SIGINT/SIGTERM and Stop gracefully
//
// Scripting commands (start-child/terminate-child/count/debug):
//   Each reuses the overseer of a live "run" in the same process, or else
//   builds its own short-lived overseer from the same config file, and
//   performs one action. This only round-trips meaningfully when run
//   against an adapter whose provisioned resources survive process exit
//   (EC2); against Local/Fake it is a single-process demo aid, mirroring
//   the teacher's enqueue command's same-process-only "local submission"
//   path.
//
// ============================================================================

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fleetkeep/overseer"
	"github.com/fleetkeep/overseer/internal/adapter"
	"github.com/fleetkeep/overseer/internal/transport"
)

var (
	configFile     string
	globalInstance *overseer.Instance
)

// BuildCLI assembles the overseerctl command tree.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "overseerctl",
		Short: "Overseer: a dynamic supervisor for a fleet of remote compute workers",
		Long: `overseerctl runs and drives an Overseer instance:
- spawns workers on Local or EC2 adapters
- ships a release artifact and pairs with each worker's control endpoint
- relays telemetry to a user-defined handler`,
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path")

	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildStartChildCommand())
	rootCmd.AddCommand(buildTerminateChildCommand())
	rootCmd.AddCommand(buildCountCommand())
	rootCmd.AddCommand(buildDebugCommand())

	return rootCmd
}

func buildRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the overseer and block until signalled",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOverseer()
		},
	}
	return cmd
}

func runOverseer() error {
	fcfg, err := overseer.LoadFileConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ad, err := buildAdapter(fcfg)
	if err != nil {
		return fmt.Errorf("failed to build adapter: %w", err)
	}

	events := make(chan transport.Event, 256)
	server := transport.NewServer(events)

	spec := specFromConfig(fcfg, ad, server.Dial, events)

	inst, err := overseer.StartLink(loggingModule{}, spec, nil)
	if err != nil {
		return fmt.Errorf("failed to start overseer: %w", err)
	}
	globalInstance = inst

	if fcfg.Transport.ListenAddr != "" {
		go serveTransport(fcfg, server)
	}

	if fcfg.Metrics.Enabled {
		go serveMetrics(inst, fcfg.Metrics.Port)
	}

	log.Printf("overseer started (max_nodes=%d, strategy=%s)\n", spec.MaxNodes, spec.Strategy)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("received shutdown signal, stopping gracefully...")
	inst.Stop()
	log.Println("overseer stopped")
	return nil
}

func serveTransport(fcfg *overseer.FileConfig, server *transport.Server) {
	mux := http.NewServeMux()
	mux.Handle("/pair", server.Handler())
	if fcfg.Transport.CertFile != "" && fcfg.Transport.KeyFile != "" {
		tlsCfg, err := transport.ServerTLSConfig(fcfg.Transport.CertFile, fcfg.Transport.KeyFile)
		if err != nil {
			log.Printf("transport TLS config error: %v\n", err)
			return
		}
		srv := &http.Server{Addr: fcfg.Transport.ListenAddr, Handler: mux, TLSConfig: tlsCfg}
		if err := srv.ListenAndServeTLS(fcfg.Transport.CertFile, fcfg.Transport.KeyFile); err != nil {
			log.Printf("transport server error: %v\n", err)
		}
		return
	}
	if err := http.ListenAndServe(fcfg.Transport.ListenAddr, mux); err != nil {
		log.Printf("transport server error: %v\n", err)
	}
}

func serveMetrics(inst *overseer.Instance, port int) {
	log.Printf("metrics server listening on :%d\n", port)
	if err := inst.Metrics().StartServer(port); err != nil {
		log.Printf("metrics server error: %v\n", err)
	}
}

func buildStartChildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start-child",
		Short: "Spawn one labor",
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := instanceForScript()
			if err != nil {
				return err
			}
			labor, err := inst.StartChild()
			if err != nil {
				return err
			}
			if labor == nil {
				fmt.Println("start_child: at capacity or spawn failed")
				return nil
			}
			fmt.Printf("started %s (handle=%s)\n", labor.Name, labor.Handle)
			return nil
		},
	}
}

func buildTerminateChildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "terminate-child <name>",
		Short: "Terminate one labor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := instanceForScript()
			if err != nil {
				return err
			}
			labor, err := inst.TerminateChild(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("terminated %s (phase=%s)\n", labor.Name, labor.Phase)
			return nil
		},
	}
}

func buildCountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of active labors",
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := instanceForScript()
			if err != nil {
				return err
			}
			fmt.Println(inst.CountChildren())
			return nil
		},
	}
}

func buildDebugCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "debug",
		Short: "Print a JSON snapshot of overseer state",
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := instanceForScript()
			if err != nil {
				return err
			}
			snap := inst.Debug()
			out, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

// instanceForScript returns the overseer started by a live "run" in this
// same process, or builds a fresh one from config for a one-shot command.
func instanceForScript() (*overseer.Instance, error) {
	if globalInstance != nil {
		return globalInstance, nil
	}
	fcfg, err := overseer.LoadFileConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	ad, err := buildAdapter(fcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build adapter: %w", err)
	}
	events := make(chan transport.Event, 256)
	server := transport.NewServer(events)
	spec := specFromConfig(fcfg, ad, server.Dial, events)
	inst, err := overseer.StartLink(loggingModule{}, spec, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start overseer: %w", err)
	}
	globalInstance = inst
	return inst, nil
}

func buildAdapter(fcfg *overseer.FileConfig) (adapter.Adapter, error) {
	switch fcfg.Adapter.Kind {
	case "", "local":
		return adapter.NewLocal(adapter.LocalOptions{
			Prefix:  fcfg.Adapter.Prefix,
			Command: fcfg.Adapter.Local.Command,
			Dir:     fcfg.Adapter.Local.Dir,
		}), nil
	case "ec2":
		return adapter.NewEC2(context.Background(), adapter.EC2Options{
			Prefix:       fcfg.Adapter.Prefix,
			AMI:          fcfg.Adapter.EC2.AMI,
			InstanceType: fcfg.Adapter.EC2.InstanceType,
			Spot:         fcfg.Adapter.EC2.Spot,
			Subnet:       fcfg.Adapter.EC2.Subnet,
			Region:       fcfg.Adapter.EC2.Region,
		})
	default:
		return nil, fmt.Errorf("unknown adapter kind %q", fcfg.Adapter.Kind)
	}
}

func specFromConfig(fcfg *overseer.FileConfig, ad adapter.Adapter, dial overseer.Dialer, events chan transport.Event) overseer.Spec {
	return overseer.Spec{
		Adapter: ad,
		Release: overseer.ReleaseRef{
			URL: fcfg.Release.URL,
			EntryPoint: overseer.EntryPoint{
				Module:   fcfg.Release.Module,
				Function: fcfg.Release.Function,
			},
		},
		Strategy:        overseer.Strategy(fcfg.Strategy),
		MaxNodes:        fcfg.MaxNodes,
		ConnTimeout:     fcfg.ConnTimeout(),
		PairTimeout:     fcfg.PairTimeout(),
		OverseerID:      fcfg.OverseerID,
		Dial:            dial,
		AuditLogPath:    fcfg.AuditLogPath,
		TransportEvents: events,
	}
}

// loggingModule wraps overseer.NoopModule purely so `run` has something
// concrete implementing the four required callbacks; a real embedder
// supplies its own UserModule instead of this logging stand-in.
type loggingModule struct {
	overseer.NoopModule
}

func (loggingModule) HandleConnected(name string, state any) overseer.Result {
	log.Printf("labor connected: %s\n", name)
	return overseer.Noreply(state)
}

func (loggingModule) HandleDisconnected(name string, err error, state any) overseer.Result {
	log.Printf("labor disconnected: %s (%v)\n", name, err)
	return overseer.Noreply(state)
}

func (loggingModule) HandleTelemetry(t overseer.Telemetry, state any) overseer.Result {
	log.Printf("telemetry from %s: %v\n", t.Name, t.Payload)
	return overseer.Noreply(state)
}

func (loggingModule) HandleTerminated(name string, state any) overseer.Result {
	log.Printf("labor terminated: %s\n", name)
	return overseer.Noreply(state)
}

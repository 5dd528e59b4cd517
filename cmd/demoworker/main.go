// ============================================================================
// Demo Worker - Exercises pkg/workerclient end to end
// ============================================================================
//
// File: cmd/demoworker/main.go
// Purpose: a minimal worker process for the Local adapter: dial the
// overseer's pairing endpoint, receive the pushed release, pair back with
// its own pid, and emit a telemetry heartbeat until killed.
//
// Environment:
//   OVERSEER_LABOR_NAME  - the name this process was spawned under
//   OVERSEER_ADDR        - host:port of the pairing endpoint (default localhost:8443)
//
// ============================================================================

package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fleetkeep/overseer/pkg/workerclient"
)

func main() {
	name := os.Getenv("OVERSEER_LABOR_NAME")
	if name == "" {
		fmt.Fprintln(os.Stderr, "demoworker: OVERSEER_LABOR_NAME is required")
		os.Exit(1)
	}

	addr := os.Getenv("OVERSEER_ADDR")
	if addr == "" {
		addr = "localhost:8443"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tlsConfig := &tls.Config{InsecureSkipVerify: true}
	client, err := workerclient.Dial(ctx, addr, name, tlsConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "demoworker: dial failed: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	_, entry, err := client.ReceiveRelease()
	if err != nil {
		fmt.Fprintf(os.Stderr, "demoworker: receive release failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("demoworker[%s]: loaded release, entry point %s.%s\n", name, entry.Module, entry.Function)

	if err := client.Pair(strconv.Itoa(os.Getpid())); err != nil {
		fmt.Fprintf(os.Stderr, "demoworker: pair failed: %v\n", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := client.Telemetry(map[string]any{"status": "running", "pid": os.Getpid()}); err != nil {
				fmt.Fprintf(os.Stderr, "demoworker: telemetry failed: %v\n", err)
				return
			}
		case <-sigChan:
			fmt.Printf("demoworker[%s]: shutting down\n", name)
			return
		}
	}
}

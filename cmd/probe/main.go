package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"trade-ledger/internal/logger"
	"trade-ledger/internal/probe"
	"trade-ledger/internal/store"
)

func main() {
	// Command-line flags
	configPath := flag.String("config", "config.yaml", "path to config file")
	scan := flag.Bool("scan", false, "scan probe.port_range on every host before checking")
	asJSON := flag.Bool("json", false, "print the report as JSON")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := store.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(); err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	p := probe.New(probe.Options{
		Hosts:   cfg.Probe.Hosts,
		Ports:   cfg.Probe.Ports,
		Timeout: time.Duration(cfg.Probe.TimeoutMS) * time.Millisecond,
	})

	lo, hi := cfg.Probe.PortRange[0], cfg.Probe.PortRange[1]
	if !*asJSON {
		fmt.Printf("Probing Client Portal gateway on %v ports %v\n", cfg.Probe.Hosts, cfg.Probe.Ports)
		if *scan {
			fmt.Printf("Scanning ports %d-%d first\n", lo, hi)
		}
	}

	rep, err := p.Run(ctx, *scan, lo, hi)
	cancel()
	_ = logger.Sync()
	if err != nil {
		fmt.Printf("Probe interrupted: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		b, _ := json.MarshalIndent(rep, "", "  ")
		fmt.Println(string(b))
	} else {
		printReport(rep)
	}

	for _, ep := range rep.Gateway {
		if ep.LooksLikeIBKR && ep.Reachable() {
			os.Exit(0)
		}
	}
	// Exit code 2 means nothing answered like a gateway
	os.Exit(2)
}

func printReport(rep *probe.Report) {
	for host, ports := range rep.OpenPorts {
		fmt.Printf("Open ports on %s: %v\n", host, ports)
	}

	fmt.Println("\nEndpoints")
	for _, ep := range rep.Endpoints {
		printEndpoint(ep)
	}

	fmt.Println("\nGateway paths")
	found := 0
	for _, ep := range rep.Gateway {
		if !ep.Reachable() {
			continue
		}
		printEndpoint(ep)
		if ep.LooksLikeIBKR {
			found++
		}
	}
	fmt.Printf("\n%d endpoint(s) look like the IBKR gateway\n", found)
}

func printEndpoint(ep probe.Endpoint) {
	if ep.Error != "" {
		fmt.Printf("  %-6s %s  error: %s\n", ep.Method, ep.URL, ep.Error)
		return
	}
	marker := ""
	if ep.LooksLikeIBKR {
		marker = "  [IBKR]"
	}
	fmt.Printf("  %-6s %s  %d  %dB  %s%s\n", ep.Method, ep.URL, ep.Status, ep.Size, ep.Title, marker)
}

package main

import (
	"flag"
	"log"
	"os"

	"MarkWatch/internal/di"
	"MarkWatch/pkg/config"
)

// main is the only place that logs through the standard library: it runs
// before the structured logger exists.
func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	autostart := flag.Bool("autostart", false, "start the scheduler on boot regardless of config")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *autostart {
		cfg.Scheduler.Autostart = true
	}

	log.Printf("markwatch starting env=%s assets=%v autostart=%v testnet=%v",
		cfg.Environment, cfg.Scheduler.Assets, cfg.Scheduler.Autostart, cfg.Exchange.UseTestnet)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run blocks until a termination signal arrives; everything after
	// this point logs through the structured logger.
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}

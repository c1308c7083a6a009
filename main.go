package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/grabberapp/grabber/internal"
)

// main is the entry point to the program; it loads the user configuration
// (from the file given via -config, falling back to the environment) and
// runs Grabber until interrupted.
func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	flag.Parse()

	config := internal.GrabberConfig{}
	if *configPath != "" {
		if err := config.LoadFromFile(*configPath); err != nil {
			log.Panicf("Failed to load configuration - %v\n", err.Error())
		}
	} else if err := config.LoadFromEnv(); err != nil {
		log.Panicf("Failed to load configuration - %v\n", err.Error())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := internal.New(config).Run(ctx); err != nil {
		log.Panicf("Grabber stopped with error - %v\n", err.Error())
	}
}

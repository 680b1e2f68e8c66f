// ABOUTME: Entry point for the head unit simulator
// ABOUTME: Parses CLI flags and an optional YAML profile, then serves apps
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Resonate-Protocol/headunit-go/internal/config"
	"github.com/Resonate-Protocol/headunit-go/internal/metrics"
	"github.com/Resonate-Protocol/headunit-go/pkg/audio/output"
	"github.com/Resonate-Protocol/headunit-go/pkg/headunit"
)

var (
	configFile = flag.String("config", "", "YAML head unit profile (default: built-in 16kHz audio + 800x480 video)")
	port       = flag.Int("port", 0, "WebSocket server port (overrides the profile)")
	name       = flag.String("name", "", "Head unit friendly name (overrides the profile)")
	record     = flag.String("record", "", "Record received audio to this Opus stream file")
	mute       = flag.Bool("mute", false, "Discard audio instead of playing it")
	logFile    = flag.String("log-file", "headunit-sim.log", "Log file path")
	debug      = flag.Bool("debug", false, "Enable debug logging")
	noMDNS     = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
)

func main() {
	flag.Parse()

	// Set up logging (both file and console)
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	if *debug {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
		log.Printf("Debug logging enabled")
	}

	profile := config.Default()
	if *configFile != "" {
		profile, err = config.Load(*configFile)
		if err != nil {
			log.Fatalf("Failed to load profile: %v", err)
		}
	}
	if *port != 0 {
		profile.Port = *port
	}
	if *name != "" {
		profile.Name = *name
	} else if *configFile == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		profile.Name = fmt.Sprintf("%s-headunit", hostname)
	}
	if *record != "" {
		profile.Record = *record
	}

	hu, err := profile.HeadUnitConfig()
	if err != nil {
		log.Fatalf("Invalid profile: %v", err)
	}
	hu.EnableMDNS = !*noMDNS
	hu.Metrics = metrics.NewMetrics()
	if *mute {
		hu.Output = output.NewDiscard()
	} else {
		hu.Output = output.NewOto()
	}

	if profile.MetricsAddr != "" {
		go func() {
			log.Printf("Serving metrics on %s/metrics", profile.MetricsAddr)
			mux := http.NewServeMux()
			mux.Handle("/metrics", hu.Metrics.Handler())
			if err := http.ListenAndServe(profile.MetricsAddr, mux); err != nil {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	}

	srv, err := headunit.NewServer(hu)
	if err != nil {
		log.Fatalf("Failed to create head unit: %v", err)
	}

	log.Printf("Starting head unit simulator: %s on port %d", profile.Name, profile.Port)
	log.Printf("Logging to: %s", *logFile)
	log.Printf("Press Ctrl-C to stop")

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("\nReceived %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Printf("Head unit stopped")
}

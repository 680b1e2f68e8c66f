// ABOUTME: Entry point for the head unit streamer
// ABOUTME: Parses CLI flags and streams audio (and video) to a head unit
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Resonate-Protocol/headunit-go/internal/app"
	"github.com/Resonate-Protocol/headunit-go/internal/ui"
)

var (
	serverAddr = flag.String("server", "", "Manual head unit address host:port (skip mDNS)")
	name       = flag.String("name", "", "App friendly name (default: hostname-headunit-streamer)")
	source     = flag.String("file", "", "Audio file or http(s) URL to stream (default: test tone)")
	loop       = flag.Bool("loop", false, "Repeat the source until stopped")
	video      = flag.Bool("video", false, "Also stream synthetic video frames")
	fps        = flag.Int("fps", 30, "Video frame rate")
	logFile    = flag.String("log-file", "headunit-streamer.log", "Log file path")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
)

func main() {
	flag.Parse()

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	appName := *name
	if appName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		appName = fmt.Sprintf("%s-headunit-streamer", hostname)
	}
	log.Printf("Starting head unit streamer: %s", appName)

	// TUI setup
	var tuiProg *tea.Program
	var control *ui.Control

	if useTUI {
		control = ui.NewControl()
		tuiProg = ui.Run(control)
		go tuiProg.Run()
	}

	config := app.Config{
		ServerAddr: *serverAddr,
		Name:       appName,
		Source:     *source,
		Loop:       *loop,
		Video:      *video,
		FrameRate:  *fps,
	}
	if tuiProg != nil {
		config.OnStatus = func(msg ui.StatusMsg) { tuiProg.Send(msg) }
	}

	streamer := app.New(config)
	if err := streamer.Connect(); err != nil {
		if tuiProg != nil {
			tuiProg.Quit()
		}
		log.Fatalf("Connection failed: %v", err)
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if control != nil {
		go handleCommands(streamer, control)
		select {
		case <-control.Quit:
			log.Printf("Received quit signal from TUI")
		case <-sigChan:
			log.Printf("Shutdown signal received")
			tuiProg.Quit()
		}
	} else {
		<-sigChan
		log.Printf("Shutdown signal received")
	}

	if err := streamer.Close(); err != nil {
		log.Printf("Error closing streamer: %v", err)
	}

	log.Printf("Streamer stopped")
}

// handleCommands forwards TUI key commands to the streamer
func handleCommands(streamer *app.Streamer, control *ui.Control) {
	for cmd := range control.Commands {
		streamer.HandleCommand(cmd)
	}
}

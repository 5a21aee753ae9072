// Package main implements the gones NES emulator executable.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"

	"github.com/nesforge/gones-core/internal/app"
	"github.com/nesforge/gones-core/internal/version"
)

func main() {
	var (
		romFile    = flag.String("rom", "", "Path to NES ROM file (optional for GUI mode)")
		configFile = flag.String("config", "", "Path to configuration file")
		debug      = flag.Bool("debug", false, "Enable debug mode")
		nogui      = flag.Bool("nogui", false, "Run without GUI (headless mode)")
		frames     = flag.Int("frames", 120, "Number of frames to run in headless mode")
		showHelp   = flag.Bool("help", false, "Show help message")
		showVer    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()
	defer glog.Flush()

	if *showHelp {
		printUsage()
		return
	}
	if *showVer {
		version.PrintBuildInfo()
		return
	}

	setupGracefulShutdown()

	configPath := *configFile
	if configPath == "" {
		configPath = app.GetDefaultConfigPath()
	}

	application, err := app.NewApplicationWithMode(configPath, *nogui)
	if err != nil {
		glog.Exitf("failed to create application: %v", err)
	}

	if *nogui {
		application.GetConfig().Video.Backend = "headless"
	}
	defer func() {
		if err := application.Cleanup(); err != nil {
			glog.Errorf("application cleanup error: %v", err)
		}
	}()

	if *debug {
		application.GetConfig().UpdateDebug(true, true, true)
		application.ApplyDebugSettings()
	}

	if *romFile != "" {
		if err := application.LoadROM(*romFile); err != nil {
			glog.Exitf("failed to load ROM: %v", err)
		}
		if *debug {
			application.ApplyDebugSettings()
		}
	}

	if *nogui {
		if *romFile == "" {
			glog.Exit("ROM file required for headless mode")
		}
		if err := application.RunFrames(*frames); err != nil {
			glog.Exitf("headless run failed: %v", err)
		}
		glog.Infof("headless run complete: %d frames", *frames)
		return
	}

	if err := runGUIMode(application); err != nil {
		glog.Exitf("GUI mode failed: %v", err)
	}
}

func runGUIMode(application *app.Application) error {
	config := application.GetConfig()
	windowWidth, windowHeight := config.GetWindowResolution()
	glog.Infof("gones: window %dx%d (scale %dx), audio %s %dHz, video %s/%s",
		windowWidth, windowHeight, config.Window.Scale,
		enabledString(config.Audio.Enabled), config.Audio.SampleRate,
		config.Video.Filter, config.Video.AspectRatio)

	if err := application.Run(); err != nil {
		return fmt.Errorf("application run failed: %v", err)
	}

	glog.Infof("gones: session complete, %d frames in %v (avg %.1f fps)",
		application.GetFrameCount(), application.GetUptime(), application.GetFPS())

	return nil
}

func setupGracefulShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		glog.Info("gones: interrupt received, shutting down")
		glog.Flush()
		os.Exit(0)
	}()
}

func enabledString(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func printUsage() {
	fmt.Println("gones - Go NES Emulator")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  gones [options]                    Start GUI mode without ROM")
	fmt.Println("  gones -rom <file> [options]         Start with ROM loaded")
	fmt.Println("  gones -nogui -rom <file> [options]  Run headless mode")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("CONTROLS (default):")
	fmt.Println("  Player 1:   Arrow Keys/WASD - D-Pad, J - A, K - B, Enter - Start, Space - Select")
	fmt.Println("  Escape (2x) - Quit (double-tap within 3 seconds)")
	fmt.Println()
	fmt.Println("SUPPORTED FORMATS:")
	fmt.Println("  iNES (.nes), NES 2.0")
	fmt.Println("  Mappers: NROM, MMC1, UxROM, MMC3")
}

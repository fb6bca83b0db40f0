// Command lasertracker finds a laser pointer dot in a live camera feed by
// thresholding the frame in HSV space and shows the intermediate masks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ayusman/lasertracker/internal/app"
	"github.com/ayusman/lasertracker/internal/capture"
	"github.com/ayusman/lasertracker/internal/config"
	"github.com/ayusman/lasertracker/internal/detector"
	"github.com/ayusman/lasertracker/internal/display"
	"github.com/ayusman/lasertracker/internal/log"
	"github.com/ayusman/lasertracker/internal/server"
	"github.com/ayusman/lasertracker/internal/store"
	"github.com/ayusman/lasertracker/internal/tray"
)

// HighGUI and the system tray must be driven from the main thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Parse(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log.Init(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Error("Invalid configuration", "err", err)
		return 1
	}

	// The store is only needed for profiles and the HTTP API.
	var st *store.Store
	if cfg.Profile != "" || cfg.SaveProfile != "" || cfg.Listen != "" {
		dbPath, err := databasePath(cfg.DBPath)
		if err != nil {
			log.Error("Failed to locate database", "err", err)
			return 1
		}
		st, err = store.New(dbPath)
		if err != nil {
			log.Error("Failed to initialize store", "path", dbPath, "err", err)
			return 1
		}
		defer st.Close()

		if err := applyProfile(st, cfg); err != nil {
			log.Error("Failed to load profile", "profile", cfg.Profile, "err", err)
			return 1
		}
		if err := saveProfile(st, cfg); err != nil {
			log.Error("Failed to save profile", "profile", cfg.SaveProfile, "err", err)
			return 1
		}
	}

	cam := newCamera(cfg)
	if err := cam.Open(); err != nil {
		log.Error("Failed to start capture", "err", fmt.Errorf("%w: %w", app.ErrAcquisition, err))
		return 1
	}
	defer cam.Close()

	// Devices deliver their negotiated size, files their native one.
	dcfg := cfg.DetectorConfig()
	size := cam.Size()
	dcfg.Width, dcfg.Height = size.X, size.Y

	det, err := detector.New(dcfg)
	if err != nil {
		log.Error("Failed to create detector", "err", err)
		return 1
	}
	log.Info("Detector configured",
		"size", size,
		"hue", dcfg.Hue, "saturation", dcfg.Saturation, "value", dcfg.Value,
		"use_saturation", dcfg.IncludeSaturation)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	displays := display.Multi{}
	if !cfg.Headless {
		displays = append(displays, display.NewWindowDisplay(size.X, size.Y))
	}
	var tr *tray.Tray
	if cfg.Tray {
		tr = tray.New()
		displays = append(displays, tr)
	}

	serverErr := make(chan error, 1)
	if cfg.Listen != "" {
		stream := server.NewStreamDisplay()
		displays = append(displays, stream)

		srv := server.New(server.Config{
			StaticDir: findWebDir(),
			Store:     st,
			Stream:    stream,
		})
		go func() {
			err := srv.ListenAndServe(ctx, cfg.Listen)
			if err != nil {
				log.Error("HTTP server failed", "addr", cfg.Listen, "err", err)
				stop()
			}
			serverErr <- err
		}()
	}
	defer func() {
		if err := displays.Close(); err != nil {
			log.Warn("Error closing displays", "err", err)
		}
	}()

	a, err := app.New(app.Config{
		Camera:   cam,
		Detector: det,
		Display:  displays,
	})
	if err != nil {
		log.Error("Failed to create app", "err", err)
		return 1
	}

	loop := func() int {
		if err := a.Run(ctx); err != nil {
			log.Error("Detection loop failed", "err", err)
			return 1
		}

		if cfg.Listen != "" {
			stop()
			if err := <-serverErr; err != nil {
				return 1
			}
		}
		return 0
	}

	if tr == nil {
		return loop()
	}

	// The tray owns the main thread; the loop runs beside it and closes
	// the tray when it stops.
	code := make(chan int, 1)
	tr.Run(func() {
		code <- loop()
		tr.Close()
	})
	return <-code
}

// newCamera picks the frame source. An unusable device index falls back to
// device 0 with a warning.
func newCamera(cfg *config.Config) capture.Camera {
	switch {
	case cfg.Source == config.SourceSynthetic:
		return capture.NewSyntheticCamera(cfg.Width, cfg.Height, 0)
	case cfg.Video != "":
		return capture.NewCamera(capture.FileSource(cfg.Video), cfg.Width, cfg.Height)
	}

	device, ok := config.ParseDevice(cfg.Device)
	if !ok {
		log.Warn("Invalid camera device index, using device 0", "device", cfg.Device)
	}
	return capture.NewCamera(capture.DeviceSource(device), cfg.Width, cfg.Height)
}

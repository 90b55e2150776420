// Command co2mon polls an MH-Z19B CO2 sensor and reports the concentration.
//
//	co2mon [--config file] [--port /dev/serial0] [--interval 10s] [-e]
//
// With -e (external tool mode) each reading is printed to stdout as
// "co2:<ppm>" and logs go only to the log file.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/luhtfiimanal/go-mhz19b"
	cfgpkg "github.com/luhtfiimanal/go-mhz19b/internal/config"
	"github.com/luhtfiimanal/go-mhz19b/internal/httpserver"
	"github.com/luhtfiimanal/go-mhz19b/internal/logging"
	"github.com/luhtfiimanal/go-mhz19b/internal/metrics"
	"github.com/luhtfiimanal/go-mhz19b/internal/monitor"
	"github.com/luhtfiimanal/go-mhz19b/internal/publish"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "co2mon:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// 1) configuration
	fs := cfgpkg.Flags()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	path, _ := fs.GetString("config")
	cfg, err := cfgpkg.Load(path, fs)
	if err != nil {
		return err
	}

	// 2) logging
	logger, err := logging.InitLogger(cfg.Logging, cfg.Poll.ExternalTool)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	log := zap.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := mhz19b.NewRegistry(
		mhz19b.WithLogger(logger),
		mhz19b.WithDecoding(cfg.Decoding()),
	)

	err = reg.WithDriver(cfg.Sensor.Port, cfg.Sensor.ReadTimeout, func(d *mhz19b.Driver) error {
		if err := setup(d, cfg.Sensor); err != nil {
			return err
		}
		recs, cleanup, err := recorders(cfg, d, log)
		if err != nil {
			return err
		}
		defer cleanup()
		return monitor.New(d, cfg.Poll.Interval, log, recs...).Run(ctx)
	})
	if err != nil {
		log.Error("co2mon stopped", zap.Error(err))
		return err
	}
	return nil
}

// setup applies the startup sensor settings.
func setup(d *mhz19b.Driver, cfg cfgpkg.SensorConfig) error {
	if cfg.DetectionRange != 0 {
		if err := d.SetDetectionRange(cfg.DetectionRange); err != nil {
			return err
		}
	}
	return d.SetAutoCalibration(cfg.AutoCalibration)
}

// recorders builds the reading sinks enabled by cfg. cleanup releases them.
func recorders(cfg *cfgpkg.Config, d *mhz19b.Driver, log *zap.Logger) ([]monitor.Recorder, func(), error) {
	var recs []monitor.Recorder
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Poll.ExternalTool {
		recs = append(recs, monitor.Printer{W: os.Stdout})
	} else {
		recs = append(recs, monitor.LogRecorder{Log: log})
	}

	if cfg.HTTP.Enable {
		promReg := metrics.NewRegistry()
		latest := &monitor.Latest{}
		recs = append(recs, metrics.NewSensorMetrics(promReg), latest)

		srv := httpserver.New(cfg.HTTP, cfg.Metrics.Path, metrics.Handler(promReg), d.IsOpen, latest)
		go func() {
			if err := srv.Start(); err != nil {
				log.Error("http server error", zap.Error(err))
			}
		}()
		closers = append(closers, func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		})
		log.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
	}

	if cfg.MQTT.Enable {
		pub, err := publish.Connect(cfg.MQTT, d.PortName(), log)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		recs = append(recs, pub)
		closers = append(closers, pub.Close)
	}

	return recs, cleanup, nil
}

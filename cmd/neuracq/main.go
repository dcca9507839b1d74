package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v2"

	"github.com/neuracq/neuracq/pkg/dsp"
	"github.com/neuracq/neuracq/pkg/eeg"
	"github.com/neuracq/neuracq/pkg/eeg/config"
	"github.com/neuracq/neuracq/pkg/eeg/driver"
	"github.com/neuracq/neuracq/pkg/eeg/monitor"
	"github.com/neuracq/neuracq/pkg/eeg/output"
	"github.com/neuracq/neuracq/pkg/util"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)
	configFile := flag.String("config", "neuracq.yaml", "YAML config file")
	emitStdout := flag.Bool("stdout", false, "write records as JSON lines to stdout")

	flag.Parse()

	configContents, err := os.ReadFile(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("error reading config file")
	}
	var cfg config.Config
	if err := yaml.Unmarshal(configContents, &cfg); err != nil {
		log.Fatal().Err(err).Msg("error unmarshaling yaml file")
	}

	adcConfig := driver.AdcConfig{
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		Resolution: cfg.Resolution,
		Vref:       cfg.Vref,
		Gain:       cfg.Gain,
		BatchSize:  cfg.BatchSize,
	}

	var spectral *dsp.SpectralConfig
	if cfg.Spectral.Enabled {
		window, err := dsp.ParseWindow(cfg.Spectral.Window)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid spectral config")
		}
		spectral = &dsp.SpectralConfig{Window: window}
	}

	var writeAPI api.WriteAPI = &util.MockWriteAPI{}
	if cfg.InfluxDB.Host != "" {
		writeAPI = influxdb2.NewClient(cfg.InfluxDB.Host, "").WriteAPI(cfg.InfluxDB.Organization, cfg.InfluxDB.Bucket)
	}

	options := eeg.Options{
		Spectral:               spectral,
		MaxConsecutiveTimeouts: cfg.MaxConsecutiveTimeouts,
		PlaybackLocation:       cfg.PlaybackLocation,
		SerialPort:             cfg.Serial.Port,
		SerialBaudRate:         cfg.Serial.BaudRate,
	}

	if *emitStdout {
		options.Outputs = append(options.Outputs, output.NewWriterOutput(os.Stdout))
	}
	if cfg.EDFLocation != "" {
		options.Outputs = append(options.Outputs, output.NewEDFOutput(cfg.EDFLocation, adcConfig))
	}
	if len(cfg.OutputDestinations) > 0 {
		options.Outputs = append(options.Outputs, output.NewUDPOutput(cfg.OutputDestinations, writeAPI))
	}

	driverType := driver.Type(cfg.Driver)
	log.Info().Str("driver", cfg.Driver).Msg("initializing board...")

	systemOpts := []eeg.SystemOption{
		eeg.WithLogger(log.Logger),
		eeg.WithInfluxDB(writeAPI),
	}

	system, err := eeg.New(driverType, adcConfig, options, systemOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create acquisition system")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)

	if cfg.Monitor.Port != 0 {
		mon := monitor.NewServer(cfg.Monitor.Port, system.Status)
		if err := eeg.WithObserver(mon)(system); err != nil {
			log.Fatal().Err(err).Msg("failed to attach monitor")
		}
		eg.Go(func() error {
			return mon.Run(ctx)
		})
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	eg.Go(func() error {
		select {
		case <-sigChan:
		case <-ctx.Done():
		}
		err := system.Stop()
		cancel()
		return err
	})

	eg.Go(func() error {
		return system.Start(ctx)
	})

	// Drain the record channel so the buffer never forces drops when
	// only sinks are configured.
	eg.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-system.Records():
			}
		}
	})

	if err := eg.Wait(); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("exited program")
	}
}

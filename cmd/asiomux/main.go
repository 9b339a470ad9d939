package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/cmd/config"
	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/internal/engine"
	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/internal/metrics"
	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/internal/utils"
)

func main() {
	configFilePath := flag.String("configFilePath", "config.yaml", "Set the file path to the config file.")
	flag.Parse()

	if err := config.LoadConfig(*configFilePath); err != nil {
		panic(err)
	}
	cfg, err := config.FromViper()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		panic(err)
	}
	logFilePointer, err := utils.ConfigureDefaultLogger(cfg.LogLevel, cfg.LogFile, slog.HandlerOptions{})
	if err != nil {
		slog.Error("error while configuring default logger", "err", err)
		panic(err)
	}
	if logFilePointer != nil {
		defer logFilePointer.Close()
	}

	// --------------------------------------------------------------------------------

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("asiomux stopped with error", "err", err)
		panic(err)
	}
	slog.Info("asiomux stopped")
}

func run(ctx context.Context, cfg config.Config) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	dev, err := openDevice(cfg)
	if err != nil {
		return err
	}
	defer dev.close()

	loop := engine.New(
		engine.WithMetrics(metrics.NewMetrics(registry)),
		engine.WithPollInterval(cfg.PollInterval),
	)
	defer loop.Close()

	callback, err := buildStreams(loop, dev.device, cfg)
	if err != nil {
		return err
	}

	// --------------------------------------------------------------------------------

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx, callback)
	})
	if dev.clock != nil {
		g.Go(func() error {
			return dev.clock(gctx)
		})
	}
	if cfg.MetricsAddress != "" {
		serveMetrics(gctx, g, cfg.MetricsAddress, registry)
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Build the streams for the configured mode and play them. Returns the
// callback that feeds them.
func buildStreams(loop *engine.EventLoop, dev engine.Device, cfg config.Config) (engine.Callback, error) {
	format := cfg.Format
	if rate, err := dev.Driver.SampleRate(); err == nil && rate != format.SampleRate && !dev.Driver.CanSampleRate(format.SampleRate) {
		slog.Info("using the device sample rate", "requested", format.SampleRate, "device", rate)
		format.SampleRate = rate
	}

	var callback engine.Callback
	var ids []engine.StreamID
	gain := newVolume(cfg.Volume)
	switch cfg.Mode {
	case config.ModeTone:
		out, err := loop.BuildOutputStream(dev, format)
		if err != nil {
			return nil, err
		}
		gen := newTone(cfg.ToneFrequency, format)
		callback = func(id engine.StreamID, data engine.StreamData) {
			if data.Output != nil {
				gen.fill(data.Output)
				gain.apply(data.Output)
			}
		}
		ids = append(ids, out)

	case config.ModePassthrough:
		out, err := loop.BuildOutputStream(dev, format)
		if err != nil {
			return nil, err
		}
		in, err := loop.BuildInputStream(dev, format)
		if err != nil {
			return nil, err
		}
		p := newPassthrough(format, cfg.BufferSize*format.Channels)
		callback = func(id engine.StreamID, data engine.StreamData) {
			switch {
			case data.Input != nil:
				p.capture(data.Input)
			case data.Output != nil:
				p.play(data.Output)
				gain.apply(data.Output)
			}
		}
		ids = append(ids, in, out)
	}

	for _, id := range ids {
		if err := loop.PlayStream(id); err != nil {
			return nil, err
		}
	}
	slog.Info("streams playing", "mode", cfg.Mode, "device", dev.Name, "format", format)
	return callback, nil
}

func serveMetrics(ctx context.Context, g *errgroup.Group, address string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		slog.Info("serving metrics", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}

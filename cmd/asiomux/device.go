package main

import (
	"context"
	"fmt"

	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/cmd/config"
	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/internal/driver/dummydriver"
	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/internal/driver/filedriver"
	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/internal/engine"
)

type openedDevice struct {
	device engine.Device
	// Drives the buffer switches for drivers without a hardware clock.
	clock func(ctx context.Context) error
	close func() error
}

func openDevice(cfg config.Config) (openedDevice, error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case config.DriverDummy:
		drv := dummydriver.New(dummydriver.Properties{
			SampleRate:     cfg.Format.SampleRate,
			Encoding:       cfg.HardwareEncoding,
			InputChannels:  cfg.Format.Channels,
			OutputChannels: cfg.Format.Channels,
			BufferSize:     cfg.BufferSize,
		})
		return openedDevice{
			device: engine.Device{Name: "dummy", Driver: drv},
			clock:  drv.RunClock,
			close:  noop,
		}, nil

	case config.DriverFile:
		drv, err := filedriver.New(filedriver.Config{
			InputPath:      cfg.InputFile,
			OutputPath:     cfg.OutputFile,
			SampleRate:     cfg.Format.SampleRate,
			OutputChannels: cfg.Format.Channels,
			BufferSize:     cfg.BufferSize,
		})
		if err != nil {
			return openedDevice{}, err
		}
		return openedDevice{
			device: engine.Device{Name: "file", Driver: drv},
			close:  noop,
		}, nil

	case config.DriverPortAudio:
		return openPortAudio(cfg)
	}
	return openedDevice{}, fmt.Errorf("unknown driver %q", cfg.Driver)
}

//go:build portaudio

package main

import (
	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/cmd/config"
	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/internal/driver/portaudiodriver"
	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/internal/engine"
)

func openPortAudio(cfg config.Config) (openedDevice, error) {
	drv, err := portaudiodriver.New(cfg.BufferSize)
	if err != nil {
		return openedDevice{}, err
	}
	return openedDevice{
		device: engine.Device{Name: "portaudio", Driver: drv},
		close:  drv.Close,
	}, nil
}

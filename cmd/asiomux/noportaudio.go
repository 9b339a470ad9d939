//go:build !portaudio

package main

import (
	"errors"

	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/cmd/config"
)

func openPortAudio(config.Config) (openedDevice, error) {
	return openedDevice{}, errors.New("asiomux was built without portaudio support, rebuild with -tags portaudio")
}

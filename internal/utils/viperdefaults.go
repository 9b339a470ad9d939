package utils

import (
	"github.com/spf13/viper"
)

// Set the viper defaults for the asiomux command.
func SetViperDefaults() {
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("logfile", "")

	viper.SetDefault("driver", "dummy")
	viper.SetDefault("hardwareencoding", "int32LSB")
	viper.SetDefault("buffersize", 256)
	viper.SetDefault("pollinterval", "200ms")

	viper.SetDefault("samplerate", 48000)
	viper.SetDefault("channels", 2)
	viper.SetDefault("sampleformat", "f32")

	viper.SetDefault("mode", "tone")
	viper.SetDefault("tonefrequency", 440.0)
	viper.SetDefault("volume", 1.0)
	viper.SetDefault("inputfile", "")
	viper.SetDefault("outputfile", "output.wav")

	viper.SetDefault("metricsaddress", ":9090")
}

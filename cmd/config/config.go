package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/internal/engine"
	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/internal/utils"
	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/pkg/sample"
)

const (
	DriverDummy     = "dummy"
	DriverFile      = "file"
	DriverPortAudio = "portaudio"

	ModePassthrough = "passthrough"
	ModeTone        = "tone"
)

var (
	errUnknownDriver = errors.New("unknown driver")
	errUnknownMode   = errors.New("unknown mode")
	errInvalidValue  = errors.New("invalid config value")
)

// Config is the validated configuration of the asiomux command.
type Config struct {
	LogLevel string
	LogFile  string

	Driver           string
	HardwareEncoding sample.Encoding
	BufferSize       int
	PollInterval     time.Duration

	// Format of every logical stream the command builds.
	Format engine.Format

	Mode          string
	ToneFrequency float64
	// Output gain, 1.0 leaves the signal unchanged.
	Volume     float64
	InputFile  string
	OutputFile string

	// Empty disables the metrics endpoint.
	MetricsAddress string
}

// Read the config file at configFilePath into viper, on top of the defaults.
// A missing file is not an error.
func LoadConfig(configFilePath string) error {
	utils.SetViperDefaults()

	viper.SetConfigFile(configFilePath)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			slog.Info("no config file found", "configFilePath", configFilePath)
			return nil
		}
		slog.Error("error during config read", "err", err)
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// FromViper builds and validates a Config from the current viper state.
func FromViper() (Config, error) {
	c := Config{
		LogLevel:       viper.GetString("loglevel"),
		LogFile:        viper.GetString("logfile"),
		Driver:         viper.GetString("driver"),
		BufferSize:     viper.GetInt("buffersize"),
		PollInterval:   viper.GetDuration("pollinterval"),
		Mode:           viper.GetString("mode"),
		ToneFrequency:  viper.GetFloat64("tonefrequency"),
		Volume:         viper.GetFloat64("volume"),
		InputFile:      viper.GetString("inputfile"),
		OutputFile:     viper.GetString("outputfile"),
		MetricsAddress: viper.GetString("metricsaddress"),
		Format: engine.Format{
			Channels:   viper.GetInt("channels"),
			SampleRate: viper.GetInt("samplerate"),
		},
	}

	var err error
	if c.HardwareEncoding, err = sample.ParseEncoding(viper.GetString("hardwareencoding")); err != nil {
		return Config{}, fmt.Errorf("hardwareencoding: %w", err)
	}
	if c.Format.SampleFormat, err = sample.ParseFormat(viper.GetString("sampleformat")); err != nil {
		return Config{}, fmt.Errorf("sampleformat: %w", err)
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	switch c.Driver {
	case DriverDummy, DriverFile, DriverPortAudio:
	default:
		return fmt.Errorf("%w %q", errUnknownDriver, c.Driver)
	}
	switch c.Mode {
	case ModePassthrough, ModeTone:
	default:
		return fmt.Errorf("%w %q", errUnknownMode, c.Mode)
	}

	var errs []error
	if c.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: buffersize %d", errInvalidValue, c.BufferSize))
	}
	if c.Format.Channels <= 0 {
		errs = append(errs, fmt.Errorf("%w: channels %d", errInvalidValue, c.Format.Channels))
	}
	if c.Format.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("%w: samplerate %d", errInvalidValue, c.Format.SampleRate))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: pollinterval %v", errInvalidValue, c.PollInterval))
	}
	if c.Volume < 0 {
		errs = append(errs, fmt.Errorf("%w: volume %v", errInvalidValue, c.Volume))
	}
	if c.Mode == ModeTone && c.ToneFrequency <= 0 {
		errs = append(errs, fmt.Errorf("%w: tonefrequency %v", errInvalidValue, c.ToneFrequency))
	}
	if c.Driver == DriverFile {
		if c.Mode == ModePassthrough && c.InputFile == "" {
			errs = append(errs, fmt.Errorf("%w: passthrough on the file driver needs inputfile", errInvalidValue))
		}
		if c.OutputFile == "" {
			errs = append(errs, fmt.Errorf("%w: the file driver needs outputfile", errInvalidValue))
		}
	}
	return errors.Join(errs...)
}

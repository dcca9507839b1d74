// Package config holds the YAML file schema for the neuracq daemon.
// Parsing and validation of the file live in the command; the core
// packages only ever see the resulting AdcConfig and options.
package config

type Config struct {
	Driver string `yaml:"driver"` // mock, playback, or ads1299

	SampleRate int     `yaml:"sample_rate"`
	Channels   int     `yaml:"channels"`
	Resolution int     `yaml:"resolution_bits"`
	Vref       float64 `yaml:"vref"`
	Gain       float64 `yaml:"gain"`
	BatchSize  int     `yaml:"batch_size"`

	Spectral struct {
		Enabled bool   `yaml:"enabled"`
		Window  string `yaml:"window"` // hann, hamming, blackman
	} `yaml:"spectral"`

	MaxConsecutiveTimeouts int `yaml:"max_consecutive_timeouts"`

	PlaybackLocation string `yaml:"playback_location"`
	Serial           struct {
		Port     string `yaml:"port"`
		BaudRate uint   `yaml:"baud_rate"`
	} `yaml:"serial"`

	EDFLocation        string              `yaml:"edf_location"`
	OutputDestinations []OutputDestination `yaml:"output_destinations"`

	Monitor struct {
		Port int `yaml:"port"`
	} `yaml:"monitor"`

	InfluxDB struct {
		Host         string `yaml:"host"`
		Organization string `yaml:"organization"`
		Bucket       string `yaml:"bucket"`
	} `yaml:"influxdb"`
}

type OutputDestination struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/luhtfiimanal/go-mhz19b"
)

// SensorConfig selects the serial port and the settings applied at startup.
type SensorConfig struct {
	Port        string        `mapstructure:"port"`
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
	// DetectionRange is 0 (leave as is), 2000 or 5000.
	DetectionRange  int    `mapstructure:"detectionRange"`
	AutoCalibration bool   `mapstructure:"autoCalibration"`
	Decoding        string `mapstructure:"decoding"`
}

// PollConfig controls the polling loop.
type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	// ExternalTool prints bare "co2:<ppm>" lines on stdout for other programs
	// and keeps log output off the console.
	ExternalTool bool `mapstructure:"externalTool"`
}

// LumberjackConfig configures log file rotation.
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig holds the log level and outputs.
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// HTTPConfig configures the status and metrics server.
type HTTPConfig struct {
	Enable       bool          `mapstructure:"enable"`
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Path string `mapstructure:"path"`
}

// MQTTConfig configures publishing of readings.
type MQTTConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"clientID"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	QoS      byte   `mapstructure:"qos"`
	Retain   bool   `mapstructure:"retain"`
}

// Config is the top-level configuration.
type Config struct {
	Sensor  SensorConfig  `mapstructure:"sensor"`
	Poll    PollConfig    `mapstructure:"poll"`
	Logging LoggingConfig `mapstructure:"logging"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
}

// Flags returns the command line flags understood by Load.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("co2mon", pflag.ContinueOnError)
	fs.String("config", "", "path to the configuration file")
	fs.String("port", "", "serial port of the sensor")
	fs.BoolP("external-tool", "e", false, "print bare co2:<ppm> lines on stdout")
	fs.Duration("interval", 0, "polling interval")
	return fs
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"port":          "sensor.port",
	"external-tool": "poll.externalTool",
	"interval":      "poll.interval",
}

// Load reads the configuration from a YAML/TOML/JSON file, environment
// variables and fs, in increasing priority. path may be empty, in which case
// CO2MON_CONFIG is consulted and then co2mon.yaml in . and ./configs. A
// missing file is not an error. fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// CO2MON_SENSOR_PORT overrides sensor.port, and so on.
	v.SetEnvPrefix("CO2MON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("co2mon")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sensor.port", "/dev/serial0")
	v.SetDefault("sensor.readTimeout", "1s")
	v.SetDefault("sensor.detectionRange", mhz19b.Range5000)
	v.SetDefault("sensor.autoCalibration", false)
	v.SetDefault("sensor.decoding", "legacy")

	v.SetDefault("poll.interval", "10s")
	v.SetDefault("poll.externalTool", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "logs/co2mon.log")
	v.SetDefault("logging.file.maxSize", 10)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("http.enable", false)
	v.SetDefault("http.addr", ":9019")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")

	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("mqtt.enable", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "co2mon/{port}")
	v.SetDefault("mqtt.clientID", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.retain", false)
}

// Validate checks values that cannot be expressed as defaults.
func (c *Config) Validate() error {
	if c.Sensor.Port == "" {
		return errors.New("config: sensor.port is empty")
	}
	if c.Sensor.ReadTimeout <= 0 {
		return fmt.Errorf("config: sensor.readTimeout must be positive, got %s", c.Sensor.ReadTimeout)
	}
	switch c.Sensor.DetectionRange {
	case 0, mhz19b.Range2000, mhz19b.Range5000:
	default:
		return fmt.Errorf("config: sensor.detectionRange must be 0, 2000 or 5000, got %d", c.Sensor.DetectionRange)
	}
	if _, err := mhz19b.ParseDecoding(c.Sensor.Decoding); err != nil {
		return fmt.Errorf("config: sensor.decoding: %w", err)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("config: poll.interval must be positive, got %s", c.Poll.Interval)
	}
	if c.MQTT.Enable {
		if c.MQTT.Broker == "" {
			return errors.New("config: mqtt.broker is empty")
		}
		if c.MQTT.QoS > 2 {
			return fmt.Errorf("config: mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
		}
	}
	return nil
}

// Decoding returns the parsed sensor.decoding value.
func (c *Config) Decoding() mhz19b.Decoding {
	d, _ := mhz19b.ParseDecoding(c.Sensor.Decoding)
	return d
}

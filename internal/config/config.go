package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the daemon and the control CLI.
type Config struct {
	// ServerAddress is the gRPC command address. The daemon listens on its
	// port, alarm-ctl dials it.
	ServerAddress string `yaml:"server_addr" env:"ALARM_SERVER_ADDR"`
	// MetricsAddress is the Prometheus listen address; empty disables metrics.
	MetricsAddress string `yaml:"metrics_addr" env:"ALARM_METRICS_ADDR"`
	// NATSURL is the push channel broker; empty keeps state events in the log.
	NATSURL string `yaml:"nats_url" env:"ALARM_NATS_URL"`
	// DatabasePath is the SQLite file holding zones, sensors and alerts.
	DatabasePath string `yaml:"database_path" env:"ALARM_DATABASE_PATH"`
	// LayoutFile optionally describes zones and sensors; it is synced into the
	// database at every configuration load and watched for changes.
	LayoutFile string `yaml:"layout_file" env:"ALARM_LAYOUT_FILE"`
	// PIDFile is written at startup.
	PIDFile string `yaml:"pid_file" env:"MONITOR_PID_FILE"`
	// LogLevel is the console log level.
	LogLevel string `yaml:"log_level" env:"ALARM_LOG_LEVEL"`
	// LogFile additionally receives every debug line when set.
	LogFile string `yaml:"log_file" env:"ALARM_LOG_FILE"`
	// SampleRate is the number of monitor ticks per second.
	SampleRate int `yaml:"sample_rate" env:"SAMPLE_RATE"`
	// Tolerance is the allowed deviation from a reference value.
	Tolerance float64 `yaml:"tolerance" env:"TOLERANCE"`
	// Timeout bounds CLI RPC calls.
	Timeout time.Duration `yaml:"timeout" env:"ALARM_TIMEOUT"`
	// Sensor selects the sensor driver.
	Sensor SensorConfig `yaml:"sensor" envPrefix:"ALARM_SENSOR_"`
	// Keypad selects the keypad driver and its codes.
	Keypad KeypadConfig `yaml:"keypad" envPrefix:"ALARM_KEYPAD_"`
	// Notify tunes notification delivery.
	Notify NotifyConfig `yaml:"notify" envPrefix:"ALARM_NOTIFY_"`
}

// SensorConfig selects the sensor driver.
type SensorConfig struct {
	// Driver is "simulated" or "iio".
	Driver string `yaml:"driver" env:"DRIVER"`
	// ChannelCount is the adapter channel capacity.
	ChannelCount int `yaml:"channel_count" env:"CHANNEL_COUNT"`
	// DevicePath is the iio sysfs device directory.
	DevicePath string `yaml:"device_path" env:"DEVICE_PATH"`
	// Scale multiplies raw iio readings.
	Scale float64 `yaml:"scale" env:"SCALE"`
}

// KeypadConfig selects the keypad driver.
type KeypadConfig struct {
	// Driver is "simulated" or "none".
	Driver string `yaml:"driver" env:"DRIVER"`
	// Codes are the accepted four digit user codes.
	Codes []string `yaml:"codes" env:"CODES" envSeparator:","`
}

// NotifyConfig tunes notification delivery retries.
type NotifyConfig struct {
	// Subject is the NATS subject for alert messages.
	Subject string `yaml:"subject" env:"SUBJECT"`
	// MaxAttempts bounds delivery attempts per message.
	MaxAttempts uint `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	// InitialInterval is the first retry delay.
	InitialInterval time.Duration `yaml:"initial_interval" env:"INITIAL_INTERVAL"`
	// MaxInterval caps the retry delay.
	MaxInterval time.Duration `yaml:"max_interval" env:"MAX_INTERVAL"`
}

const (
	// DefaultConfigFilename is the default settings filename.
	DefaultConfigFilename = "alarm-monitor.yaml"
	// DefaultDatabaseFilename is the default SQLite database filename.
	DefaultDatabaseFilename = "alarm-monitor.db"
	// DefaultPIDFilename is the default PID filename.
	DefaultPIDFilename = "alarm-monitor.pid"
	// DefaultServerAddress is used when no address is configured.
	DefaultServerAddress = "127.0.0.1:50051"
	// DefaultTimeout is the default duration for RPC calls.
	DefaultTimeout = 5 * time.Second
	// DefaultSampleRate is the default number of ticks per second.
	DefaultSampleRate = 2
	// DefaultTolerance is the default allowed deviation.
	DefaultTolerance = 0.5
	// DefaultChannelCount matches the common eight channel ADC boards.
	DefaultChannelCount = 8
	// DefaultNotifySubject is where alert messages are published.
	DefaultNotifySubject = "alarm.notifications"
	// DefaultNotifyAttempts bounds delivery attempts.
	DefaultNotifyAttempts = 5
	// DefaultNotifyInitialInterval is the first delivery retry delay.
	DefaultNotifyInitialInterval = time.Second
	// DefaultNotifyMaxInterval caps delivery retry delays.
	DefaultNotifyMaxInterval = 30 * time.Second
	// DefaultFilePermissions is the default permission for written files.
	DefaultFilePermissions = 0o600
	// dotEnvFilename is loaded from the config directory when present.
	dotEnvFilename = ".env"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errBadSampleRate is returned for non-positive sample rates.
	errBadSampleRate = errors.New("sample rate must be positive")
	// errBadTolerance is returned for negative tolerances.
	errBadTolerance = errors.New("tolerance must not be negative")
	// errBadKeypadCode is returned for codes that are not four digits.
	errBadKeypadCode = errors.New("keypad codes must be four digits")

	//nolint:gochecknoglobals // Compiled once.
	keypadCodePattern = regexp.MustCompile(`^[0-9]{4}$`)
)

// Load reads the YAML settings, applies a sibling .env file and environment
// overrides, then validates and fills defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	path = filepath.Clean(path)

	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = loadDotEnv(filepath.Join(filepath.Dir(path), dotEnvFilename)); err != nil {
		return nil, err
	}

	if err = env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDotEnv exports variables from path without overriding the real environment.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("stat %s: %w", path, err)
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	return nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions: the file may carry keypad codes.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the settings and fills defaults for unset fields.
//
//nolint:cyclop // A flat list of field checks reads best.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ServerAddress == "" {
		settings.ServerAddress = DefaultServerAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	if settings.MetricsAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", settings.MetricsAddress); err != nil {
			return fmt.Errorf("invalid metrics socket: %w", err)
		}
	}

	if settings.NATSURL != "" {
		if _, err := url.ParseRequestURI(settings.NATSURL); err != nil {
			return fmt.Errorf("invalid NATS URL: %w", err)
		}
	}

	switch {
	case settings.SampleRate < 0:
		return errBadSampleRate
	case settings.SampleRate == 0:
		settings.SampleRate = DefaultSampleRate
	}

	switch {
	case settings.Tolerance < 0:
		return errBadTolerance
	case settings.Tolerance == 0:
		settings.Tolerance = DefaultTolerance
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.DatabasePath == "" {
		settings.DatabasePath = DefaultDatabaseFilename
	}

	if settings.PIDFile == "" {
		settings.PIDFile = DefaultPIDFilename
	}

	if settings.Sensor.ChannelCount <= 0 {
		settings.Sensor.ChannelCount = DefaultChannelCount
	}

	for _, code := range settings.Keypad.Codes {
		if !keypadCodePattern.MatchString(code) {
			return errBadKeypadCode
		}
	}

	validateNotify(&settings.Notify)

	return nil
}

func validateNotify(n *NotifyConfig) {
	if n.Subject == "" {
		n.Subject = DefaultNotifySubject
	}

	if n.MaxAttempts == 0 {
		n.MaxAttempts = DefaultNotifyAttempts
	}

	if n.InitialInterval <= 0 {
		n.InitialInterval = DefaultNotifyInitialInterval
	}

	if n.MaxInterval < n.InitialInterval {
		n.MaxInterval = max(DefaultNotifyMaxInterval, n.InitialInterval)
	}
}

// SampleInterval is the longest a monitor tick waits for an action.
func (c *Config) SampleInterval() time.Duration {
	if c.SampleRate <= 0 {
		return time.Second / DefaultSampleRate
	}

	return time.Second / time.Duration(c.SampleRate)
}

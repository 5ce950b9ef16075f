package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/lborres/bantay/core"
)

const EnvPrefix = "BANTAY"

// Config is the top-level configuration of the CLI and the dashboard server
type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	Media   MediaConfig   `mapstructure:"media"`
	Storage StorageConfig `mapstructure:"storage"`
	Session SessionConfig `mapstructure:"session"`
	Poll    PollConfig    `mapstructure:"poll"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
	Stats   StatsConfig   `mapstructure:"stats"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type BackendConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type MediaConfig struct {
	URL     string        `mapstructure:"url"`
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects where the bearer token is kept
type StorageConfig struct {
	Driver     string        `mapstructure:"driver"` // memory, file, postgres, redis
	Profile    string        `mapstructure:"profile"`
	Path       string        `mapstructure:"path"`
	Passphrase string        `mapstructure:"passphrase"` // seals the file store when set
	DSN        string        `mapstructure:"dsn"`
	RedisURL   string        `mapstructure:"redis_url"`
	TTL        time.Duration `mapstructure:"ttl"`
}

type SessionConfig struct {
	ResolveTimeout time.Duration `mapstructure:"resolve_timeout"`
}

type PollConfig struct {
	Alerts     time.Duration `mapstructure:"alerts"`
	Feed       time.Duration `mapstructure:"feed"`
	Stats      time.Duration `mapstructure:"stats"`
	ActiveExam time.Duration `mapstructure:"active_exam"`
	Countdown  time.Duration `mapstructure:"countdown"`
}

type AlertsConfig struct {
	Confidence float64 `mapstructure:"confidence"`
	Source     string  `mapstructure:"source"`
	SessionID  int64   `mapstructure:"session_id"` // 0 means every session
}

type StatsConfig struct {
	SessionID int64 `mapstructure:"session_id"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Directory  string `mapstructure:"directory"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

var (
	ErrUnknownStorage = errors.New("unknown storage driver")
	ErrMissingDSN     = errors.New("storage.dsn is required for the postgres driver")
	ErrMissingRedis   = errors.New("storage.redis_url is required for the redis driver")
)

func setDefaults(v *viper.Viper) {
	// Backend defaults
	v.SetDefault("backend.url", "http://localhost:8000")
	v.SetDefault("backend.timeout", "10s")

	// Media defaults
	v.SetDefault("media.url", "http://localhost:5001")
	v.SetDefault("media.enabled", true)
	v.SetDefault("media.timeout", "5s")

	// Storage defaults
	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.profile", "default")
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.passphrase", "")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.redis_url", "")
	v.SetDefault("storage.ttl", "0s")

	// Session and poll defaults
	v.SetDefault("session.resolve_timeout", core.DefaultResolveTimeout.String())
	v.SetDefault("poll.alerts", core.DefaultAlertsInterval.String())
	v.SetDefault("poll.feed", core.DefaultFeedInterval.String())
	v.SetDefault("poll.stats", core.DefaultStatsInterval.String())
	v.SetDefault("poll.active_exam", core.DefaultActiveExamInterval.String())
	v.SetDefault("poll.countdown", core.DefaultCountdownInterval.String())

	// Filter defaults
	v.SetDefault("alerts.confidence", core.DefaultConfidence)
	v.SetDefault("alerts.source", string(core.SourceAll))
	v.SetDefault("alerts.session_id", 0)
	v.SetDefault("stats.session_id", 1)

	v.SetDefault("server.addr", ":3000")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.directory", "")
	v.SetDefault("logging.max_size", 10)   // 10 MB
	v.SetDefault("logging.max_backups", 3) // Keep 3 backups
	v.SetDefault("logging.max_age", 7)     // 7 days
	v.SetDefault("logging.compress", true)
}

// Loader reads the configuration from defaults, an optional yaml file and
// BANTAY_* environment variables, in increasing priority
type Loader struct {
	v *viper.Viper

	mu  sync.RWMutex
	cur Config
}

// Load reads file when given, otherwise looks for bantay.yaml in the
// working directory and $HOME/.config/bantay. A missing file is not an error.
func Load(file string) (*Loader, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("bantay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/bantay")
	}

	v.SetEnvPrefix(EnvPrefix) // e.g., BANTAY_BACKEND_URL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	l := &Loader{v: v}
	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}
	l.cur = cfg
	return l, nil
}

func (l *Loader) decode() (Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (l *Loader) Config() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cur
}

// File returns the config file in use, empty when running on defaults
func (l *Loader) File() string {
	return l.v.ConfigFileUsed()
}

// Watch reloads the file whenever it changes and hands every valid
// configuration to onChange. Invalid edits are logged and ignored.
func (l *Loader) Watch(log *zap.Logger, onChange func(Config)) {
	if log == nil {
		log = zap.NewNop()
	}
	if l.File() == "" {
		log.Debug("no config file in use, hot reload disabled")
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("Configuration file changed, reloading.", zap.String("file", e.Name))
		cfg, err := l.decode()
		if err != nil {
			log.Error("Error reloading configuration", zap.Error(err))
			return
		}
		l.mu.Lock()
		l.cur = cfg
		l.mu.Unlock()
		if onChange != nil {
			onChange(cfg)
		}
	})
	l.v.WatchConfig()
}

func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "file":
	case "postgres":
		if c.Storage.DSN == "" {
			return ErrMissingDSN
		}
	case "redis":
		if c.Storage.RedisURL == "" {
			return ErrMissingRedis
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorage, c.Storage.Driver)
	}
	return c.AlertFilter().Validate()
}

func (c Config) AlertFilter() core.AlertFilter {
	f := core.AlertFilter{
		Confidence: c.Alerts.Confidence,
		Source:     core.SourceFilter(strings.ToLower(c.Alerts.Source)),
	}
	if c.Alerts.SessionID > 0 {
		id := c.Alerts.SessionID
		f.SessionID = &id
	}
	return f
}

func (c Config) PollIntervals() core.PollIntervals {
	return core.PollIntervals{
		Alerts:     c.Poll.Alerts,
		Feed:       c.Poll.Feed,
		Stats:      c.Poll.Stats,
		ActiveExam: c.Poll.ActiveExam,
		Countdown:  c.Poll.Countdown,
	}.WithDefaults()
}

func (c Config) SessionConfig() core.SessionConfig {
	cfg := core.DefaultSessionConfig()
	if c.Session.ResolveTimeout > 0 {
		cfg.ResolveTimeout = c.Session.ResolveTimeout
	}
	return cfg
}

package kiosk

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/smartvendoplus/smartvendo/kiosk/database"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

type Config struct {
	Log          LogConfig          `toml:"log"`
	Server       ServerConfig       `toml:"server"`
	DB           DBConfig           `toml:"db"`
	Points       PointsConfig       `toml:"points"`
	Registration RegistrationConfig `toml:"registration"`
	Session      SessionConfig      `toml:"session"`
	Device       DeviceConfig       `toml:"device"`
	Admin        AdminConfig        `toml:"admin"`
	Spaces       SpacesConfig       `toml:"spaces"`
	Alerts       AlertsConfig       `toml:"alerts"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	AddSource bool       `toml:"add_source"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
	// DefaultTerminal names the gateway used when a request carries no
	// X-Terminal-ID header. A single-screen kiosk only ever has one.
	DefaultTerminal string `toml:"default_terminal"`
}

// DBConfig aliases the database package's own config so the decoded
// [db] section passes straight into database.New.
type DBConfig = database.DBConfig

// PointsConfig is the award table: item kind -> points credited per deposit.
// Kinds absent from the table are rejected by the engine.
type PointsConfig struct {
	Awards map[string]int64 `toml:"awards"`
}

type RegistrationConfig struct {
	ValidityDays int `toml:"validity_days"`
}

type SessionConfig struct {
	InactivityMinutes int    `toml:"inactivity_minutes"`
	AdminSecret       string `toml:"admin_secret"`
}

type DeviceConfig struct {
	ControllerURL   string `toml:"controller_url"`
	SerialPort      string `toml:"serial_port"`
	DebounceSeconds int    `toml:"debounce_seconds"`
}

type AdminConfig struct {
	Email    string `toml:"email"`
	Password string `toml:"password"`
}

type SpacesConfig struct {
	Key        string `toml:"key"`
	Secret     string `toml:"secret"`
	Region     string `toml:"region"`
	Bucket     string `toml:"bucket"`
	RewardRoot string `toml:"reward_root"`
}

type AlertsConfig struct {
	WebhookURL        string `toml:"webhook_url"`
	LowStockThreshold int64  `toml:"low_stock_threshold"`
}

// ApplyEnvOverrides lets deployments keep secrets out of config.toml. Only
// the sensitive values are overridable.
func (c *Config) ApplyEnvOverrides() {
	overlay := func(target *string, key string) {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}
	overlay(&c.DB.Password, "SMARTVENDO_DB_PASSWORD")
	overlay(&c.Session.AdminSecret, "SMARTVENDO_ADMIN_SECRET")
	overlay(&c.Admin.Password, "SMARTVENDO_ADMIN_PASSWORD")
	overlay(&c.Spaces.Key, "SMARTVENDO_SPACES_KEY")
	overlay(&c.Spaces.Secret, "SMARTVENDO_SPACES_SECRET")
	overlay(&c.Alerts.WebhookURL, "SMARTVENDO_ALERT_WEBHOOK")
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":5000"
	}
	if c.Server.DefaultTerminal == "" {
		c.Server.DefaultTerminal = "kiosk-1"
	}
	if len(c.Points.Awards) == 0 {
		c.Points.Awards = map[string]int64{"paper": 5, "plastic": 10}
	}
	if c.Registration.ValidityDays == 0 {
		c.Registration.ValidityDays = 60
	}
	if c.Session.InactivityMinutes == 0 {
		c.Session.InactivityMinutes = 60
	}
	if c.Device.DebounceSeconds == 0 {
		c.Device.DebounceSeconds = 2
	}
	if c.Alerts.LowStockThreshold == 0 {
		c.Alerts.LowStockThreshold = 5
	}
}

// SessionTimeout returns the kiosk session inactivity window.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Session.InactivityMinutes) * time.Minute
}

// RegistrationValidity returns how long a fresh account stays valid.
func (c *Config) RegistrationValidity() time.Duration {
	return time.Duration(c.Registration.ValidityDays) * 24 * time.Hour
}

// DebounceWindow returns the card-reader duplicate-scan window.
func (c *Config) DebounceWindow() time.Duration {
	return time.Duration(c.Device.DebounceSeconds) * time.Second
}

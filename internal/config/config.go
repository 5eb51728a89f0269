package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Server holds all configuration for the battleship server.
type Server struct {
	// Network
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Bind retries on startup, one second apart.
	InitAttempts int `yaml:"init_attempts"`

	// Limits
	MaxUsers          int `yaml:"max_users"`
	MaxUserNameLength int `yaml:"max_user_name_length"`
	MaxGameSessions   int `yaml:"max_game_sessions"`

	// I/O deadlines
	ReadTimeout  int `yaml:"read_timeout"`  // seconds
	WriteTimeout int `yaml:"write_timeout"` // seconds

	Database DatabaseConfig `yaml:"database"`
	Admin    AdminConfig    `yaml:"admin"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Plugins  PluginsConfig  `yaml:"plugins"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// AdminConfig wires the three admin surfaces: the interactive stdin
// terminal, the socket console and the watched terminal file.
type AdminConfig struct {
	Terminal       bool   `yaml:"terminal"`
	Port           int    `yaml:"port"` // socket console, 0 disables
	MaxConnections int    `yaml:"max_connections"`
	TerminalFile   string `yaml:"terminal_file"` // empty disables
	AuthFile       string `yaml:"auth_file"`
	ReauthInterval int    `yaml:"reauth_interval"` // seconds
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// PluginsConfig controls the Lua plugin engine.
type PluginsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// Default returns Server config with sensible defaults.
func Default() Server {
	return Server{
		Host:              "0.0.0.0",
		Port:              64221,
		InitAttempts:      100,
		MaxUsers:          20,
		MaxUserNameLength: 30,
		MaxGameSessions:   2,
		ReadTimeout:       10,
		WriteTimeout:      5,
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "battleship",
			Password: "battleship",
			DBName:   "battleship",
			SSLMode:  "disable",
		},
		Admin: AdminConfig{
			Terminal:       true,
			Port:           64222,
			MaxConnections: 5,
			TerminalFile:   "terminal.txt",
			AuthFile:       "auth.enc",
			ReauthInterval: 300,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":64223",
		},
		Plugins: PluginsConfig{
			Enabled: true,
			Dir:     "plugins",
		},
	}
}

// Load loads server config from a YAML file.
// If the file doesn't exist, returns defaults.
func Load(path string) (Server, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Game     GameConfig     `mapstructure:"game"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddress     string        `mapstructure:"http_address"`
	MetricsAddress  string        `mapstructure:"metrics_address"`
	RPCAddress      string        `mapstructure:"rpc_address"`
	GRPCAddress     string        `mapstructure:"grpc_address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Heartbeat       time.Duration `mapstructure:"heartbeat"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// GameConfig holds the room policy knobs.
type GameConfig struct {
	MinCapacity     int           `mapstructure:"min_capacity"`
	MaxCapacity     int           `mapstructure:"max_capacity"`
	DefaultCapacity int           `mapstructure:"default_capacity"`
	ClosingPolicy   string        `mapstructure:"closing_policy"`
	HostOnlyStart   bool          `mapstructure:"host_only_start"`
	RoundsPerGame   int           `mapstructure:"rounds_per_game"`
	ShuffleRounds   bool          `mapstructure:"shuffle_rounds"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	IdleRoomTTL     time.Duration `mapstructure:"idle_room_ttl"`
}

type CatalogConfig struct {
	Source string `mapstructure:"source"` // file | database
	Path   string `mapstructure:"path"`
}

type LedgerConfig struct {
	Backend   string `mapstructure:"backend"` // gorm | postgres | sqlite | xml | none
	Path      string `mapstructure:"path"`
	Workers   int    `mapstructure:"workers"`
	QueueSize int    `mapstructure:"queue_size"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type RedisConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Address       string `mapstructure:"address"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":5555")
	v.SetDefault("server.metrics_address", ":9100")
	v.SetDefault("server.rpc_address", ":5556")
	v.SetDefault("server.grpc_address", ":5557")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.heartbeat", 30*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("game.min_capacity", 2)
	v.SetDefault("game.max_capacity", 6)
	v.SetDefault("game.default_capacity", 6)
	v.SetDefault("game.closing_policy", "all_answered")
	v.SetDefault("game.host_only_start", false)
	v.SetDefault("game.rounds_per_game", 0)
	v.SetDefault("game.shuffle_rounds", false)
	v.SetDefault("game.sweep_interval", 5*time.Second)
	v.SetDefault("game.idle_room_ttl", 10*time.Minute)

	v.SetDefault("catalog.source", "file")
	v.SetDefault("catalog.path", "data/rounds.xml")

	v.SetDefault("ledger.backend", "xml")
	v.SetDefault("ledger.path", "data/scores.xml")
	v.SetDefault("ledger.workers", 2)
	v.SetDefault("ledger.queue_size", 256)

	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.dbname", "picword")

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.channel_prefix", "room:")

	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yaml from path, overlays PICWORD_* environment
// variables and fills unset keys with defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("PICWORD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations the server cannot run with.
func (c *Config) Validate() error {
	g := c.Game
	if g.MinCapacity < 2 {
		return fmt.Errorf("game.min_capacity must be at least 2, got %d", g.MinCapacity)
	}
	if g.MaxCapacity < g.MinCapacity {
		return fmt.Errorf("game.max_capacity %d is below game.min_capacity %d", g.MaxCapacity, g.MinCapacity)
	}
	if g.DefaultCapacity < g.MinCapacity || g.DefaultCapacity > g.MaxCapacity {
		return fmt.Errorf("game.default_capacity %d outside [%d, %d]", g.DefaultCapacity, g.MinCapacity, g.MaxCapacity)
	}
	if g.RoundsPerGame < 0 {
		return fmt.Errorf("game.rounds_per_game must not be negative")
	}
	switch g.ClosingPolicy {
	case "all_answered", "first_correct", "all_correct", "timeout_only":
	default:
		return fmt.Errorf("unknown game.closing_policy %q", g.ClosingPolicy)
	}
	switch c.Catalog.Source {
	case "file", "database":
	default:
		return fmt.Errorf("unknown catalog.source %q", c.Catalog.Source)
	}
	switch c.Ledger.Backend {
	case "gorm", "postgres", "sqlite", "xml", "none":
	default:
		return fmt.Errorf("unknown ledger.backend %q", c.Ledger.Backend)
	}
	if c.Catalog.Source == "database" && c.Ledger.Backend != "gorm" {
		return fmt.Errorf("catalog.source=database requires ledger.backend=gorm")
	}
	if c.Ledger.Workers < 1 || c.Ledger.QueueSize < 1 {
		return fmt.Errorf("ledger.workers and ledger.queue_size must be positive")
	}
	return nil
}

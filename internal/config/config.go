package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/elvirus/virus-server-go/internal/game/cards"
	"github.com/spf13/viper"
)

// Config is the root server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Game     GameConfig     `mapstructure:"game"`
	Deck     DeckConfig     `mapstructure:"deck"`
}

// ServerConfig groups the listeners.
type ServerConfig struct {
	GRPC            GRPCConfig      `mapstructure:"grpc"`
	WebSocket       WebSocketConfig `mapstructure:"websocket"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
}

// GRPCConfig configures the gRPC listener.
type GRPCConfig struct {
	Address              string `mapstructure:"address"`
	MaxConcurrentStreams int    `mapstructure:"max_concurrent_streams"`
}

// WebSocketConfig configures the push listener.
type WebSocketConfig struct {
	Address         string        `mapstructure:"address"`
	Path            string        `mapstructure:"path"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig selects and tunes the match store.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres or memory
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// AuthConfig configures player tickets and the admin credential.
type AuthConfig struct {
	TicketSecret      string        `mapstructure:"ticket_secret"`
	TicketTTL         time.Duration `mapstructure:"ticket_ttl"`
	AdminPasswordHash string        `mapstructure:"admin_password_hash"`
}

// GameConfig holds the rules parameters applied to new matches.
type GameConfig struct {
	MinPlayers          int           `mapstructure:"min_players"`
	MaxPlayers          int           `mapstructure:"max_players"`
	InitialHandSize     int           `mapstructure:"initial_hand_size"`
	TurnTimeLimit       time.Duration `mapstructure:"turn_time_limit"`
	RequiredOrgansToWin int           `mapstructure:"required_organs_to_win"`
	TickInterval        time.Duration `mapstructure:"tick_interval"`
	ReplayDir           string        `mapstructure:"replay_dir"`
	Seed                uint64        `mapstructure:"seed"` // 0 seeds every match from crypto/rand
}

// DeckConfig overrides the card distribution. An empty distribution uses the standard deck.
type DeckConfig struct {
	Distribution cards.Distribution `mapstructure:"distribution"`
}

// Load reads the YAML file at path, applies defaults and VIRUS_* environment overrides, and
// validates the result. An empty path uses defaults and the environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("VIRUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.grpc.address", ":17171")
	v.SetDefault("server.grpc.max_concurrent_streams", 1000)
	v.SetDefault("server.websocket.address", ":17172")
	v.SetDefault("server.websocket.path", "/ws")
	v.SetDefault("server.websocket.read_buffer_size", 1024)
	v.SetDefault("server.websocket.write_buffer_size", 1024)
	v.SetDefault("server.websocket.ping_interval", 30*time.Second)
	v.SetDefault("server.websocket.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.connect_timeout", 5*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("auth.ticket_secret", "")
	v.SetDefault("auth.ticket_ttl", 12*time.Hour)
	v.SetDefault("auth.admin_password_hash", "")

	v.SetDefault("game.min_players", 2)
	v.SetDefault("game.max_players", 6)
	v.SetDefault("game.initial_hand_size", 3)
	v.SetDefault("game.turn_time_limit", 60*time.Second)
	v.SetDefault("game.required_organs_to_win", 4)
	v.SetDefault("game.tick_interval", time.Second)
	v.SetDefault("game.replay_dir", "")
	v.SetDefault("game.seed", 0)
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	g := c.Game
	if g.MinPlayers < 2 || g.MaxPlayers > 6 || g.MinPlayers > g.MaxPlayers {
		return fmt.Errorf("player range %d-%d must lie within 2-6", g.MinPlayers, g.MaxPlayers)
	}
	if g.InitialHandSize < 0 {
		return fmt.Errorf("game.initial_hand_size must not be negative")
	}
	if g.TurnTimeLimit < time.Second {
		return fmt.Errorf("game.turn_time_limit must be at least 1s")
	}
	if g.RequiredOrgansToWin < 1 {
		return fmt.Errorf("game.required_organs_to_win must be positive")
	}
	if g.TickInterval <= 0 {
		return fmt.Errorf("game.tick_interval must be positive")
	}

	if len(c.Deck.Distribution) > 0 {
		if err := c.Deck.Distribution.Validate(); err != nil {
			return fmt.Errorf("deck.distribution: %w", err)
		}
	}
	if c.Auth.TicketTTL <= 0 {
		return fmt.Errorf("auth.ticket_ttl must be positive")
	}
	return nil
}

// Distribution returns the configured deck composition or the standard one.
func (c *Config) Distribution() cards.Distribution {
	if len(c.Deck.Distribution) == 0 {
		return cards.DefaultDistribution()
	}
	return c.Deck.Distribution
}

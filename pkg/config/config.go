package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cbodonnell/worldgate/pkg/log"
)

// Config is the server configuration read from WORLDGATE_* environment
// variables. Command line flags may override some fields after parsing.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	GamePort   int    `env:"GAME_PORT" envDefault:"10001"`
	APIPort    int    `env:"API_PORT" envDefault:"8080"`
	AdminToken string `env:"ADMIN_TOKEN"`
	TLSCert    string `env:"TLS_CERT"`
	TLSKey     string `env:"TLS_KEY"`

	DatabaseURL   string `env:"DATABASE_URL" envDefault:"sqlite://worldgate.db"`
	DefaultZoneID int32  `env:"DEFAULT_ZONE_ID" envDefault:"5"`

	// DataDir holds the static data files. The embedded defaults are used
	// when empty.
	DataDir string `env:"DATA_DIR"`

	TickRate           time.Duration `env:"TICK_RATE" envDefault:"50ms"`
	TicketTimeout      time.Duration `env:"TICKET_TIMEOUT" envDefault:"30s"`
	DespawnTimeout     time.Duration `env:"DESPAWN_TIMEOUT" envDefault:"10s"`
	WorldIdleGrace     time.Duration `env:"WORLD_IDLE_GRACE" envDefault:"15s"`
	HandshakeTimeout   time.Duration `env:"HANDSHAKE_TIMEOUT" envDefault:"5s"`
	IdleTimeout        time.Duration `env:"IDLE_TIMEOUT" envDefault:"120s"`
	WriteTimeout       time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
	AuthTimeout        time.Duration `env:"AUTH_TIMEOUT" envDefault:"5s"`
	PongTimeout        time.Duration `env:"PONG_TIMEOUT" envDefault:"30s"`
	OutboxSize         int           `env:"OUTBOX_SIZE" envDefault:"256"`
	RecordRate         float64       `env:"RECORD_RATE" envDefault:"200"`
	RecordBurst        int           `env:"RECORD_BURST" envDefault:"400"`
	PersistenceWorkers int           `env:"PERSISTENCE_WORKERS" envDefault:"4"`
	SaveInterval       time.Duration `env:"SAVE_INTERVAL" envDefault:"10s"`
}

const Prefix = "WORLDGATE_"

// Parse reads the configuration from the environment and validates it.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: Prefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every value is usable.
func (c *Config) Validate() error {
	var errs []error
	if _, err := log.ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if err := validPort("game port", c.GamePort); err != nil {
		errs = append(errs, err)
	}
	if err := validPort("API port", c.APIPort); err != nil {
		errs = append(errs, err)
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		errs = append(errs, errors.New("TLS cert and key must be set together"))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("database url must be set"))
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"tick rate", c.TickRate},
		{"ticket timeout", c.TicketTimeout},
		{"despawn timeout", c.DespawnTimeout},
		{"world idle grace", c.WorldIdleGrace},
		{"handshake timeout", c.HandshakeTimeout},
		{"idle timeout", c.IdleTimeout},
		{"write timeout", c.WriteTimeout},
		{"auth timeout", c.AuthTimeout},
		{"pong timeout", c.PongTimeout},
		{"save interval", c.SaveInterval},
	}
	for _, d := range durations {
		if d.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", d.name, d.value))
		}
	}

	if c.OutboxSize <= 0 {
		errs = append(errs, fmt.Errorf("outbox size must be positive, got %d", c.OutboxSize))
	}
	if c.RecordRate <= 0 || c.RecordBurst <= 0 {
		errs = append(errs, errors.New("record rate and burst must be positive"))
	}
	if c.PersistenceWorkers <= 0 {
		errs = append(errs, fmt.Errorf("persistence workers must be positive, got %d", c.PersistenceWorkers))
	}
	return errors.Join(errs...)
}

func validPort(name string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%s %d out of range", name, port)
	}
	return nil
}

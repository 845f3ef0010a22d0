// internal/config/config.go
package conf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bartek5186/mosync/internal/integrations/authenticity"
	"github.com/bartek5186/mosync/internal/integrations/odoo"
	"github.com/bartek5186/mosync/internal/localtime"
	"github.com/joho/godotenv"
)

// Główny config aplikacji
type Config struct {
	AutoStart               bool                       `json:"auto_start"`
	Port                    int                        `json:"port"`
	DBDriver                string                     `json:"db_driver"`           // sqlite | sqlite3 | mysql | postgres
	DBDSN                   string                     `json:"db_dsn,omitempty"`    // puste = mosync.db w katalogu danych
	TimezoneOffsetMinutes   int                        `json:"timezone_offset_minutes"`
	SyncIntervalMinutes     int                        `json:"sync_interval_minutes"`      // odoo
	AuthSyncIntervalMinutes int                        `json:"auth_sync_interval_minutes"` // authenticity
	RabbitMQURL             string                     `json:"rabbitmq_url,omitempty"`     // puste = eventy wyłączone
	EventsQueue             string                     `json:"events_queue,omitempty"`
	Integrations            map[string]json.RawMessage `json:"integrations"` // nazwa -> surowy JSON joba
}

func Default() *Config {
	rawOdoo, _ := json.Marshal(odoo.DefaultConfig())
	rawAuth, _ := json.Marshal(authenticity.DefaultConfig())
	return &Config{
		AutoStart:               false,
		Port:                    5000,
		DBDriver:                "sqlite",
		TimezoneOffsetMinutes:   localtime.DefaultOffsetMinutes,
		SyncIntervalMinutes:     5,
		AuthSyncIntervalMinutes: 10,
		Integrations: map[string]json.RawMessage{
			odoo.Name:         rawOdoo,
			authenticity.Name: rawAuth,
		},
	}
}

// LoadOrCreate czyta config.json (zapisując domyślny przy pierwszym
// uruchomieniu), potem nakłada zmienne środowiskowe. .env z katalogu
// roboczego jest ładowany, o ile istnieje.
func LoadOrCreate(path string) (*Config, bool, error) {
	_ = godotenv.Load() // brak .env to nie błąd

	cfg, created, err := loadFile(path)
	if err != nil {
		return nil, false, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, false, err
	}
	cfg.fillDefaults()
	return cfg, created, nil
}

func loadFile(path string) (*Config, bool, error) {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			if err := Save(path, cfg); err != nil {
				return nil, false, fmt.Errorf("błąd zapisu domyślnego configa: %w", err)
			}
			return cfg, true, nil
		}
		return nil, false, fmt.Errorf("błąd otwierania configa: %w", err)
	}
	defer f.Close()

	// pola nieobecne w pliku zostają domyślne
	cfg := Default()
	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return nil, false, fmt.Errorf("błąd parsowania configa: %w", err)
	}
	if cfg.Integrations == nil {
		cfg.Integrations = map[string]json.RawMessage{}
	}
	return cfg, false, nil
}

// ApplyEnv nadpisuje ustawienia wdrożeniowe. Sekrety jobów (ODOO_*, AUTH_*)
// nakładają same joby przy budowie.
func (c *Config) ApplyEnv() error {
	ints := []struct {
		key string
		dst *int
	}{
		{"PORT", &c.Port},
		{"TIMEZONE_OFFSET_MINUTES", &c.TimezoneOffsetMinutes},
		{"SYNC_INTERVAL_MINUTES", &c.SyncIntervalMinutes},
		{"AUTH_SYNC_INTERVAL_MINUTES", &c.AuthSyncIntervalMinutes},
	}
	for _, e := range ints {
		v := strings.TrimSpace(os.Getenv(e.key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", e.key, v)
		}
		*e.dst = n
	}
	if v := strings.TrimSpace(os.Getenv("DB_DRIVER")); v != "" {
		c.DBDriver = v
	}
	if v := strings.TrimSpace(os.Getenv("DB_DSN")); v != "" {
		c.DBDSN = v
	}
	if v := strings.TrimSpace(os.Getenv("RABBITMQ_URL")); v != "" {
		c.RabbitMQURL = v
	}
	return nil
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.Port <= 0 {
		c.Port = d.Port
	}
	if c.DBDriver == "" {
		c.DBDriver = d.DBDriver
	}
	if c.SyncIntervalMinutes <= 0 {
		c.SyncIntervalMinutes = d.SyncIntervalMinutes
	}
	if c.AuthSyncIntervalMinutes <= 0 {
		c.AuthSyncIntervalMinutes = d.AuthSyncIntervalMinutes
	}
}

// Interval zwraca domyślny interwał harmonogramu joba.
func (c *Config) Interval(job string) time.Duration {
	switch job {
	case authenticity.Name:
		return time.Duration(c.AuthSyncIntervalMinutes) * time.Minute
	default:
		return time.Duration(c.SyncIntervalMinutes) * time.Minute
	}
}

func (c *Config) Clock() localtime.Clock {
	return localtime.New(c.TimezoneOffsetMinutes)
}

func Save(path string, cfg *Config) error {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

// Helper do odczytu konkretnej integracji do struktury docelowej
func (c *Config) UnmarshalIntegration(name string, v any) error {
	raw, ok := c.Integrations[name]
	if !ok {
		return fmt.Errorf("brak integracji %q w configu", name)
	}
	return json.Unmarshal(raw, v)
}

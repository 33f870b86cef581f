package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cam-andersen/InventorySystemV3/internal/catalog"
)

// Config is the complete container configuration.
type Config struct {
	Robot   RobotConfig  `yaml:"robot"`
	Timing  TimingConfig `yaml:"timing"`
	Server  ServerConfig `yaml:"server"`
	Audit   AuditConfig  `yaml:"audit"`
	Auth    AuthConfig   `yaml:"auth"`
	Catalog []ItemSpec   `yaml:"catalog"`
}

// RobotConfig addresses the robot controller.
type RobotConfig struct {
	ID          string `yaml:"id"`
	Adapter     string `yaml:"adapter"` // "ur" or "fake"
	Host        string `yaml:"host"`
	ControlPort int    `yaml:"controlPort"`
	ProgramPort int    `yaml:"programPort"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// AuditConfig holds audit trail rotation settings.
type AuditConfig struct {
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// AuthConfig enables bearer-token auth. Empty secret and key disable it.
type AuthConfig struct {
	JWTSecret     string `yaml:"jwtSecret"`
	PublicKeyFile string `yaml:"publicKeyFile"`
}

// Enabled reports whether any verification key is configured.
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != "" || a.PublicKeyFile != ""
}

// ItemSpec describes one catalog entry. Prices are decimal strings.
type ItemSpec struct {
	Name     string `yaml:"name"`
	Price    string `yaml:"price"`
	Location int    `yaml:"location"`
	Kind     string `yaml:"kind"` // "unit" (default) or "bulk"
	Unit     string `yaml:"unit"`
	Weight   string `yaml:"weight"`
}

// Item builds the catalog item for s.
func (s ItemSpec) Item() (*catalog.Item, error) {
	price, err := decimal.NewFromString(s.Price)
	if err != nil {
		return nil, fmt.Errorf("item %q: invalid price %q: %w", s.Name, s.Price, err)
	}

	capability, err := catalog.ParseCapability(s.Kind)
	if err != nil {
		return nil, fmt.Errorf("item %q: %w", s.Name, err)
	}

	var item *catalog.Item
	if capability == catalog.BulkOnly {
		item = catalog.NewBulkItem(s.Name, price, s.Location, s.Unit)
	} else {
		item = catalog.NewUnitItem(s.Name, price, s.Location)
	}

	if s.Weight != "" {
		weight, err := decimal.NewFromString(s.Weight)
		if err != nil {
			return nil, fmt.Errorf("item %q: invalid weight %q: %w", s.Name, s.Weight, err)
		}
		item = item.WithWeight(weight)
	}
	return item, nil
}

// BuildCatalog turns the configured specs into a catalog.
func (c *Config) BuildCatalog() (*catalog.Catalog, error) {
	cat := catalog.New()
	for _, spec := range c.Catalog {
		item, err := spec.Item()
		if err != nil {
			return nil, err
		}
		if err := cat.Add(item); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

// LoadBaseline returns the default configuration.
func LoadBaseline() *Config {
	return &Config{
		Robot: RobotConfig{
			ID:          "ur-01",
			Adapter:     "ur",
			Host:        "localhost",
			ControlPort: 29999,
			ProgramPort: 30002,
		},
		Timing: *LoadTimingBaseline(),
		Server: ServerConfig{
			Addr:         ":8000",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Audit: AuditConfig{
			Dir:        "logs",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Catalog: DefaultCatalog(),
	}
}

// DefaultCatalog is the sample stock of the three-bin station.
func DefaultCatalog() []ItemSpec {
	return []ItemSpec{
		{Name: "M3 screw", Price: "1", Location: 1, Kind: "unit"},
		{Name: "M3 nut", Price: "1.5", Location: 2, Kind: "unit"},
		{Name: "pen", Price: "1", Location: 3, Kind: "unit"},
	}
}

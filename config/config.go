package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config runtime settings of the price dashboard.
type Config struct {
	TickInterval      time.Duration
	HistoryWindowSize int
	PriceVolatility   decimal.Decimal
	InitialPriceMin   decimal.Decimal
	InitialPriceMax   decimal.Decimal
	MinPrice          decimal.Decimal
	Unit              string
	NamePool          []string
	Seeds             []SeedMaterial
	WebAddr           string
	TLSDomains        []string
	CertCacheDir      string
	JournalDir        string
	Console           bool
}

// SeedMaterial material tracked from startup.
type SeedMaterial struct {
	Name  string
	Price decimal.Decimal
}

// ConfigTmp is the on-disk YAML shape. Decimals are kept as strings.
type ConfigTmp struct {
	TickInterval      time.Duration `yaml:"tick_interval,omitempty"`
	HistoryWindowSize int           `yaml:"history_window_size,omitempty"`
	PriceVolatility   string        `yaml:"price_volatility,omitempty"`
	InitialPriceMin   string        `yaml:"initial_price_min,omitempty"`
	InitialPriceMax   string        `yaml:"initial_price_max,omitempty"`
	MinPrice          string        `yaml:"min_price,omitempty"`
	Unit              string        `yaml:"unit,omitempty"`
	NamePool          []string      `yaml:"name_pool,omitempty"`
	Seeds             []SeedTmp     `yaml:"seeds,omitempty"`
	WebAddr           *string       `yaml:"web_addr,omitempty"`
	TLSDomains        []string      `yaml:"tls_domains,omitempty"`
	CertCacheDir      string        `yaml:"cert_cache_dir,omitempty"`
	JournalDir        string        `yaml:"journal_dir,omitempty"`
	Console           bool          `yaml:"console,omitempty"`
}

// SeedTmp is the YAML shape of a seed material.
type SeedTmp struct {
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
}

// DefaultNamePool names available to "add material".
var DefaultNamePool = []string{
	"Zinc Slab", "Nylon Resin", "Titanium Sheet", "Brass Rod",
	"Nickel Alloy", "Polymer Pellets", "Carbon Fiber", "Magnesium Ingot",
	"Stainless Plate", "Silicon Wafer", "Graphite Block", "Tungsten Wire",
}

// Default returns the reference configuration.
func Default() Config {
	return Config{
		TickInterval:      2 * time.Second,
		HistoryWindowSize: 5,
		PriceVolatility:   decimal.RequireFromString("0.025"),
		InitialPriceMin:   decimal.NewFromInt(2000),
		InitialPriceMax:   decimal.NewFromInt(10000),
		MinPrice:          decimal.RequireFromString("0.01"),
		Unit:              "ton",
		NamePool:          append([]string(nil), DefaultNamePool...),
		Seeds: []SeedMaterial{
			{Name: "Steel Coil", Price: decimal.NewFromInt(5200)},
			{Name: "Aluminum Ingot", Price: decimal.NewFromInt(2850)},
			{Name: "Copper Wire", Price: decimal.NewFromInt(9100)},
		},
		WebAddr:      ":8000",
		CertCacheDir: "cert-cache",
		JournalDir:   "./wal/prices",
	}
}

// Get reads configuration from the yaml file passed via --config,
// falling back to defaults adjusted by command-line flags.
func Get() (Config, error) {
	return Parse(os.Args[1:])
}

// Parse is Get over an explicit argument list.
func Parse(args []string) (Config, error) {
	fs := flag.NewFlagSet("materialwatch", flag.ContinueOnError)
	path := fs.String("config", "", "path to yaml config")
	tick := fs.Duration("tick", 0, "price update interval, example: 2s")
	addr := fs.String("addr", "", "http listen address, example: :8000")
	journal := fs.String("journal", "", "directory for the session price journal")
	console := fs.Bool("console", false, "render the dashboard in the terminal")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	conf := Default()
	if *path != "" {
		var err error
		conf, err = getYaml(*path)
		if err != nil {
			return Config{}, err
		}
	}

	if *tick != 0 {
		conf.TickInterval = *tick
	}
	if *addr != "" {
		conf.WebAddr = *addr
	}
	if *journal != "" {
		conf.JournalDir = *journal
	}
	if *console {
		conf.Console = true
	}

	if err := conf.Validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var c ConfigTmp
	if err := yaml.Unmarshal(f, &c); err != nil {
		return Config{}, err
	}

	return c.toConfig()
}

func (c ConfigTmp) toConfig() (Config, error) {
	conf := Default()

	if c.TickInterval != 0 {
		conf.TickInterval = c.TickInterval
	}
	if c.HistoryWindowSize != 0 {
		conf.HistoryWindowSize = c.HistoryWindowSize
	}

	decimals := []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"price_volatility", c.PriceVolatility, &conf.PriceVolatility},
		{"initial_price_min", c.InitialPriceMin, &conf.InitialPriceMin},
		{"initial_price_max", c.InitialPriceMax, &conf.InitialPriceMax},
		{"min_price", c.MinPrice, &conf.MinPrice},
	}
	for _, d := range decimals {
		if d.value == "" {
			continue
		}
		v, err := decimal.NewFromString(d.value)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect '%s' param in yaml config (must be a decimal), error: %w", d.name, err)
		}
		*d.dst = v
	}

	if c.Unit != "" {
		conf.Unit = c.Unit
	}
	if len(c.NamePool) > 0 {
		conf.NamePool = c.NamePool
	}
	if len(c.Seeds) > 0 {
		conf.Seeds = make([]SeedMaterial, 0, len(c.Seeds))
		for _, s := range c.Seeds {
			price, err := decimal.NewFromString(s.Price)
			if err != nil {
				return Config{}, fmt.Errorf("incorrect price for seed %q in yaml config, error: %w", s.Name, err)
			}
			conf.Seeds = append(conf.Seeds, SeedMaterial{Name: strings.TrimSpace(s.Name), Price: price})
		}
	}
	if c.WebAddr != nil {
		conf.WebAddr = *c.WebAddr
	}
	if len(c.TLSDomains) > 0 {
		conf.TLSDomains = c.TLSDomains
	}
	if c.CertCacheDir != "" {
		conf.CertCacheDir = c.CertCacheDir
	}
	if c.JournalDir != "" {
		conf.JournalDir = c.JournalDir
	}
	conf.Console = c.Console

	return conf, nil
}

// Validate checks option ranges and name uniqueness.
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	if c.HistoryWindowSize < 2 {
		return fmt.Errorf("history window size must be at least 2, got %d", c.HistoryWindowSize)
	}
	if c.PriceVolatility.IsNegative() || c.PriceVolatility.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("price volatility must be in [0, 1), got %s", c.PriceVolatility)
	}
	if c.MinPrice.IsNegative() {
		return fmt.Errorf("min price must not be negative, got %s", c.MinPrice)
	}
	if c.InitialPriceMin.LessThan(c.MinPrice) || c.InitialPriceMax.LessThan(c.InitialPriceMin) {
		return fmt.Errorf("invalid initial price range [%s, %s]", c.InitialPriceMin, c.InitialPriceMax)
	}
	if c.Unit == "" {
		return fmt.Errorf("unit must not be empty")
	}
	if len(c.Seeds) == 0 {
		return fmt.Errorf("at least one seed material is required")
	}

	names := make(map[string]struct{}, len(c.NamePool)+len(c.Seeds))
	for _, s := range c.Seeds {
		if s.Name == "" {
			return fmt.Errorf("seed material name must not be empty")
		}
		if !s.Price.IsPositive() {
			return fmt.Errorf("seed material %q must have a positive price", s.Name)
		}
		if _, dup := names[s.Name]; dup {
			return fmt.Errorf("duplicate seed material %q", s.Name)
		}
		names[s.Name] = struct{}{}
	}

	pool := make(map[string]struct{}, len(c.NamePool))
	for _, n := range c.NamePool {
		if n == "" {
			return fmt.Errorf("name pool must not contain empty names")
		}
		if _, dup := pool[n]; dup {
			return fmt.Errorf("duplicate name %q in name pool", n)
		}
		pool[n] = struct{}{}
	}

	return nil
}

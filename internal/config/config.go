package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Sources    Sources    `yaml:"sources"`
	Categories []Category `yaml:"categories"`
	Tracker    Tracker    `yaml:"tracker"`
	Output     Output     `yaml:"output"`
	Server     Server     `yaml:"server"`
	Logging    Logging    `yaml:"logging"`
}

type Sources struct {
	Feeds []Feed     `yaml:"feeds"`
	APIs  APIsConfig `yaml:"apis"`
}

type Feed struct {
	URL      string `yaml:"url"`
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
}

type APIsConfig struct {
	NewsAPI NewsAPIConfig `yaml:"newsapi"`
}

// NewsAPIConfig configures the top-headlines collector. When Categories is
// empty, every configured category is requested.
type NewsAPIConfig struct {
	Enabled    bool     `yaml:"enabled"`
	APIKeyEnv  string   `yaml:"api_key_env"`
	BaseURL    string   `yaml:"base_url"`
	Country    string   `yaml:"country"`
	PageSize   int      `yaml:"page_size"`
	Categories []string `yaml:"categories"`
}

// Category is one entry of the category browser.
type Category struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Icon string `yaml:"icon"`
}

type Tracker struct {
	// Timezone is an IANA zone name or "Local". Reading days are bucketed
	// in this zone.
	Timezone string `yaml:"timezone"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for newsreader.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "newsreader")
}

// DataDir returns the XDG data directory for newsreader.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "newsreader")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/newsreader/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'newsreader init' to create a default config",
		xdgConfig,
	)
}

// LoadDotEnv loads .env files from the config directory and the working
// directory. Variables already set in the environment win; missing files
// are ignored.
func LoadDotEnv() error {
	for _, path := range []string{".env", filepath.Join(ConfigDir(), ".env")} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Sources: Sources{
			APIs: APIsConfig{
				NewsAPI: NewsAPIConfig{
					Enabled:   true,
					APIKeyEnv: "NEWSAPI_KEY",
					BaseURL:   "https://newsapi.org/v2",
					Country:   "us",
					PageSize:  30,
				},
			},
		},
		Tracker: Tracker{Timezone: "Local"},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	for i, c := range cfg.Categories {
		if c.ID == "" {
			return nil, fmt.Errorf("category %d has no id", i+1)
		}
		if c.Name == "" {
			cfg.Categories[i].Name = strings.ToUpper(c.ID[:1]) + c.ID[1:]
		}
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// Location returns the time zone reading days are bucketed in.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Tracker.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid tracker timezone %q: %w", tz, err)
	}
	return loc, nil
}

// Debug reports whether the configured log level is DEBUG.
func (c *Config) Debug() bool {
	return strings.EqualFold(c.Logging.Level, "debug")
}

// CategoryIDs returns the configured category ids in order.
func (c *Config) CategoryIDs() []string {
	ids := make([]string, len(c.Categories))
	for i, cat := range c.Categories {
		ids[i] = cat.ID
	}
	return ids
}

// FindCategory returns the category with the given id, or nil.
func (c *Config) FindCategory(id string) *Category {
	for i := range c.Categories {
		if strings.EqualFold(c.Categories[i].ID, id) {
			return &c.Categories[i]
		}
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

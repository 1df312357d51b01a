package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"ctfboard/internal/board"
)

// Config controls runtime behavior for the board client. Every `env` key is
// read with the CTFBOARD_ prefix.
type Config struct {
	URL              string      `yaml:"url" env:"URL"`
	Token            string      `yaml:"token" env:"TOKEN"`
	SessionCookie    string      `yaml:"session_cookie" env:"SESSION"`
	DataDir          string      `yaml:"data_dir" env:"DATA_DIR"`
	LogPath          string      `yaml:"log_path" env:"LOG"`
	ASCIIOnly        bool        `yaml:"ascii_only" env:"ASCII"`
	RequestTimeoutMS int         `yaml:"request_timeout_ms" env:"TIMEOUT_MS"`
	Board            BoardConfig `yaml:"board"`
	UI               UIConfig    `yaml:"ui"`
	Demo             DemoConfig  `yaml:"demo" envPrefix:"DEMO_"`
}

type BoardConfig struct {
	Sort       string   `yaml:"sort" env:"SORT"`
	Categories []string `yaml:"categories" env:"CATEGORIES" envSeparator:","`
	Completion []string `yaml:"completion" env:"COMPLETION" envSeparator:","`
	// CompletionSet marks Completion as chosen on the command line. An
	// explicit empty choice is rejected rather than deferring to saved settings.
	CompletionSet bool `yaml:"-"`
}

type UIConfig struct {
	StyleVariant string `yaml:"style_variant" env:"STYLE"`
	MotionLevel  string `yaml:"motion_level" env:"MOTION"`
	MouseScope   string `yaml:"mouse_scope" env:"MOUSE"`
}

// DemoConfig switches the client to the in-process demo backend.
type DemoConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ENABLED"`
	Fixture  string        `yaml:"fixture" env:"FIXTURE"`
	Scenario string        `yaml:"scenario" env:"SCENARIO"`
	Latency  time.Duration `yaml:"latency" env:"LATENCY"`
	Token    string        `yaml:"token" env:"TOKEN"`
}

const envPrefix = "CTFBOARD_"

func DefaultConfig() Config {
	return Config{
		RequestTimeoutMS: 10000,
		UI: UIConfig{
			StyleVariant: "modern_arcade",
			MotionLevel:  "full",
			MouseScope:   "scoped",
		},
		Demo: DemoConfig{
			Scenario: "board",
			Token:    "demo-token",
		},
	}
}

// LoadConfigFile overlays the YAML file at path onto c. A missing file is not
// an error when path is empty.
func (c *Config) LoadConfigFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays CTFBOARD_* variables onto c. A nil environ reads the
// process environment.
func (c *Config) ApplyEnv(environ map[string]string) error {
	opts := env.Options{Prefix: envPrefix, Environment: environ}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	c.Board.Categories = splitList(strings.Join(c.Board.Categories, ","))
	c.Board.Completion = splitList(strings.Join(c.Board.Completion, ","))
	return nil
}

func (c *Config) Validate() error {
	// An empty sort leaves the choice to the last session's setting.
	if c.Board.Sort != "" {
		strategy, err := board.ParseSortStrategy(c.Board.Sort)
		if err != nil {
			return fmt.Errorf("invalid board sort: %w", err)
		}
		c.Board.Sort = string(strategy)
	}

	if c.Board.CompletionSet && len(c.Board.Completion) == 0 {
		return errors.New("completion filter hides every challenge: enable completed or not_completed")
	}
	for _, raw := range c.Board.Completion {
		if _, ok := board.ParseCompletion(raw); !ok {
			return fmt.Errorf("invalid completion filter %q", raw)
		}
	}

	if !c.Demo.Enabled {
		if strings.TrimSpace(c.URL) == "" {
			return errors.New("backend url is required (use --url or CTFBOARD_URL)")
		}
		u, err := url.Parse(c.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid backend url %q", c.URL)
		}
	}

	if c.RequestTimeoutMS <= 0 {
		c.RequestTimeoutMS = 10000
	}
	if c.Demo.Latency < 0 {
		return fmt.Errorf("invalid demo latency %s", c.Demo.Latency)
	}
	switch c.UI.StyleVariant {
	case "", "modern_arcade", "cozy_clean", "retro_terminal":
	default:
		return fmt.Errorf("invalid ui style variant %q", c.UI.StyleVariant)
	}
	if c.UI.StyleVariant == "" {
		c.UI.StyleVariant = "modern_arcade"
	}
	switch c.UI.MotionLevel {
	case "", "off", "reduced", "full":
	default:
		return fmt.Errorf("invalid ui motion level %q", c.UI.MotionLevel)
	}
	if c.UI.MotionLevel == "" {
		c.UI.MotionLevel = "full"
	}
	switch c.UI.MouseScope {
	case "", "off", "scoped", "full":
	default:
		return fmt.Errorf("invalid ui mouse scope %q", c.UI.MouseScope)
	}
	if c.UI.MouseScope == "" {
		c.UI.MouseScope = "scoped"
	}

	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.New("cannot resolve user home directory")
		}
		c.DataDir = filepath.Join(home, ".local", "share", "ctfboard")
	}
	return nil
}

func (c Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutMS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

func (c Config) SortStrategy() board.SortStrategy {
	s, err := board.ParseSortStrategy(c.Board.Sort)
	if err != nil {
		return board.SortSource
	}
	return s
}

func (c Config) CompletionFilter() []board.Completion {
	out := make([]board.Completion, 0, len(c.Board.Completion))
	for _, raw := range c.Board.Completion {
		if v, ok := board.ParseCompletion(raw); ok {
			out = append(out, v)
		}
	}
	return out
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

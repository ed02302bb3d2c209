package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config models taskmistress.yml.
type Config struct {
	Bot struct {
		InfoChannel string `yaml:"info_channel"`
	} `yaml:"bot"`
	Storage struct {
		Backend string `yaml:"backend" validate:"oneof=json sqlite"`
		Dir     string `yaml:"dir" validate:"required"`
	} `yaml:"storage"`
	Interfaces struct {
		PageSize int     `yaml:"page_size" validate:"gte=1,lte=20"`
		Buttons  Buttons `yaml:"buttons"`
	} `yaml:"interfaces"`
	Game struct {
		StartingCredits       int           `yaml:"starting_credits" validate:"gte=0"`
		BegCooldown           time.Duration `yaml:"beg_cooldown" validate:"gte=0"`
		VerificationsRequired int           `yaml:"verifications_required" validate:"gte=1"`
		CompletionCredits     int           `yaml:"completion_credits" validate:"gte=0"`
	} `yaml:"game"`
	Log struct {
		Level  string `yaml:"level" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" validate:"oneof=json text"`
	} `yaml:"log"`
}

// Buttons are the reaction emoji each Interface offers.
type Buttons struct {
	Previous    string `yaml:"previous" validate:"required"`
	Next        string `yaml:"next" validate:"required"`
	Refresh     string `yaml:"refresh" validate:"required"`
	Available   string `yaml:"available" validate:"required"`
	Unavailable string `yaml:"unavailable" validate:"required"`
	UnsetLimits string `yaml:"unset_limits" validate:"required"`
	OpenLimits  string `yaml:"open_limits" validate:"required"`
	Beg         string `yaml:"beg" validate:"required"`
	Approve     string `yaml:"approve" validate:"required"`
	Reject      string `yaml:"reject" validate:"required"`
}

// All lists every configured button emoji.
func (b Buttons) All() []string {
	return []string{b.Previous, b.Next, b.Refresh, b.Available, b.Unavailable, b.UnsetLimits, b.OpenLimits, b.Beg, b.Approve, b.Reject}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("config.%s fails %s", trimRoot(fe.Namespace()), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	// Navigation and action emoji must be distinguishable on one message.
	b := c.Interfaces.Buttons
	groups := [][]string{
		{b.Previous, b.Next, b.Refresh},
		{b.Available, b.Unavailable, b.UnsetLimits, b.OpenLimits, b.Beg},
		{b.Approve, b.Reject},
	}
	for _, g := range groups {
		seen := map[string]bool{}
		for _, e := range g {
			if seen[e] {
				return fmt.Errorf("config.interfaces.buttons reuses %s", e)
			}
			seen[e] = true
		}
	}
	return nil
}

func trimRoot(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// DataDir resolves storage.dir against the workspace.
func (c *Config) DataDir(workspace string) string {
	if filepath.IsAbs(c.Storage.Dir) {
		return c.Storage.Dir
	}
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, c.Storage.Dir)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "taskmistress.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with tm init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses config over the defaults and validates it.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `bot:
  # channel that receives verification requests
  info_channel: ""

storage:
  backend: json
  dir: data

interfaces:
  page_size: 5
  buttons:
    previous: "◀️"
    next: "▶️"
    refresh: "🔄"
    available: "✅"
    unavailable: "❌"
    unset_limits: "🔓"
    open_limits: "🚫"
    beg: "🙏"
    approve: "👍"
    reject: "👎"

game:
  starting_credits: 1
  beg_cooldown: 1h
  verifications_required: 1
  completion_credits: 1

log:
  level: info
  format: text
`

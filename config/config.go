package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Resources struct {
	// Dir is a local resource tree laid out as <stack>/<TYPE>/<id>.<ext>.
	Dir string `yaml:"dir" env:"DIR"`
	// Archive is a SQLite archive produced by tools/packer.
	Archive string `yaml:"archive" env:"ARCHIVE"`
	// Remote is the base url of a resource server, e.g. http://host:8000/resources
	Remote      string        `yaml:"remote" env:"REMOTE"`
	Validate    bool          `yaml:"validate" env:"VALIDATE"`
	MaxInflight int           `yaml:"max_inflight" env:"MAX_INFLIGHT"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

type Cache struct {
	Capacity int `yaml:"capacity" env:"CAPACITY"`
	Priority int `yaml:"priority" env:"PRIORITY"`
}

type Player struct {
	StartStack string `yaml:"start_stack" env:"START_STACK"`
	StartCard  int    `yaml:"start_card" env:"START_CARD"`
	Audio      bool   `yaml:"audio" env:"AUDIO"`
	Width      int    `yaml:"width" env:"WIDTH"`
	Height     int    `yaml:"height" env:"HEIGHT"`
}

type Config struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	WebDir   string `yaml:"web_dir" env:"WEB_DIR"`
	Debug    bool   `yaml:"debug" env:"DEBUG"`
	Encoding string `yaml:"encoding" env:"ENCODING"`

	Resources Resources `yaml:"resources" envPrefix:"RESOURCES_"`
	Cache     Cache     `yaml:"cache" envPrefix:"CACHE_"`
	Player    Player    `yaml:"player" envPrefix:"PLAYER_"`
}

func Default() Config {
	return Config{
		Addr:     ":8000",
		Encoding: "windows-1252",
		Resources: Resources{
			MaxInflight: 8,
			Timeout:     30 * time.Second,
		},
		Cache: Cache{
			Capacity: CacheCapacity,
			Priority: DefaultPriority,
		},
		Player: Player{
			StartStack: "aspit",
			StartCard:  1,
			Width:      ScreenWidth,
			Height:     ScreenHeight,
		},
	}
}

// Load reads the yaml file at path (if path is not empty) over the defaults,
// then applies MOIETY_* environment variables.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return c, errors.Wrapf(err, "Failed to read config %q", path)
		}
		if err := yaml.Unmarshal(raw, &c); err != nil {
			return c, errors.Wrapf(err, "Failed to parse config %q", path)
		}
	}
	if err := env.ParseWithOptions(&c, env.Options{Prefix: "MOIETY_"}); err != nil {
		return c, errors.Wrap(err, "Failed to parse environment")
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	if c.Cache.Capacity <= 0 {
		return errors.Errorf("cache capacity must be positive, got %d", c.Cache.Capacity)
	}
	if c.Cache.Priority <= 0 {
		return errors.Errorf("cache priority must be positive, got %d", c.Cache.Priority)
	}
	if c.Player.Width <= 0 || c.Player.Height <= 0 {
		return errors.Errorf("invalid screen size %dx%d", c.Player.Width, c.Player.Height)
	}
	if c.Player.StartStack != "" && !IsStackName(c.Player.StartStack) {
		return errors.Errorf("unknown start stack %q", c.Player.StartStack)
	}
	return nil
}

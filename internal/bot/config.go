package bot

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the bot's view of the shared config.toml.
type Config struct {
	Auth struct {
		RedisURL         string `toml:"redis_url"`
		TokenKeyTemplate string `toml:"token_key_template"`
	} `toml:"auth"`
	Bot struct {
		Token    string  `toml:"token"`
		AdminIDs []int64 `toml:"admin_ids"`
	} `toml:"bot"`
}

func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("Failed to load config: %v", err)
	}
	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is not specified in config")
	}
	return &cfg, nil
}

package app

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/overdue/internal/calendar"
	"github.com/shrimpsizemoose/overdue/internal/models"
)

type HeaderConfig struct {
	Name  string `toml:"name"`
	Value string `toml:"value"`
}

// PolicyDefaults are the site wide values a new assessment policy starts from.
type PolicyDefaults struct {
	DailyPercentage     int  `toml:"daily_percentage"`
	MaxPercentage       int  `toml:"max_percentage"`
	PenaltyEnabled      bool `toml:"applied_penalty"`
	PreventResubmission bool `toml:"prevent_resubmission"`
}

// GSheetConfig is one [gsheet.<assessment>] export target.
type GSheetConfig struct {
	SheetID         string `toml:"sheet_id"`
	SheetName       string `toml:"sheet_name"`
	CredentialsPath string `toml:"credentials_path"`
	Schedule        string `toml:"schedule"`
	ReportRange     string `toml:"report_range"`
	TimestampRange  string `toml:"timestamp_range"`
}

type Config struct {
	Server struct {
		Port       string `toml:"port"`
		EnableAuth bool   `toml:"enable_auth"`
	} `toml:"server"`

	Auth struct {
		RedisURL         string `toml:"redis_url"`
		TokenHeader      string `toml:"token_header"`
		TokenKeyTemplate string `toml:"token_key_template"`
	} `toml:"auth"`

	API struct {
		UserIDHeader    string         `toml:"user_id_header"`
		RequiredHeaders []HeaderConfig `toml:"required_headers"`
	} `toml:"api"`

	Database struct {
		DSN           string `toml:"dsn"`
		MigrationsDir string `toml:"migrations_dir"`
	} `toml:"database"`

	Calendar struct {
		Timezone string   `toml:"timezone"`
		Holidays []string `toml:"holidays"`
	} `toml:"calendar"`

	Defaults PolicyDefaults `toml:"defaults"`

	Display struct {
		TimestampFormat string `toml:"timestamp_format"`
	} `toml:"display"`

	GSheet        map[string]GSheetConfig `toml:"gsheet"`
	EmojiVariants []string                `toml:"emoji_variants"`

	// built from the [calendar] section by LoadConfig
	calendar *calendar.Calendar
}

func defaultConfig() Config {
	var config Config
	config.Auth.TokenHeader = "Authorization"
	config.Auth.TokenKeyTemplate = "auth:{user}"
	config.API.UserIDHeader = "X-User-ID"
	config.Database.MigrationsDir = "./migrations"
	config.Calendar.Timezone = "UTC"
	config.Defaults = PolicyDefaults{
		DailyPercentage:     5,
		MaxPercentage:       50,
		PenaltyEnabled:      true,
		PreventResubmission: true,
	}
	config.Display.TimestampFormat = "02/01/2006 15:04"
	config.EmojiVariants = []string{"🥐"}
	return config
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf(
			"error reading config file %s\n> Error: %w\n> Content:\n%s",
			path,
			err,
			string(data),
		)
	}

	logger.Debug.Printf("Loaded policy defaults: %+v", config.Defaults)
	logger.Debug.Printf("Loaded calendar: tz=%s, %d holidays", config.Calendar.Timezone, len(config.calendar.Holidays()))

	return config, nil
}

// ParseConfig decodes a TOML document on top of the built in defaults. A
// holiday that is not a d/m/Y date rejects the whole config.
func ParseConfig(data []byte) (*Config, error) {
	config := defaultConfig()
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	if config.Server.Port == "" {
		return nil, fmt.Errorf("Server port is not specified in config, use a value like :9999")
	}
	if config.Defaults.DailyPercentage < 0 || config.Defaults.DailyPercentage > 100 {
		return nil, fmt.Errorf("default daily percentage must be within [0, 100], got %d", config.Defaults.DailyPercentage)
	}

	cal, err := calendar.Load(config.Calendar.Timezone, config.Calendar.Holidays)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar section: %w", err)
	}
	config.calendar = cal

	return &config, nil
}

func (c *Config) WorkCalendar() *calendar.Calendar {
	if c.calendar == nil {
		c.calendar = calendar.New(nil, nil)
	}
	return c.calendar
}

// NewPolicy returns a policy for assessmentID prefilled with the site defaults.
func (c *Config) NewPolicy(assessmentID string) *models.AssessmentPolicy {
	return &models.AssessmentPolicy{
		AssessmentID:        assessmentID,
		PenaltyEnabled:      c.Defaults.PenaltyEnabled,
		DailyPercentage:     c.Defaults.DailyPercentage,
		MaxPercentage:       c.Defaults.MaxPercentage,
		PreventResubmission: c.Defaults.PreventResubmission,
	}
}

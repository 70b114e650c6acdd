package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/overdue/internal/calendar"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
[server]
port = ":9999"
enable_auth = true

[auth]
redis_url = "redis://localhost:6379/0"

[calendar]
timezone = "Europe/Moscow"
holidays = ["05/12/2022", " 07/12/2022 ", ""]

[defaults]
daily_percentage = 10

[[api.required_headers]]
name = "X-Source"
value = "lms"
`))
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Port)
	assert.True(t, cfg.Server.EnableAuth)
	assert.Equal(t, "auth:{user}", cfg.Auth.TokenKeyTemplate)
	assert.Equal(t, "Authorization", cfg.Auth.TokenHeader)
	assert.Equal(t, "X-User-ID", cfg.API.UserIDHeader)
	require.Len(t, cfg.API.RequiredHeaders, 1)
	assert.Equal(t, "lms", cfg.API.RequiredHeaders[0].Value)

	assert.Equal(t, 10, cfg.Defaults.DailyPercentage)
	assert.Equal(t, 50, cfg.Defaults.MaxPercentage, "unset defaults keep built in values")
	assert.True(t, cfg.Defaults.PenaltyEnabled)
	assert.True(t, cfg.Defaults.PreventResubmission)

	cal := cfg.WorkCalendar()
	assert.Equal(t, "Europe/Moscow", cal.Location().String())
	assert.Equal(t, []calendar.Date{{Year: 2022, Month: time.December, Day: 5}, {Year: 2022, Month: time.December, Day: 7}}, cal.Holidays().Sorted())
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"missing port", `[database]
dsn = "x.db"`},
		{"bad holiday", `[server]
port = ":1"
[calendar]
holidays = ["05/12/2022", "31/02/2022"]`},
		{"bad timezone", `[server]
port = ":1"
[calendar]
timezone = "Mars/Olympus"`},
		{"bad default", `[server]
port = ":1"
[defaults]
daily_percentage = 120`},
		{"broken toml", `[server`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.toml))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = \":8080\"\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, time.UTC, cfg.WorkCalendar().Location())

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestNewPolicyUsesDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("[server]\nport = \":1\"\n[defaults]\nmax_percentage = 30\nprevent_resubmission = false\n"))
	require.NoError(t, err)

	p := cfg.NewPolicy("quiz1")
	assert.Equal(t, "quiz1", p.AssessmentID)
	assert.Equal(t, 5, p.DailyPercentage)
	assert.Equal(t, 30, p.MaxPercentage)
	assert.True(t, p.PenaltyEnabled)
	assert.False(t, p.PreventResubmission)
	assert.False(t, p.Active())
}

func TestDetectDBType(t *testing.T) {
	dbType, err := DetectDBType("postgres://u:p@localhost/db")
	require.NoError(t, err)
	assert.EqualValues(t, "postgres", dbType)

	dbType, err = DetectDBType("./overdue.db")
	require.NoError(t, err)
	assert.EqualValues(t, "sqlite", dbType)

	_, err = DetectDBType("")
	assert.Error(t, err)
}

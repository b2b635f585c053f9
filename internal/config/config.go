package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/i474232898/climatempo-relay/internal/weather"
)

var (
	validate = validator.New()

	// cronParser accepts five-field expressions, an optional leading seconds field and descriptors.
	cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

type AppConfig struct {
	LogDir    string `validate:"required"`
	ReportDir string `validate:"required"`

	APIBaseURL string `validate:"required,url"`
	APIToken   string `validate:"required"`

	// Subjects are fetched in order on every tick.
	Subjects []weather.Subject `validate:"required,min=1,dive"`

	CronExpr string         `validate:"required"`
	Location *time.Location

	RelayHost      string `validate:"required"`
	SenderID       string `validate:"required"`
	ConnectTimeout time.Duration

	HTTPTimeout    time.Duration
	LogBufferLimit int // max buffered log lines (0 = unlimited)

	// StatusPort enables the status HTTP server when set.
	StatusPort string
}

// Load reads configuration from the environment (and .env when present)
// and validates it.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from a lookup function.
func FromEnv(getenv func(string) string) (*AppConfig, error) {
	env := lookup(getenv)
	cfg := &AppConfig{
		LogDir:     env.def("PATH_ARQUIVO_LOGS", "./logs"),
		ReportDir:  env.def("PATH_ARQUIVO_RELATORIO", "./resultado"),
		APIBaseURL: env.def("URL_API_CLIMATEMPO", "http://apiadvisor.climatempo.com.br"),
		APIToken:   getenv("TOKEN_API_CLIMATEMPO"),
		CronExpr:   env.def("CRON_JOB", "* * * * *"),
		RelayHost:  getenv("HOST_SERVER_WEBSOCKET"),
		SenderID:   getenv("SENDER_ID"),
		StatusPort: getenv("STATUS_PORT"),
	}

	// Country runs before region, as the original job does.
	if country := getenv("PAIS"); country != "" {
		cfg.Subjects = append(cfg.Subjects, weather.Subject{Kind: weather.SubjectCountry, Code: country})
	}
	if region := getenv("REGIAO"); region != "" {
		cfg.Subjects = append(cfg.Subjects, weather.Subject{Kind: weather.SubjectRegion, Code: region})
	}

	if _, err := cronParser.Parse(cfg.CronExpr); err != nil {
		return nil, fmt.Errorf("invalid CRON_JOB %q: %w", cfg.CronExpr, err)
	}

	tz := env.def("CRON_TIMEZONE", "America/Sao_Paulo")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid CRON_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if cfg.ConnectTimeout, err = env.duration("RELAY_CONNECT_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = env.duration("HTTP_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.LogBufferLimit, err = env.integer("LOG_BUFFER_LIMIT", 0); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

type lookup func(string) string

func (l lookup) def(key, def string) string {
	if v := l(key); v != "" {
		return v
	}
	return def
}

func (l lookup) duration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(l.def(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func (l lookup) integer(key string, def int) (int, error) {
	v := l(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

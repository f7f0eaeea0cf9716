package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Admin    Admin    `yaml:"admin"`
	Redis    Redis    `yaml:"redis"`
	Login    Login    `yaml:"login"`
	Log      Log      `yaml:"log"`
}

type Server struct {
	Port             string `yaml:"port"`
	SecretKey        string `yaml:"secret_key"`
	ShowErrorDetails bool   `yaml:"show_error_details"`
}

type Database struct {
	Type            string `yaml:"type"` // sqlite | postgres | mysql
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

type Admin struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Login struct {
	MaxFailures int    `yaml:"max_failures"`
	Window      string `yaml:"window"`
}

type Log struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Server: Server{
			Port:      "5000",
			SecretKey: "dev-secret-key-change-me",
		},
		Database: Database{
			Type: "sqlite",
			URL:  "quizmaster.db",
		},
		Admin: Admin{
			Email:    "admin@example.com",
			Password: "admin123",
		},
		Login: Login{
			MaxFailures: 5,
			Window:      "15m",
		},
		Log: Log{Level: "info"},
	}
}

// Load reads .env, then the YAML file at path, then applies environment
// overrides. A missing .env or YAML file is not an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, err
			}
		case !errors.Is(err, fs.ErrNotExist):
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.SecretKey = getEnv("SECRET_KEY", cfg.Server.SecretKey)
	cfg.Server.ShowErrorDetails = getEnvBool("SHOW_ERROR_DETAILS", cfg.Server.ShowErrorDetails)

	cfg.Database.Type = strings.ToLower(getEnv("DATABASE_TYPE", cfg.Database.Type))
	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)

	cfg.Admin.Email = getEnv("ADMIN_EMAIL", cfg.Admin.Email)
	cfg.Admin.Password = getEnv("ADMIN_PASSWORD", cfg.Admin.Password)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("REDIS_DB", cfg.Redis.DB)

	cfg.Login.MaxFailures = getEnvInt("LOGIN_MAX_FAILURES", cfg.Login.MaxFailures)
	cfg.Login.Window = getEnv("LOGIN_WINDOW", cfg.Login.Window)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

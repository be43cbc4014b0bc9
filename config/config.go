// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	configFile = pflag.String("config", "", "Path to a config file, defaults to ./config.toml")

	validLogLevels      = []string{"debug", "info", "warn", "error", "fatal"}
	validDrivers        = []string{"sqlite", "postgres"}
	validAdmissionStore = []string{"memory", "redis"}
)

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() error {
	if !pflag.Parsed() {
		pflag.Parse()
	}
	v.BindPFlags(pflag.CommandLine)

	if *configFile != "" {
		v.SetConfigFile(*configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	BindEnvs()
	SetDefaults()

	if err := v.ReadInConfig(); err != nil {
		var notFound v.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file, %w", err)
		}

		// Env and defaults are enough to run
		zap.L().Debug("No config.toml found, using environment and defaults")
	}

	return Validate()
}

// BindEnvs maps every key to its environment variable, e.g. admission.limit
// is read from ADMISSION_LIMIT.
func BindEnvs() {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	//
	// ENVS
	//
	v.BindEnv("app.log_level", "APP_LOG_LEVEL")

	v.BindEnv("host.port", "HOST_PORT")
	v.BindEnv("host.public_url", "HOST_PUBLIC_URL")
	v.BindEnv("host.cors", "HOST_CORS")
	v.BindEnv("host.trusted_platform", "HOST_TRUSTED_PLATFORM")
	v.BindEnv("host.trusted_proxies", "HOST_TRUSTED_PROXIES")

	v.BindEnv("db.driver", "DB_DRIVER")
	v.BindEnv("db.dsn", "DB_DSN")

	v.BindEnv("admission.store", "ADMISSION_STORE")
	v.BindEnv("admission.limit", "ADMISSION_LIMIT")
	v.BindEnv("admission.window", "ADMISSION_WINDOW")
	v.BindEnv("admission.sweep_interval", "ADMISSION_SWEEP_INTERVAL")

	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	v.BindEnv("security.rate_limit", "SECURITY_RATE_LIMIT")

	v.BindEnv("cloudflare.turnstile.enabled", "CLOUDFLARE_TURNSTILE_ENABLED")
	v.BindEnv("cloudflare.turnstile.secret_token", "CLOUDFLARE_TURNSTILE_SECRET_TOKEN")
	v.BindEnv("cloudflare.turnstile.verify_url", "CLOUDFLARE_TURNSTILE_VERIFY_URL")

	v.BindEnv("geo.enabled", "GEO_ENABLED")
	v.BindEnv("geo.endpoint", "GEO_ENDPOINT")
	v.BindEnv("geo.timeout", "GEO_TIMEOUT")
	v.BindEnv("geo.cache_ttl", "GEO_CACHE_TTL")
	v.BindEnv("geo.cache_size", "GEO_CACHE_SIZE")

	v.BindEnv("privacy.hash_ips", "PRIVACY_HASH_IPS")
	v.BindEnv("privacy.salt", "PRIVACY_SALT")

	v.BindEnv("tracking.unique_window", "TRACKING_UNIQUE_WINDOW")
	v.BindEnv("tracking.setup_window", "TRACKING_SETUP_WINDOW")
	v.BindEnv("tracking.timeout", "TRACKING_TIMEOUT")

	v.BindEnv("stats.cache_seconds", "STATS_CACHE_SECONDS")
}

// SetDefaults fills in every key that has a sensible default.
func SetDefaults() {
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.cors", "http://localhost:5173")
	// Only set behind a platform that overwrites the header, e.g.
	// X-Nf-Client-Connection-Ip on Netlify. Clients can forge it otherwise.
	v.SetDefault("host.trusted_platform", "")

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "beacons.db")

	v.SetDefault("admission.store", "memory")
	v.SetDefault("admission.limit", 10)
	v.SetDefault("admission.window", time.Minute)
	v.SetDefault("admission.sweep_interval", 5*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("security.rate_limit", 0)

	v.SetDefault("cloudflare.turnstile.enabled", false)
	v.SetDefault("cloudflare.turnstile.verify_url", "https://challenges.cloudflare.com/turnstile/v0/siteverify")

	v.SetDefault("geo.enabled", true)
	v.SetDefault("geo.endpoint", "https://ipapi.co")
	v.SetDefault("geo.timeout", 3*time.Second)
	v.SetDefault("geo.cache_ttl", time.Hour)
	v.SetDefault("geo.cache_size", 10000)

	v.SetDefault("privacy.hash_ips", true)

	v.SetDefault("tracking.unique_window", time.Duration(0))
	v.SetDefault("tracking.setup_window", time.Duration(0))
	v.SetDefault("tracking.timeout", 10*time.Second)

	v.SetDefault("stats.cache_seconds", 5)
}

// Validate checks the loaded values and fails on anything the app can't run
// with.
func Validate() error {
	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	if u := v.GetString("host.public_url"); u != "" {
		parsed, err := url.Parse(u)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return errors.New("host.public_url must be an absolute URL")
		}
	}

	if !slices.Contains(validDrivers, v.GetString("db.driver")) {
		return errors.New("invalid database driver provided")
	}

	if v.GetString("db.dsn") == "" {
		return errors.New("db.dsn can't be empty")
	}

	if !slices.Contains(validAdmissionStore, v.GetString("admission.store")) {
		return errors.New("invalid admission store provided")
	}

	if v.GetInt("admission.limit") <= 0 {
		return errors.New("admission.limit must be bigger than 0")
	}

	if v.GetDuration("admission.window") <= 0 {
		return errors.New("admission.window must be bigger than 0")
	}

	if v.GetString("admission.store") == "redis" && v.GetString("redis.addr") == "" {
		return errors.New("redis.addr is required when admission.store is redis")
	}

	if v.GetString("admission.store") == "memory" && v.GetDuration("admission.sweep_interval") <= 0 {
		return errors.New("admission.sweep_interval must be bigger than 0")
	}

	if v.GetFloat64("security.rate_limit") < 0 {
		return errors.New("security.rate_limit can't be negative")
	}

	if v.GetBool("geo.enabled") {
		if v.GetString("geo.endpoint") == "" {
			return errors.New("geo.endpoint can't be empty")
		}

		if v.GetDuration("geo.timeout") <= 0 {
			return errors.New("geo.timeout must be bigger than 0")
		}
	}

	if v.GetDuration("tracking.unique_window") < 0 || v.GetDuration("tracking.setup_window") < 0 {
		return errors.New("tracking windows can't be negative")
	}

	if v.GetInt("stats.cache_seconds") < 0 {
		return errors.New("stats.cache_seconds can't be negative")
	}

	if !v.GetBool("privacy.hash_ips") {
		zap.L().Warn("privacy.hash_ips is disabled, raw client addresses will be stored")
	}

	if !v.GetBool("cloudflare.turnstile.enabled") {
		fmt.Println("[WARNING]: Cloudflare's turnstile is disabled. Beacon creation won't be guarded against bots")
	} else {
		if v.GetString("cloudflare.turnstile.secret_token") == "" {
			return errors.New("turnstile secret token is missing")
		}
	}

	return nil
}

// Package config provides runtime configuration for armsentry.
// It uses Viper to load settings from files, environment variables, and CLI flags.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for armsentry.
type Config struct {
	// ── Logging ──────────────────────────────────────────────────────────────
	LogLevel  string `mapstructure:"log_level"`  // trace|debug|info|warn|error
	LogFormat string `mapstructure:"log_format"` // text | json

	// ── Monitor ──────────────────────────────────────────────────────────────
	// RobotAddr is the arm controller address for telemetry polling.
	RobotAddr string `mapstructure:"robot_addr"`
	// Sensitivity selects the thresholds preset: high | normal | low.
	Sensitivity string `mapstructure:"sensitivity"`
	// TelemetryTimeoutMS bounds one telemetry read at the controller boundary.
	TelemetryTimeoutMS int `mapstructure:"telemetry_timeout_ms"`
	// CalibrationSamples / CalibrationIntervalMS shape the baseline pass.
	CalibrationSamples    int `mapstructure:"calibration_samples"`
	CalibrationIntervalMS int `mapstructure:"calibration_interval_ms"`
	// ReportDir is where finalized JSON reports land.
	ReportDir string `mapstructure:"report_dir"`
	// PushAddr: optional central server data-plane address; empty = no push.
	PushAddr string `mapstructure:"push_addr"`
	// PushToken for outbound report pushes (overridden by --token CLI flag).
	PushToken string `mapstructure:"push_token"`

	// ── Server ───────────────────────────────────────────────────────────────
	ServerHost string `mapstructure:"server_host"`
	// ControlPort (7171): operator browsing API, JWT protected.
	ControlPort int `mapstructure:"control_port"`
	// DataPort (7272): report ingest — bearer token protected.
	DataPort int    `mapstructure:"data_port"`
	DBPath   string `mapstructure:"db_path"`
	DBDriver string `mapstructure:"db_driver"` // "sqlite"

	// ── Security ──────────────────────────────────────────────────────────────
	// JWTSecret: HS256 signing key for control-plane tokens.
	// Change this in production — default is a random-looking placeholder.
	JWTSecret string `mapstructure:"jwt_secret"`
	// CollectorToken: pre-shared key for data-plane report pushes.
	// Format on wire: "Authorization: Bearer <collector_token>"
	CollectorToken string `mapstructure:"collector_token"`
	AdminUser      string `mapstructure:"admin_user"`
	AdminPass      string `mapstructure:"admin_pass"`
}

// Load reads config from file (./config.yaml or ~/.armsentry/config.yaml)
// and falls back to smart defaults. Environment variables with prefix
// ARMSENTRY_ override file values.
func Load() (*Config, error) {
	v := viper.New()

	// --- Smart Defaults ---
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault("robot_addr", "192.168.10.200")
	v.SetDefault("sensitivity", "normal")
	v.SetDefault("telemetry_timeout_ms", 2000)
	v.SetDefault("calibration_samples", 10)
	v.SetDefault("calibration_interval_ms", 100)
	v.SetDefault("report_dir", "reports")
	v.SetDefault("push_addr", "")
	v.SetDefault("push_token", "armsentry-collector-key-123")

	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("control_port", 7171) // operator API
	v.SetDefault("data_port", 7272)    // report ingest
	v.SetDefault("db_path", "armsentry.db")
	v.SetDefault("db_driver", "sqlite")

	// Security defaults — MUST be overridden in production via config.yaml or env vars.
	v.SetDefault("jwt_secret", "As9#kQ2@pX7!vM4^rB1&nT6*hW8$eL3") // random placeholder
	v.SetDefault("collector_token", "armsentry-collector-key-123")
	v.SetDefault("admin_user", "admin")
	v.SetDefault("admin_pass", "admin")

	// --- Config file ---
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.armsentry")
	if err := v.ReadInConfig(); err != nil {
		// config file is optional; ignore "not found" errors
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// --- Environment Variables ---
	v.SetEnvPrefix("ARMSENTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

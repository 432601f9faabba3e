package config

import (
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the PatientDial server.
// Precedence: CLI flags > env vars > defaults.
type Config struct {
	DataDir       string
	HTTPPort      int
	PublicBaseURL string // externally reachable base URL Twilio calls back to

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string // E.164 number outbound calls originate from

	OpenAIAPIKey  string
	OpenAIBaseURL string // optional override for OpenAI-compatible endpoints
	OpenAIModel   string
	Temperature   float64

	MaxTurns            int // patient lines spoken before the bot says goodbye
	HistoryLines        int // transcript lines passed to the generator
	MaxRecordingSeconds int // provider-side cap on one recording window
	CapabilityTimeout   time.Duration

	ScenarioFile string // YAML scenario catalog; built-in catalog if empty

	RecordingMaxAge time.Duration // archived recordings older than this are deleted; 0 keeps them forever

	WebhookRate  float64 // webhook requests per second per remote IP
	WebhookBurst int

	LogLevel  string
	LogFormat string // "text" or "json"
}

// defaults
const (
	defaultDataDir             = "./data"
	defaultHTTPPort            = 8080
	defaultOpenAIModel         = "gpt-4o-mini"
	defaultTemperature         = 0.7
	defaultMaxTurns            = 8
	defaultHistoryLines        = 20
	defaultMaxRecordingSeconds = 20
	defaultCapabilityTimeout   = 30 * time.Second
	defaultWebhookRate         = 5.0
	defaultWebhookBurst        = 20
	defaultLogLevel            = "info"
	defaultLogFormat           = "text"
)

// envPrefix is the prefix for all PatientDial environment variables.
const envPrefix = "PATIENTDIAL_"

// Load parses configuration from CLI flags and environment variables.
// Precedence: CLI flags > env vars > defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("patientdial", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "data-dir", defaultDataDir, "data directory for transcripts, recordings, and the call database")
	fs.IntVar(&cfg.HTTPPort, "http-port", defaultHTTPPort, "HTTP server listen port")
	fs.StringVar(&cfg.PublicBaseURL, "public-base-url", "", "externally reachable base URL for Twilio callbacks (e.g., https://example.ngrok.app)")
	fs.StringVar(&cfg.TwilioAccountSID, "twilio-account-sid", "", "Twilio account SID")
	fs.StringVar(&cfg.TwilioAuthToken, "twilio-auth-token", "", "Twilio auth token")
	fs.StringVar(&cfg.TwilioFromNumber, "twilio-from-number", "", "E.164 number outbound calls originate from")
	fs.StringVar(&cfg.OpenAIAPIKey, "openai-api-key", "", "OpenAI API key")
	fs.StringVar(&cfg.OpenAIBaseURL, "openai-base-url", "", "optional base URL for an OpenAI-compatible endpoint")
	fs.StringVar(&cfg.OpenAIModel, "openai-model", defaultOpenAIModel, "chat model used to generate patient utterances")
	fs.Float64Var(&cfg.Temperature, "temperature", defaultTemperature, "sampling temperature for utterance generation")
	fs.IntVar(&cfg.MaxTurns, "max-turns", defaultMaxTurns, "patient lines spoken before the call is wrapped up")
	fs.IntVar(&cfg.HistoryLines, "history-lines", defaultHistoryLines, "most recent transcript lines passed to the generator")
	fs.IntVar(&cfg.MaxRecordingSeconds, "max-recording-seconds", defaultMaxRecordingSeconds, "maximum length of one agent recording window")
	fs.DurationVar(&cfg.CapabilityTimeout, "capability-timeout", defaultCapabilityTimeout, "request timeout for transcription and generation calls")
	fs.StringVar(&cfg.ScenarioFile, "scenario-file", "", "YAML scenario catalog (built-in catalog if empty)")
	fs.DurationVar(&cfg.RecordingMaxAge, "recording-max-age", 0, "delete archived recordings older than this (0 keeps them forever)")
	fs.Float64Var(&cfg.WebhookRate, "webhook-rate", defaultWebhookRate, "webhook requests per second allowed per remote IP")
	fs.IntVar(&cfg.WebhookBurst, "webhook-burst", defaultWebhookBurst, "webhook burst size per remote IP")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// Apply env var overrides for any flags not explicitly set on the command line.
	// CLI flags take precedence over env vars.
	applyEnvOverrides(fs, cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides checks environment variables for any flag that was not
// explicitly provided on the command line. This preserves the precedence:
// CLI flags > env vars > defaults.
func applyEnvOverrides(fs *flag.FlagSet, cfg *Config) {
	// Track which flags were explicitly set via CLI.
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	// Map of flag name to env var name.
	envMap := map[string]string{
		"data-dir":              envPrefix + "DATA_DIR",
		"http-port":             envPrefix + "HTTP_PORT",
		"public-base-url":       envPrefix + "PUBLIC_BASE_URL",
		"twilio-account-sid":    "TWILIO_ACCOUNT_SID",
		"twilio-auth-token":     "TWILIO_AUTH_TOKEN",
		"twilio-from-number":    "TWILIO_PHONE_NUMBER",
		"openai-api-key":        "OPENAI_API_KEY",
		"openai-base-url":       envPrefix + "OPENAI_BASE_URL",
		"openai-model":          "OPENAI_MODEL",
		"temperature":           envPrefix + "TEMPERATURE",
		"max-turns":             envPrefix + "MAX_TURNS",
		"history-lines":         envPrefix + "HISTORY_LINES",
		"max-recording-seconds": envPrefix + "MAX_RECORDING_SECONDS",
		"capability-timeout":    envPrefix + "CAPABILITY_TIMEOUT",
		"scenario-file":         envPrefix + "SCENARIO_FILE",
		"recording-max-age":     envPrefix + "RECORDING_MAX_AGE",
		"webhook-rate":          envPrefix + "WEBHOOK_RATE",
		"webhook-burst":         envPrefix + "WEBHOOK_BURST",
		"log-level":             envPrefix + "LOG_LEVEL",
		"log-format":            envPrefix + "LOG_FORMAT",
	}

	for flagName, envVar := range envMap {
		if set[flagName] {
			continue
		}
		val, ok := os.LookupEnv(envVar)
		if !ok || val == "" {
			continue
		}
		switch flagName {
		case "data-dir":
			cfg.DataDir = val
		case "http-port":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.HTTPPort = v
			}
		case "public-base-url":
			cfg.PublicBaseURL = val
		case "twilio-account-sid":
			cfg.TwilioAccountSID = val
		case "twilio-auth-token":
			cfg.TwilioAuthToken = val
		case "twilio-from-number":
			cfg.TwilioFromNumber = val
		case "openai-api-key":
			cfg.OpenAIAPIKey = val
		case "openai-base-url":
			cfg.OpenAIBaseURL = val
		case "openai-model":
			cfg.OpenAIModel = val
		case "temperature":
			if v, err := strconv.ParseFloat(val, 64); err == nil {
				cfg.Temperature = v
			}
		case "max-turns":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.MaxTurns = v
			}
		case "history-lines":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.HistoryLines = v
			}
		case "max-recording-seconds":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.MaxRecordingSeconds = v
			}
		case "capability-timeout":
			if v, err := time.ParseDuration(val); err == nil {
				cfg.CapabilityTimeout = v
			}
		case "scenario-file":
			cfg.ScenarioFile = val
		case "recording-max-age":
			if v, err := time.ParseDuration(val); err == nil {
				cfg.RecordingMaxAge = v
			}
		case "webhook-rate":
			if v, err := strconv.ParseFloat(val, 64); err == nil {
				cfg.WebhookRate = v
			}
		case "webhook-burst":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.WebhookBurst = v
			}
		case "log-level":
			cfg.LogLevel = val
		case "log-format":
			cfg.LogFormat = val
		}
	}
}

// validate checks that the config values are sane.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http-port must be between 1 and 65535, got %d", c.HTTPPort)
	}
	if c.PublicBaseURL != "" {
		u, err := url.Parse(c.PublicBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("public-base-url must be an absolute URL, got %q", c.PublicBaseURL)
		}
		c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
	}
	if c.MaxTurns < 1 {
		return fmt.Errorf("max-turns must be at least 1, got %d", c.MaxTurns)
	}
	if c.HistoryLines < 1 {
		return fmt.Errorf("history-lines must be at least 1, got %d", c.HistoryLines)
	}
	if c.MaxRecordingSeconds < 1 {
		return fmt.Errorf("max-recording-seconds must be at least 1, got %d", c.MaxRecordingSeconds)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", c.Temperature)
	}
	if c.CapabilityTimeout <= 0 {
		return fmt.Errorf("capability-timeout must be positive, got %v", c.CapabilityTimeout)
	}
	if c.RecordingMaxAge < 0 {
		return fmt.Errorf("recording-max-age must not be negative, got %v", c.RecordingMaxAge)
	}
	if c.WebhookRate <= 0 {
		return fmt.Errorf("webhook-rate must be positive, got %v", c.WebhookRate)
	}
	if c.WebhookBurst < 1 {
		return fmt.Errorf("webhook-burst must be at least 1, got %d", c.WebhookBurst)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	return nil
}

// SlogLevel maps the configured log level string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// VoiceURL returns the absolute URL of the turn-cycle webhook.
func (c *Config) VoiceURL() string {
	return c.PublicBaseURL + "/voice"
}

// RecordingURL returns the absolute URL of the full-call recording webhook.
func (c *Config) RecordingURL() string {
	return c.PublicBaseURL + "/call-recording"
}

// StatusURL returns the absolute URL of the call-status webhook.
func (c *Config) StatusURL() string {
	return c.PublicBaseURL + "/call-status"
}

package config

import (
	"os"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	// Clear any env vars that might interfere.
	for _, env := range []string{
		"PATIENTDIAL_DATA_DIR", "PATIENTDIAL_HTTP_PORT", "PATIENTDIAL_MAX_TURNS",
		"PATIENTDIAL_LOG_LEVEL", "TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN",
		"OPENAI_API_KEY", "OPENAI_MODEL",
	} {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}

	os.Args = []string{"patientdial"}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DataDir != defaultDataDir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, defaultDataDir)
	}
	if cfg.HTTPPort != defaultHTTPPort {
		t.Errorf("HTTPPort = %d, want %d", cfg.HTTPPort, defaultHTTPPort)
	}
	if cfg.MaxTurns != defaultMaxTurns {
		t.Errorf("MaxTurns = %d, want %d", cfg.MaxTurns, defaultMaxTurns)
	}
	if cfg.HistoryLines != defaultHistoryLines {
		t.Errorf("HistoryLines = %d, want %d", cfg.HistoryLines, defaultHistoryLines)
	}
	if cfg.OpenAIModel != defaultOpenAIModel {
		t.Errorf("OpenAIModel = %q, want %q", cfg.OpenAIModel, defaultOpenAIModel)
	}
	if cfg.Temperature != defaultTemperature {
		t.Errorf("Temperature = %v, want %v", cfg.Temperature, defaultTemperature)
	}
	if cfg.LogLevel != defaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, defaultLogLevel)
	}
}

func TestEnvVarOverride(t *testing.T) {
	os.Args = []string{"patientdial"}
	t.Setenv("PATIENTDIAL_HTTP_PORT", "9090")
	t.Setenv("PATIENTDIAL_MAX_TURNS", "3")
	t.Setenv("PATIENTDIAL_CAPABILITY_TIMEOUT", "10s")
	t.Setenv("TWILIO_ACCOUNT_SID", "ACxxxx")
	t.Setenv("OPENAI_MODEL", "gpt-4o")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 9090 {
		t.Errorf("HTTPPort = %d, want 9090", cfg.HTTPPort)
	}
	if cfg.MaxTurns != 3 {
		t.Errorf("MaxTurns = %d, want 3", cfg.MaxTurns)
	}
	if cfg.CapabilityTimeout != 10*time.Second {
		t.Errorf("CapabilityTimeout = %v, want 10s", cfg.CapabilityTimeout)
	}
	if cfg.TwilioAccountSID != "ACxxxx" {
		t.Errorf("TwilioAccountSID = %q, want ACxxxx", cfg.TwilioAccountSID)
	}
	if cfg.OpenAIModel != "gpt-4o" {
		t.Errorf("OpenAIModel = %q, want gpt-4o", cfg.OpenAIModel)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max turns", func(c *Config) { c.MaxTurns = 0 }},
		{"zero history lines", func(c *Config) { c.HistoryLines = 0 }},
		{"negative temperature", func(c *Config) { c.Temperature = -1 }},
		{"huge temperature", func(c *Config) { c.Temperature = 3 }},
		{"bad port", func(c *Config) { c.HTTPPort = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
		{"relative base url", func(c *Config) { c.PublicBaseURL = "example.com/foo" }},
		{"zero rate", func(c *Config) { c.WebhookRate = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				HTTPPort:            defaultHTTPPort,
				MaxTurns:            defaultMaxTurns,
				HistoryLines:        defaultHistoryLines,
				MaxRecordingSeconds: defaultMaxRecordingSeconds,
				Temperature:         defaultTemperature,
				CapabilityTimeout:   defaultCapabilityTimeout,
				WebhookRate:         defaultWebhookRate,
				WebhookBurst:        defaultWebhookBurst,
				LogLevel:            defaultLogLevel,
				LogFormat:           defaultLogFormat,
			}
			tt.mutate(cfg)
			if err := cfg.validate(); err == nil {
				t.Error("validate() = nil, want error")
			}
		})
	}
}

func TestCallbackURLs(t *testing.T) {
	cfg := &Config{PublicBaseURL: "https://demo.ngrok.app"}
	if got := cfg.VoiceURL(); got != "https://demo.ngrok.app/voice" {
		t.Errorf("VoiceURL() = %q", got)
	}
	if got := cfg.StatusURL(); got != "https://demo.ngrok.app/call-status" {
		t.Errorf("StatusURL() = %q", got)
	}
	if got := cfg.RecordingURL(); got != "https://demo.ngrok.app/call-recording" {
		t.Errorf("RecordingURL() = %q", got)
	}
}

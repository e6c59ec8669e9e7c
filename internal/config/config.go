// Package config loads sonify settings from a YAML file with SONIFY_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dudk/sonify/artifact"
	"github.com/dudk/sonify/backend"
	"github.com/dudk/sonify/media"
	"github.com/dudk/sonify/pipeline"
	"github.com/dudk/sonify/remote"
)

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
	Traces         bool   `yaml:"traces"`
}

type SynthdConfig struct {
	Bind     string `yaml:"bind"`
	NATSURL  string `yaml:"nats_url"`
	Embedded bool   `yaml:"embedded"`
	NATSPort int    `yaml:"nats_port"`
	// MaxPayload of the embedded server, bytes.
	MaxPayload int `yaml:"max_payload"`
}

type Config struct {
	Workdir    string          `yaml:"workdir"`
	Namespace  string          `yaml:"namespace"`
	FPS        int             `yaml:"fps"`
	Concurrent bool            `yaml:"concurrent"`
	PricesDir  string          `yaml:"prices_dir"`
	FFmpeg     string          `yaml:"ffmpeg"`
	Audio      backend.Config  `yaml:"audio"`
	Plot       media.Style     `yaml:"plot"`
	Log        LogConfig       `yaml:"log"`
	Telemetry  TelemetryConfig `yaml:"telemetry"`
	Synthd     SynthdConfig    `yaml:"synthd"`
}

func Default() Config {
	return Config{
		Workdir:   artifact.DefaultDir,
		FPS:       pipeline.DefaultFPS,
		PricesDir: "data/prices",
		FFmpeg:    media.DefaultCommand,
		Audio: backend.Config{
			Kind: backend.ToneSequencer,
			Remote: backend.Remote{
				Subject: remote.DefaultSubject,
				Timeout: remote.DefaultTimeout,
			},
		},
		Plot: media.DefaultStyle(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "sonify",
			OTLPInsecure:   true,
			PrometheusBind: ":9464",
		},
		Synthd: SynthdConfig{
			Bind:       ":8089",
			NATSPort:   4222,
			MaxPayload: 64 << 20,
		},
	}
}

// Load reads config file, if path isn't empty, on top of defaults and
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	cfg.Audio.Kind = backend.ParseKind(string(cfg.Audio.Kind))
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Workdir, "SONIFY_WORKDIR")
	overrideString(&cfg.Namespace, "SONIFY_NAMESPACE")
	overrideInt(&cfg.FPS, "SONIFY_FPS")
	overrideBool(&cfg.Concurrent, "SONIFY_CONCURRENT")
	overrideString(&cfg.PricesDir, "SONIFY_PRICES_DIR")
	overrideString(&cfg.FFmpeg, "SONIFY_FFMPEG")
	overrideKind(&cfg.Audio.Kind, "SONIFY_BACKEND")
	overrideString(&cfg.Audio.Local.PatchPath, "SONIFY_PATCH")
	overrideString(&cfg.Audio.Remote.Endpoint, "SONIFY_REMOTE_ENDPOINT")
	overrideString(&cfg.Audio.Remote.Subject, "SONIFY_REMOTE_SUBJECT")
	overrideDuration(&cfg.Audio.Remote.Timeout, "SONIFY_REMOTE_TIMEOUT")
	overrideString(&cfg.Plot.Color, "SONIFY_PLOT_COLOR")
	overrideString(&cfg.Log.Level, "SONIFY_LOG_LEVEL")
	overrideString(&cfg.Log.Format, "SONIFY_LOG_FORMAT")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "SONIFY_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "SONIFY_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "SONIFY_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Telemetry.Traces, "SONIFY_TELEMETRY_TRACES")
	overrideString(&cfg.Synthd.Bind, "SONIFY_SYNTHD_BIND")
	overrideString(&cfg.Synthd.NATSURL, "SONIFY_SYNTHD_NATS_URL")
	overrideBool(&cfg.Synthd.Embedded, "SONIFY_SYNTHD_EMBEDDED")
	overrideInt(&cfg.Synthd.NATSPort, "SONIFY_SYNTHD_NATS_PORT")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideDuration(target *time.Duration, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			*target = parsed
		}
	}
}

func overrideKind(target *backend.Kind, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = backend.ParseKind(value)
	}
}

func validate(cfg Config) error {
	if cfg.Workdir == "" {
		return errors.New("workdir must not be empty")
	}
	if cfg.FPS <= 0 {
		return errors.New("fps must be positive")
	}
	if cfg.FFmpeg == "" {
		return errors.New("ffmpeg must not be empty")
	}
	if cfg.Audio.Remote.Timeout <= 0 {
		return errors.New("audio.remote.timeout must be positive")
	}
	if cfg.Plot.Width <= 0 || cfg.Plot.Height <= 0 {
		return errors.New("plot.width and plot.height must be positive")
	}
	if _, err := media.Color(cfg.Plot.Color); err != nil {
		return fmt.Errorf("plot.color: %w", err)
	}
	if _, err := media.Color(cfg.Plot.Background); err != nil {
		return fmt.Errorf("plot.background: %w", err)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return errors.New("log.format must be one of text|json")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Synthd.Embedded && (cfg.Synthd.NATSPort <= 0 || cfg.Synthd.NATSPort > 65535) {
		return errors.New("synthd.nats_port must be between 1 and 65535 when embedded mode is enabled")
	}
	return nil
}

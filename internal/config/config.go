package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken string          `yaml:"discord_token"`
	DatabasePath string          `yaml:"database_path"`
	LogLevel     string          `yaml:"log_level"`
	LogFile      string          `yaml:"log_file"`
	Health       HealthConfig    `yaml:"health"`
	Detection    DetectionConfig `yaml:"detection"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// DetectionConfig tunes the anti-nuke burst detection. The defaults are
// the operational contract; overrides exist for staging.
type DetectionConfig struct {
	WindowSeconds  int `yaml:"window_seconds"`
	ChannelDeletes int `yaml:"channel_deletes"`
	RoleDeletes    int `yaml:"role_deletes"`
	Bans           int `yaml:"bans"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath: "/data/wardbot.db",
		LogLevel:     "info",
		Health:       HealthConfig{Enabled: false, Addr: ":8080"},
		Detection: DetectionConfig{
			WindowSeconds:  10,
			ChannelDeletes: 3,
			RoleDeletes:    3,
			Bans:           3,
		},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = envString("LOG_FILE", cfg.LogFile)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Detection.WindowSeconds = envInt("DETECTION_WINDOW_SECONDS", cfg.Detection.WindowSeconds)
	cfg.Detection.ChannelDeletes = envInt("DETECTION_CHANNEL_DELETES", cfg.Detection.ChannelDeletes)
	cfg.Detection.RoleDeletes = envInt("DETECTION_ROLE_DELETES", cfg.Detection.RoleDeletes)
	cfg.Detection.Bans = envInt("DETECTION_BANS", cfg.Detection.Bans)
}

// BuildLogger builds the process logger. When a log file is configured,
// output goes through lumberjack rotation in addition to stdout.
func BuildLogger(level, file string) (*zap.Logger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.MessageKey = "message"
	encoderCfg.LevelKey = "level"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := parseLevel(strings.ToLower(level))

	if file == "" {
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "json"
		cfg.EncoderConfig = encoderCfg
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		return cfg.Build()
	}

	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    50,
		MaxBackups: 3,
		MaxAge:     28,
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout), zapcore.AddSync(rotator)),
		lvl,
	)
	return zap.New(core), nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rmax-ai/loadsim/pkg/store/redis"
	"github.com/rmax-ai/loadsim/pkg/tasks"
	"github.com/rmax-ai/loadsim/pkg/telemetry"
)

const (
	defaultAddr            = ":5000"
	defaultWebAssetsMode   = "embedded"
	defaultShutdownTimeout = 10 * time.Second
	envPrefix              = "LOADSIM_"
)

type Config struct {
	Addr          string `yaml:"addr"`
	WebAssetsMode string `yaml:"web_assets"`
	WebDir        string `yaml:"web_dir"`

	// DBPath enables the task-run journal. Runs older than HistoryRetention
	// are pruned hourly; zero keeps everything.
	DBPath           string        `yaml:"db_path"`
	HistoryRetention time.Duration `yaml:"history_retention"`

	// RedisAddr enables the signal sink.
	RedisAddr   string `yaml:"redis_addr"`
	RedisStream string `yaml:"redis_stream"`

	ScratchDir    string `yaml:"scratch_dir"`
	SharedScratch bool   `yaml:"shared_scratch"`

	MaxTasks      int `yaml:"max_tasks"`
	TaskRetention int `yaml:"task_retention"`

	LogFormat string `yaml:"log_format"`
	LogLevel  string `yaml:"log_level"`

	OTelExporter string `yaml:"otel_exporter"`
	OTelEndpoint string `yaml:"otel_endpoint"`
	ServiceName  string `yaml:"service_name"`

	// Scenarios enables POST /api/scenarios.
	Scenarios bool `yaml:"scenarios"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func defaultConfig() Config {
	return Config{
		Addr:            defaultAddr,
		WebAssetsMode:   defaultWebAssetsMode,
		RedisStream:     redis.DefaultStream,
		ScratchDir:      filepath.Join(os.TempDir(), "loadsim"),
		TaskRetention:   tasks.DefaultRetention,
		LogFormat:       "text",
		LogLevel:        "info",
		OTelExporter:    telemetry.ExporterNone,
		ServiceName:     "loadsim",
		Scenarios:       true,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

// LoadConfig resolves the configuration from defaults, the YAML file named by
// -config or LOADSIM_CONFIG, LOADSIM_* variables and flags, in increasing
// order of precedence.
func LoadConfig(args []string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	cfg := defaultConfig()

	configPath := configPathFromArgs(args)
	if configPath == "" {
		configPath = os.Getenv(envPrefix + "CONFIG")
	}
	if configPath != "" {
		if err := cfg.loadFile(resolvePath(configPath, cwd)); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return Config{}, err
	}

	flagSet := flag.NewFlagSet("loadsimd", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.String("config", configPath, "path to YAML config file")
	flagSet.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	flagSet.StringVar(&cfg.WebAssetsMode, "web-assets", cfg.WebAssetsMode, "web assets mode: embedded|fs|off")
	flagSet.StringVar(&cfg.WebDir, "web-dir", cfg.WebDir, "web assets directory when web-assets=fs")
	flagSet.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to SQLite task journal (empty disables history)")
	flagSet.DurationVar(&cfg.HistoryRetention, "history-retention", cfg.HistoryRetention, "prune journaled runs older than this (0 keeps all)")
	flagSet.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Redis address for the signal sink (empty disables it)")
	flagSet.StringVar(&cfg.RedisStream, "redis-stream", cfg.RedisStream, "Redis stream receiving signals")
	flagSet.StringVar(&cfg.ScratchDir, "scratch-dir", cfg.ScratchDir, "directory for disk simulation scratch files")
	flagSet.BoolVar(&cfg.SharedScratch, "shared-scratch", cfg.SharedScratch, "let all disk simulations share one scratch file")
	flagSet.IntVar(&cfg.MaxTasks, "max-tasks", cfg.MaxTasks, "maximum concurrently running simulations (0 = unbounded)")
	flagSet.IntVar(&cfg.TaskRetention, "task-retention", cfg.TaskRetention, "finished tasks kept in memory")
	flagSet.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text|json")
	flagSet.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug|info|warn|error")
	flagSet.StringVar(&cfg.OTelExporter, "otel-exporter", cfg.OTelExporter, "OpenTelemetry exporter: none|stdout|otlp")
	flagSet.StringVar(&cfg.OTelEndpoint, "otel-endpoint", cfg.OTelEndpoint, "OTLP/HTTP endpoint")
	flagSet.StringVar(&cfg.ServiceName, "service-name", cfg.ServiceName, "service.name resource attribute")
	flagSet.BoolVar(&cfg.Scenarios, "scenarios", cfg.Scenarios, "enable POST /api/scenarios")
	flagSet.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "graceful shutdown timeout")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
		}
		return Config{}, err
	}

	cfg.Addr = strings.TrimSpace(cfg.Addr)
	cfg.WebAssetsMode = normalizeWebAssetsMode(cfg.WebAssetsMode)
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	cfg.OTelExporter = strings.ToLower(strings.TrimSpace(cfg.OTelExporter))
	cfg.DBPath = resolvePath(cfg.DBPath, cwd)
	cfg.ScratchDir = resolvePath(cfg.ScratchDir, cwd)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	if cfg.WebAssetsMode == "fs" {
		cfg.WebDir = resolvePath(cfg.WebDir, cwd)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return errors.New("addr cannot be empty")
	}
	switch c.WebAssetsMode {
	case "embedded", "off":
	case "fs":
		if strings.TrimSpace(c.WebDir) == "" {
			return errors.New("web-assets=fs requires web-dir")
		}
	default:
		return fmt.Errorf("unsupported web-assets mode: %s", c.WebAssetsMode)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unsupported log format: %s", c.LogFormat)
	}
	if _, err := telemetry.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.OTelExporter {
	case telemetry.ExporterNone, telemetry.ExporterStdout:
	case telemetry.ExporterOTLP:
		if c.OTelEndpoint == "" {
			return errors.New("otel-exporter=otlp requires otel-endpoint")
		}
	default:
		return fmt.Errorf("unsupported otel exporter: %s", c.OTelExporter)
	}
	if c.ScratchDir == "" {
		return errors.New("scratch-dir cannot be empty")
	}
	if c.MaxTasks < 0 {
		return errors.New("max-tasks must not be negative")
	}
	if c.TaskRetention <= 0 {
		return errors.New("task-retention must be positive")
	}
	if c.HistoryRetention < 0 {
		return errors.New("history-retention must not be negative")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown-timeout must be positive")
	}
	return nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// loadEnv overrides fields from LOADSIM_<KEY> variables, where KEY is the
// upper-cased YAML key.
func (c *Config) loadEnv() error {
	strs := map[string]*string{
		"ADDR":          &c.Addr,
		"WEB_ASSETS":    &c.WebAssetsMode,
		"WEB_DIR":       &c.WebDir,
		"DB_PATH":       &c.DBPath,
		"REDIS_ADDR":    &c.RedisAddr,
		"REDIS_STREAM":  &c.RedisStream,
		"SCRATCH_DIR":   &c.ScratchDir,
		"LOG_FORMAT":    &c.LogFormat,
		"LOG_LEVEL":     &c.LogLevel,
		"OTEL_EXPORTER": &c.OTelExporter,
		"OTEL_ENDPOINT": &c.OTelEndpoint,
		"SERVICE_NAME":  &c.ServiceName,
	}
	for key, dst := range strs {
		if v := os.Getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}
	if port := os.Getenv(envPrefix + "PORT"); port != "" && os.Getenv(envPrefix+"ADDR") == "" {
		c.Addr = ":" + port
	}

	ints := map[string]*int{
		"MAX_TASKS":      &c.MaxTasks,
		"TASK_RETENTION": &c.TaskRetention,
	}
	for key, dst := range ints {
		if v := os.Getenv(envPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"SHARED_SCRATCH": &c.SharedScratch,
		"SCENARIOS":      &c.Scenarios,
	}
	for key, dst := range bools {
		if v := os.Getenv(envPrefix + key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
			}
			*dst = b
		}
	}

	durations := map[string]*time.Duration{
		"HISTORY_RETENTION": &c.HistoryRetention,
		"SHUTDOWN_TIMEOUT":  &c.ShutdownTimeout,
	}
	for key, dst := range durations {
		if v := os.Getenv(envPrefix + key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
			}
			*dst = d
		}
	}
	return nil
}

// configPathFromArgs finds -config before the full flag parse so the file can
// sit below env and flags in precedence.
func configPathFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}

func normalizeWebAssetsMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "embedded":
		return "embedded"
	case "fs", "dir", "directory":
		return "fs"
	case "off", "disabled", "none":
		return "off"
	default:
		return strings.ToLower(strings.TrimSpace(mode))
	}
}

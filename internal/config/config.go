// Package config loads service configuration from SKYGEO_* environment
// variables, after reading an optional .env file.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/star/skygeo/ellipsoid"
	"github.com/star/skygeo/internal/auth"
	"github.com/star/skygeo/internal/stream"
	"github.com/star/skygeo/internal/tracing"
	"github.com/star/skygeo/sidereal"
)

// Config is the complete service configuration.
type Config struct {
	HTTPAddr   string
	LogDebug   bool
	TrustProxy bool

	Auth auth.Config

	// RateLimitRPS is the sustained per-client request rate; zero disables
	// the limiter.
	RateLimitRPS   float64
	RateLimitBurst int

	Stream  stream.Config
	Tracing tracing.Config

	DefaultEllipsoid string
	SiderealModel    sidereal.Model
}

// Load reads the environment. Malformed optional values are logged and
// replaced by their defaults; an unusable auth setup is an error.
func Load(logger *zap.Logger) (*Config, error) {
	_ = godotenv.Load()

	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "config"))

	authCfg, err := loadAuth(logger)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:         envOr("SKYGEO_HTTP_ADDR", ":8080"),
		LogDebug:         boolEnv(logger, "SKYGEO_LOG_DEBUG", false),
		TrustProxy:       boolEnv(logger, "SKYGEO_TRUST_PROXY", false),
		Auth:             authCfg,
		RateLimitRPS:     floatEnv(logger, "SKYGEO_RATE_LIMIT_RPS", 50, 0, 1e6),
		RateLimitBurst:   intEnv(logger, "SKYGEO_RATE_LIMIT_BURST", 100, 1),
		Stream:           loadStream(logger),
		Tracing:          loadTracing(logger),
		DefaultEllipsoid: "wgs84",
		SiderealModel:    sidereal.IAU82,
	}
	cfg.Stream.TrustProxy = cfg.TrustProxy

	if v := os.Getenv("SKYGEO_DEFAULT_ELLIPSOID"); v != "" {
		if _, err := ellipsoid.FromName(v); err != nil {
			logger.Warn("invalid SKYGEO_DEFAULT_ELLIPSOID value, using default",
				zap.String("value", v), zap.String("default", cfg.DefaultEllipsoid))
		} else {
			cfg.DefaultEllipsoid = strings.ToLower(strings.TrimSpace(v))
		}
	}

	if v := os.Getenv("SKYGEO_SIDEREAL_MODEL"); v != "" {
		m, err := sidereal.ParseModel(v)
		if err != nil {
			logger.Warn("invalid SKYGEO_SIDEREAL_MODEL value, using default",
				zap.String("value", v), zap.Stringer("default", cfg.SiderealModel))
		} else {
			cfg.SiderealModel = m
		}
	}

	logger.Info("config loaded",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.Bool("auth_enabled", cfg.Auth.Enabled),
		zap.Bool("trust_proxy", cfg.TrustProxy),
		zap.Float64("rate_limit_rps", cfg.RateLimitRPS),
		zap.Int("rate_limit_burst", cfg.RateLimitBurst),
		zap.Int("stream_max_concurrent_per_ip", cfg.Stream.MaxConcurrentPerIP),
		zap.Int("stream_max_total", cfg.Stream.MaxTotal),
		zap.Duration("stream_keepalive_interval", cfg.Stream.KeepaliveInterval),
		zap.Bool("tracing_enabled", cfg.Tracing.Enabled),
		zap.String("default_ellipsoid", cfg.DefaultEllipsoid),
		zap.Stringer("sidereal_model", cfg.SiderealModel),
	)

	return cfg, nil
}

func loadAuth(logger *zap.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	if v := os.Getenv("SKYGEO_AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, errors.New("SKYGEO_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("SKYGEO_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("SKYGEO_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadStream(logger *zap.Logger) stream.Config {
	return stream.Config{
		MaxConcurrentPerIP: intEnv(logger, "SKYGEO_STREAM_MAX_CONCURRENT", 10, 1),
		MaxTotal:           intEnv(logger, "SKYGEO_STREAM_MAX_TOTAL", 1000, 1),
		KeepaliveInterval:  time.Duration(intEnv(logger, "SKYGEO_STREAM_KEEPALIVE_INTERVAL", 30, 1)) * time.Second,
	}
}

func loadTracing(logger *zap.Logger) tracing.Config {
	cfg := tracing.Config{
		Enabled:     boolEnv(logger, "SKYGEO_TRACING_ENABLED", false),
		ServiceName: envOr("SKYGEO_TRACING_SERVICE_NAME", "skygeo"),
		Exporter:    strings.ToLower(envOr("SKYGEO_TRACING_EXPORTER", "stdout")),
		Endpoint:    os.Getenv("SKYGEO_TRACING_ENDPOINT"),
		SampleRatio: floatEnv(logger, "SKYGEO_TRACING_SAMPLE_RATIO", 1, 0, 1),
	}
	if cfg.Exporter != "stdout" && cfg.Exporter != "otlp" && cfg.Exporter != "otlpgrpc" {
		logger.Warn("invalid SKYGEO_TRACING_EXPORTER value, using default",
			zap.String("value", cfg.Exporter), zap.String("default", "stdout"))
		cfg.Exporter = "stdout"
	}
	return cfg
}

// envOr returns the value of key, or def when the variable is unset.
func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func boolEnv(logger *zap.Logger, key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid "+key+" value, using default", zap.String("value", v), zap.Bool("default", def))
		return def
	}
	return b
}

func intEnv(logger *zap.Logger, key string, def, min int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min {
		logger.Warn("invalid "+key+" value, using default", zap.String("value", v), zap.Int("default", def))
		return def
	}
	return n
}

func floatEnv(logger *zap.Logger, key string, def, min, max float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < min || f > max {
		logger.Warn("invalid "+key+" value, using default", zap.String("value", v), zap.Float64("default", def))
		return def
	}
	return f
}

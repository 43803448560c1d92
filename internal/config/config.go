// Package config loads the launch layer deployment configuration from YAML
// with environment variable overrides for deployment-specific values.
package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	curvedomain "github.com/launchlayer/curve_layer/internal/app/domain/curve"
	"github.com/launchlayer/curve_layer/internal/app/services/tokens"
	"github.com/launchlayer/curve_layer/pkg/logger"
)

// Config is the full deployment configuration. Environment overrides decode
// over the parsed file via the env tags.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Curve    CurveConfig    `yaml:"curve"`
	Issuance IssuanceConfig `yaml:"issuance"`
	Vesting  VestingConfig  `yaml:"vesting"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr          string `yaml:"addr" env:"LAUNCH_HTTP_ADDR"`
	MetricsAddr   string `yaml:"metrics_addr" env:"LAUNCH_METRICS_ADDR"`
	JWTSecret     string `yaml:"jwt_secret" env:"LAUNCH_JWT_SECRET"`
	RatePerSecond int    `yaml:"rate_per_second" env:"LAUNCH_RATE_PER_SECOND"`
	RateBurst     int    `yaml:"rate_burst" env:"LAUNCH_RATE_BURST"`
}

// DatabaseConfig configures postgres persistence. An empty URL selects the
// in-memory store.
type DatabaseConfig struct {
	URL string `yaml:"url" env:"LAUNCH_DATABASE_URL"`
}

// CurveConfig overrides the curve constants. Amount fields are decimal
// strings of scaled integers; zero values keep the deployment defaults.
type CurveConfig struct {
	BasePrice           string `yaml:"base_price"`
	FeeBPS              int64  `yaml:"fee_bps"`
	GraduationThreshold string `yaml:"graduation_threshold"`
	MinBuy              string `yaml:"min_buy"`
	BurnPercent         int64  `yaml:"burn_percent"`
	ReserveBPS          int64  `yaml:"reserve_bps"`
	Treasury            string `yaml:"treasury" env:"LAUNCH_TREASURY"`
}

// IssuanceConfig overrides the token issuance constants.
type IssuanceConfig struct {
	TotalSupply string `yaml:"total_supply"`
	VestingBPS  int64  `yaml:"vesting_bps"`
}

// VestingConfig configures the vesting schedule, the milestone authority and
// the claim sweeper. Authority is the wallet entitled to latch milestones;
// it is never a token deployer.
type VestingConfig struct {
	DurationDays  int    `yaml:"duration_days"`
	Authority     string `yaml:"authority" env:"LAUNCH_AUTHORITY"`
	ClaimSchedule string `yaml:"claim_schedule" env:"LAUNCH_CLAIM_SCHEDULE"`
}

// LoggingConfig configures the log output for the daemon.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LAUNCH_LOG_LEVEL"`
	Format     string `yaml:"format" env:"LAUNCH_LOG_FORMAT"`
	Output     string `yaml:"output" env:"LAUNCH_LOG_OUTPUT"`
	FilePrefix string `yaml:"file_prefix"`
}

// Logger converts to the logger package's construction config.
func (l LoggingConfig) Logger() logger.LoggingConfig {
	return logger.LoggingConfig{
		Level:      l.Level,
		Format:     l.Format,
		Output:     l.Output,
		FilePrefix: l.FilePrefix,
	}
}

// Load reads config/launchd.yaml, falling back to defaults when the file is
// absent, then applies environment overrides.
func Load() (*Config, error) {
	return LoadFromPath(filepath.Join("config", "launchd.yaml"))
}

// LoadFromPath reads configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults plus environment are enough for local runs.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Env overrides beat the file; unset variables leave fields untouched.
	if err := envdecode.Decode(cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:          ":8080",
			MetricsAddr:   ":9090",
			RatePerSecond: 50,
			RateBurst:     100,
		},
		Logging: LoggingConfig{Level: "info", Format: "text", Output: "stdout"},
		Vesting: VestingConfig{DurationDays: 180},
	}
}

// CurveParams materialises the curve constants, starting from the deployment
// defaults and applying overrides.
func (c *Config) CurveParams() (curvedomain.Params, error) {
	params := curvedomain.DefaultParams()
	var err error
	if params.BasePrice, err = overrideBig(params.BasePrice, c.Curve.BasePrice, "curve.base_price"); err != nil {
		return curvedomain.Params{}, err
	}
	if params.GraduationThreshold, err = overrideBig(params.GraduationThreshold, c.Curve.GraduationThreshold, "curve.graduation_threshold"); err != nil {
		return curvedomain.Params{}, err
	}
	if params.MinBuy, err = overrideBig(params.MinBuy, c.Curve.MinBuy, "curve.min_buy"); err != nil {
		return curvedomain.Params{}, err
	}
	if c.Curve.FeeBPS > 0 {
		params.FeeBPS = c.Curve.FeeBPS
	}
	if c.Curve.BurnPercent > 0 {
		params.BurnPercent = c.Curve.BurnPercent
	}
	if c.Curve.ReserveBPS > 0 {
		params.ReserveBPS = c.Curve.ReserveBPS
	}
	return params, nil
}

// TokenIssuance materialises the token issuance constants.
func (c *Config) TokenIssuance() (tokens.Config, error) {
	cfg := tokens.DefaultConfig()
	var err error
	if cfg.TotalSupply, err = overrideBig(cfg.TotalSupply, c.Issuance.TotalSupply, "issuance.total_supply"); err != nil {
		return tokens.Config{}, err
	}
	if c.Issuance.VestingBPS > 0 {
		cfg.VestingBPS = c.Issuance.VestingBPS
	}
	if c.Vesting.DurationDays > 0 {
		cfg.VestingDuration = time.Duration(c.Vesting.DurationDays) * 24 * time.Hour
	}
	return cfg, nil
}

func overrideBig(current *big.Int, raw, field string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return current, nil
	}
	out, ok := new(big.Int).SetString(raw, 10)
	if !ok || out.Sign() <= 0 {
		return nil, fmt.Errorf("%s must be a positive decimal integer", field)
	}
	return out, nil
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Risk        RiskConfig        `mapstructure:"risk"`
	Behavior    BehaviorConfig    `mapstructure:"behavior"`
	Challenge   ChallengeConfig   `mapstructure:"challenge"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	ThreatIntel ThreatIntelConfig `mapstructure:"threat_intel"`
	Abuse       AbuseConfig       `mapstructure:"abuse"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RiskConfig holds the decision thresholds and ensemble tuning. The numeric
// defaults are heuristic, carried over from observed traffic, and are meant to
// be overridden per deployment rather than treated as calibrated constants.
type RiskConfig struct {
	BlockScore           int           `mapstructure:"block_score"`
	BlockConfidence      float64       `mapstructure:"block_confidence"`
	ChallengeScore       int           `mapstructure:"challenge_score"`
	ChallengeConfidence  float64       `mapstructure:"challenge_confidence"`
	MonitorScore         int           `mapstructure:"monitor_score"`
	AlertConfidence      float64       `mapstructure:"alert_confidence"`
	EstimatorTimeout     time.Duration `mapstructure:"estimator_timeout"`
	TemporalWeight       float64       `mapstructure:"temporal_weight"`
	SpatialWeight        float64       `mapstructure:"spatial_weight"`
	ReconstructionWeight float64       `mapstructure:"reconstruction_weight"`
	BaselineWeight       float64       `mapstructure:"baseline_weight"`
}

type BehaviorConfig struct {
	BatchSize        int           `mapstructure:"batch_size"`
	BufferSize       int           `mapstructure:"buffer_size"`
	Retention        time.Duration `mapstructure:"retention"`
	LinearityLimit   float64       `mapstructure:"linearity_limit"`
	TypingSpeedLimit float64       `mapstructure:"typing_speed_limit"`
}

type ChallengeConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BackoffBase   time.Duration `mapstructure:"backoff_base"`
	PoWDifficulty int           `mapstructure:"pow_difficulty"`
	SigningKey    string        `mapstructure:"signing_key"`
}

type LedgerConfig struct {
	FreeQuota   int           `mapstructure:"free_quota"`
	GrantExpiry time.Duration `mapstructure:"grant_expiry"`
}

type ThreatIntelConfig struct {
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AbuseConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	Window        time.Duration `mapstructure:"window"`
	DevicesPerIP  int           `mapstructure:"devices_per_ip"`
	VelocityLimit int           `mapstructure:"velocity_limit"`
	PatternTTL    time.Duration `mapstructure:"pattern_ttl"`
}

var globalConfig Config

func Load(configPath string) error {
	if err := loadConfigFile(configPath, "config", &globalConfig); err != nil {
		return fmt.Errorf("could not load main config file: %w", err)
	}
	setDefaultValues()
	return nil
}

func loadConfigFile(configPath, fileName string, out interface{}) error {
	viper.SetConfigName(fileName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("config file %s.yaml not found, using only environment variables", fileName)
		}
		return fmt.Errorf("error reading config file %s.yaml: %w", fileName, err)
	}

	if err := viper.Unmarshal(out); err != nil {
		return fmt.Errorf("failed to unmarshal %s config: %w", fileName, err)
	}

	return nil
}

func setDefaultValues() {
	if globalConfig.Database.SSLMode == "" {
		globalConfig.Database.SSLMode = "disable"
	}
	applyRiskDefaults(&globalConfig.Risk)
	applyBehaviorDefaults(&globalConfig.Behavior)
	applyChallengeDefaults(&globalConfig.Challenge)
	applyLedgerDefaults(&globalConfig.Ledger)
	applyAbuseDefaults(&globalConfig.Abuse)
	if globalConfig.ThreatIntel.Timeout <= 0 {
		globalConfig.ThreatIntel.Timeout = 500 * time.Millisecond
	}
}

func applyRiskDefaults(c *RiskConfig) {
	if c.BlockScore <= 0 {
		c.BlockScore = 85
	}
	if c.BlockConfidence <= 0 {
		c.BlockConfidence = 0.8
	}
	if c.ChallengeScore <= 0 {
		c.ChallengeScore = 60
	}
	if c.ChallengeConfidence <= 0 {
		c.ChallengeConfidence = 0.6
	}
	if c.MonitorScore <= 0 {
		c.MonitorScore = 40
	}
	if c.AlertConfidence <= 0 {
		c.AlertConfidence = 0.85
	}
	if c.EstimatorTimeout <= 0 {
		c.EstimatorTimeout = 200 * time.Millisecond
	}
	if c.TemporalWeight <= 0 {
		c.TemporalWeight = 0.3
	}
	if c.SpatialWeight <= 0 {
		c.SpatialWeight = 0.25
	}
	if c.ReconstructionWeight <= 0 {
		c.ReconstructionWeight = 0.2
	}
	if c.BaselineWeight <= 0 {
		c.BaselineWeight = 0.25
	}
}

func applyBehaviorDefaults(c *BehaviorConfig) {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 500
	}
	if c.Retention <= 0 {
		c.Retention = 30 * time.Minute
	}
	if c.LinearityLimit <= 0 {
		c.LinearityLimit = 0.95
	}
	if c.TypingSpeedLimit <= 0 {
		c.TypingSpeedLimit = 20
	}
}

func applyChallengeDefaults(c *ChallengeConfig) {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2 * time.Second
	}
	if c.PoWDifficulty <= 0 {
		c.PoWDifficulty = 4
	}
}

func applyLedgerDefaults(c *LedgerConfig) {
	if c.FreeQuota <= 0 {
		c.FreeQuota = 2
	}
}

func applyAbuseDefaults(c *AbuseConfig) {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.Window <= 0 {
		c.Window = 10 * time.Minute
	}
	if c.DevicesPerIP <= 0 {
		c.DevicesPerIP = 5
	}
	if c.VelocityLimit <= 0 {
		c.VelocityLimit = 30
	}
	if c.PatternTTL <= 0 {
		c.PatternTTL = time.Hour
	}
}

func GetConfig() *Config {
	return &globalConfig
}

package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Security  SecurityConfig  `mapstructure:"security"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
}

type ServerConfig struct {
	Port  int  `mapstructure:"port"`
	Debug bool `mapstructure:"debug"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

// EngineConfig holds the quest engine parameters. The defaults match the
// deployment this service replaces: quests must stay open for at least a
// day, a season lasts 39 weeks, and a rollover leaves accounts with 15%
// of their seasonal bonus.
type EngineConfig struct {
	MinQuestLead   time.Duration `mapstructure:"min_quest_lead"`
	SeasonLength   time.Duration `mapstructure:"season_length"`
	DecayRetainPct int           `mapstructure:"decay_retain_pct"`
	MaxMultiplier  int           `mapstructure:"max_multiplier"`
	// VerifyWith selects which role's key attests quest completions:
	// "quest_signer" (default) or "quest_master".
	VerifyWith string `mapstructure:"verify_with"`
	// NotifyTimeout bounds each collaborator webhook call.
	NotifyTimeout time.Duration `mapstructure:"notify_timeout"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// BootstrapConfig seeds the engine state and the first operator login on an
// empty database. Role identities are hex-encoded ed25519 public keys.
type BootstrapConfig struct {
	Governor         string `mapstructure:"governor"`
	QuestMaster      string `mapstructure:"quest_master"`
	QuestSigner      string `mapstructure:"quest_signer"`
	OperatorIdentity string `mapstructure:"operator_identity"`
	OperatorPassword string `mapstructure:"operator_password"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/questledger.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("engine.min_quest_lead", "24h")
	v.SetDefault("engine.season_length", "6552h") // 39 weeks
	v.SetDefault("engine.decay_retain_pct", 15)
	v.SetDefault("engine.max_multiplier", 50)
	v.SetDefault("engine.verify_with", "quest_signer")
	v.SetDefault("engine.notify_timeout", "5s")
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

type StoreConfig struct {
	Driver string
}

// MaxPageLimit caps the recent, popular and random listings.
const MaxPageLimit = 30

type RankingConfig struct {
	MaxLimit    int
	SearchLimit int
}

type IngestConfig struct {
	Timeout  time.Duration
	MaxBytes int64
}

type ReactionsConfig struct {
	LockTimeout time.Duration
	LockTTL     time.Duration
}

// ConsistencyConfig drives the repair stream shared by the api (producer)
// and the worker (consumer).
type ConsistencyConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
	SweepSchedule string
	SweepBatch    int
	MetricsAddr   string
}

type LoggingConfig struct {
	Level string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Store            StoreConfig
	Ranking          RankingConfig
	Ingest           IngestConfig
	Reactions        ReactionsConfig
	Consistency      ConsistencyConfig
	Logging          LoggingConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("GALLERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("config: postgres.dsn is required for the postgres store driver")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Ranking.MaxLimit <= 0 || c.Ranking.MaxLimit > MaxPageLimit {
		return fmt.Errorf("config: ranking.maxlimit must be between 1 and %d", MaxPageLimit)
	}
	if c.Ranking.SearchLimit <= 0 {
		return errors.New("config: ranking.searchlimit must be positive")
	}
	if c.Ingest.MaxBytes <= 0 {
		return errors.New("config: ingest.maxbytes must be positive")
	}
	if c.Consistency.ClaimInterval <= 0 {
		return errors.New("config: consistency.claiminterval must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 3001)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "30s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 5)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.endpoint", "127.0.0.1:9000")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.bucket", "gallery-images")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("store.driver", StoreDriverPostgres)

	v.SetDefault("ranking.maxlimit", 30)
	v.SetDefault("ranking.searchlimit", 100)

	v.SetDefault("ingest.timeout", "20s")
	v.SetDefault("ingest.maxbytes", 20<<20)

	v.SetDefault("reactions.locktimeout", "2s")
	v.SetDefault("reactions.lockttl", "10s")

	v.SetDefault("consistency.stream", "gallery:consistency")
	v.SetDefault("consistency.group", "consistency-workers")
	v.SetDefault("consistency.consumer", "worker-1")
	v.SetDefault("consistency.claiminterval", "30s")
	v.SetDefault("consistency.sweepschedule", "0 0 * * * *")
	v.SetDefault("consistency.sweepbatch", 200)
	v.SetDefault("consistency.metricsaddr", ":9101")

	v.SetDefault("logging.level", "")
	v.SetDefault("allowcorsorigins", []string{})
}

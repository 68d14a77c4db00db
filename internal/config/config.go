package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "TRIAGE"

type Config struct {
	App     AppConfig     `mapstructure:"app" yaml:"app"`
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
	GRPC    GRPCConfig    `mapstructure:"grpc" yaml:"grpc"`
	Kafka   KafkaConfig   `mapstructure:"kafka" yaml:"kafka"`
	DB      DBConfig      `mapstructure:"db" yaml:"db"`
	Redis   RedisConfig   `mapstructure:"redis" yaml:"redis"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Workers WorkersConfig `mapstructure:"workers" yaml:"workers"`

	Escalation EscalationConfig `mapstructure:"escalation" yaml:"escalation"`
}

type AppConfig struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`
}

type HTTPConfig struct {
	Port            int           `mapstructure:"port" yaml:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type GRPCConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

type KafkaConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Brokers      []string `mapstructure:"brokers" yaml:"brokers"`
	InboundTopic string   `mapstructure:"inbound_topic" yaml:"inbound_topic"`
	ReplyTopic   string   `mapstructure:"reply_topic" yaml:"reply_topic"`
	AlertTopic   string   `mapstructure:"alert_topic" yaml:"alert_topic"`
	GroupID      string   `mapstructure:"group_id" yaml:"group_id"`
}

// DBConfig enables the escalation audit log when DSN is set.
type DBConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// RedisConfig enables rate limiting when Addr is set.
type RedisConfig struct {
	Addr         string `mapstructure:"addr" yaml:"addr"`
	Password     string `mapstructure:"password" yaml:"password"`
	Database     int    `mapstructure:"database" yaml:"database"`
	RateLimitQPS int    `mapstructure:"rate_limit_qps" yaml:"rate_limit_qps"`
}

type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl" yaml:"ttl"`
	MaxSessions     int           `mapstructure:"max_sessions" yaml:"max_sessions"`
	Shards          int           `mapstructure:"shards" yaml:"shards"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
}

type WorkersConfig struct {
	Count     int `mapstructure:"count" yaml:"count"`
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`
}

// EscalationConfig bounds background delivery to the audit log and alert topic.
type EscalationConfig struct {
	HookTimeout time.Duration `mapstructure:"hook_timeout" yaml:"hook_timeout"`
	QueueSize   int           `mapstructure:"queue_size" yaml:"queue_size"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.shutdown_timeout", 5*time.Second)

	v.SetDefault("grpc.port", 50051)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.inbound_topic", "conversations")
	v.SetDefault("kafka.reply_topic", "conversation-replies")
	v.SetDefault("kafka.alert_topic", "crisis-alerts")
	v.SetDefault("kafka.group_id", "crisis-triage")

	v.SetDefault("db.driver", "mysql")
	v.SetDefault("db.dsn", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.rate_limit_qps", 20)

	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("session.max_sessions", 10000)
	v.SetDefault("session.shards", 32)
	v.SetDefault("session.cleanup_interval", time.Minute)

	v.SetDefault("workers.count", 8)
	v.SetDefault("workers.queue_size", 100)

	v.SetDefault("escalation.hook_timeout", 5*time.Second)
	v.SetDefault("escalation.queue_size", 256)
}

// Load reads defaults, then the YAML file at path if given, then TRIAGE_*
// environment variables (e.g. TRIAGE_KAFKA_BROKERS=a:9092,b:9092).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if !validPort(c.HTTP.Port) {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.HTTP.Port))
	}
	if !validPort(c.GRPC.Port) {
		errs = append(errs, fmt.Errorf("grpc.port %d out of range", c.GRPC.Port))
	}
	if c.HTTP.Port == c.GRPC.Port {
		errs = append(errs, errors.New("http.port and grpc.port must differ"))
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka.brokers is required when kafka is enabled"))
		}
		if c.Kafka.InboundTopic == "" || c.Kafka.GroupID == "" {
			errs = append(errs, errors.New("kafka.inbound_topic and kafka.group_id are required when kafka is enabled"))
		}
	}

	if c.DB.DSN != "" && c.DB.Driver != "mysql" && c.DB.Driver != "postgres" {
		errs = append(errs, fmt.Errorf("db.driver %q must be mysql or postgres", c.DB.Driver))
	}

	if c.Redis.Addr != "" && c.Redis.RateLimitQPS <= 0 {
		errs = append(errs, errors.New("redis.rate_limit_qps must be positive"))
	}

	if c.Session.Shards <= 0 {
		errs = append(errs, errors.New("session.shards must be positive"))
	}
	if c.Workers.Count <= 0 {
		errs = append(errs, errors.New("workers.count must be positive"))
	}

	return errors.Join(errs...)
}

func validPort(p int) bool {
	return p > 0 && p < 65536
}

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	pkgconfig "github.com/weiawesome/amen-live/pkg/config"
	"github.com/weiawesome/amen-live/pkg/database"
	"github.com/weiawesome/amen-live/pkg/pubsub"
)

type Config struct {
	Server      ServerConfig
	WebSocket   WebSocketConfig
	Live        LiveConfig
	Database    database.Config
	ChatStore   ChatStoreConfig `mapstructure:"chat_store"`
	Cassandra   CassandraConfig
	Redis       RedisConfig
	PubSub      pubsub.Config
	Kafka       KafkaConfig
	Translation TranslationConfig
	WebRTC      WebRTCConfig
	Auth        AuthConfig
	Log         LogConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	InstanceID      string        `mapstructure:"instance_id"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBufferSize int           `mapstructure:"send_buffer_size"`
	RateLimit      float64       `mapstructure:"rate_limit"` // messages per second, 0 disables
	RateBurst      int           `mapstructure:"rate_burst"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type LiveConfig struct {
	MaxViewers int `mapstructure:"max_viewers"`
}

type ChatStoreConfig struct {
	Driver string `mapstructure:"driver"` // "gorm" or "cassandra"
}

type CassandraConfig struct {
	Hosts       []string      `mapstructure:"hosts"`
	Keyspace    string        `mapstructure:"keyspace"`
	Consistency string        `mapstructure:"consistency"`
	Timeout     time.Duration `mapstructure:"timeout"`
	NumRetries  int           `mapstructure:"num_retries"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
}

type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type KafkaConfig struct {
	Enabled    bool
	Brokers    string
	Topic      string
	Partitions int
}

type TranslationConfig struct {
	URL              string
	APIKey           string        `mapstructure:"api_key"`
	Timeout          time.Duration `mapstructure:"timeout"`
	BreakerFailures  uint32        `mapstructure:"breaker_failures"`
	BreakerOpenAfter time.Duration `mapstructure:"breaker_open_timeout"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

var defaults = map[string]interface{}{
	"server.host":             "0.0.0.0",
	"server.port":             3001,
	"server.instance_id":      "",
	"server.read_timeout":     "15s",
	"server.write_timeout":    "15s",
	"server.shutdown_timeout": "30s",

	"websocket.ping_interval":    "30s",
	"websocket.pong_wait":        "60s",
	"websocket.write_wait":       "10s",
	"websocket.max_message_size": 65536,
	"websocket.send_buffer_size": 256,
	"websocket.rate_limit":       20.0,
	"websocket.rate_burst":       40,
	"websocket.allowed_origins":  []string{},

	"live.max_viewers": 10,

	"database.driver":            "sqlite",
	"database.host":              "localhost",
	"database.port":              5432,
	"database.user":              "postgres",
	"database.password":          "",
	"database.dbname":            "amen",
	"database.sslmode":           "disable",
	"database.file_path":         "amen-live.db",
	"database.max_idle_conns":    5,
	"database.max_open_conns":    20,
	"database.conn_max_lifetime": "30m",
	"database.log_level":         "warn",

	"chat_store.driver": "gorm",

	"cassandra.hosts":       []string{"localhost:9042"},
	"cassandra.keyspace":    "amen_chat",
	"cassandra.consistency": "LOCAL_QUORUM",
	"cassandra.timeout":     "5s",
	"cassandra.num_retries": 3,
	"cassandra.username":    "",
	"cassandra.password":    "",

	"redis.address":   "",
	"redis.password":  "",
	"redis.db":        0,
	"redis.cache_ttl": "24h",

	"pubsub.driver":              "none",
	"pubsub.redis.address":       "localhost:6379",
	"pubsub.redis.password":      "",
	"pubsub.redis.db":            0,
	"pubsub.redis.pool_size":     10,
	"pubsub.redis.read_timeout":  "3s",
	"pubsub.redis.write_timeout": "3s",
	"pubsub.kafka.brokers":       "localhost:9092",
	"pubsub.kafka.group_id":      "amen-live",
	"pubsub.kafka.partitions":    1,

	"kafka.enabled":    false,
	"kafka.brokers":    "localhost:9092",
	"kafka.topic":      "live-events",
	"kafka.partitions": 4,

	"translation.url":                  "",
	"translation.api_key":              "",
	"translation.timeout":              "5s",
	"translation.breaker_failures":     5,
	"translation.breaker_open_timeout": "30s",

	"webrtc.turn_key_id": "",
	"webrtc.turn_key":    "",
	"webrtc.turn_ttl":    "24h",

	"auth.jwt_secret": "",
	"auth.issuer":     "",

	"log.level":  "info",
	"log.pretty": false,
}

// Load reads ./config/config.yaml (or CONFIG_PATH) and the environment.
func Load() (*Config, error) {
	v, err := pkgconfig.Load(pkgconfig.GetEnv("CONFIG_PATH", "./config"), "config", defaults)
	if err != nil {
		return nil, err
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	// Short aliases used by the deployment manifests.
	v.BindEnv("server.port", "PORT")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("pubsub.redis.address", "REDIS_ADDRESS")
	v.BindEnv("pubsub.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("translation.url", "TRANSLATION_URL")
	v.BindEnv("translation.api_key", "TRANSLATION_API_KEY")
	v.BindEnv("auth.jwt_secret", "INTERNAL_JWT_SECRET")
	v.BindEnv("webrtc.turn_key_id", "CF_TURN_ID")
	v.BindEnv("webrtc.turn_key", "CF_TURN_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)

	if cfg.WebSocket.PingInterval <= 0 {
		return nil, fmt.Errorf("websocket.ping_interval must be positive, got %s", cfg.WebSocket.PingInterval)
	}
	if cfg.WebSocket.PingInterval >= cfg.WebSocket.PongWait {
		return nil, fmt.Errorf("websocket.ping_interval (%s) must be shorter than websocket.pong_wait (%s)",
			cfg.WebSocket.PingInterval, cfg.WebSocket.PongWait)
	}
	if cfg.Live.MaxViewers <= 0 {
		return nil, fmt.Errorf("live.max_viewers must be positive, got %d", cfg.Live.MaxViewers)
	}
	if cfg.WebSocket.SendBufferSize <= 0 {
		cfg.WebSocket.SendBufferSize = 256
	}

	if cfg.Server.InstanceID == "" {
		host, _ := os.Hostname()
		cfg.Server.InstanceID = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	}

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return defaultVal
	}
	return d
}

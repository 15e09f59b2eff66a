package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Queue    QueueConfig
	Media    MediaConfig
	Catalog  CatalogConfig
	Camera   CameraConfig
	Pose     PoseConfig
	Session  SessionConfig
	Webhooks WebhooksConfig
	Logging  LoggingConfig
	Tracing  TracingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	PublicOrigin    string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
	// ReplayDLQ makes the worker republish dead-lettered events on startup
	ReplayDLQ bool
}

// MediaConfig holds reference media acquisition settings
type MediaConfig struct {
	TempDir      string
	FFprobePath  string
	MaxFileSize  int64
	ProbeTimeout time.Duration
}

// CatalogConfig holds routine library settings
type CatalogConfig struct {
	MediaRoot     string
	MediaBaseURL  string
	ProbeCacheTTL time.Duration
}

// CameraConfig holds capture device settings
type CameraConfig struct {
	FFmpegPath  string
	FrontDevice string
	RearDevice  string
	Width       int
	Height      int
	FrameRate   int
}

// PoseConfig holds pose model settings
type PoseConfig struct {
	ModelName    string
	WeightPrefix string
	WeightDir    string
	CacheDir     string
}

// SessionConfig holds practice session settings
type SessionConfig struct {
	CountdownSeconds int
	MaxSessions      int
}

// WebhookEndpoint is one session event subscriber
type WebhookEndpoint struct {
	URL    string
	Secret string
	Events []string
}

// WebhooksConfig holds session event webhook settings
type WebhooksConfig struct {
	Endpoints []WebhookEndpoint
	Timeout   time.Duration
	QueueSize int
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// TracingConfig holds Jaeger settings
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
}

// MetricsConfig holds the metrics server settings
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks values that would otherwise fail deep inside a session
func (c *Config) Validate() error {
	if c.Media.MaxFileSize <= 0 {
		return fmt.Errorf("media.maxFileSize must be positive")
	}
	if c.Session.CountdownSeconds < 0 {
		return fmt.Errorf("session.countdownSeconds must not be negative")
	}
	if c.Pose.ModelName == "" {
		return fmt.Errorf("pose.modelName is required")
	}
	if c.Camera.FrontDevice == "" {
		return fmt.Errorf("camera.frontDevice is required")
	}
	for i, ep := range c.Webhooks.Endpoints {
		if ep.URL == "" {
			return fmt.Errorf("webhooks.endpoints[%d].url is required", i)
		}
	}
	return nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.publicOrigin", "http://localhost:8080")
	viper.SetDefault("server.readTimeout", "30s")
	viper.SetDefault("server.writeTimeout", "60s")
	viper.SetDefault("server.shutdownTimeout", "10s")
	viper.SetDefault("server.rateLimitRPS", 20)
	viper.SetDefault("server.rateLimitBurst", 40)

	// Database defaults
	viper.SetDefault("database.enabled", true)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "ark")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxConns", 10)
	viper.SetDefault("database.minConns", 2)

	// Redis defaults
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Storage defaults
	viper.SetDefault("storage.enabled", true)
	viper.SetDefault("storage.endpoint", "localhost:9000")
	viper.SetDefault("storage.accessKeyID", "minioadmin")
	viper.SetDefault("storage.secretAccessKey", "minioadmin")
	viper.SetDefault("storage.bucketName", "ark")
	viper.SetDefault("storage.region", "us-east-1")
	viper.SetDefault("storage.useSSL", false)

	// Queue defaults
	viper.SetDefault("queue.enabled", true)
	viper.SetDefault("queue.host", "localhost")
	viper.SetDefault("queue.port", 5672)
	viper.SetDefault("queue.user", "guest")
	viper.SetDefault("queue.password", "guest")
	viper.SetDefault("queue.vhost", "/")
	viper.SetDefault("queue.replayDLQ", false)

	// Media defaults
	viper.SetDefault("media.tempDir", "/tmp/ark")
	viper.SetDefault("media.ffprobePath", "ffprobe")
	viper.SetDefault("media.maxFileSize", 200*1024*1024) // 200MB
	viper.SetDefault("media.probeTimeout", "30s")

	// Catalog defaults
	viper.SetDefault("catalog.mediaRoot", "./public")
	viper.SetDefault("catalog.mediaBaseURL", "")
	viper.SetDefault("catalog.probeCacheTTL", "24h")

	// Camera defaults
	viper.SetDefault("camera.ffmpegPath", "ffmpeg")
	viper.SetDefault("camera.frontDevice", "/dev/video0")
	viper.SetDefault("camera.rearDevice", "")
	viper.SetDefault("camera.width", 1280)
	viper.SetDefault("camera.height", 720)
	viper.SetDefault("camera.frameRate", 30)

	// Pose defaults
	viper.SetDefault("pose.modelName", "movenet-lightning")
	viper.SetDefault("pose.weightPrefix", "pose-models")
	viper.SetDefault("pose.weightDir", "./public/models")
	viper.SetDefault("pose.cacheDir", "/tmp/ark/models")

	// Session defaults
	viper.SetDefault("session.countdownSeconds", 3)
	viper.SetDefault("session.maxSessions", 256)

	// Webhook defaults
	viper.SetDefault("webhooks.timeout", "10s")
	viper.SetDefault("webhooks.queueSize", 256)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.serviceName", "ark-api")
	viper.SetDefault("tracing.endpoint", "http://localhost:14268/api/traces")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)
}

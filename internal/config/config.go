package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Renderer  RendererConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RendererConfig controls the headless render pipeline.
type RendererConfig struct {
	PoolSize      int           // number of pooled browser tabs
	Concurrency   int           // concurrent rows per bulk job (1 = sequential)
	RenderTimeout time.Duration // wraps one full per-row render
	OutputDir     string        // where raster files are written
	PublicBaseURL string        // base URL under which OutputDir is served
	ChromePath    string        // optional explicit chrome binary
}

// StorageConfig configures the optional R2 output upload. Incomplete
// credentials disable the client and results are served by local path.
type StorageConfig struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type RateLimitConfig struct {
	TemplatesPerMin int
	GeneratePerHour int
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("renderer.pool_size", 2)
	viper.SetDefault("renderer.concurrency", 1)
	viper.SetDefault("renderer.render_timeout_sec", 30)
	viper.SetDefault("renderer.output_dir", "./output")
	viper.SetDefault("renderer.public_base_url", "/files")
	viper.SetDefault("renderer.chrome_path", "")
	viper.SetDefault("storage.account_id", "")
	viper.SetDefault("storage.access_key_id", "")
	viper.SetDefault("storage.secret_access_key", "")
	viper.SetDefault("storage.bucket_name", "")
	viper.SetDefault("storage.public_url", "")
	viper.SetDefault("ratelimit.templates_per_min", 120)
	viper.SetDefault("ratelimit.generate_per_hour", 30)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Renderer: RendererConfig{
			PoolSize:      viper.GetInt("renderer.pool_size"),
			Concurrency:   viper.GetInt("renderer.concurrency"),
			RenderTimeout: time.Duration(viper.GetInt("renderer.render_timeout_sec")) * time.Second,
			OutputDir:     viper.GetString("renderer.output_dir"),
			PublicBaseURL: viper.GetString("renderer.public_base_url"),
			ChromePath:    viper.GetString("renderer.chrome_path"),
		},
		Storage: StorageConfig{
			AccountID:       viper.GetString("storage.account_id"),
			AccessKeyID:     viper.GetString("storage.access_key_id"),
			SecretAccessKey: viper.GetString("storage.secret_access_key"),
			BucketName:      viper.GetString("storage.bucket_name"),
			PublicURL:       viper.GetString("storage.public_url"),
		},
		RateLimit: RateLimitConfig{
			TemplatesPerMin: viper.GetInt("ratelimit.templates_per_min"),
			GeneratePerHour: viper.GetInt("ratelimit.generate_per_hour"),
		},
	}

	return cfg, nil
}
